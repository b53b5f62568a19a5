// Package extract converts raw user utterances into partial profile field
// mappings, combining model-assisted structured extraction with a
// deterministic labeled-line parser.
package extract

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/manasgoel2002/DTW-ChatInterface/internal/llm"
	"github.com/manasgoel2002/DTW-ChatInterface/internal/schema"
)

const extractionTimeout = 10 * time.Second

// Chatter is the completion capability used for structured extraction.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []llm.Message, jsonSchema *llm.Schema) (string, error)
}

// Extractor runs the two-strategy extraction pipeline: a model-assisted
// structured call, overridden by the deterministic parser for any field both
// produced. Selected at composition time; a nil client disables the model
// path entirely.
type Extractor struct {
	client Chatter
	model  string
}

// NewExtractor creates an Extractor using the given completion client and
// model name.
func NewExtractor(client Chatter, model string) *Extractor {
	return &Extractor{client: client, model: model}
}

// Extract returns the (field, value) pairs explicitly stated in the
// utterance. The result never contains nil values; absence of a key means
// "not found". Extraction never fails: when the model-assisted path errors,
// the deterministic parser's result is returned alone.
func (e *Extractor) Extract(ctx context.Context, utterance string) map[string]any {
	if utterance == "" {
		return map[string]any{}
	}

	parsed := ParseLabeledLines(utterance)

	assisted := e.modelAssisted(ctx, utterance)

	// Labeled, explicit user input overrides inferred structured output.
	merged := make(map[string]any, len(assisted)+len(parsed))
	for k, v := range assisted {
		merged[k] = v
	}
	for k, v := range parsed {
		merged[k] = v
	}
	return merged
}

func (e *Extractor) modelAssisted(ctx context.Context, utterance string) map[string]any {
	if e.client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, extractionTimeout)
	defer cancel()

	raw, err := e.client.Chat(ctx, e.model, BuildPrompt(utterance), extractionSchema())
	if err != nil {
		slog.Warn("model-assisted extraction failed, using parser only", "error", err)
		return nil
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		slog.Warn("malformed extraction response, using parser only", "error", err, "response", raw)
		return nil
	}

	// Keep only known fields; drop nulls. Any field the model could not find
	// must be omitted, never inferred.
	out := make(map[string]any, len(decoded))
	for k, v := range decoded {
		if _, ok := schema.Lookup(k); !ok || v == nil {
			continue
		}
		out[k] = v
	}
	return out
}
