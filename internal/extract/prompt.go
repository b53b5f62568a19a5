package extract

import (
	"fmt"
	"strings"

	"github.com/manasgoel2002/DTW-ChatInterface/internal/llm"
	"github.com/manasgoel2002/DTW-ChatInterface/internal/schema"
)

const systemPromptTemplate = `You are a field extraction engine for an onboarding profile. Your output must be ONLY a single valid JSON object.

Rules:
- Include only fields the user explicitly stated in their message. Omit everything else. Never infer, estimate, or fabricate a value.
- Use ISO 8601 formats: dates as YYYY-MM-DD (e.g. 2000-01-31), times as 24-hour HH:MM (e.g. 22:30).
- Numeric fields must be plain JSON numbers, boolean fields true or false.
- Allowed keys, one per field:`

// BuildPrompt constructs the chat messages for the structured extraction call.
func BuildPrompt(utterance string) []llm.Message {
	var sb strings.Builder
	sb.WriteString(systemPromptTemplate)
	for _, f := range schema.Fields() {
		fmt.Fprintf(&sb, "\n- %s (%s): %s", f.Name, f.Type, f.Hint)
	}

	return []llm.Message{
		{Role: "system", Content: sb.String()},
		{Role: "user", Content: utterance},
	}
}

// extractionSchema describes the expected JSON object for structured output.
func extractionSchema() *llm.Schema {
	props := make(map[string]llm.SchemaProperty)
	for _, f := range schema.Fields() {
		props[f.Name] = llm.SchemaProperty{Type: jsonType(f.Type), Description: f.Hint}
	}
	return &llm.Schema{Type: "object", Properties: props}
}

func jsonType(t schema.FieldType) string {
	switch t {
	case schema.TypeInt:
		return "integer"
	case schema.TypeFloat:
		return "number"
	case schema.TypeBool:
		return "boolean"
	default:
		return "string"
	}
}
