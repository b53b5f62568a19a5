// Package interview orchestrates one conversation turn: prompt synthesis,
// completion, extraction, merge, and derivation over the conversation store.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/manasgoel2002/DTW-ChatInterface/internal/composer"
	"github.com/manasgoel2002/DTW-ChatInterface/internal/llm"
	"github.com/manasgoel2002/DTW-ChatInterface/internal/policy"
	"github.com/manasgoel2002/DTW-ChatInterface/internal/schema"
	"github.com/manasgoel2002/DTW-ChatInterface/internal/storage"
)

// ErrCompletionFailed marks a turn-level failure of the external completion
// capability. No conversation state is mutated when a turn fails this way.
var ErrCompletionFailed = errors.New("completion failed")

// Completer is the external text-completion capability.
type Completer interface {
	Chat(ctx context.Context, model string, messages []llm.Message, jsonSchema *llm.Schema) (string, error)
}

// Extractor converts an utterance into a partial field mapping. It must not
// fail; an empty map means nothing was found.
type Extractor interface {
	Extract(ctx context.Context, utterance string) map[string]any
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// skipTokens are utterances that decline the currently targeted field.
var skipTokens = map[string]bool{"skip": true, "unknown": true, "na": true, "n/a": true}

// Orchestrator runs onboarding turns. Turns for the same conversation key are
// serialized with a per-key mutex; turns for different keys proceed in
// parallel.
type Orchestrator struct {
	store     storage.Store
	completer Completer
	extractor Extractor
	model     string
	clock     Clock

	mu    sync.Mutex
	locks map[storage.Key]*sync.Mutex
}

// New creates an Orchestrator with the given store, completion client,
// extractor, and default model.
func New(store storage.Store, completer Completer, extractor Extractor, model string) *Orchestrator {
	return NewWithClock(store, completer, extractor, model, realClock{})
}

// NewWithClock creates an Orchestrator with a custom clock (for testing).
func NewWithClock(store storage.Store, completer Completer, extractor Extractor, model string, clock Clock) *Orchestrator {
	return &Orchestrator{
		store:     store,
		completer: completer,
		extractor: extractor,
		model:     model,
		clock:     clock,
		locks:     make(map[storage.Key]*sync.Mutex),
	}
}

// Turn is the result of one processed user message.
type Turn struct {
	Reply   string
	History []storage.Message
	Profile map[string]any // canonical snapshot, explicit nil per absent field
}

// HandleTurn processes one user message for the given conversation key and
// returns the assistant's reply plus a canonical profile snapshot. The turn
// commits atomically: a completion failure leaves all stored state untouched.
func (o *Orchestrator) HandleTurn(ctx context.Context, key storage.Key, utterance, modelOverride string) (Turn, error) {
	unlock := o.lockKey(key)
	defer unlock()

	conv, err := o.store.Load(key)
	if err != nil {
		return Turn{}, fmt.Errorf("loading conversation %s: %w", key, err)
	}

	now := o.clock.Now()
	policy.ApplyDerived(conv.Profile, now)

	// A skip token declines the currently targeted field. The utterance is
	// still appended to history and still passed through extraction.
	if target := policy.NextTarget(conv.Profile, conv.Skipped); target != "" {
		if skipTokens[strings.ToLower(strings.TrimSpace(utterance))] {
			conv.Skipped[target] = true
		}
	}

	prompt := composer.BuildPrompt(conv.Profile, conv.Skipped, now)
	messages := make([]llm.Message, 0, len(conv.History)+2)
	messages = append(messages, llm.Message{Role: storage.RoleSystem, Content: prompt})
	for _, m := range conv.History {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: storage.RoleUser, Content: utterance})

	model := o.model
	if modelOverride != "" {
		model = modelOverride
	}

	reply, err := o.completer.Chat(ctx, model, messages, nil)
	if err != nil {
		return Turn{}, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	if strings.TrimSpace(reply) == "" {
		return Turn{}, fmt.Errorf("%w: empty reply", ErrCompletionFailed)
	}

	conv.History = append(conv.History,
		storage.Message{Role: storage.RoleUser, Content: utterance},
		storage.Message{Role: storage.RoleAssistant, Content: reply},
	)

	if updates := o.extractor.Extract(ctx, utterance); len(updates) > 0 {
		candidate := make(map[string]any, len(conv.Profile)+len(updates))
		for k, v := range conv.Profile {
			candidate[k] = v
		}
		for k, v := range updates {
			candidate[k] = v
		}
		coerced, err := schema.ValidateAndCoerce(candidate)
		if err != nil {
			// A malformed extraction must never corrupt existing state.
			slog.Warn("discarding profile merge", "key", key.String(), "error", err)
		} else {
			conv.Profile = coerced
		}
	}

	policy.ApplyDerived(conv.Profile, now)

	if err := o.store.Save(key, conv); err != nil {
		return Turn{}, fmt.Errorf("saving conversation %s: %w", key, err)
	}

	return Turn{
		Reply:   reply,
		History: conv.History,
		Profile: schema.Snapshot(conv.Profile),
	}, nil
}

// History returns a read-only copy of the message history for key.
func (o *Orchestrator) History(key storage.Key) ([]storage.Message, error) {
	conv, err := o.store.Load(key)
	if err != nil {
		return nil, fmt.Errorf("loading conversation %s: %w", key, err)
	}
	return conv.History, nil
}

// Profile returns the canonical profile snapshot for key.
func (o *Orchestrator) Profile(key storage.Key) (map[string]any, error) {
	conv, err := o.store.Load(key)
	if err != nil {
		return nil, fmt.Errorf("loading conversation %s: %w", key, err)
	}
	return schema.Snapshot(conv.Profile), nil
}

// lockKey acquires the per-key mutex, creating it on first use.
func (o *Orchestrator) lockKey(key storage.Key) func() {
	o.mu.Lock()
	l, ok := o.locks[key]
	if !ok {
		l = &sync.Mutex{}
		o.locks[key] = l
	}
	o.mu.Unlock()

	l.Lock()
	return l.Unlock
}
