// Package storage holds per-conversation onboarding state: message history,
// accumulated profile values, and explicitly skipped fields.
package storage

import "fmt"

// Message roles accepted in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Key identifies one independent conversation. No state is shared across keys.
type Key struct {
	UserID    string
	SessionID string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.UserID, k.SessionID)
}

// Message is one history entry. History is append-only and never reordered.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation bundles the three records kept per key. All three are created
// together on first access and live for the lifetime of the store.
type Conversation struct {
	History []Message
	Profile map[string]any
	Skipped map[string]bool
}

// NewConversation returns an empty conversation with initialized records.
func NewConversation() Conversation {
	return Conversation{
		Profile: make(map[string]any),
		Skipped: make(map[string]bool),
	}
}

// Clone returns a deep copy; mutations of the copy never leak into the source.
func (c Conversation) Clone() Conversation {
	out := Conversation{
		History: make([]Message, len(c.History)),
		Profile: make(map[string]any, len(c.Profile)),
		Skipped: make(map[string]bool, len(c.Skipped)),
	}
	copy(out.History, c.History)
	for k, v := range c.Profile {
		out.Profile[k] = v
	}
	for k, v := range c.Skipped {
		out.Skipped[k] = v
	}
	return out
}

// Store is the injectable conversation backend. Load returns a deep copy of
// the conversation for key (an empty one if the key is new); Save replaces
// the stored conversation wholesale, so a turn's effects commit atomically.
// Callers must serialize Load/Save pairs per key themselves.
type Store interface {
	Load(key Key) (Conversation, error)
	Save(key Key, conv Conversation) error
}
