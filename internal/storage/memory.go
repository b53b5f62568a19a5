package storage

import "sync"

// Memory is an in-process Store backed by a map. Used by tests and by the
// server when no durable backend is configured.
type Memory struct {
	mu            sync.RWMutex
	conversations map[Key]Conversation
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{conversations: make(map[Key]Conversation)}
}

func (m *Memory) Load(key Key) (Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[key]
	if !ok {
		return NewConversation(), nil
	}
	return conv.Clone(), nil
}

func (m *Memory) Save(key Key, conv Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conversations[key] = conv.Clone()
	return nil
}
