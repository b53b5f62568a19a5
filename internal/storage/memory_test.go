package storage

import "testing"

func TestMemory_LoadReturnsCopy(t *testing.T) {
	m := NewMemory()
	key := Key{UserID: "u1", SessionID: "s1"}

	conv := NewConversation()
	conv.Profile["age"] = 34
	conv.History = append(conv.History, Message{Role: RoleUser, Content: "hi"})
	if err := m.Save(key, conv); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := m.Load(key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got.Profile["age"] = 99
	got.History[0].Content = "mutated"
	got.Skipped["workout_type"] = true

	again, err := m.Load(key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if again.Profile["age"] != 34 {
		t.Errorf("stored profile mutated through a loaded copy: %v", again.Profile)
	}
	if again.History[0].Content != "hi" {
		t.Errorf("stored history mutated through a loaded copy: %v", again.History)
	}
	if len(again.Skipped) != 0 {
		t.Errorf("stored skipped set mutated through a loaded copy: %v", again.Skipped)
	}
}

func TestMemory_UnknownKeyIsEmpty(t *testing.T) {
	m := NewMemory()

	conv, err := m.Load(Key{UserID: "nobody", SessionID: "nothing"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if conv.Profile == nil || conv.Skipped == nil {
		t.Error("records must be initialized, not nil")
	}
	if len(conv.History) != 0 {
		t.Errorf("expected empty history, got %v", conv.History)
	}
}
