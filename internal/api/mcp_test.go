package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/manasgoel2002/DTW-ChatInterface/internal/interview"
	"github.com/manasgoel2002/DTW-ChatInterface/internal/schema"
	"github.com/manasgoel2002/DTW-ChatInterface/internal/storage"
)

// --- helpers ---

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tests ---

func TestMCPTool_Chat(t *testing.T) {
	mock := &mockInterviewer{
		turn: interview.Turn{
			Reply:   "How tall are you?",
			Profile: schema.Snapshot(map[string]any{"age": 34}),
		},
	}
	handler := mcpChat(MCPDeps{Interview: mock})

	req := makeCallToolRequest("onboarding_chat", map[string]interface{}{
		"user_id":    "u1",
		"session_id": "s1",
		"message":    "I'm 34",
		"model":      "gpt-4o",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if mock.gotKey != (storage.Key{UserID: "u1", SessionID: "s1"}) {
		t.Errorf("key = %+v", mock.gotKey)
	}
	if mock.gotModel != "gpt-4o" {
		t.Errorf("model override = %q", mock.gotModel)
	}

	var parsed struct {
		Reply   string         `json:"reply"`
		Profile map[string]any `json:"profile"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &parsed); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if parsed.Reply != "How tall are you?" {
		t.Errorf("reply = %q", parsed.Reply)
	}
	if parsed.Profile["age"] != float64(34) {
		t.Errorf("age = %v", parsed.Profile["age"])
	}
}

func TestMCPTool_Chat_MissingArgs(t *testing.T) {
	handler := mcpChat(MCPDeps{Interview: &mockInterviewer{}})

	req := makeCallToolRequest("onboarding_chat", map[string]interface{}{
		"user_id": "u1",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing session_id")
	}
}

func TestMCPTool_Chat_TurnFailure(t *testing.T) {
	handler := mcpChat(MCPDeps{Interview: &mockInterviewer{turnErr: interview.ErrCompletionFailed}})

	req := makeCallToolRequest("onboarding_chat", map[string]interface{}{
		"user_id":    "u1",
		"session_id": "s1",
		"message":    "hi",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error when the turn fails")
	}
}

func TestMCPTool_GetProfile(t *testing.T) {
	handler := mcpProfile(MCPDeps{Interview: &mockInterviewer{}})

	req := makeCallToolRequest("get_profile", map[string]interface{}{
		"user_id":    "u1",
		"session_id": "s1",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var profile map[string]any
	if err := json.Unmarshal([]byte(toolText(t, result)), &profile); err != nil {
		t.Fatalf("failed to parse profile: %v", err)
	}
	if profile["age"] != float64(34) {
		t.Errorf("age = %v", profile["age"])
	}
	// Snapshot carries every field, null when unfilled.
	if v, ok := profile["height_cm"]; !ok || v != nil {
		t.Errorf("height_cm = %v (present=%v)", v, ok)
	}
}

func TestMCPResource_Profile(t *testing.T) {
	mock := &mockInterviewer{}
	handler := mcpResourceProfile(MCPDeps{Interview: mock})

	req := makeReadResourceRequest("user://profile?user_id=u1&session_id=s1")
	contents, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content item, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.MIMEType != "application/json" {
		t.Errorf("mime type = %q", tc.MIMEType)
	}
	if tc.URI != "user://profile?user_id=u1&session_id=s1" {
		t.Errorf("uri = %q", tc.URI)
	}
	if mock.gotKey != (storage.Key{UserID: "u1", SessionID: "s1"}) {
		t.Errorf("key = %+v", mock.gotKey)
	}

	var profile map[string]any
	if err := json.Unmarshal([]byte(tc.Text), &profile); err != nil {
		t.Fatalf("failed to parse profile: %v", err)
	}
	if profile["age"] != float64(34) {
		t.Errorf("age = %v", profile["age"])
	}
	if v, ok := profile["height_cm"]; !ok || v != nil {
		t.Errorf("height_cm = %v (present=%v)", v, ok)
	}
}

func TestMCPResource_Profile_MissingKey(t *testing.T) {
	handler := mcpResourceProfile(MCPDeps{Interview: &mockInterviewer{}})

	if _, err := handler(context.Background(), makeReadResourceRequest("user://profile")); err == nil {
		t.Error("expected error for missing query parameters")
	}
	if _, err := handler(context.Background(), makeReadResourceRequest("user://profile?user_id=u1")); err == nil {
		t.Error("expected error for missing session_id")
	}
}

func TestMCPTool_GetHistory(t *testing.T) {
	mock := &mockInterviewer{history: []storage.Message{
		{Role: storage.RoleUser, Content: "hi"},
		{Role: storage.RoleAssistant, Content: "What is your age?"},
	}}
	handler := mcpHistory(MCPDeps{Interview: mock})

	req := makeCallToolRequest("get_history", map[string]interface{}{
		"user_id":    "u1",
		"session_id": "s1",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var history []storage.Message
	if err := json.Unmarshal([]byte(toolText(t, result)), &history); err != nil {
		t.Fatalf("failed to parse history: %v", err)
	}
	if len(history) != 2 || history[1].Content != "What is your age?" {
		t.Fatalf("history = %v", history)
	}
}
