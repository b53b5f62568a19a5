package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, "test-key"), srv
}

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func TestChat_Success(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(completionBody("hello there")))
	})
	defer srv.Close()

	reply, err := client.Chat(context.Background(), "gpt-4o-mini", []Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply != "hello there" {
		t.Errorf("reply = %q", reply)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o-mini" || len(gotReq.Messages) != 2 {
		t.Errorf("request = %+v", gotReq)
	}
	if gotReq.ResponseFormat != nil {
		t.Errorf("unexpected response_format on free-text call: %v", gotReq.ResponseFormat)
	}
}

func TestChat_StructuredRequestsJSONObject(t *testing.T) {
	var raw map[string]any
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		w.Write([]byte(completionBody(`{"age": 34}`)))
	})
	defer srv.Close()

	schema := &Schema{Type: "object", Properties: map[string]SchemaProperty{
		"age": {Type: "integer"},
	}}
	if _, err := client.Chat(context.Background(), "gpt-4o-mini", []Message{{Role: "user", Content: "I am 34"}}, schema); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	rf, ok := raw["response_format"].(map[string]any)
	if !ok || rf["type"] != "json_object" {
		t.Errorf("response_format = %v", raw["response_format"])
	}
	if raw["temperature"] != float64(0) {
		t.Errorf("temperature = %v, want 0 for structured calls", raw["temperature"])
	}
}

func TestChat_EmptyCompletion(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody("")))
	})
	defer srv.Close()

	_, err := client.Chat(context.Background(), "gpt-4o-mini", []Message{{Role: "user", Content: "hi"}}, nil)
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Errorf("err = %v, want ErrEmptyCompletion", err)
	}
}

func TestChat_UpstreamError(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	})
	defer srv.Close()

	_, err := client.Chat(context.Background(), "gpt-4o-mini", []Message{{Role: "user", Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestChat_RetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
			return
		}
		w.Write([]byte(completionBody("ok")))
	})
	defer srv.Close()

	reply, err := client.Chat(context.Background(), "gpt-4o-mini", []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply != "ok" {
		t.Errorf("reply = %q", reply)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}
