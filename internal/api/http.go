// Package api exposes the onboarding interview over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/manasgoel2002/DTW-ChatInterface/internal/interview"
	"github.com/manasgoel2002/DTW-ChatInterface/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// turnTimeout bounds the external completion call for one turn.
const turnTimeout = 60 * time.Second

// Interviewer abstracts the turn orchestrator for the API layer.
type Interviewer interface {
	HandleTurn(ctx context.Context, key storage.Key, utterance, modelOverride string) (interview.Turn, error)
	History(key storage.Key) ([]storage.Message, error)
	Profile(key storage.Key) (map[string]any, error)
}

// Deps holds dependencies for the HTTP handler.
type Deps struct {
	Interview Interviewer
	Token     string // optional; when set, onboarding routes require bearer auth
}

// NewHandler returns the HTTP handler for the onboarding service.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Post("/onboarding", handleOnboard)
		r.Post("/onboarding/chat", handleChat(deps))
		r.Get("/onboarding/history", handleHistory(deps))
		r.Post("/checkin", handleCheckin)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type onboardRequest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type onboardResponse struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

func handleOnboard(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req onboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}
	if req.Name == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
		return
	}

	writeJSON(w, onboardResponse{
		UserID:  uuid.New().String(),
		Message: fmt.Sprintf("Welcome %s!", req.Name),
	})
}

type chatRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Model     string `json:"model,omitempty"`
}

type chatResponse struct {
	Reply   string            `json:"reply"`
	History []storage.Message `json:"history"`
	Profile map[string]any    `json:"profile"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == "" || req.SessionID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id and session_id are required")
			return
		}
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), turnTimeout)
		defer cancel()

		key := storage.Key{UserID: req.UserID, SessionID: req.SessionID}
		turn, err := deps.Interview.HandleTurn(ctx, key, req.Message, req.Model)
		if err != nil {
			if errors.Is(err, interview.ErrCompletionFailed) {
				httpError(w, http.StatusBadGateway, "api_error", "could not get a response, please retry")
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "handling turn: %v", err)
			return
		}

		writeJSON(w, chatResponse{
			Reply:   turn.Reply,
			History: turn.History,
			Profile: turn.Profile,
		})
	}
}

type historyResponse struct {
	History []storage.Message `json:"history"`
}

func handleHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		sessionID := r.URL.Query().Get("session_id")
		if userID == "" || sessionID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id and session_id are required")
			return
		}

		history, err := deps.Interview.History(storage.Key{UserID: userID, SessionID: sessionID})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading history: %v", err)
			return
		}
		if history == nil {
			history = []storage.Message{}
		}
		writeJSON(w, historyResponse{History: history})
	}
}

type checkinRequest struct {
	UserID    string     `json:"user_id"`
	Note      string     `json:"note,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type checkinResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func handleCheckin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req checkinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}
	if req.UserID == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
		return
	}

	writeJSON(w, checkinResponse{Status: "ok", Message: "Check-in recorded"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
