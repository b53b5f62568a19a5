package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/manasgoel2002/DTW-ChatInterface/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Interview Interviewer
}

// NewMCPServer creates an MCP server exposing the onboarding interview as
// tools and resources, so agent hosts can drive the same slot-filling
// conversation the HTTP API serves.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"dtwchat",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("dtwchat — conversational onboarding that collects a structured personal profile."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("onboarding_chat",
			mcp.WithDescription("Send one user message to the onboarding interview and get the assistant reply plus the current profile."),
			mcp.WithString("user_id", mcp.Description("Opaque user identifier"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Opaque session identifier"), mcp.Required()),
			mcp.WithString("message", mcp.Description("The user's message"), mcp.Required()),
			mcp.WithString("model", mcp.Description("Optional completion model override")),
		),
		mcpChat(deps),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Return the canonical profile snapshot for a conversation (explicit null per unfilled field)."),
			mcp.WithString("user_id", mcp.Description("Opaque user identifier"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Opaque session identifier"), mcp.Required()),
		),
		mcpProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("get_history",
			mcp.WithDescription("Return the ordered message history for a conversation."),
			mcp.WithString("user_id", mcp.Description("Opaque user identifier"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Opaque session identifier"), mcp.Required()),
		),
		mcpHistory(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"user://profile",
			"User Profile",
			mcp.WithResourceDescription("Canonical profile snapshot as JSON; pass user_id and session_id as URI query parameters"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	return s
}

func mcpKey(req mcp.CallToolRequest) (storage.Key, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return storage.Key{}, fmt.Errorf("user_id is required")
	}
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return storage.Key{}, fmt.Errorf("session_id is required")
	}
	return storage.Key{UserID: userID, SessionID: sessionID}, nil
}

func mcpChat(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := mcpKey(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		message, err := req.RequireString("message")
		if err != nil {
			return mcp.NewToolResultError("message is required"), nil
		}
		model := req.GetString("model", "")

		turn, err := deps.Interview.HandleTurn(ctx, key, message, model)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("turn failed: %v", err)), nil
		}

		b, err := json.Marshal(map[string]any{
			"reply":   turn.Reply,
			"profile": turn.Profile,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(b)), nil
	}
}

// mcpResourceProfile serves user://profile reads. The conversation key rides
// on the URI as query parameters: user://profile?user_id=u&session_id=s.
func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		u, err := url.Parse(req.Params.URI)
		if err != nil {
			return nil, fmt.Errorf("parsing resource URI: %w", err)
		}
		q := u.Query()
		key := storage.Key{UserID: q.Get("user_id"), SessionID: q.Get("session_id")}
		if key.UserID == "" || key.SessionID == "" {
			return nil, fmt.Errorf("user_id and session_id query parameters are required")
		}

		profile, err := deps.Interview.Profile(key)
		if err != nil {
			return nil, fmt.Errorf("failed to load profile: %w", err)
		}
		b, err := json.Marshal(profile)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := mcpKey(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		profile, err := deps.Interview.Profile(key)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load profile: %v", err)), nil
		}
		b, err := json.Marshal(profile)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal profile: %v", err)), nil
		}
		return mcp.NewToolResultText(string(b)), nil
	}
}

func mcpHistory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := mcpKey(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		history, err := deps.Interview.History(key)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load history: %v", err)), nil
		}
		if history == nil {
			history = []storage.Message{}
		}
		b, err := json.Marshal(history)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal history: %v", err)), nil
		}
		return mcp.NewToolResultText(string(b)), nil
	}
}
