// Package agent – llm.go defines the chat-completion wire types and the
// HTTP transport. Uses the OpenAI-compatible API format, which works
// with llama.cpp, Ollama, vLLM, and any compatible endpoint.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ---------- Wire Types ----------

// ChatMessage is a single role-tagged message in the conversation.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolDefinition is an OpenAI-compatible tool definition for function calling.
type ToolDefinition struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef describes a callable function exposed to the LLM.
type FunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall represents a tool invocation requested by the LLM.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall holds the function name and serialized arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatRequest is the request body sent to the backend.
type ChatRequest struct {
	ID         string           `json:"id,omitempty"` // correlation ID, MQTT transport only
	Model      string           `json:"model"`
	Messages   []ChatMessage    `json:"messages"`
	Tools      []ToolDefinition `json:"tools,omitempty"`
	ToolChoice string           `json:"tool_choice,omitempty"`
}

// ---------- Transport ----------

// Transport delivers a chat request to the backend and returns the raw
// response body. Shape normalization happens above this boundary.
type Transport interface {
	Complete(ctx context.Context, req ChatRequest) (json.RawMessage, error)
}

// HTTPTransport posts requests to an OpenAI-compatible endpoint.
type HTTPTransport struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPTransport creates an HTTP transport for the configured endpoint.
func NewHTTPTransport(cfg HTTPConfig, apiKey string, logger *slog.Logger) *HTTPTransport {
	return &HTTPTransport{
		serverURL:  cfg.ServerURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		logger:     logger.With("component", "llm_http"),
	}
}

// Complete posts the request and returns the response body.
func (t *HTTPTransport) Complete(ctx context.Context, req ChatRequest) (json.RawMessage, error) {
	req.ID = "" // correlation IDs are an MQTT concern
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.serverURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	start := time.Now()
	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(data)
		if len(snippet) > 300 {
			snippet = snippet[:300]
		}
		return nil, fmt.Errorf("chat endpoint returned %d: %s", resp.StatusCode, snippet)
	}

	t.logger.Debug("chat completion received",
		"status", resp.StatusCode,
		"bytes", len(data),
		"elapsed", time.Since(start),
	)
	return data, nil
}

// FallbackTransport tries a primary transport and falls back to a
// secondary when the primary fails outright.
type FallbackTransport struct {
	primary   Transport
	secondary Transport
	logger    *slog.Logger
}

// NewFallbackTransport wraps primary with a fallback.
func NewFallbackTransport(primary, secondary Transport, logger *slog.Logger) *FallbackTransport {
	return &FallbackTransport{
		primary:   primary,
		secondary: secondary,
		logger:    logger.With("component", "llm_fallback"),
	}
}

func (t *FallbackTransport) Complete(ctx context.Context, req ChatRequest) (json.RawMessage, error) {
	raw, err := t.primary.Complete(ctx, req)
	if err == nil {
		return raw, nil
	}
	t.logger.Warn("primary transport failed, falling back", "error", err)
	return t.secondary.Complete(ctx, req)
}
