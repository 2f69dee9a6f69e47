// Package agent – normalize.go folds the backend's possible response
// shapes into one explicit variant type. Backends differ: a full
// chat-completion envelope, a simplified {"answer": ...} body, or a
// bare {"message": {...}} object. Everything else is unrecognized.
package agent

import (
	"encoding/json"
)

// ResponseKind classifies a normalized backend response.
type ResponseKind int

const (
	// ResponseUnrecognized means the body matched no known shape.
	// The conversation loop terminates silently on this.
	ResponseUnrecognized ResponseKind = iota

	// ResponseToolCalls means the assistant requested tool invocations.
	ResponseToolCalls

	// ResponseAnswer means the assistant produced final text.
	ResponseAnswer

	// ResponseEmpty means a well-formed assistant message with neither
	// content nor tool calls. The loop appends it and asks again.
	ResponseEmpty
)

// String returns the kind name for logging.
func (k ResponseKind) String() string {
	switch k {
	case ResponseToolCalls:
		return "tool_calls"
	case ResponseAnswer:
		return "answer"
	case ResponseEmpty:
		return "empty"
	default:
		return "unrecognized"
	}
}

// NormalizedResponse is the backend response reduced to one variant.
// Assistant holds the message to append to the conversation; it is
// only meaningful when Kind is not ResponseUnrecognized.
type NormalizedResponse struct {
	Kind      ResponseKind
	Assistant ChatMessage
}

// completionEnvelope is the standard chat-completion response shape.
type completionEnvelope struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// answerEnvelope is the simplified shape some backends return.
type answerEnvelope struct {
	Answer *string `json:"answer"`
}

// messageEnvelope is the bare-message shape.
type messageEnvelope struct {
	Message *ChatMessage `json:"message"`
}

// Normalize reduces a raw backend response to a NormalizedResponse.
// Never returns an error: an unparseable or unknown body comes back as
// ResponseUnrecognized and the caller decides what that means.
func Normalize(raw json.RawMessage) NormalizedResponse {
	if len(raw) == 0 {
		return NormalizedResponse{Kind: ResponseUnrecognized}
	}

	var completion completionEnvelope
	if err := json.Unmarshal(raw, &completion); err == nil && len(completion.Choices) > 0 {
		return classify(completion.Choices[0].Message)
	}

	var answer answerEnvelope
	if err := json.Unmarshal(raw, &answer); err == nil && answer.Answer != nil {
		return classify(ChatMessage{Role: "assistant", Content: *answer.Answer})
	}

	var message messageEnvelope
	if err := json.Unmarshal(raw, &message); err == nil && message.Message != nil {
		return classify(*message.Message)
	}

	return NormalizedResponse{Kind: ResponseUnrecognized}
}

// classify buckets a well-formed assistant message by what it carries.
// Tool calls win over content when both are present.
func classify(msg ChatMessage) NormalizedResponse {
	if msg.Role == "" {
		msg.Role = "assistant"
	}
	switch {
	case len(msg.ToolCalls) > 0:
		return NormalizedResponse{Kind: ResponseToolCalls, Assistant: msg}
	case msg.Content != "":
		return NormalizedResponse{Kind: ResponseAnswer, Assistant: msg}
	default:
		return NormalizedResponse{Kind: ResponseEmpty, Assistant: msg}
	}
}
