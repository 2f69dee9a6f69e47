package agent

import (
	"encoding/json"
	"testing"
)

func TestNormalizeCompletionShape(t *testing.T) {
	raw := json.RawMessage(`{
		"choices": [{"message": {"role": "assistant", "content": "all good"}}]
	}`)

	resp := Normalize(raw)
	if resp.Kind != ResponseAnswer {
		t.Fatalf("Kind = %v, want answer", resp.Kind)
	}
	if resp.Assistant.Content != "all good" {
		t.Errorf("Content = %q", resp.Assistant.Content)
	}
}

func TestNormalizeToolCallShape(t *testing.T) {
	raw := json.RawMessage(`{
		"choices": [{"message": {
			"role": "assistant",
			"tool_calls": [{
				"id": "call_1",
				"type": "function",
				"function": {"name": "get_battery_status", "arguments": "{}"}
			}]
		}}]
	}`)

	resp := Normalize(raw)
	if resp.Kind != ResponseToolCalls {
		t.Fatalf("Kind = %v, want tool_calls", resp.Kind)
	}
	if len(resp.Assistant.ToolCalls) != 1 || resp.Assistant.ToolCalls[0].Function.Name != "get_battery_status" {
		t.Errorf("ToolCalls = %+v", resp.Assistant.ToolCalls)
	}
}

func TestNormalizeAnswerShape(t *testing.T) {
	resp := Normalize(json.RawMessage(`{"answer": "short reply"}`))
	if resp.Kind != ResponseAnswer {
		t.Fatalf("Kind = %v, want answer", resp.Kind)
	}
	if resp.Assistant.Role != "assistant" || resp.Assistant.Content != "short reply" {
		t.Errorf("Assistant = %+v", resp.Assistant)
	}
}

func TestNormalizeBareMessageShape(t *testing.T) {
	resp := Normalize(json.RawMessage(`{"message": {"role": "assistant", "content": "bare"}}`))
	if resp.Kind != ResponseAnswer {
		t.Fatalf("Kind = %v, want answer", resp.Kind)
	}
	if resp.Assistant.Content != "bare" {
		t.Errorf("Content = %q", resp.Assistant.Content)
	}
}

func TestNormalizeUnrecognizedShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty body", ""},
		{"not json", "hello"},
		{"empty object", "{}"},
		{"empty choices", `{"choices": []}`},
		{"message is a string", `{"message": "not an object"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := Normalize(json.RawMessage(tc.raw))
			if resp.Kind != ResponseUnrecognized {
				t.Errorf("Kind = %v, want unrecognized", resp.Kind)
			}
		})
	}
}

func TestNormalizeEmptyAssistantMessage(t *testing.T) {
	resp := Normalize(json.RawMessage(`{"choices": [{"message": {"role": "assistant"}}]}`))
	if resp.Kind != ResponseEmpty {
		t.Errorf("Kind = %v, want empty", resp.Kind)
	}
}

func TestNormalizeToolCallsWinOverContent(t *testing.T) {
	raw := json.RawMessage(`{
		"choices": [{"message": {
			"role": "assistant",
			"content": "let me check",
			"tool_calls": [{
				"id": "call_1",
				"type": "function",
				"function": {"name": "get_location", "arguments": "{}"}
			}]
		}}]
	}`)

	resp := Normalize(raw)
	if resp.Kind != ResponseToolCalls {
		t.Errorf("Kind = %v, want tool_calls when both present", resp.Kind)
	}
}
