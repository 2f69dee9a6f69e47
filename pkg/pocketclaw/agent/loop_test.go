package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/memory"
)

// scriptedTransport replays canned responses and records every request.
type scriptedTransport struct {
	responses []json.RawMessage
	err       error
	requests  []ChatRequest
}

func (s *scriptedTransport) Complete(_ context.Context, req ChatRequest) (json.RawMessage, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	idx := len(s.requests) - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

func answerResponse(text string) json.RawMessage {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{
			"role": "assistant", "content": text,
		}}},
	})
	return body
}

func toolCallResponse(id, tool string) json.RawMessage {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{
			"role": "assistant",
			"tool_calls": []map[string]any{{
				"id": id, "type": "function",
				"function": map[string]any{"name": tool, "arguments": "{}"},
			}},
		}}},
	})
	return body
}

// smsRecorder captures send_sms dispatches.
type smsRecorder struct {
	messages []map[string]any
}

func newTestAgent(t *testing.T, transport Transport) (*Agent, *smsRecorder) {
	t.Helper()
	dir := t.TempDir()

	store, err := memory.NewStore(filepath.Join(dir, "user_profile.json"), "+4799887766", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	history, err := memory.NewHistoryLog(filepath.Join(dir, "history.json"))
	if err != nil {
		t.Fatal(err)
	}

	recorder := &smsRecorder{}
	executor := NewToolExecutor(testLogger())
	executor.Register(MakeToolDefinition("get_battery_status", "battery", nil),
		func(_ context.Context, _ map[string]any) (any, error) {
			return `{"percentage": 77}`, nil
		},
	)
	executor.Register(MakeToolDefinition("send_sms", "send", nil),
		func(_ context.Context, args map[string]any) (any, error) {
			recorder.messages = append(recorder.messages, args)
			return "SMS sent", nil
		},
	)

	cfg := DefaultConfig()
	cfg.User.PhoneNumber = "+4799887766"

	a := NewAgent(cfg, transport, executor, store, history, testLogger())
	a.SetClock(func() time.Time {
		return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	})
	return a, recorder
}

func TestProcessInstructionFinalAnswer(t *testing.T) {
	transport := &scriptedTransport{responses: []json.RawMessage{answerResponse("battery is fine")}}
	a, recorder := newTestAgent(t, transport)

	answer := a.ProcessInstruction(context.Background(), "how's the battery?")
	if answer != "battery is fine" {
		t.Errorf("answer = %q", answer)
	}

	// Final answer goes out through the send_sms tool path to the owner.
	if len(recorder.messages) != 1 {
		t.Fatalf("sms dispatches = %d, want 1", len(recorder.messages))
	}
	if recorder.messages[0]["number"] != "+4799887766" {
		t.Errorf("sms number = %v", recorder.messages[0]["number"])
	}
	if recorder.messages[0]["message"] != "battery is fine" {
		t.Errorf("sms message = %v", recorder.messages[0]["message"])
	}
}

func TestProcessInstructionRecordsHistory(t *testing.T) {
	transport := &scriptedTransport{responses: []json.RawMessage{answerResponse("noted")}}
	a, _ := newTestAgent(t, transport)

	a.ProcessInstruction(context.Background(), "remember the milk")

	entries := a.history.All()
	if len(entries) != 2 {
		t.Fatalf("history entries = %d, want 2", len(entries))
	}
	if entries[0].Role != "user" || entries[0].Content != "remember the milk" {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Role != "assistant" || entries[1].Content != "noted" {
		t.Errorf("entry 1 = %+v", entries[1])
	}
}

func TestProcessInstructionToolRoundTrip(t *testing.T) {
	transport := &scriptedTransport{responses: []json.RawMessage{
		toolCallResponse("call_1", "get_battery_status"),
		answerResponse("77 percent"),
	}}
	a, _ := newTestAgent(t, transport)

	answer := a.ProcessInstruction(context.Background(), "battery?")
	if answer != "77 percent" {
		t.Errorf("answer = %q", answer)
	}
	if len(transport.requests) != 2 {
		t.Fatalf("llm requests = %d, want 2", len(transport.requests))
	}

	// The second request must carry the tool result tagged with the
	// originating call's identifier.
	second := transport.requests[1].Messages
	last := second[len(second)-1]
	if last.Role != "tool" || last.ToolCallID != "call_1" {
		t.Errorf("last message = %+v", last)
	}
	if last.Content != `{"percentage": 77}` {
		t.Errorf("tool content = %q", last.Content)
	}
}

func TestProcessInstructionBoundedSteps(t *testing.T) {
	// The backend keeps asking for tools forever.
	transport := &scriptedTransport{responses: []json.RawMessage{
		toolCallResponse("call_x", "get_battery_status"),
	}}
	a, recorder := newTestAgent(t, transport)

	answer := a.ProcessInstruction(context.Background(), "loop forever")
	if answer != "" {
		t.Errorf("answer = %q, want empty on exhausted step bound", answer)
	}
	if len(transport.requests) != MaxToolSteps {
		t.Errorf("llm requests = %d, want exactly %d", len(transport.requests), MaxToolSteps)
	}
	if len(recorder.messages) != 0 {
		t.Errorf("no reply should be delivered when the bound is exhausted")
	}
}

func TestProcessInstructionUnrecognizedShapeTerminates(t *testing.T) {
	transport := &scriptedTransport{responses: []json.RawMessage{
		json.RawMessage(`{"status": "weird"}`),
	}}
	a, recorder := newTestAgent(t, transport)

	answer := a.ProcessInstruction(context.Background(), "hello")
	if answer != "" {
		t.Errorf("answer = %q, want empty", answer)
	}
	if len(transport.requests) != 1 {
		t.Errorf("llm requests = %d, want 1 (terminate on unrecognized shape)", len(transport.requests))
	}
	if len(recorder.messages) != 0 {
		t.Error("nothing should be delivered on unrecognized response")
	}
}

func TestProcessInstructionTransportFailureIsSilent(t *testing.T) {
	transport := &scriptedTransport{err: fmt.Errorf("connection refused")}
	a, recorder := newTestAgent(t, transport)

	answer := a.ProcessInstruction(context.Background(), "hello")
	if answer != "" {
		t.Errorf("answer = %q, want empty on transport failure", answer)
	}
	if len(recorder.messages) != 0 {
		t.Error("nothing should be delivered on transport failure")
	}
}

func TestProcessInstructionContextLayout(t *testing.T) {
	transport := &scriptedTransport{responses: []json.RawMessage{answerResponse("hi")}}
	a, _ := newTestAgent(t, transport)

	a.ProcessInstruction(context.Background(), "first question")

	msgs := transport.requests[0].Messages
	if msgs[0].Role != "system" {
		t.Errorf("first message role = %q, want system", msgs[0].Role)
	}
	last := msgs[len(msgs)-1]
	if last.Role != "user" || last.Content != "first question" {
		t.Errorf("last message = %+v", last)
	}
	if transport.requests[0].ToolChoice != "auto" {
		t.Errorf("tool_choice = %q, want auto", transport.requests[0].ToolChoice)
	}
	if len(transport.requests[0].Tools) != 2 {
		t.Errorf("tools advertised = %d, want the registered catalog", len(transport.requests[0].Tools))
	}
}
