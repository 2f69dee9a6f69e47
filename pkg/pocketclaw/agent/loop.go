// Package agent – loop.go drives a single instruction through the
// bounded request/response/tool-execution cycle against the LLM
// backend. The step bound is the only safeguard against runaway
// tool-call chains; when it is exhausted, the loop ends silently and
// the owner simply gets no reply.
package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/memory"
)

// MaxToolSteps is the maximum number of requests to the LLM backend
// for a single instruction.
const MaxToolSteps = 8

// Agent owns one conversation loop: the transport, the tool catalog,
// and the memory documents that feed the prompt.
type Agent struct {
	cfg      *Config
	transport Transport
	executor *ToolExecutor
	memory   *memory.Store
	history  *memory.HistoryLog

	// deliverAnswers routes final answers through the send_sms tool.
	// The interactive chat command turns this off and prints instead.
	deliverAnswers bool

	now    func() time.Time
	logger *slog.Logger
}

// NewAgent assembles a conversation agent.
func NewAgent(cfg *Config, transport Transport, executor *ToolExecutor, store *memory.Store, history *memory.HistoryLog, logger *slog.Logger) *Agent {
	return &Agent{
		cfg:            cfg,
		transport:      transport,
		executor:       executor,
		memory:         store,
		history:        history,
		deliverAnswers: true,
		now:            time.Now,
		logger:         logger.With("component", "agent"),
	}
}

// SetDeliverAnswers controls whether final answers are sent over SMS.
func (a *Agent) SetDeliverAnswers(deliver bool) {
	a.deliverAnswers = deliver
}

// SetClock overrides the agent's time source. Test hook.
func (a *Agent) SetClock(now func() time.Time) {
	a.now = now
}

// ProcessInstruction runs one instruction through the bounded loop and
// returns the final answer, or an empty string when the loop ended
// without one. Errors are absorbed: a broken backend must not take the
// polling loop down, so every failure path degrades to "no answer".
func (a *Agent) ProcessInstruction(ctx context.Context, instruction string) string {
	ctx = ContextWithCaller(ctx, "conversation")
	messages := a.buildContext(instruction)

	if err := a.history.Append("user", instruction); err != nil {
		a.logger.Warn("recording instruction failed", "error", err)
	}

	finalAnswer := ""

steps:
	for step := 0; step < MaxToolSteps; step++ {
		raw, err := a.transport.Complete(ctx, ChatRequest{
			Model:      a.cfg.LLM.HTTP.Model,
			Messages:   messages,
			Tools:      a.executor.Definitions(),
			ToolChoice: "auto",
		})
		if err != nil {
			a.logger.Error("llm request failed", "step", step, "error", err)
			break
		}

		resp := Normalize(raw)
		switch resp.Kind {
		case ResponseUnrecognized:
			a.logger.Warn("unrecognized llm response shape", "step", step)
			break steps

		case ResponseToolCalls:
			messages = append(messages, resp.Assistant)
			for _, call := range resp.Assistant.ToolCalls {
				a.logger.Info("running tool", "tool", call.Function.Name, "step", step)
				result := a.executor.DispatchCall(ctx, call)
				messages = append(messages, ChatMessage{
					Role:       "tool",
					ToolCallID: call.ID,
					Name:       call.Function.Name,
					Content:    result,
				})
			}

		case ResponseAnswer:
			messages = append(messages, resp.Assistant)
			finalAnswer = resp.Assistant.Content
			a.logger.Info("answering", "chars", len(finalAnswer), "steps", step+1)
			if err := a.history.Append("assistant", finalAnswer); err != nil {
				a.logger.Warn("recording answer failed", "error", err)
			}
			if a.deliverAnswers {
				a.executor.Dispatch(ctx, "send_sms", map[string]any{
					"number":  a.cfg.User.PhoneNumber,
					"message": finalAnswer,
				})
			}
			break steps

		case ResponseEmpty:
			// Well-formed but empty assistant turn: append and ask again.
			messages = append(messages, resp.Assistant)
		}
	}

	if finalAnswer != "" {
		// Cheap heuristic pass over the owner's message for context
		// worth keeping without another LLM round-trip.
		a.memory.AbsorbTurn(instruction)
	} else {
		a.logger.Warn("loop ended without an answer")
	}
	return finalAnswer
}

// buildContext assembles the message list for a fresh instruction:
// system prompt, profile context, recent history, then the instruction.
func (a *Agent) buildContext(instruction string) []ChatMessage {
	messages := []ChatMessage{
		{Role: "system", Content: BuildSystemPrompt(a.cfg.Agent.Name, a.now())},
	}

	if profileCtx := a.memory.PromptContext(); profileCtx != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: profileCtx})
	}

	for _, entry := range a.history.Recent() {
		messages = append(messages, ChatMessage{Role: entry.Role, Content: entry.Content})
	}

	return append(messages, ChatMessage{Role: "user", Content: instruction})
}
