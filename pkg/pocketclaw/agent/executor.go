// Package agent – executor.go manages the registry of callable tools
// and dispatches invocations from the conversation loop and the task
// scheduler. Dispatch is fail-soft: whatever goes wrong inside a tool,
// the caller gets a result string back, never an error.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultToolTimeout is the maximum time a single tool execution
// can take.
const DefaultToolTimeout = 60 * time.Second

// ErrUnknownTool is wrapped into the dispatch result when the LLM
// asks for a tool that isn't registered.
var ErrUnknownTool = errors.New("unknown tool")

// ToolHandlerFunc is the signature for tool execution handlers.
// Receives parsed arguments and returns the result or an error.
type ToolHandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// registeredTool bundles a tool definition with its handler.
type registeredTool struct {
	Definition ToolDefinition
	Handler    ToolHandlerFunc
}

// ToolExecutor manages tool registration and dispatch.
type ToolExecutor struct {
	tools   map[string]*registeredTool
	order   []string
	timeout time.Duration
	audit   *AuditLog
	logger  *slog.Logger
}

// NewToolExecutor creates a new empty tool executor.
func NewToolExecutor(logger *slog.Logger) *ToolExecutor {
	return &ToolExecutor{
		tools:   make(map[string]*registeredTool),
		timeout: DefaultToolTimeout,
		logger:  logger.With("component", "tool_executor"),
	}
}

// SetAuditLog attaches an audit log; every dispatch is recorded.
func (e *ToolExecutor) SetAuditLog(audit *AuditLog) {
	e.audit = audit
}

// Register adds a tool with its definition and handler.
// Re-registering a name overwrites the previous handler.
func (e *ToolExecutor) Register(def ToolDefinition, handler ToolHandlerFunc) {
	name := def.Function.Name
	if _, exists := e.tools[name]; !exists {
		e.order = append(e.order, name)
	}
	e.tools[name] = &registeredTool{Definition: def, Handler: handler}
	e.logger.Debug("tool registered", "name", name)
}

// Definitions returns the tool catalog in registration order, as
// advertised to the LLM on every request.
func (e *ToolExecutor) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(e.order))
	for _, name := range e.order {
		defs = append(defs, e.tools[name].Definition)
	}
	return defs
}

// Dispatch executes one tool by name and returns the result string.
// Unknown tools, handler errors, and panics all come back as
// structured error strings so a single bad action can never abort a
// multi-action task or a conversation step.
func (e *ToolExecutor) Dispatch(ctx context.Context, name string, args map[string]any) (result string) {
	caller := callerFromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tool panicked", "tool", name, "panic", r)
			result = formatToolError(name, fmt.Errorf("tool panicked: %v", r))
		}
		if e.audit != nil {
			e.audit.Record(name, caller, args, result)
		}
	}()

	tool, ok := e.tools[name]
	if !ok {
		e.logger.Warn("unknown tool requested", "tool", name)
		return formatToolError(name, ErrUnknownTool)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.logger.Info("tool executing", "tool", name, "caller", caller)
	output, err := tool.Handler(ctx, args)
	if err != nil {
		e.logger.Warn("tool failed", "tool", name, "error", err)
		return formatToolError(name, err)
	}
	return formatToolOutput(output)
}

// DispatchCall parses a ToolCall's serialized arguments and dispatches
// it. Malformed argument JSON becomes an error result like any other
// tool fault.
func (e *ToolExecutor) DispatchCall(ctx context.Context, call ToolCall) string {
	args, err := parseToolArgs(call.Function.Arguments)
	if err != nil {
		return formatToolError(call.Function.Name, err)
	}
	return e.Dispatch(ctx, call.Function.Name, args)
}

// ---------- Caller Context ----------

// ctxKeyCaller carries who triggered the dispatch ("conversation",
// "scheduler", "cli") for audit records.
type ctxKeyCaller struct{}

// ContextWithCaller returns a context tagged with the dispatch origin.
func ContextWithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, ctxKeyCaller{}, caller)
}

func callerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyCaller{}).(string); ok {
		return v
	}
	return "unknown"
}

// ---------- Helpers ----------

// formatToolError creates a structured JSON error result. This format
// is more parseable by the LLM than plain "Error: ..." text.
func formatToolError(toolName string, err error) string {
	errMsg := err.Error()
	if len(errMsg) > 2000 {
		errMsg = errMsg[:2000] + "... (truncated)"
	}
	b, _ := json.Marshal(map[string]string{
		"status": "error",
		"tool":   toolName,
		"error":  errMsg,
	})
	return string(b)
}

// parseToolArgs parses JSON-encoded tool arguments into a map.
func parseToolArgs(raw string) (map[string]any, error) {
	if raw == "" || raw == "{}" {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid JSON arguments: %w", err)
	}
	return args, nil
}

// formatToolOutput converts tool output to a string suitable for the LLM.
func formatToolOutput(output any) string {
	if output == nil {
		return "OK"
	}

	switch v := output.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// MakeToolDefinition creates a ToolDefinition from name, description,
// and a parameter schema map (matching JSON Schema format).
func MakeToolDefinition(name, description string, params map[string]any) ToolDefinition {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	if params != nil {
		schema = params
	}

	schemaJSON, _ := json.Marshal(schema)

	return ToolDefinition{
		Type: "function",
		Function: FunctionDef{
			Name:        name,
			Description: description,
			Parameters:  schemaJSON,
		},
	}
}
