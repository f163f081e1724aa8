package skills

import (
	"context"
	"fmt"
	"time"

	"omniagent/internal/chat"
)

// NotFoundContent is the tool result content for calls naming an unknown skill.
const NotFoundContent = "tool not found"

// ExecutionError is a failure raised by a skill body.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("error using tool %s: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Dispatcher resolves tool calls against a Registry and turns every outcome
// into a tool result message.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
}

// NewDispatcher returns a dispatcher for r. A positive timeout bounds each
// skill execution.
func NewDispatcher(r *Registry, timeout time.Duration) *Dispatcher {
	return &Dispatcher{registry: r, timeout: timeout}
}

func (d *Dispatcher) Dispatch(ctx context.Context, call chat.ToolCall) chat.Message {
	skill, err := d.registry.Lookup(call.Name)
	if err != nil {
		return chat.ToolResult(call.ID, call.Name, NotFoundContent, true)
	}

	out, err := d.invoke(ctx, skill, call.Arguments)
	if err != nil {
		execErr := &ExecutionError{Tool: call.Name, Err: err}
		return chat.ToolResult(call.ID, call.Name, execErr.Error(), true)
	}
	return chat.ToolResult(call.ID, call.Name, out, false)
}

func (d *Dispatcher) invoke(ctx context.Context, s Skill, args map[string]any) (out string, err error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if args == nil {
		args = map[string]any{}
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Execute(ctx, args)
}
