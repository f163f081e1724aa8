package middleware

import (
	"context"
)

type EventName string

const (
	EventBeforeModelTurn    EventName = "before_model_turn"
	EventAfterModelTurn     EventName = "after_model_turn"
	EventSequentialEnforced EventName = "sequential_enforced"
	EventToolResult         EventName = "tool_result"
	EventFinalAnswer        EventName = "final_answer"
	EventLoopFailed         EventName = "loop_failed"
)

type ToolCall struct {
	ID   string
	Tool string
	Args map[string]any
}

type Decision struct {
	Cancel bool   // stop the conversation after this event
	Reason string // for logs
}

type Event struct {
	Name EventName
	Turn int // 1-based model turn the event belongs to

	UserText string // the query, for before_model_turn on turn 1
	LLMText  string // final answer text

	// after_model_turn / sequential_enforced / tool_result
	ToolCalls []ToolCall
	Discarded []ToolCall

	// tool_result
	ToolOutput string
	ToolError  bool

	// loop_failed
	Err error

	Context map[string]any // provider, model, etc.
}

type Middleware interface {
	ID() string
	Priority() int
	OnEvent(ctx context.Context, e *Event) (Decision, error)
}

// ConditionalMiddleware is an optional extension that allows a middleware to be
// dynamically enabled/disabled per event.
//
// If a middleware implements this interface and returns false, it will be
// skipped during dispatch (but still recorded in results with a "skipped"
// reason).
type ConditionalMiddleware interface {
	ShouldLoad(ctx context.Context, e *Event) bool
}
