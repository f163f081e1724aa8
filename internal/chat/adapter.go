package chat

import (
	"context"
)

// Gateway abstracts the language model.
type Gateway interface {
	// Converse sends the whole history and returns the next assistant message:
	// either a final answer or one or more tool calls. Implementations must not
	// modify history.
	Converse(ctx context.Context, history History) (Message, error)
}

// Dispatcher executes one tool call. It never fails: every problem is reported
// as a tool result message with IsError set.
type Dispatcher interface {
	Dispatch(ctx context.Context, call ToolCall) Message
}
