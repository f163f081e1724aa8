package chat

import "fmt"

// Notice describes tool calls dropped by SequentialPolicy. The zero value
// means nothing was dropped.
type Notice struct {
	Kept      ToolCall
	Discarded []ToolCall
}

func (n Notice) Empty() bool { return len(n.Discarded) == 0 }

func (n Notice) String() string {
	if n.Empty() {
		return ""
	}
	return fmt.Sprintf("forced sequential execution, %d calls discarded (kept %s)", len(n.Discarded), n.Kept.Name)
}

// SequentialPolicy keeps at most one tool call per assistant turn so every
// tool sees the result of the one before it.
type SequentialPolicy struct{}

// Enforce returns msg unchanged when it has zero or one tool call. Otherwise it
// returns a copy holding only the first call, in gateway order.
func (SequentialPolicy) Enforce(msg Message) (Message, Notice) {
	if len(msg.ToolCalls) <= 1 {
		return msg, Notice{}
	}
	notice := Notice{
		Kept:      msg.ToolCalls[0],
		Discarded: cloneCalls(msg.ToolCalls[1:]),
	}
	out := msg
	out.ToolCalls = []ToolCall{msg.ToolCalls[0]}
	return out, notice
}
