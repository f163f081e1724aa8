package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	mw "omniagent/internal/middleware"
)

func init() {
	mw.Register(Console{W: os.Stdout})
}

// Console prints a human-readable trace of the loop: tool decisions, tool
// outputs, forced sequential execution and the final answer. Failures are
// reported by the caller, not here.
type Console struct {
	W io.Writer
}

func (Console) ID() string    { return "console" }
func (Console) Priority() int { return 10 } // after anything that may cancel

// ShouldLoad honours a "quiet" flag in the event context.
func (Console) ShouldLoad(_ context.Context, e *mw.Event) bool {
	if e == nil || e.Context == nil {
		return true
	}
	if v, ok := e.Context["quiet"].(bool); ok {
		return !v
	}
	return true
}

func (c Console) OnEvent(_ context.Context, e *mw.Event) (mw.Decision, error) {
	if e == nil || c.W == nil {
		return mw.Decision{}, nil
	}

	switch e.Name {
	case mw.EventAfterModelTurn:
		if len(e.ToolCalls) == 0 {
			return mw.Decision{}, nil
		}
		call := e.ToolCalls[0]
		fmt.Fprintf(c.W, ">- [AI DECISION] Tool Call: %s\n", call.Tool)
		fmt.Fprintf(c.W, ">- [TOOL CALL] Tool selected: %s with arguments %s\n", call.Tool, formatArgs(call.Args))

	case mw.EventSequentialEnforced:
		names := make([]string, 0, len(e.Discarded))
		for _, d := range e.Discarded {
			names = append(names, d.Tool)
		}
		fmt.Fprintf(c.W, ">- [SYSTEM NOTICE] Agent tried parallel calls. Forcing sequential execution (discarded: %s).\n",
			strings.Join(names, ", "))

	case mw.EventToolResult:
		if e.ToolError {
			fmt.Fprintf(c.W, ">>> [TOOL ERROR] An error occurred while using the tool: %s\n\n", e.ToolOutput)
		} else {
			fmt.Fprintf(c.W, ">> Tool Output: %s\n\n", e.ToolOutput)
		}

	case mw.EventFinalAnswer:
		fmt.Fprintf(c.W, "\n>- [Final Answer]: %s\n", e.LLMText)
	}
	return mw.Decision{}, nil
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	// fmt prints map keys in sorted order
	return fmt.Sprintf("%v", args)
}
