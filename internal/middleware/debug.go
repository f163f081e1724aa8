package middleware

import (
	"encoding/json"
	"io"
	"math"
	"regexp"
	"time"
	"unicode/utf8"
)

type debugEntry struct {
	Timestamp    string `json:"ts"`
	Event        string `json:"event"`
	Turn         int    `json:"turn"`
	MiddlewareID string `json:"middleware"`
	Priority     int    `json:"priority"`
	Skipped      bool   `json:"skipped,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Cancel       bool   `json:"cancel,omitempty"`

	Tool      string `json:"tool,omitempty"`
	ToolError bool   `json:"tool_error,omitempty"`
	Discarded int    `json:"discarded,omitempty"`
	Error     string `json:"error,omitempty"`

	TextChars  int `json:"text_chars"`
	TextTokens int `json:"text_tokens_est"`
}

// tokenish matches "word-like" chunks (including dotted/slashed technical tokens),
// otherwise falls back to single non-space characters.
var tokenish = regexp.MustCompile(`[\pL\pN]+(?:[._/\\-][\pL\pN]+)*|[^\s]`)

func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	// Count token-ish chunks, floored by a chars/4 heuristic so tiny
	// punctuation-heavy strings don't look too cheap.
	chunks := len(tokenish.FindAllString(s, -1))
	charHeuristic := int(math.Ceil(float64(utf8.RuneCountInString(s)) / 4.0))
	if chunks < charHeuristic {
		return charHeuristic
	}
	return chunks
}

func eventText(e *Event) string {
	if e == nil {
		return ""
	}
	switch e.Name {
	case EventBeforeModelTurn:
		return e.UserText
	case EventToolResult:
		return e.ToolOutput
	case EventFinalAnswer:
		return e.LLMText
	default:
		return ""
	}
}

func eventTool(e *Event) string {
	if e == nil || len(e.ToolCalls) == 0 {
		return ""
	}
	return e.ToolCalls[0].Tool
}

func (c *Chain) debugLog(e *Event, r DecisionResult) {
	c.debugMu.Lock()
	w := c.debugW
	c.debugMu.Unlock()
	if w == nil || e == nil {
		return
	}

	text := eventText(e)
	entry := debugEntry{
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		Event:        string(e.Name),
		Turn:         e.Turn,
		MiddlewareID: r.MiddlewareID,
		Priority:     r.Priority,
		Skipped:      r.Skipped,
		Reason:       r.Decision.Reason,
		Cancel:       r.Decision.Cancel,
		Tool:         eventTool(e),
		ToolError:    e.ToolError,
		Discarded:    len(e.Discarded),
		TextChars:    utf8.RuneCountInString(text),
		TextTokens:   estimateTokens(text),
	}
	if e.Err != nil {
		entry.Error = e.Err.Error()
	}

	b, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_, _ = io.WriteString(w, string(b)+"\n")
}
