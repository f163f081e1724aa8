package chat

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ToolCall is a model-issued request to run one tool.
type ToolCall struct {
	// ID is assigned by the gateway and echoed back in the matching tool result.
	ID        string
	Name      string
	Arguments map[string]any
}

// Message is one entry of the conversation. Role selects which fields are meaningful:
//
//	RoleSystem, RoleUser: Content
//	RoleAssistant:        Content (final answer) or ToolCalls
//	RoleTool:             ToolCallID, ToolName, Content, IsError
type Message struct {
	Role    Role
	Content string

	// For Assistant messages: the tool calls they made
	ToolCalls []ToolCall

	// For Tool messages: the ID of the call being answered
	ToolCallID string
	ToolName   string
	IsError    bool
}

func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantText builds a final-answer message.
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// AssistantCalls builds an assistant message that requests tools.
func AssistantCalls(calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, ToolCalls: cloneCalls(calls)}
}

func ToolResult(callID, toolName, content string, isError bool) Message {
	return Message{
		Role:       RoleTool,
		ToolCallID: callID,
		ToolName:   toolName,
		Content:    content,
		IsError:    isError,
	}
}

// RequestsTools reports whether m is an assistant turn asking for tool execution.
func (m Message) RequestsTools() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// IsFinal reports whether m is an assistant turn carrying the final answer.
func (m Message) IsFinal() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) == 0
}

// History is an append-only conversation log. Append never writes into the
// receiver's backing array, so earlier History values stay valid snapshots.
type History []Message

func NewHistory(system, query string) History {
	return History{SystemMessage(system), UserMessage(query)}
}

func (h History) Append(msgs ...Message) History {
	out := make(History, len(h), len(h)+len(msgs))
	copy(out, h)
	return append(out, msgs...)
}

// Last returns the newest message, or false for an empty history.
func (h History) Last() (Message, bool) {
	if len(h) == 0 {
		return Message{}, false
	}
	return h[len(h)-1], true
}

func cloneCalls(calls []ToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, len(calls))
	copy(out, calls)
	return out
}
