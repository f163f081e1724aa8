package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"omniagent/internal/chat"
)

type fakeModel struct {
	resp *llms.ContentResponse
	err  error

	gotMessages []llms.MessageContent
	gotOptions  llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.gotMessages = messages
	for _, opt := range options {
		opt(&f.gotOptions)
	}
	return f.resp, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func textResponse(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

func toolResponse(calls ...llms.ToolCall) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{ToolCalls: calls}}}
}

func fnCall(id, name, args string) llms.ToolCall {
	return llms.ToolCall{ID: id, Type: "function", FunctionCall: &llms.FunctionCall{Name: name, Arguments: args}}
}

func sampleHistory() chat.History {
	return chat.NewHistory("be precise", "1 + 2 - 3").Append(
		chat.AssistantCalls(chat.ToolCall{ID: "c1", Name: "add", Arguments: map[string]any{"a": 1.0, "b": 2.0}}),
		chat.ToolResult("c1", "add", "3", false),
	)
}

func TestConverseFinalAnswer(t *testing.T) {
	fm := &fakeModel{resp: textResponse("  The answer is: 0 ")}
	tools := []llms.Tool{{Type: "function", Function: &llms.FunctionDefinition{Name: "add"}}}
	g := New(ProviderOllama, fm, "llama3.1", 0, tools)

	msg, err := g.Converse(context.Background(), sampleHistory())
	require.NoError(t, err)
	assert.True(t, msg.IsFinal())
	assert.Equal(t, "The answer is: 0", msg.Content)

	assert.Equal(t, "llama3.1", fm.gotOptions.Model)
	assert.Equal(t, 0.0, fm.gotOptions.Temperature)
	require.Len(t, fm.gotOptions.Tools, 1)
	assert.Equal(t, "add", fm.gotOptions.Tools[0].Function.Name)
}

func TestConverseToolCalls(t *testing.T) {
	fm := &fakeModel{resp: toolResponse(
		fnCall("id-1", "add", `{"a":1,"b":2}`),
		fnCall("", "sub", `{"a":3,"b":3}`),
	)}
	g := New(ProviderOllama, fm, "llama3.1", 0.2, nil)
	g.newID = func() string { return "generated" }

	msg, err := g.Converse(context.Background(), sampleHistory())
	require.NoError(t, err)
	require.True(t, msg.RequestsTools())
	require.Len(t, msg.ToolCalls, 2)
	assert.Equal(t, "id-1", msg.ToolCalls[0].ID)
	assert.Equal(t, "add", msg.ToolCalls[0].Name)
	assert.Equal(t, map[string]any{"a": 1.0, "b": 2.0}, msg.ToolCalls[0].Arguments)
	assert.Equal(t, "generated", msg.ToolCalls[1].ID)
	assert.Empty(t, fm.gotOptions.Tools)
	assert.Equal(t, 0.2, fm.gotOptions.Temperature)
}

func TestConverseLegacyFunctionCall(t *testing.T) {
	fm := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		FuncCall: &llms.FunctionCall{Name: "get_random_cat_fact", Arguments: ""},
	}}}}
	g := New(ProviderOllama, fm, "", 0, nil)

	msg, err := g.Converse(context.Background(), sampleHistory())
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.NotEmpty(t, msg.ToolCalls[0].ID)
	assert.Empty(t, msg.ToolCalls[0].Arguments)
}

func TestConverseTransportFailureIsUnavailable(t *testing.T) {
	fm := &fakeModel{err: errors.New("dial tcp 127.0.0.1:11434: connect: connection refused")}
	g := New(ProviderOllama, fm, "llama3.1", 0, nil)

	_, err := g.Converse(context.Background(), sampleHistory())
	require.ErrorIs(t, err, chat.ErrGatewayUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Contains(t, err.Error(), "ollama")
}

func TestConverseProtocolErrors(t *testing.T) {
	tests := map[string]*llms.ContentResponse{
		"no choices":     {},
		"empty text":     textResponse("   "),
		"bad arguments":  toolResponse(fnCall("x", "add", `{"a":1,`)),
		"no func name":   toolResponse(fnCall("x", "", `{}`)),
		"nil func call":  toolResponse(llms.ToolCall{ID: "x"}),
		"array argument": toolResponse(fnCall("x", "add", `[1,2]`)),
	}
	for name, resp := range tests {
		t.Run(name, func(t *testing.T) {
			g := New(ProviderOpenAI, &fakeModel{resp: resp}, "gpt-4o", 0, nil)
			_, err := g.Converse(context.Background(), sampleHistory())
			require.ErrorIs(t, err, chat.ErrGatewayProtocol)
		})
	}
}

func TestConverseDoesNotMutateHistory(t *testing.T) {
	h := sampleHistory()
	snapshot := make(chat.History, len(h))
	copy(snapshot, h)

	g := New(ProviderOllama, &fakeModel{resp: textResponse("ok")}, "m", 0, nil)
	_, err := g.Converse(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, snapshot, h)
}

func TestConvertHistoryRoles(t *testing.T) {
	msgs := convertHistory(sampleHistory())
	require.Len(t, msgs, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, msgs[2].Role)
	assert.Equal(t, llms.ChatMessageTypeTool, msgs[3].Role)

	call, ok := msgs[2].Parts[0].(llms.ToolCall)
	require.True(t, ok)
	assert.Equal(t, "c1", call.ID)
	assert.JSONEq(t, `{"a":1,"b":2}`, call.FunctionCall.Arguments)

	resp, ok := msgs[3].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "c1", resp.ToolCallID)
	assert.Equal(t, "add", resp.Name)
	assert.Equal(t, "3", resp.Content)
}

func TestParseToolArgs(t *testing.T) {
	args, err := parseToolArgs(`{"time":"07:30","label":"wake"}`)
	require.NoError(t, err)
	assert.Equal(t, "07:30", args["time"])

	args, err = parseToolArgs("")
	require.NoError(t, err)
	assert.Empty(t, args)

	_, err = parseToolArgs(`{"time":`)
	assert.Error(t, err)
}

func TestNewGatewayRejectsUnknownProvider(t *testing.T) {
	_, err := NewGateway(context.Background(), Options{Provider: "mistral"})
	assert.Error(t, err)
	assert.False(t, Provider("mistral").Valid())
	assert.True(t, ProviderGemini.Valid())
}

func TestNewGatewayOllamaNeedsNoNetwork(t *testing.T) {
	g, err := NewGateway(context.Background(), Options{Provider: ProviderOllama, Model: "llama3.1", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, g.Provider())
	assert.Equal(t, "llama3.1", g.Model())
}

func TestAPIKeyResolution(t *testing.T) {
	t.Setenv("OMNI_OPENAI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "std")
	assert.Equal(t, "std", apiKeyFor(ProviderOpenAI, ""))

	t.Setenv("OMNI_OPENAI_API_KEY", "scoped")
	assert.Equal(t, "scoped", apiKeyFor(ProviderOpenAI, ""))
	assert.Equal(t, "explicit", apiKeyFor(ProviderOpenAI, "explicit"))
	assert.Equal(t, "", apiKeyFor(ProviderOllama, ""))
}
