package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"omniagent/internal/chat"
)

type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// Providers lists the supported providers, default first.
func Providers() []Provider {
	return []Provider{ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderGemini}
}

func (p Provider) Valid() bool {
	for _, known := range Providers() {
		if p == known {
			return true
		}
	}
	return false
}

// Options configures a Gateway. They are fixed for the gateway's lifetime.
type Options struct {
	Provider    Provider
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	Tools       []llms.Tool
}

// Gateway implements chat.Gateway on top of any langchaingo model.
type Gateway struct {
	provider    Provider
	client      llms.Model
	model       string
	temperature float64
	tools       []llms.Tool
	newID       func() string
}

// NewGateway builds the provider client described by opts.
func NewGateway(ctx context.Context, opts Options) (*Gateway, error) {
	var (
		client llms.Model
		err    error
	)
	switch opts.Provider {
	case ProviderOllama:
		client, err = newOllama(opts.Model, opts.BaseURL)
	case ProviderOpenAI:
		client, err = newOpenAI(opts.Model, opts.BaseURL, opts.APIKey)
	case ProviderAnthropic:
		client, err = newAnthropic(opts.Model, opts.APIKey)
	case ProviderGemini:
		client, err = newGemini(ctx, opts.Model, opts.BaseURL, opts.APIKey)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", opts.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initialize %s client: %w", opts.Provider, err)
	}
	return New(opts.Provider, client, opts.Model, opts.Temperature, opts.Tools), nil
}

// New wraps an existing model client.
func New(provider Provider, client llms.Model, model string, temperature float64, tools []llms.Tool) *Gateway {
	declared := make([]llms.Tool, len(tools))
	copy(declared, tools)
	return &Gateway{
		provider:    provider,
		client:      client,
		model:       model,
		temperature: temperature,
		tools:       declared,
		newID:       func() string { return "call_" + uuid.NewString() },
	}
}

func (g *Gateway) Provider() Provider { return g.provider }
func (g *Gateway) Model() string      { return g.model }

func (g *Gateway) Converse(ctx context.Context, history chat.History) (chat.Message, error) {
	messages := convertHistory(history)

	resp, err := g.client.GenerateContent(ctx, messages, g.callOptions()...)
	if err != nil {
		return chat.Message{}, chat.Unavailable(string(g.provider), err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return chat.Message{}, chat.Protocol(string(g.provider), errors.New("empty response from model"))
	}

	choice := resp.Choices[0]
	calls, err := g.toolCalls(choice)
	if err != nil {
		return chat.Message{}, chat.Protocol(string(g.provider), err)
	}
	if len(calls) > 0 {
		return chat.AssistantCalls(calls...), nil
	}

	text := strings.TrimSpace(choice.Content)
	if text == "" {
		return chat.Message{}, chat.Protocol(string(g.provider), errors.New("model returned neither text nor tool calls"))
	}
	return chat.AssistantText(text), nil
}

func (g *Gateway) callOptions() []llms.CallOption {
	opts := make([]llms.CallOption, 0, 3)
	if g.model != "" {
		opts = append(opts, llms.WithModel(g.model))
	}
	opts = append(opts, llms.WithTemperature(g.temperature))
	if len(g.tools) > 0 {
		opts = append(opts, llms.WithTools(g.tools))
	}
	return opts
}

func (g *Gateway) toolCalls(choice *llms.ContentChoice) ([]chat.ToolCall, error) {
	raw := choice.ToolCalls
	if len(raw) == 0 && choice.FuncCall != nil {
		raw = []llms.ToolCall{{Type: "function", FunctionCall: choice.FuncCall}}
	}

	calls := make([]chat.ToolCall, 0, len(raw))
	for i, tc := range raw {
		if tc.FunctionCall == nil || strings.TrimSpace(tc.FunctionCall.Name) == "" {
			return nil, fmt.Errorf("tool call %d has no function name", i)
		}
		args, err := parseToolArgs(tc.FunctionCall.Arguments)
		if err != nil {
			return nil, fmt.Errorf("tool call %d (%s): %w", i, tc.FunctionCall.Name, err)
		}
		id := tc.ID
		if id == "" {
			id = g.newID()
		}
		calls = append(calls, chat.ToolCall{
			ID:        id,
			Name:      tc.FunctionCall.Name,
			Arguments: args,
		})
	}
	return calls, nil
}
