package llm

import (
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

func newOpenAI(model, baseURL, apiKey string) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	if token := apiKeyFor(ProviderOpenAI, apiKey); token != "" {
		opts = append(opts, openai.WithToken(token))
	}
	return openai.New(opts...)
}
