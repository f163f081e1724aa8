package llm

import (
	"context"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

func newGemini(ctx context.Context, model, baseURL, apiKey string) (llms.Model, error) {
	effectiveModel := model
	if effectiveModel == "" {
		effectiveModel = googleai.DefaultOptions().DefaultModel
	}

	opts := []googleai.Option{
		googleai.WithDefaultModel(effectiveModel),
	}
	if baseURL != "" {
		opts = append(opts, googleai.WithRest())
	}
	if key := apiKeyFor(ProviderGemini, apiKey); key != "" {
		opts = append(opts, googleai.WithAPIKey(key))
	}
	return googleai.New(ctx, opts...)
}
