package llm

import (
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

func newAnthropic(model, apiKey string) (llms.Model, error) {
	opts := []anthropic.Option{
		anthropic.WithModel(model),
	}
	if token := apiKeyFor(ProviderAnthropic, apiKey); token != "" {
		opts = append(opts, anthropic.WithToken(token))
	}
	return anthropic.New(opts...)
}

// apiKeyFor resolves a provider key: explicit value, then OMNI_<PROVIDER>_API_KEY,
// then the provider's conventional variable.
func apiKeyFor(p Provider, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if key := os.Getenv("OMNI_" + strings.ToUpper(string(p)) + "_API_KEY"); key != "" {
		return key
	}
	switch p {
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ProviderGemini:
		return os.Getenv("GOOGLE_API_KEY")
	}
	return ""
}
