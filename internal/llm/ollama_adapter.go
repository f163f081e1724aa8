package llm

import (
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const DefaultOllamaURL = "http://localhost:11434"

// ollamaToken fills the bearer header; Ollama ignores it.
const ollamaToken = "ollama"

// newOllama talks to Ollama through its OpenAI-compatible /v1 API, which
// carries tool declarations, tool calls and tool results.
func newOllama(model, baseURL string) (llms.Model, error) {
	return openai.New(
		openai.WithModel(model),
		openai.WithBaseURL(ollamaV1(baseURL)),
		openai.WithToken(ollamaToken),
	)
}

func ollamaV1(baseURL string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultOllamaURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}
