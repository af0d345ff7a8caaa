package providers

import (
	"net/http"

	"github.com/wbq321/CyberCJ-multiagent/llm"
)

// OllamaProvider implements the Ollama OpenAI-compatible API for local models.
type OllamaProvider struct{}

func init() {
	llm.RegisterProvider(&OllamaProvider{})
}

// Name returns the provider identifier.
func (o *OllamaProvider) Name() string {
	return "ollama"
}

// BuildURL constructs the Ollama chat completions endpoint.
func (o *OllamaProvider) BuildURL(baseURL string) string {
	return buildChatURL(baseURL, "http://localhost:11434/v1")
}

// SetHeaders is a no-op; local Ollama requires no authentication.
func (o *OllamaProvider) SetHeaders(_ *http.Request) {}

// BuildRequestBody creates the OpenAI-format request body.
func (o *OllamaProvider) BuildRequestBody(model string, messages []llm.Message, temperature *float64, maxTokens int) ([]byte, error) {
	return buildChatRequestBody(model, messages, temperature, maxTokens)
}

// ParseResponse extracts the response from Ollama JSON.
func (o *OllamaProvider) ParseResponse(body []byte, model string) (*llm.Response, error) {
	return parseChatResponse(body, model)
}
