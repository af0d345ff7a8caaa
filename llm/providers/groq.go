package providers

import (
	"net/http"
	"os"

	"github.com/wbq321/CyberCJ-multiagent/llm"
)

// GroqProvider implements the Groq API (OpenAI-compatible).
type GroqProvider struct{}

func init() {
	llm.RegisterProvider(&GroqProvider{})
}

// Name returns the provider identifier.
func (g *GroqProvider) Name() string {
	return "groq"
}

// BuildURL constructs the Groq chat completions endpoint.
func (g *GroqProvider) BuildURL(baseURL string) string {
	return buildChatURL(baseURL, "https://api.groq.com/openai/v1")
}

// SetHeaders adds Groq authentication headers.
func (g *GroqProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("GROQ_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

// BuildRequestBody creates the OpenAI-format request body.
func (g *GroqProvider) BuildRequestBody(model string, messages []llm.Message, temperature *float64, maxTokens int) ([]byte, error) {
	return buildChatRequestBody(model, messages, temperature, maxTokens)
}

// ParseResponse extracts the response from Groq JSON.
func (g *GroqProvider) ParseResponse(body []byte, model string) (*llm.Response, error) {
	return parseChatResponse(body, model)
}
