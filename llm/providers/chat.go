// Package providers implements the LLM provider wire formats.
// Groq, OpenAI, and Ollama all speak the OpenAI chat-completions format;
// they differ only in default URL and authentication.
package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wbq321/CyberCJ-multiagent/llm"
)

// chatRequest is the OpenAI-format chat completions request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

// chatResponse is the OpenAI-format chat completions response body.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// buildChatURL appends the chat completions path to a base URL unless
// already present.
func buildChatURL(baseURL, defaultBase string) string {
	if baseURL == "" {
		baseURL = defaultBase
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}

// buildChatRequestBody marshals an OpenAI-format request body.
func buildChatRequestBody(model string, messages []llm.Message, temperature *float64, maxTokens int) ([]byte, error) {
	body := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	return json.Marshal(body)
}

// parseChatResponse extracts an llm.Response from an OpenAI-format body.
func parseChatResponse(body []byte, fallbackModel string) (*llm.Response, error) {
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, llm.NewTransientError(fmt.Errorf("parse response: %w", err))
	}

	if parsed.Error != nil {
		return nil, llm.NewFatalError(fmt.Errorf("API error (%s): %s", parsed.Error.Type, parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return nil, llm.NewTransientError(fmt.Errorf("response contains no choices"))
	}

	model := parsed.Model
	if model == "" {
		model = fallbackModel
	}

	return &llm.Response{
		Content: parsed.Choices[0].Message.Content,
		Model:   model,
		Usage: llm.TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
		FinishReason: parsed.Choices[0].FinishReason,
	}, nil
}
