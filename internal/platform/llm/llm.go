// Package llm wraps the completion API used by the care assistant. It exposes
// a small Client interface so domain services can be tested against a fake,
// with a production implementation backed by an OpenAI-compatible endpoint.
package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Chat roles accepted by Complete.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn of assembled model context.
type Message struct {
	Role    string
	Content string
}

// Client produces a completion for an assembled list of messages. A single
// call maps to exactly one remote request: implementations must not retry.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Defaults tuned for factual, grounded answers rather than creative ones.
const (
	defaultTemperature = 0.2
	defaultMaxTokens   = 500
)

// OpenAIClient talks to an OpenAI-compatible completion endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds a client for the given API key and model. baseURL
// overrides the endpoint for OpenAI-compatible providers; leave it empty for
// the default.
func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete sends a single non-streaming chat completion request and returns
// the first choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: defaultTemperature,
		TopP:        1.0,
		MaxTokens:   defaultMaxTokens,
		Stream:      false,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
