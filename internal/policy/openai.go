package policy

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAICompleter implements Completer with a chat-completion endpoint.
type OpenAICompleter struct {
	client      *openai.Client
	model       string
	temperature float32
}

var _ Completer = (*OpenAICompleter)(nil)

// NewOpenAICompleter creates a completer. An empty baseURL uses the
// default OpenAI endpoint.
func NewOpenAICompleter(apiKey, baseURL, model string, temperature float32) *OpenAICompleter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICompleter{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: temperature,
	}
}

func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("policy: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("policy: chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
