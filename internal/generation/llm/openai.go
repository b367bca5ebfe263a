package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient calls OpenAI-compatible chat completion endpoints.
type OpenAIClient struct {
	baseURL string
}

func NewOpenAIClient(baseURL string) *OpenAIClient {
	return &OpenAIClient{baseURL: baseURL}
}

func (o *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	cfg := openai.DefaultConfig(req.APIKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	client := openai.NewClientWithConfig(cfg)

	chat := openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxCompletionTokens: req.MaxOutputTokens,
	}
	// reasoning models only accept the default temperature
	if !isReasoningModel(req.Model) {
		chat.Temperature = req.Temperature
	}
	if req.JSON {
		chat.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := client.CreateChatCompletion(ctx, chat)
	if err != nil {
		return "", fmt.Errorf("openai %s: %w", req.Model, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func isReasoningModel(model string) bool {
	m := strings.ToLower(model)
	return len(m) > 1 && m[0] == 'o' && m[1] >= '0' && m[1] <= '9'
}
