package llm

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIChat talks to any OpenAI-compatible chat completions endpoint.
type OpenAIChat struct {
	client openai.Client
	model  string
}

func NewOpenAIChat(apiKey, baseURL, model string) *OpenAIChat {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIChat{client: openai.NewClient(opts...), model: model}
}

func (p *OpenAIChat) Close() error { return nil }

func (p *OpenAIChat) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("chat completion returned no text")
	}
	return resp.Choices[0].Message.Content, nil
}
