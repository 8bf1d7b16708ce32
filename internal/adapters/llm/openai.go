package llm

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"

	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

const defaultOpenAIModel = openai.GPT3Dot5Turbo

// OpenAI generates completions with the chat completions API. BaseURL makes
// it usable against any OpenAI-compatible server.
type OpenAI struct {
	options Options
	client  *openai.Client
}

func NewOpenAI(opts ...Option) *OpenAI {
	options := NewOptions(opts...)
	options.Model = options.modelOr(defaultOpenAIModel)

	cfg := openai.DefaultConfig(options.APIKey)
	if options.BaseURL != "" {
		cfg.BaseURL = options.BaseURL
	}
	if options.HTTPClient != nil {
		cfg.HTTPClient = options.HTTPClient
	}

	return &OpenAI{
		options: options,
		client:  openai.NewClientWithConfig(cfg),
	}
}

func (g *OpenAI) Name() string { return "openai/" + g.options.Model }

func (g *OpenAI) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.options.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: opts.Temperature,
		MaxTokens:   g.options.maxTokens(opts.MaxTokens),
	}

	rsp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", OpenAIError(err)
	}

	// an empty message is a valid answer for an unrelated chunk
	if len(rsp.Choices) == 0 {
		return "", errors.New("no choices in OpenAI response")
	}

	g.options.Logger.Trace().Str("model", g.options.Model).Int("completion_tokens", rsp.Usage.CompletionTokens).Msg("openai completion")
	return rsp.Choices[0].Message.Content, nil
}
