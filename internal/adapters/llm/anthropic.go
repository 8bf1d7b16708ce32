package llm

import (
	"context"
	"errors"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

const (
	defaultAnthropicModel     = "claude-3-5-haiku-latest"
	defaultAnthropicMaxTokens = 1024
)

// Anthropic generates completions with the Messages API.
type Anthropic struct {
	options Options
	client  *anthropic.Client
}

func NewAnthropic(opts ...Option) *Anthropic {
	options := NewOptions(opts...)
	options.Model = options.modelOr(defaultAnthropicModel)
	if options.MaxTokens <= 0 {
		options.MaxTokens = defaultAnthropicMaxTokens
	}

	// retries are owned by the QA pipeline
	clientOpts := []anthropicopt.RequestOption{
		anthropicopt.WithAPIKey(options.APIKey),
		anthropicopt.WithMaxRetries(0),
	}
	if options.BaseURL != "" {
		clientOpts = append(clientOpts, anthropicopt.WithBaseURL(options.BaseURL))
	}
	if options.HTTPClient != nil {
		clientOpts = append(clientOpts, anthropicopt.WithHTTPClient(options.HTTPClient))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Anthropic{
		options: options,
		client:  &client,
	}
}

func (g *Anthropic) Name() string { return "anthropic/" + g.options.Model }

func (g *Anthropic) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.options.Model),
		MaxTokens: int64(g.options.maxTokens(opts.MaxTokens)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(float64(opts.Temperature)),
	}

	rsp, err := g.client.Messages.New(ctx, req)
	if err != nil {
		return "", AnthropicError(err)
	}

	var b strings.Builder
	for _, content := range rsp.Content {
		if text, ok := content.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}

	if len(rsp.Content) == 0 && rsp.StopReason != anthropic.StopReasonEndTurn {
		return "", errors.New("no content in Anthropic response")
	}

	return b.String(), nil
}
