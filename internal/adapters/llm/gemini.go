package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

const defaultGeminiModel = "gemini-2.0-flash"

// Gemini generates completions through the Gemini API backend of genai.
type Gemini struct {
	options Options
	client  *genai.Client
}

// NewGemini needs a context because genai resolves credentials eagerly.
func NewGemini(ctx context.Context, opts ...Option) (*Gemini, error) {
	options := NewOptions(opts...)
	options.Model = options.modelOr(defaultGeminiModel)

	client, err := NewGenAIClient(ctx, options)
	if err != nil {
		return nil, err
	}
	return &Gemini{options: options, client: client}, nil
}

// NewGenAIClient builds a Gemini API client from provider options.
func NewGenAIClient(ctx context.Context, options Options) (*genai.Client, error) {
	if options.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	cfg := &genai.ClientConfig{
		APIKey:     options.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: options.HTTPClient,
	}
	if options.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: options.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return client, nil
}

func (g *Gemini) Name() string { return "gemini/" + g.options.Model }

func (g *Gemini) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{genai.NewPartFromText(prompt)},
	}}
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(opts.Temperature),
	}
	if n := g.options.maxTokens(opts.MaxTokens); n > 0 {
		cfg.MaxOutputTokens = int32(n)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.options.Model, contents, cfg)
	if err != nil {
		return "", GeminiError(err)
	}

	if len(resp.Candidates) == 0 {
		return "", errors.New("no candidates in Gemini response")
	}
	return resp.Text(), nil
}
