// Package llm provides the language model providers the QA pipeline calls:
// OpenAI, Anthropic, Gemini and a local Ollama server.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/phuslu/log"

	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
)

// Config selects and configures one provider.
type Config struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	MaxTokens int
}

// New builds the provider named by cfg.Provider. An empty provider is openai.
func New(ctx context.Context, cfg Config, logger *log.Logger) (ports.LanguageModel, error) {
	opts := []Option{
		WithAPIKey(cfg.APIKey),
		WithModel(cfg.Model),
		WithBaseURL(cfg.BaseURL),
		WithMaxTokens(cfg.MaxTokens),
		WithLogger(logger),
	}

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		return NewOpenAI(opts...), nil
	case ProviderAnthropic:
		return NewAnthropic(opts...), nil
	case ProviderGemini:
		g, err := NewGemini(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return g, nil
	case ProviderOllama:
		return NewOllama(opts...), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
