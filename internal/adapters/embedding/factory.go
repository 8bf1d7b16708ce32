package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/phuslu/log"

	"github.com/0xcro3dile/docqa-go/internal/adapters/llm"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

const (
	ProviderTFIDF  = "tfidf"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Config selects and configures one embedder.
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

// New builds the embedder named by cfg.Provider. An empty provider is tfidf.
func New(ctx context.Context, cfg Config, logger *log.Logger) (ports.Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderTFIDF:
		return NewTFIDF(), nil
	case ProviderOpenAI:
		return NewOpenAI(llm.WithAPIKey(cfg.APIKey), llm.WithModel(cfg.Model), llm.WithBaseURL(cfg.BaseURL)), nil
	case ProviderGemini:
		e, err := NewGemini(ctx, llm.WithAPIKey(cfg.APIKey), llm.WithModel(cfg.Model), llm.WithBaseURL(cfg.BaseURL))
		if err != nil {
			return nil, err
		}
		return e, nil
	case ProviderOllama:
		return NewOllama(cfg.BaseURL, cfg.Model, logger), nil
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", cfg.Provider)
	}
}
