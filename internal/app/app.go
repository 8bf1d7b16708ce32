// Package app assembles the QA pipeline from configuration. Every front end
// (CLI, Discord, HTTP, TUI, MCP) goes through Build.
package app

import (
	"context"
	"fmt"

	"github.com/phuslu/log"

	"github.com/0xcro3dile/docqa-go/internal/adapters/embedding"
	"github.com/0xcro3dile/docqa-go/internal/adapters/llm"
	"github.com/0xcro3dile/docqa-go/internal/adapters/loader"
	"github.com/0xcro3dile/docqa-go/internal/adapters/markdown"
	"github.com/0xcro3dile/docqa-go/internal/adapters/tracker"
	"github.com/0xcro3dile/docqa-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/docqa-go/internal/config"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
	"github.com/0xcro3dile/docqa-go/internal/domain/prompts"
	"github.com/0xcro3dile/docqa-go/internal/domain/usecases"
	"github.com/0xcro3dile/docqa-go/internal/logging"
)

// QA is a ready pipeline plus the resources it holds.
type QA struct {
	Pipeline  *usecases.QAPipeline
	Retriever *usecases.EmbeddingRetriever
	Tracker   ports.Tracker
	Model     string
	Documents int
}

// Summary is a one-line description for banners and the TUI header.
func (q *QA) Summary() string {
	return fmt.Sprintf("%d documents, %d chunks, model %s", q.Documents, q.Retriever.Count(), q.Model)
}

// Close finishes the tracked run and releases the tracker.
func (q *QA) Close(ctx context.Context) error {
	flushErr := q.Tracker.Flush(ctx, false, true)
	closeErr := q.Tracker.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

type options struct {
	model    ports.LanguageModel
	embedder ports.Embedder
	tracker  ports.Tracker
}

// Option overrides a component Build would otherwise construct from config.
type Option func(*options)

func WithLanguageModel(m ports.LanguageModel) Option {
	return func(o *options) { o.model = m }
}

func WithEmbedder(e ports.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

func WithTracker(t ports.Tracker) Option {
	return func(o *options) { o.tracker = t }
}

// Build loads the documentation, builds the index and wires the pipeline.
// cfg must already be validated.
func Build(ctx context.Context, cfg *config.Config, logger *log.Logger, opts ...Option) (*QA, error) {
	logger = logging.OrNop(logger)
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	handles, err := loader.LoadDocumentation(cfg.DocsDir, markdown.NewExtractor())
	if err != nil {
		return nil, err
	}
	logger.Info().Str("dir", cfg.DocsDir).Int("documents", len(handles)).Msg("documentation found")

	embedder := o.embedder
	if embedder == nil {
		embedder, err = embedding.New(ctx, EmbeddingConfig(cfg), logger)
		if err != nil {
			return nil, fmt.Errorf("creating embedder: %w", err)
		}
	}

	chunker := usecases.NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)
	builder := usecases.NewIndexBuilder(embedder, vectordb.NewInMemoryStore(), chunker, cfg.Chunking.EmbedBatchSize, logger)
	retriever, err := builder.Build(ctx, handles)
	if err != nil {
		return nil, err
	}

	model := o.model
	if model == nil {
		model, err = llm.New(ctx, LLMConfig(cfg), logger)
		if err != nil {
			return nil, fmt.Errorf("creating language model: %w", err)
		}
	}

	track := o.tracker
	if track == nil {
		track, err = newTracker(cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	qaCfg, err := QAConfig(cfg)
	if err != nil {
		_ = track.Close()
		return nil, err
	}
	qaCfg.Callback = track

	return &QA{
		Pipeline:  usecases.NewQAPipeline(retriever, model, qaCfg, logger),
		Retriever: retriever,
		Tracker:   track,
		Model:     model.Name(),
		Documents: len(handles),
	}, nil
}

func newTracker(cfg *config.Config, logger *log.Logger) (ports.Tracker, error) {
	if !cfg.Tracker.Enabled {
		return tracker.Noop{}, nil
	}
	t, err := tracker.NewSQLiteTracker(cfg.Tracker.Path, cfg.Tracker.Experiment, logger)
	if err != nil {
		return nil, fmt.Errorf("opening tracker: %w", err)
	}
	return t, nil
}

// QAConfig translates the file configuration into pipeline settings.
func QAConfig(cfg *config.Config) (usecases.QAConfig, error) {
	qa := usecases.DefaultQAConfig()
	if cfg.Prompts.Question != "" {
		t, err := prompts.NewQuestionTemplate(cfg.Prompts.Question)
		if err != nil {
			return qa, fmt.Errorf("question prompt: %w", err)
		}
		qa.QuestionPrompt = t
	}
	if cfg.Prompts.Combine != "" {
		t, err := prompts.NewCombineTemplate(cfg.Prompts.Combine)
		if err != nil {
			return qa, fmt.Errorf("combine prompt: %w", err)
		}
		qa.CombinePrompt = t
	}
	qa.K = cfg.Retrieval.K
	qa.Temperature = cfg.LLM.Temperature
	qa.MaxTokens = cfg.LLM.MaxTokens
	qa.Timeout = cfg.LLM.Timeout.Std()
	qa.MaxConcurrency = cfg.LLM.MaxConcurrency
	qa.RequestsPerSecond = cfg.LLM.RequestsPerSecond
	qa.MapFailurePolicy = usecases.MapFailurePolicy(cfg.LLM.MapFailurePolicy)
	qa.Retry = usecases.RetryPolicy{
		MaxAttempts:    cfg.LLM.Retry.MaxAttempts,
		InitialBackoff: cfg.LLM.Retry.InitialBackoff.Std(),
		MaxBackoff:     cfg.LLM.Retry.MaxBackoff.Std(),
		Multiplier:     cfg.LLM.Retry.Multiplier,
	}
	return qa, nil
}

func LLMConfig(cfg *config.Config) llm.Config {
	return llm.Config{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		BaseURL:   cfg.LLM.BaseURL,
		APIKey:    cfg.LLMAPIKey(),
		MaxTokens: cfg.LLM.MaxTokens,
	}
}

func EmbeddingConfig(cfg *config.Config) embedding.Config {
	return embedding.Config{
		Provider: cfg.Embedder.Provider,
		Model:    cfg.Embedder.Model,
		BaseURL:  cfg.Embedder.BaseURL,
		APIKey:   cfg.EmbedderAPIKey(),
	}
}
