package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/errs"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
	"github.com/0xcro3dile/docqa-go/internal/domain/prompts"
	"github.com/0xcro3dile/docqa-go/internal/logging"
)

const tracerName = "github.com/0xcro3dile/docqa-go/internal/domain/usecases"

// MapFailurePolicy decides what a failed map-step call does to the round.
type MapFailurePolicy string

const (
	// MapFailFast aborts the round with a GenerationError.
	MapFailFast MapFailurePolicy = "fail"
	// MapSkip logs the failure and treats that chunk's partial as empty.
	MapSkip MapFailurePolicy = "skip"
)

const (
	DefaultK              = 4
	DefaultTemperature    = 0.2
	DefaultTimeout        = 60 * time.Second
	DefaultMaxConcurrency = 4

	// summarySeparator joins partial answers in the combine prompt.
	summarySeparator = "\n\n"
)

// QAConfig configures a QAPipeline.
type QAConfig struct {
	QuestionPrompt    *prompts.Template
	CombinePrompt     *prompts.Template
	K                 int
	Temperature       float32
	MaxTokens         int
	Timeout           time.Duration // per model call, 0 disables
	MaxConcurrency    int           // parallel map calls per round
	RequestsPerSecond float64       // shared across rounds, 0 is unlimited
	MapFailurePolicy  MapFailurePolicy
	Retry             RetryPolicy
	Callback          ports.Tracker
}

// DefaultQAConfig returns the defaults used when nothing is configured.
func DefaultQAConfig() QAConfig {
	return QAConfig{
		QuestionPrompt:   prompts.QuestionPrompt(),
		CombinePrompt:    prompts.CombinePrompt(),
		K:                DefaultK,
		Temperature:      DefaultTemperature,
		Timeout:          DefaultTimeout,
		MaxConcurrency:   DefaultMaxConcurrency,
		MapFailurePolicy: MapFailFast,
		Retry:            DefaultRetryPolicy(),
	}
}

// QAPipeline answers questions with one map call per retrieved chunk and a
// single reduce call over the collected partials. It is immutable after
// construction and safe for concurrent use.
type QAPipeline struct {
	retriever ports.Retriever
	llm       ports.LanguageModel
	cfg       QAConfig
	limiter   *rate.Limiter
	logger    *log.Logger
	tracer    trace.Tracer
}

// NewQAPipeline creates a QAPipeline with injected dependencies.
func NewQAPipeline(
	retriever ports.Retriever,
	llm ports.LanguageModel,
	cfg QAConfig,
	logger *log.Logger,
) *QAPipeline {
	if cfg.QuestionPrompt == nil {
		cfg.QuestionPrompt = prompts.QuestionPrompt()
	}
	if cfg.CombinePrompt == nil {
		cfg.CombinePrompt = prompts.CombinePrompt()
	}
	if cfg.K <= 0 {
		cfg.K = DefaultK
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.MapFailurePolicy == "" {
		cfg.MapFailurePolicy = MapFailFast
	}
	cfg.Retry = cfg.Retry.normalized()

	p := &QAPipeline{
		retriever: retriever,
		llm:       llm,
		cfg:       cfg,
		logger:    logging.OrNop(logger),
		tracer:    otel.Tracer(tracerName),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return p
}

// Config returns the effective configuration.
func (p *QAPipeline) Config() QAConfig { return p.cfg }

// Run answers question and returns only the final text.
func (p *QAPipeline) Run(ctx context.Context, question string) (string, error) {
	ans, err := p.Answer(ctx, question)
	if err != nil {
		return "", err
	}
	return ans.Text, nil
}

// Search returns the raw retrieval hits for query.
func (p *QAPipeline) Search(ctx context.Context, query string, k int) ([]entities.ScoredChunk, error) {
	if k <= 0 {
		k = p.cfg.K
	}
	return p.retriever.Retrieve(ctx, query, k)
}

// Answer performs one full map-reduce round.
func (p *QAPipeline) Answer(ctx context.Context, question string) (*entities.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, &errs.InvalidInputError{Reason: "question must not be empty"}
	}

	ctx, span := p.tracer.Start(ctx, "qa.run", trace.WithAttributes(
		attribute.Int("qa.k", p.cfg.K),
		attribute.String("qa.model", p.llm.Name()),
	))
	defer span.End()
	start := time.Now()

	// 1. Retrieve
	hits, err := p.retriever.Retrieve(ctx, question, p.cfg.K)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return nil, &errs.GenerationError{Stage: "retrieve", Index: -1, Attempts: 1, Err: err}
	}

	// 2. Map
	partials, err := p.mapChunks(ctx, question, hits)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "map step failed")
		return nil, err
	}

	// 3. Reduce
	summaries := joinPartials(partials)
	prompt := p.cfg.CombinePrompt.Render(map[string]string{
		prompts.VarSummaries: summaries,
		prompts.VarQuestion:  question,
	})
	final, err := p.generate(ctx, entities.StageReduce, -1, question, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reduce step failed")
		return nil, err
	}

	p.logger.Info().
		Int("k", p.cfg.K).
		Int("retrieved", len(hits)).
		Int("summaries", countNonEmpty(partials)).
		Dur("duration", time.Since(start)).
		Msg("question answered")

	return &entities.Answer{
		Question: question,
		Text:     strings.TrimSpace(final),
		Sources:  hits,
		Partials: partials,
	}, nil
}

// mapChunks issues one model call per hit, bounded by MaxConcurrency.
// Partials keep retrieval rank order regardless of completion order.
func (p *QAPipeline) mapChunks(ctx context.Context, question string, hits []entities.ScoredChunk) ([]entities.Partial, error) {
	partials := make([]entities.Partial, len(hits))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxConcurrency)

	for i, hit := range hits {
		partials[i] = entities.Partial{Rank: i, Source: hit.Chunk.Source}
		prompt := p.cfg.QuestionPrompt.Render(map[string]string{
			prompts.VarContext:  hit.Chunk.Text,
			prompts.VarQuestion: question,
		})
		g.Go(func() error {
			out, err := p.generate(gctx, entities.StageMap, i, question, prompt)
			if err != nil {
				if p.cfg.MapFailurePolicy == MapSkip {
					p.logger.Warn().Err(err).Int("chunk", i).Str("source", hit.Chunk.Source).
						Msg("map step failed, treating chunk as empty")
					partials[i].Err = err
					return nil
				}
				return err
			}
			partials[i].Text = strings.TrimSpace(out)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(hits) > 0 && p.cfg.MapFailurePolicy == MapSkip {
		for _, part := range partials {
			if part.Err == nil {
				return partials, nil
			}
		}
		return nil, partials[0].Err
	}
	return partials, nil
}

// generate runs one model call with rate limiting, a per-call timeout and
// the retry policy, reporting every attempt to the tracker.
func (p *QAPipeline) generate(ctx context.Context, stage entities.Stage, index int, question, prompt string) (string, error) {
	ctx, span := p.tracer.Start(ctx, "qa."+string(stage), trace.WithAttributes(
		attribute.Int("qa.chunk_index", index),
	))
	defer span.End()

	opts := ports.GenerateOptions{Temperature: p.cfg.Temperature, MaxTokens: p.cfg.MaxTokens}
	var out string

	attempts, err := p.cfg.Retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		callCtx := ctx
		if p.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
			defer cancel()
		}

		start := time.Now()
		resp, err := p.llm.Generate(callCtx, prompt, opts)
		elapsed := time.Since(start)
		p.track(ctx, entities.PromptRecord{
			Question:   question,
			Stage:      stage,
			ChunkIndex: index,
			Prompt:     prompt,
			Response:   resp,
			Error:      errString(err),
			Attempt:    attempt,
			Duration:   elapsed,
			CreatedAt:  start,
		})
		if err != nil {
			return err
		}

		p.logger.Debug().
			Str("stage", string(stage)).
			Int("chunk", index).
			Int("response_length", len(resp)).
			Dur("duration", elapsed).
			Msg("model call completed")
		out = resp
		return nil
	}, func(attempt int, wait time.Duration, err error) {
		p.logger.Warn().
			Err(err).
			Str("stage", string(stage)).
			Int("chunk", index).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("model call failed, retrying")
	})

	span.SetAttributes(attribute.Int("qa.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", &errs.GenerationError{Stage: string(stage), Index: index, Attempts: attempts, Err: err}
	}
	return out, nil
}

func (p *QAPipeline) track(ctx context.Context, rec entities.PromptRecord) {
	if p.cfg.Callback == nil {
		return
	}
	p.cfg.Callback.Record(ctx, rec)
}

func joinPartials(partials []entities.Partial) string {
	parts := make([]string, 0, len(partials))
	for _, part := range partials {
		if part.Text != "" {
			parts = append(parts, part.Text)
		}
	}
	return strings.Join(parts, summarySeparator)
}

func countNonEmpty(partials []entities.Partial) int {
	n := 0
	for _, part := range partials {
		if part.Text != "" {
			n++
		}
	}
	return n
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprint(err)
}
