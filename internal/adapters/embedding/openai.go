package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/0xcro3dile/docqa-go/internal/adapters/llm"
)

const defaultOpenAIEmbeddingModel = "text-embedding-3-small"

// OpenAI embeds text with the embeddings API.
type OpenAI struct {
	model  string
	client *openai.Client
}

func NewOpenAI(opts ...llm.Option) *OpenAI {
	options := llm.NewOptions(opts...)
	model := options.Model
	if model == "" {
		model = defaultOpenAIEmbeddingModel
	}

	cfg := openai.DefaultConfig(options.APIKey)
	if options.BaseURL != "" {
		cfg.BaseURL = options.BaseURL
	}
	if options.HTTPClient != nil {
		cfg.HTTPClient = options.HTTPClient
	}
	return &OpenAI{model: model, client: openai.NewClientWithConfig(cfg)}
}

func (e *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch sends all texts in one request and orders the result by index.
func (e *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	rsp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, llm.OpenAIError(err)
	}

	if len(rsp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(rsp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range rsp.Data {
		if d.Index < 0 || d.Index >= len(out) || len(d.Embedding) == 0 {
			return nil, errors.New("no response from OpenAI")
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
