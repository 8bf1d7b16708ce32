package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/0xcro3dile/docqa-go/internal/adapters/llm"
)

const defaultGeminiEmbeddingModel = "gemini-embedding-001"

// Gemini embeds text with genai's EmbedContent.
type Gemini struct {
	model  string
	client *genai.Client
}

func NewGemini(ctx context.Context, opts ...llm.Option) (*Gemini, error) {
	options := llm.NewOptions(opts...)
	model := options.Model
	if model == "" {
		model = defaultGeminiEmbeddingModel
	}
	client, err := llm.NewGenAIClient(ctx, options)
	if err != nil {
		return nil, err
	}
	return &Gemini{model: model, client: client}, nil
}

func (e *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch sends one content per text in a single request.
func (e *Gemini) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{})
	if err != nil {
		return nil, llm.GeminiError(err)
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned no embeddings for %d inputs", len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("gemini returned an empty embedding at %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}
