// Package usecases contains the application rules: chunking and indexing the
// documentation, retrieval, and the map-reduce question answering chain.
// Providers and storage are reached only through the ports package.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phuslu/log"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/errs"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
	"github.com/0xcro3dile/docqa-go/internal/logging"
)

// DefaultEmbedBatchSize bounds the number of texts sent per EmbedBatch call.
const DefaultEmbedBatchSize = 64

// IndexBuilder loads every document handle, chunks and embeds the text, and
// fills a vector store. The store is not written to after Build returns.
type IndexBuilder struct {
	embedder  ports.Embedder
	store     ports.VectorStore
	chunker   *Chunker
	batchSize int
	logger    *log.Logger
}

// NewIndexBuilder wires an IndexBuilder. A nil chunker uses the defaults.
func NewIndexBuilder(
	embedder ports.Embedder,
	store ports.VectorStore,
	chunker *Chunker,
	batchSize int,
	logger *log.Logger,
) *IndexBuilder {
	if chunker == nil {
		chunker = NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	}
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	return &IndexBuilder{
		embedder:  embedder,
		store:     store,
		chunker:   chunker,
		batchSize: batchSize,
		logger:    logging.OrNop(logger),
	}
}

// Build indexes all handles and returns a retriever over the result.
func (b *IndexBuilder) Build(ctx context.Context, handles []ports.DocumentHandle) (*EmbeddingRetriever, error) {
	if len(handles) == 0 {
		return nil, &errs.EmptyCorpusError{}
	}
	start := time.Now()

	// 1. Load and chunk every document
	var chunks []entities.Chunk
	for _, h := range handles {
		doc, err := h.Load(ctx)
		if err != nil {
			return nil, &errs.IndexBuildError{Stage: "load", Source: h.Path(), Err: err}
		}
		docChunks := b.chunker.Split(doc)
		b.logger.Debug().Str("source", doc.Path).Int("chunks", len(docChunks)).Msg("document chunked")
		chunks = append(chunks, docChunks...)
	}
	if len(chunks) == 0 {
		return nil, &errs.EmptyCorpusError{}
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	// 2. Fit corpus-level embedders before embedding anything
	if fitter, ok := b.embedder.(ports.CorpusFitter); ok {
		if err := fitter.Fit(texts); err != nil {
			return nil, &errs.IndexBuildError{Stage: "fit", Err: err}
		}
	}

	// 3. Embed in batches
	for lo := 0; lo < len(texts); lo += b.batchSize {
		hi := lo + b.batchSize
		if hi > len(texts) {
			hi = len(texts)
		}
		embeddings, err := b.embedder.EmbedBatch(ctx, texts[lo:hi])
		if err != nil {
			return nil, &errs.IndexBuildError{Stage: "embed", Source: chunks[lo].Source, Err: err}
		}
		if len(embeddings) != hi-lo {
			return nil, &errs.IndexBuildError{
				Stage: "embed",
				Err:   fmt.Errorf("embedder returned %d vectors for %d texts", len(embeddings), hi-lo),
			}
		}
		for i, emb := range embeddings {
			chunks[lo+i].Embedding = emb
		}
	}

	// 4. Store
	if err := b.store.Store(ctx, chunks); err != nil {
		return nil, &errs.IndexBuildError{Stage: "store", Err: err}
	}

	b.logger.Info().
		Int("documents", len(handles)).
		Int("chunks", len(chunks)).
		Dur("duration", time.Since(start)).
		Msg("index built")

	return NewEmbeddingRetriever(b.embedder, b.store), nil
}

// EmbeddingRetriever embeds the query and searches the vector store.
type EmbeddingRetriever struct {
	embedder ports.Embedder
	store    ports.VectorStore
}

// NewEmbeddingRetriever creates a retriever over an already filled store.
func NewEmbeddingRetriever(embedder ports.Embedder, store ports.VectorStore) *EmbeddingRetriever {
	return &EmbeddingRetriever{embedder: embedder, store: store}
}

// Retrieve returns the k chunks most similar to query, best first.
func (r *EmbeddingRetriever) Retrieve(ctx context.Context, query string, k int) ([]entities.ScoredChunk, error) {
	if k <= 0 {
		return nil, errors.New("retrieval breadth must be positive")
	}
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	results, err := r.store.Search(ctx, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	return results, nil
}

// Count returns the number of indexed chunks.
func (r *EmbeddingRetriever) Count() int { return r.store.Count() }
