// Package vectordb provides the in-memory vector store the index lives in.
package vectordb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// ErrDimensionMismatch is returned when a chunk or query vector differs in
// length from the vectors already stored.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// InMemoryStore keeps chunks in insertion order and answers queries by brute
// force cosine similarity. It is filled once while the index is built.
type InMemoryStore struct {
	mu     sync.RWMutex
	chunks []entities.Chunk
	norms  []float64
	dim    int
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Store appends chunks with their embeddings.
func (s *InMemoryStore) Store(ctx context.Context, chunks []entities.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", chunk.ID)
		}
		if s.dim == 0 {
			s.dim = len(chunk.Embedding)
		}
		if len(chunk.Embedding) != s.dim {
			return fmt.Errorf("chunk %s: %w (got %d, want %d)", chunk.ID, ErrDimensionMismatch, len(chunk.Embedding), s.dim)
		}
		s.chunks = append(s.chunks, chunk)
		s.norms = append(s.norms, norm(chunk.Embedding))
	}
	return nil
}

// Search returns the topK chunks most similar to embedding, best first.
// Equal scores keep insertion order.
func (s *InMemoryStore) Search(ctx context.Context, embedding []float32, topK int) ([]entities.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.chunks) == 0 || topK <= 0 {
		return nil, nil
	}
	if len(embedding) != s.dim {
		return nil, fmt.Errorf("query: %w (got %d, want %d)", ErrDimensionMismatch, len(embedding), s.dim)
	}

	qnorm := norm(embedding)
	results := make([]entities.ScoredChunk, len(s.chunks))
	for i, chunk := range s.chunks {
		results[i] = entities.ScoredChunk{
			Chunk: chunk,
			Score: cosine(embedding, chunk.Embedding, qnorm, s.norms[i]),
		}
	}

	// Sort by score descending
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	// Take top K
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Dimension returns the embedding length, 0 while empty.
func (s *InMemoryStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine computes cosine similarity given precomputed norms.
func cosine(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}
