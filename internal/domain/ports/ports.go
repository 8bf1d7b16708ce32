// Package ports defines the boundaries between the QA core and the outside
// world. Usecases depend on these interfaces; adapters implement them.
package ports

import (
	"context"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// DocumentHandle is a deferred reference to one documentation file.
type DocumentHandle interface {
	// Path returns the absolute path the handle is bound to.
	Path() string

	// Load reads and extracts the document. Called once, during index build.
	Load(ctx context.Context) (*entities.Document, error)
}

// TextExtractor turns a raw document into the plain text that gets chunked.
type TextExtractor interface {
	Extract(raw []byte) (string, error)
}

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// CorpusFitter is implemented by embedders that must see the whole corpus
// before they can embed anything (TF-IDF).
type CorpusFitter interface {
	Fit(corpus []string) error
}

// VectorStore holds chunk embeddings and answers nearest-neighbour queries.
type VectorStore interface {
	// Store saves chunks with their embeddings.
	Store(ctx context.Context, chunks []entities.Chunk) error

	// Search finds the topK chunks most similar to the embedding.
	Search(ctx context.Context, embedding []float32, topK int) ([]entities.ScoredChunk, error)

	// Count returns the number of stored chunks.
	Count() int
}

// Retriever returns the chunks most relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]entities.ScoredChunk, error)
}

// GenerateOptions are per-call sampling parameters.
type GenerateOptions struct {
	Temperature float32
	MaxTokens   int
}

// LanguageModel produces a completion for a rendered prompt.
type LanguageModel interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Name identifies the provider and model, for logs and tracking.
	Name() string
}

// Tracker observes every prompt/response pair and persists them on Flush.
// It is a side channel: its failures never change an answer.
type Tracker interface {
	Record(ctx context.Context, rec entities.PromptRecord)

	// Flush writes what has been recorded. reset starts a new tracked run,
	// finish closes the current one.
	Flush(ctx context.Context, reset, finish bool) error

	Close() error
}

// FileWatcher monitors a directory tree for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	}
	return "unknown"
}
