// Package entities contains the core domain objects of the documentation bot.
// They carry no knowledge of storage, providers or chat platforms.
package entities

import "time"

// Document is one Markdown file read from the documentation tree.
type Document struct {
	ID      string
	Path    string // absolute path of the source file
	Raw     string // file contents as read from disk
	Content string // plain text extracted from Raw
	ModTime time.Time
}

// Chunk is a slice of a document's text that gets embedded and retrieved.
type Chunk struct {
	ID         string
	DocumentID string
	Source     string // path of the originating document
	Text       string
	Index      int       // position within the document
	Embedding  []float32 // populated by the index builder
}

// ScoredChunk is a retrieval hit.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// Partial is the map-step output for one retrieved chunk.
type Partial struct {
	Rank   int
	Source string
	Text   string
	Err    error // set only when the chunk was skipped
}

// Answer is the result of one map-reduce round.
type Answer struct {
	Question string
	Text     string
	Sources  []ScoredChunk
	Partials []Partial
}

// ChatMessage is an inbound chat-platform message.
type ChatMessage struct {
	ID        string
	AuthorID  string
	ChannelID string
	Content   string
}

// Stage names which step of the pipeline issued a model call.
type Stage string

const (
	StageMap    Stage = "map"
	StageReduce Stage = "reduce"
)

// PromptRecord is one prompt/response pair observed by the tracker.
type PromptRecord struct {
	Question   string
	Stage      Stage
	ChunkIndex int // -1 for the reduce step
	Prompt     string
	Response   string
	Error      string
	Attempt    int
	Duration   time.Duration
	CreatedAt  time.Time
}
