package usecases

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 0
)

// separators are tried in order when looking for a place to cut a window.
var separators = []string{"\n\n", "\n", " "}

// Chunker splits document text into overlapping windows of at most Size
// runes, preferring paragraph, then line, then word boundaries.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker returns a chunker; non-positive size and negative or oversized
// overlap fall back to the defaults.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}
	return &Chunker{size: size, overlap: overlap}
}

// Size returns the window size in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the overlap in runes.
func (c *Chunker) Overlap() int { return c.overlap }

// Split cuts doc.Content into chunks. Chunk IDs are deterministic.
func (c *Chunker) Split(doc *entities.Document) []entities.Chunk {
	content := []rune(strings.TrimSpace(doc.Content))
	if len(content) == 0 {
		return nil
	}

	var chunks []entities.Chunk
	start := 0
	index := 0

	for start < len(content) {
		end := start + c.size
		if end > len(content) {
			end = len(content)
		}

		if end < len(content) {
			end = c.cutPoint(content, start, end)
		}

		text := strings.TrimSpace(string(content[start:end]))
		if text != "" {
			chunks = append(chunks, entities.Chunk{
				ID:         chunkID(doc.ID, index),
				DocumentID: doc.ID,
				Source:     doc.Path,
				Text:       text,
				Index:      index,
			})
			index++
		}

		if end >= len(content) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// cutPoint moves end back to the last separator in the window, as long as
// that keeps at least a quarter of the window.
func (c *Chunker) cutPoint(content []rune, start, end int) int {
	window := string(content[start:end])
	minKeep := c.size / 4
	for _, sep := range separators {
		idx := strings.LastIndex(window, sep)
		if idx <= 0 {
			continue
		}
		cut := len([]rune(window[:idx]))
		if cut >= minKeep {
			return start + cut
		}
	}
	return end
}

func chunkID(docID string, index int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", docID, index)))
	return hex.EncodeToString(hash[:8])
}
