// Package loader discovers documentation files and produces lazy handles
// that read them during index construction.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/errs"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

const (
	markdownExt  = ".md"
	notDirReason = "input path must be a directory"
)

// MarkdownHandle is bound to one file. Nothing is read until Load.
type MarkdownHandle struct {
	path      string
	extractor ports.TextExtractor
}

// NewMarkdownHandle creates a handle for path.
func NewMarkdownHandle(path string, extractor ports.TextExtractor) *MarkdownHandle {
	return &MarkdownHandle{path: path, extractor: extractor}
}

// Path returns the absolute file path.
func (h *MarkdownHandle) Path() string { return h.path }

// Load reads the file and extracts its text.
func (h *MarkdownHandle) Load(ctx context.Context) (*entities.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(h.path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", h.path, err)
	}
	info, err := os.Stat(h.path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", h.path, err)
	}

	content := string(raw)
	if h.extractor != nil {
		content, err = h.extractor.Extract(raw)
		if err != nil {
			return nil, fmt.Errorf("extracting %s: %w", h.path, err)
		}
	}

	return &entities.Document{
		ID:      generateDocID(h.path),
		Path:    h.path,
		Raw:     string(raw),
		Content: content,
		ModTime: info.ModTime(),
	}, nil
}

// LoadDocumentation walks root recursively and returns one handle per file
// whose name ends in ".md", in lexical order. root must be a directory.
func LoadDocumentation(root string, extractor ports.TextExtractor) ([]ports.DocumentHandle, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &errs.InvalidInputError{Path: root, Reason: notDirReason, Err: err}
	}
	if !info.IsDir() {
		return nil, &errs.InvalidInputError{Path: root, Reason: notDirReason}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &errs.InvalidInputError{Path: root, Reason: notDirReason, Err: err}
	}

	handles := []ports.DocumentHandle{}
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), markdownExt) {
			return nil
		}
		handles = append(handles, NewMarkdownHandle(path, extractor))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", abs, err)
	}
	return handles, nil
}

// generateDocID creates a deterministic ID for a document.
func generateDocID(path string) string {
	hash := sha256.Sum256([]byte(path))
	return hex.EncodeToString(hash[:8])
}
