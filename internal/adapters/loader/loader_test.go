package loader

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/docqa-go/internal/adapters/markdown"
	"github.com/0xcro3dile/docqa-go/internal/domain/errs"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDocumentation_OneHandlePerMarkdownFile(t *testing.T) {
	root := t.TempDir()
	want := []string{
		writeFile(t, root, "index.md", "# Index"),
		writeFile(t, root, "guides/quick_start.md", "# Quick start"),
		writeFile(t, root, "guides/integrations/hf/spaces.md", "# Spaces"),
		writeFile(t, root, "a/b/c/d/e/deep.md", "deep"),
	}
	writeFile(t, root, "conf.py", "project = 'aim'")
	writeFile(t, root, "guides/notes.txt", "not markdown")
	writeFile(t, root, "guides/README.markdown", "other extension")
	writeFile(t, root, "images/logo.md.png", "binary")

	handles, err := LoadDocumentation(root, nil)
	require.NoError(t, err)

	got := make([]string, len(handles))
	for i, h := range handles {
		got[i] = h.Path()
		assert.True(t, filepath.IsAbs(h.Path()))
	}
	sort.Strings(want)
	assert.Equal(t, want, got)
}

func TestLoadDocumentation_DeterministicOrder(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b.md", "a.md", "c/a.md", "c.md"} {
		writeFile(t, root, name, name)
	}

	first, err := LoadDocumentation(root, nil)
	require.NoError(t, err)
	second, err := LoadDocumentation(root, nil)
	require.NoError(t, err)

	require.Len(t, first, 4)
	for i := range first {
		assert.Equal(t, first[i].Path(), second[i].Path())
	}
}

func TestLoadDocumentation_EmptyDirectory(t *testing.T) {
	handles, err := LoadDocumentation(t.TempDir(), nil)
	require.NoError(t, err)
	assert.NotNil(t, handles)
	assert.Empty(t, handles)
}

func TestLoadDocumentation_RequiresDirectory(t *testing.T) {
	root := t.TempDir()
	file := writeFile(t, root, "a.md", "content")

	tests := []struct {
		name string
		path string
	}{
		{name: "regular file", path: file},
		{name: "missing path", path: filepath.Join(root, "does-not-exist")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDocumentation(tt.path, nil)

			var invalid *errs.InvalidInputError
			require.ErrorAs(t, err, &invalid)
			assert.Contains(t, err.Error(), "input path must be a directory")
		})
	}
}

func TestMarkdownHandle_LoadIsDeferred(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "a.md", "first")

	handles, err := LoadDocumentation(root, nil)
	require.NoError(t, err)
	require.Len(t, handles, 1)

	// content written after discovery is what Load sees
	require.NoError(t, os.WriteFile(path, []byte("# Aim\n\nAim is an experiment tracker."), 0o644))

	doc, err := handles[0].Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "# Aim\n\nAim is an experiment tracker.", doc.Raw)
	assert.Equal(t, doc.Raw, doc.Content)
	assert.Equal(t, path, doc.Path)
	assert.NotEmpty(t, doc.ID)
}

func TestMarkdownHandle_LoadExtractsText(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "a.md", "# Aim\n\nAim is an *experiment* tracker.")

	doc, err := NewMarkdownHandle(path, markdown.NewExtractor()).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Aim\n\nAim is an experiment tracker.", doc.Content)
}

func TestMarkdownHandle_LoadMissingFile(t *testing.T) {
	h := NewMarkdownHandle(filepath.Join(t.TempDir(), "gone.md"), nil)
	_, err := h.Load(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGenerateDocID_Stable(t *testing.T) {
	assert.Equal(t, generateDocID("/docs/a.md"), generateDocID("/docs/a.md"))
	assert.NotEqual(t, generateDocID("/docs/a.md"), generateDocID("/docs/b.md"))
	assert.Len(t, generateDocID("/docs/a.md"), 16)
}
