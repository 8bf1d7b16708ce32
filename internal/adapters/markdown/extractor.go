// Package markdown extracts indexable plain text from Markdown sources.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Extractor implements ports.TextExtractor with a goldmark AST walk. Markup
// is dropped; prose, list items, table cells and code blocks are kept, the
// latter with their fences so answers can quote them.
type Extractor struct {
	md goldmark.Markdown
}

// NewExtractor creates an extractor that understands GitHub flavoured Markdown.
func NewExtractor() *Extractor {
	return &Extractor{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Extract parses raw and returns its text content.
func (e *Extractor) Extract(raw []byte) (string, error) {
	doc := e.md.Parser().Parse(text.NewReader(raw))

	w := &textWriter{source: raw}
	if err := ast.Walk(doc, w.walk); err != nil {
		return "", fmt.Errorf("walking markdown: %w", err)
	}
	return w.String(), nil
}

type textWriter struct {
	source []byte
	buf    bytes.Buffer
}

func (w *textWriter) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n.Kind() {
	case ast.KindHeading, ast.KindParagraph, ast.KindBlockquote, ast.KindThematicBreak, extast.KindTable:
		if entering {
			w.breakBlock()
		}

	case ast.KindList:
		if !entering {
			w.breakBlock()
		}

	case ast.KindListItem:
		if entering {
			w.breakLine()
			w.buf.WriteString("- ")
		}

	case ast.KindText:
		if entering {
			t := n.(*ast.Text)
			w.buf.Write(t.Segment.Value(w.source))
			switch {
			case t.HardLineBreak():
				w.buf.WriteByte('\n')
			case t.SoftLineBreak():
				w.buf.WriteByte(' ')
			}
		}

	case ast.KindString:
		if entering {
			w.buf.Write(n.(*ast.String).Value)
		}

	case ast.KindCodeSpan:
		if entering {
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					w.buf.Write(t.Segment.Value(w.source))
				}
			}
			return ast.WalkSkipChildren, nil
		}

	case ast.KindAutoLink:
		if entering {
			w.buf.Write(n.(*ast.AutoLink).URL(w.source))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindFencedCodeBlock:
		if entering {
			fcb := n.(*ast.FencedCodeBlock)
			w.breakBlock()
			w.buf.WriteString("```")
			w.buf.Write(fcb.Language(w.source))
			w.buf.WriteByte('\n')
			w.writeLines(fcb.Lines())
			w.buf.WriteString("```")
			w.breakBlock()
			return ast.WalkSkipChildren, nil
		}

	case ast.KindCodeBlock:
		if entering {
			w.breakBlock()
			w.writeLines(n.Lines())
			w.breakBlock()
			return ast.WalkSkipChildren, nil
		}

	case ast.KindHTMLBlock, ast.KindRawHTML:
		return ast.WalkSkipChildren, nil

	case extast.KindTableHeader, extast.KindTableRow:
		if entering {
			w.breakLine()
		}

	case extast.KindTableCell:
		if entering && n.PreviousSibling() != nil {
			w.buf.WriteString(" | ")
		}
	}
	return ast.WalkContinue, nil
}

func (w *textWriter) writeLines(lines *text.Segments) {
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		w.buf.Write(seg.Value(w.source))
	}
	if b := w.buf.Bytes(); len(b) > 0 && b[len(b)-1] != '\n' {
		w.buf.WriteByte('\n')
	}
}

// breakLine ends the current line, if any.
func (w *textWriter) breakLine() {
	w.trimTrailingSpaces()
	if b := w.buf.Bytes(); len(b) > 0 && b[len(b)-1] != '\n' {
		w.buf.WriteByte('\n')
	}
}

// breakBlock leaves exactly one blank line after the current content.
func (w *textWriter) breakBlock() {
	w.trimTrailingSpaces()
	b := w.buf.Bytes()
	if len(b) == 0 {
		return
	}
	switch {
	case bytes.HasSuffix(b, []byte("\n\n")):
	case b[len(b)-1] == '\n':
		w.buf.WriteByte('\n')
	default:
		w.buf.WriteString("\n\n")
	}
}

func (w *textWriter) trimTrailingSpaces() {
	b := w.buf.Bytes()
	n := len(b)
	for n > 0 && (b[n-1] == ' ' || b[n-1] == '\t') {
		n--
	}
	w.buf.Truncate(n)
}

func (w *textWriter) String() string {
	return strings.TrimSpace(w.buf.String())
}

// RawText returns the source unchanged. Useful when the docs are already
// plain text.
type RawText struct{}

// Extract returns raw as a string.
func (RawText) Extract(raw []byte) (string, error) { return string(raw), nil }
