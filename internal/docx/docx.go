// Package docx converts rendered HTML into a WordprocessingML (.docx) package.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// MIMEType is the content type of the produced package.
	MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	// DefaultMargin is the page margin on all four sides, in twentieths of a point.
	DefaultMargin = 720

	pageWidth  = 12240
	pageHeight = 15840
)

// Converter turns an HTML fragment into a .docx package.
type Converter struct {
	margin int
}

// Option customizes a Converter.
type Option func(*Converter)

// WithMargin sets the page margin on all sides, in twips.
func WithMargin(twips int) Option {
	return func(c *Converter) { c.margin = twips }
}

// NewConverter creates a converter with DefaultMargin page margins.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{margin: DefaultMargin}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert builds the package for the given HTML fragment. The output is
// byte-for-byte deterministic for identical input.
func (c *Converter) Convert(ctx context.Context, markup string) ([]byte, error) {
	nodes, err := html.ParseFragment(strings.NewReader(markup), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	w := newWriter(ctx, c.contentWidth())
	if err := w.body(nodes); err != nil {
		return nil, err
	}

	parts := []struct {
		name string
		data string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", packageRelsXML},
		{"word/document.xml", w.document(c.margin)},
		{"word/styles.xml", stylesXML},
		{"word/numbering.xml", w.numbering()},
		{"word/_rels/document.xml.rels", w.relationships()},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		// A zero Modified time keeps the archive deterministic.
		f, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", p.name, err)
		}
		if _, err := f.Write([]byte(p.data)); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish docx archive: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Converter) contentWidth() int {
	return max(pageWidth-2*c.margin, 1440)
}
