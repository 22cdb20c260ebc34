// Package pdf implements documents.PDFEngine with pdfcpu
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pavel-fokin/doc-utils/internal/documents"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var errForeignDocument = errors.New("document was not parsed by this engine")

// Document is a parsed PDF together with the bytes it was read from
type Document struct {
	// pdfcpu mutates the context while extracting pages
	mu   sync.Mutex
	ctx  *model.Context
	data []byte
}

// PageCount returns the number of pages
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// Engine is a pdfcpu backed PDF engine
type Engine struct{}

// NewEngine returns an engine that never touches the pdfcpu config directory
func NewEngine() *Engine {
	api.DisableConfigDir()
	return &Engine{}
}

func (e *Engine) config() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Parse reads and validates a PDF
func (e *Engine) Parse(data []byte) (documents.PDFDocument, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), e.config())
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}
	return &Document{ctx: ctx, data: data}, nil
}

// CopyPages extracts the zero-based pages of doc into a new document
func (e *Engine) CopyPages(doc documents.PDFDocument, pages []int) (documents.PDFDocument, error) {
	d, ok := doc.(*Document)
	if !ok {
		return nil, errForeignDocument
	}
	if len(pages) == 0 {
		return nil, errors.New("no pages selected")
	}

	extracted, err := d.extract(pages)
	if err != nil {
		return nil, err
	}
	if len(extracted) == 1 {
		return e.Parse(extracted[0])
	}

	var buf bytes.Buffer
	if err := e.mergeRaw(extracted, &buf); err != nil {
		return nil, err
	}
	return e.Parse(buf.Bytes())
}

func (d *Document) extract(pages []int) ([][]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([][]byte, 0, len(pages))
	for _, p := range pages {
		if p < 0 || p >= d.ctx.PageCount {
			return nil, fmt.Errorf("page %d out of range [0,%d)", p, d.ctx.PageCount)
		}
		r, err := api.ExtractPage(d.ctx, p+1)
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d: %w", p+1, err)
		}
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", p+1, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// Merge concatenates docs in order
func (e *Engine) Merge(docs []documents.PDFDocument) (documents.PDFDocument, error) {
	if len(docs) == 0 {
		return nil, errors.New("nothing to merge")
	}

	raw := make([][]byte, 0, len(docs))
	for _, doc := range docs {
		d, ok := doc.(*Document)
		if !ok {
			return nil, errForeignDocument
		}
		raw = append(raw, d.data)
	}
	if len(raw) == 1 {
		return e.Parse(raw[0])
	}

	var buf bytes.Buffer
	if err := e.mergeRaw(raw, &buf); err != nil {
		return nil, err
	}
	return e.Parse(buf.Bytes())
}

func (e *Engine) mergeRaw(raw [][]byte, w io.Writer) error {
	readers := make([]io.ReadSeeker, len(raw))
	for i, b := range raw {
		readers[i] = bytes.NewReader(b)
	}
	if err := api.MergeRaw(readers, w, false, e.config()); err != nil {
		return fmt.Errorf("failed to merge: %w", err)
	}
	return nil
}

// Serialize returns the bytes of doc
func (e *Engine) Serialize(doc documents.PDFDocument) ([]byte, error) {
	d, ok := doc.(*Document)
	if !ok {
		return nil, errForeignDocument
	}
	return d.data, nil
}
