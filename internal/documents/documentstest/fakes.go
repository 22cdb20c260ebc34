// Package documentstest provides in-memory capabilities for tests
package documentstest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pavel-fokin/doc-utils/internal/documents"
)

const header = "%FAKEPDF\n"

// NewPDF returns a fake PDF whose pages carry the given labels
func NewPDF(pages ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString(header)
	for _, p := range pages {
		fmt.Fprintf(&buf, "page %s\n", p)
	}
	return buf.Bytes()
}

// Document is a parsed fake PDF
type Document struct {
	Pages []string
}

// PageCount returns the number of pages
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// PDFEngine understands the format produced by NewPDF
type PDFEngine struct {
	// FailPages makes CopyPages fail when a selected page carries one of
	// these labels
	FailPages map[string]bool
	MergeErr  error
}

// Parse decodes a fake PDF
func (e *PDFEngine) Parse(data []byte) (documents.PDFDocument, error) {
	if !bytes.HasPrefix(data, []byte(header)) {
		return nil, errors.New("missing PDF header")
	}
	doc := &Document{}
	for _, line := range strings.Split(string(data[len(header):]), "\n") {
		if label, ok := strings.CutPrefix(line, "page "); ok {
			doc.Pages = append(doc.Pages, label)
		}
	}
	return doc, nil
}

// CopyPages selects zero-based pages
func (e *PDFEngine) CopyPages(doc documents.PDFDocument, pages []int) (documents.PDFDocument, error) {
	d := doc.(*Document)
	out := &Document{}
	for _, p := range pages {
		if p < 0 || p >= len(d.Pages) {
			return nil, fmt.Errorf("page %d out of range", p)
		}
		if e.FailPages[d.Pages[p]] {
			return nil, fmt.Errorf("cannot copy page %s", d.Pages[p])
		}
		out.Pages = append(out.Pages, d.Pages[p])
	}
	return out, nil
}

// Merge concatenates pages
func (e *PDFEngine) Merge(docs []documents.PDFDocument) (documents.PDFDocument, error) {
	if e.MergeErr != nil {
		return nil, e.MergeErr
	}
	out := &Document{}
	for _, doc := range docs {
		out.Pages = append(out.Pages, doc.(*Document).Pages...)
	}
	return out, nil
}

// Serialize encodes doc with NewPDF
func (e *PDFEngine) Serialize(doc documents.PDFDocument) ([]byte, error) {
	return NewPDF(doc.(*Document).Pages...), nil
}

// Recognizer returns canned text and records what it was given
type Recognizer struct {
	Text string
	Err  error

	mu     sync.Mutex
	images [][]byte
}

// Recognize returns r.Text or r.Err
func (r *Recognizer) Recognize(_ context.Context, image []byte) (string, error) {
	r.mu.Lock()
	r.images = append(r.images, image)
	r.mu.Unlock()
	if r.Err != nil {
		return "", r.Err
	}
	return r.Text, nil
}

// Calls returns how many images were recognized
func (r *Recognizer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.images)
}

// Mirror records object names
type Mirror struct {
	mu      sync.Mutex
	Objects map[string]string
}

// Put records name
func (m *Mirror) Put(_ context.Context, name, path, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Objects == nil {
		m.Objects = make(map[string]string)
	}
	m.Objects[name] = path
	return nil
}

// Remove forgets name
func (m *Mirror) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Objects, name)
	return nil
}

// Len returns the number of mirrored objects
func (m *Mirror) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Objects)
}
