package documents

import (
	"context"
	"io"
	"time"
)

// StagedFile is an upload written to the output store and awaiting processing
type StagedFile struct {
	Name         string
	Path         string
	MimeType     string
	Size         int64
	OriginalName string
}

// ProducedFile is an artifact written by a task
type ProducedFile struct {
	Name string
	Path string
	Size int64
	URL  string
}

// Entry describes a regular file found in the output store
type Entry struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Artifact is an expiry record for a file in the output store
type Artifact struct {
	Name      string
	Path      string
	Kind      string
	Size      int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Artifact kinds
const (
	KindMergedOutput = "merged"
	KindSplitPage    = "split-page"
	KindSplitInput   = "split-input"
)

// Download is an open handle on a servable file
type Download struct {
	Name    string
	Size    int64
	ModTime time.Time
	Content io.ReadSeekCloser
}

// Store is the on-disk bucket shared by every task
type Store interface {
	// Stage writes an upload under a generated, never reused name
	Stage(field, originalName, mimeType string, content io.Reader, limit int64) (*StagedFile, error)

	// Write persists a produced file named prefix-<timestamp>ext
	Write(prefix, ext string, data []byte) (*ProducedFile, error)

	// Read returns the content of a file inside the store
	Read(path string) ([]byte, error)

	// Open resolves path against the store root and opens it for streaming
	Open(path string) (*Download, error)

	// Remove deletes a file inside the store. Missing files are not an error
	Remove(path string) error

	// Entries lists regular files in the store
	Entries() ([]Entry, error)

	Root() string
	URL(name string) string
}

// Repository persists expiry records so cleanup survives restarts
type Repository interface {
	Create(artifact *Artifact) error
	Delete(name string) error
	ListExpired(now time.Time) ([]*Artifact, error)
	Names() (map[string]struct{}, error)
}

// Recognizer extracts text from an image
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// PDFDocument is a parsed PDF owned by a PDFEngine
type PDFDocument interface {
	PageCount() int
}

// PDFEngine parses, slices, concatenates and serializes PDFs.
// Implementations must be safe for concurrent use
type PDFEngine interface {
	Parse(data []byte) (PDFDocument, error)

	// CopyPages returns a new document holding the zero-based pages of doc
	// in the given order
	CopyPages(doc PDFDocument, pages []int) (PDFDocument, error)

	// Merge concatenates all pages of docs in order
	Merge(docs []PDFDocument) (PDFDocument, error)

	Serialize(doc PDFDocument) ([]byte, error)
}

// Mirror replicates produced files to a secondary store
type Mirror interface {
	Put(ctx context.Context, name, path, contentType string) error
	Remove(ctx context.Context, name string) error
}
