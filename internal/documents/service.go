package documents

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	DefaultTTL          = time.Hour
	DefaultSplitWorkers = 4
)

// Service runs the OCR, merge and split tasks against a shared store
type Service struct {
	store      Store
	repo       Repository
	recognizer Recognizer
	pdf        PDFEngine
	mirror     Mirror

	ttl          time.Duration
	splitWorkers int
	now          func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithTTL sets how long produced files are retained
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSplitWorkers bounds how many pages are serialized concurrently
func WithSplitWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.splitWorkers = n
		}
	}
}

// WithMirror replicates produced files to m
func WithMirror(m Mirror) Option {
	return func(s *Service) {
		s.mirror = m
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new document service
func NewService(store Store, repo Repository, recognizer Recognizer, pdf PDFEngine, opts ...Option) *Service {
	s := &Service{
		store:        store,
		repo:         repo,
		recognizer:   recognizer,
		pdf:          pdf,
		ttl:          DefaultTTL,
		splitWorkers: DefaultSplitWorkers,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsImage reports whether a declared content type is in the image family
func IsImage(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "image/")
}

// IsPDF reports whether a declared content type indicates a PDF
func IsPDF(mimeType string) bool {
	return strings.Contains(strings.ToLower(mimeType), "pdf")
}

// Stage writes an uploaded part to the store
func (s *Service) Stage(field, originalName, mimeType string, content io.Reader, limit int64) (*StagedFile, error) {
	file, err := s.store.Stage(field, originalName, mimeType, content, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to stage %s: %w", originalName, err)
	}
	slog.Info("File staged", "path", file.Path, "size", file.Size, "original_name", originalName)
	return file, nil
}

// Discard removes staged files that will not reach a task
func (s *Service) Discard(files ...*StagedFile) {
	rel := NewReleaser(s.store, slog.Default())
	for _, f := range files {
		rel.Add(f.Path)
	}
	rel.Release()
}

// Recognize extracts text from a staged image. The staged file is removed
// once the recognizer settles, whatever the outcome
func (s *Service) Recognize(ctx context.Context, file *StagedFile) (string, error) {
	rel := NewReleaser(s.store, slog.Default())
	rel.Add(file.Path)
	defer rel.Release()

	if !IsImage(file.MimeType) {
		return "", invalid("Only image files are supported", fmt.Sprintf("Invalid file type: %s", file.MimeType), nil)
	}

	data, err := s.store.Read(file.Path)
	if err != nil {
		return "", internal("Error processing image", err)
	}

	text, err := s.recognizer.Recognize(ctx, data)
	if err != nil {
		slog.Error("Recognition failed", "error", err, "path", file.Path)
		return "", internal("Error processing image", err)
	}

	slog.Info("Text extracted", "path", file.Path, "chars", len(text))
	return text, nil
}

// MergedEntry describes a merged PDF still present in the store
type MergedEntry struct {
	Name string    `json:"name"`
	URL  string    `json:"url"`
	Date time.Time `json:"date"`
}

// ListMerged returns merged outputs, newest first
func (s *Service) ListMerged() ([]MergedEntry, error) {
	entries, err := s.store.Entries()
	if err != nil {
		return nil, fmt.Errorf("failed to list store: %w", err)
	}

	merged := make([]MergedEntry, 0)
	for _, e := range entries {
		if !strings.HasPrefix(e.Name, mergedPrefix+"-") || filepath.Ext(e.Name) != pdfExt {
			continue
		}
		merged = append(merged, MergedEntry{Name: e.Name, URL: s.store.URL(e.Name), Date: e.ModTime})
	}
	slices.SortStableFunc(merged, func(a, b MergedEntry) int {
		return b.Date.Compare(a.Date)
	})
	return merged, nil
}

// Download opens a file by path. Paths outside the store are refused with
// ErrForbidden, missing files with ErrNotFound
func (s *Service) Download(path string) (*Download, error) {
	return s.store.Open(path)
}

// DownloadByName opens a file by its name in the store
func (s *Service) DownloadByName(name string) (*Download, error) {
	return s.store.Open(filepath.Join(s.store.Root(), name))
}

func (s *Service) track(kind string, path, name string, size int64, created time.Time) {
	artifact := &Artifact{
		Name:      name,
		Path:      path,
		Kind:      kind,
		Size:      size,
		CreatedAt: created,
		ExpiresAt: created.Add(s.ttl),
	}
	// An untracked file is still collected by the orphan sweep
	if err := s.repo.Create(artifact); err != nil {
		slog.Error("Failed to record expiry", "error", err, "path", path)
	}
}

func (s *Service) mirrorPut(ctx context.Context, file *ProducedFile) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Put(ctx, file.Name, file.Path, "application/pdf"); err != nil {
		slog.Warn("Mirror upload failed", "error", err, "name", file.Name)
	}
}

func (s *Service) mirrorRemove(ctx context.Context, name string) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Remove(ctx, name); err != nil {
		slog.Warn("Mirror removal failed", "error", err, "name", name)
	}
}
