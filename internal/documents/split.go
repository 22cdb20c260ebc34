package documents

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

const splitPrefix = "split-page"

// SplitPage describes one single-page PDF produced by Split
type SplitPage struct {
	PageNumber int    `json:"pageNumber"`
	Filename   string `json:"filename"`
	URL        string `json:"url"`
	FullPath   string `json:"fullPath"`
	Size       int64  `json:"size"`
}

// SplitResult is the outcome of a split. Pages may be fewer than the source
// page count when individual pages failed
type SplitResult struct {
	Pages        []SplitPage
	SourcePages  int
	OriginalFile string
}

// Split writes one single-page PDF per page of file. Pages that fail are
// logged and skipped; only a split where every page fails is an error.
// Produced pages and the input expire together after the service TTL
func (s *Service) Split(ctx context.Context, file *StagedFile) (*SplitResult, error) {
	start := s.now()
	logger := slog.With("task", "split", "path", file.Path)

	rel := NewReleaser(s.store, logger)
	rel.Add(file.Path)

	doc, err := s.loadSplitInput(file)
	if err != nil {
		logger.Warn("Split input rejected", "error", err)
		rel.Release()
		return nil, err
	}

	pageCount := doc.PageCount()
	logger.Info("Splitting PDF", "pages", pageCount)

	produced := make([]*ProducedFile, pageCount)
	g := new(errgroup.Group)
	g.SetLimit(s.splitWorkers)
	for i := range pageCount {
		g.Go(func() error {
			out, err := s.splitPage(doc, i)
			if err != nil {
				logger.Error("Error splitting page", "page", i+1, "error", err)
				return nil
			}
			rel.Add(out.Path)
			produced[i] = out
			return nil
		})
	}
	_ = g.Wait()

	pages := make([]SplitPage, 0, pageCount)
	for i, out := range produced {
		if out == nil {
			continue
		}
		pages = append(pages, SplitPage{
			PageNumber: i + 1,
			Filename:   out.Name,
			URL:        out.URL,
			FullPath:   out.Path,
			Size:       out.Size,
		})
	}

	if len(pages) == 0 {
		logger.Error("Failed to split any pages")
		rel.Release()
		return nil, &Error{
			Kind:    KindInternal,
			Message: "Failed to split any pages",
			Details: "All page splitting attempts failed",
		}
	}

	s.track(KindSplitInput, file.Path, file.Name, file.Size, start)
	for _, out := range produced {
		if out == nil {
			continue
		}
		s.track(KindSplitPage, out.Path, out.Name, out.Size, start)
		s.mirrorPut(ctx, out)
	}

	logger.Info("Successfully split PDF", "pages", len(pages), "skipped", pageCount-len(pages))
	return &SplitResult{
		Pages:        pages,
		SourcePages:  pageCount,
		OriginalFile: file.OriginalName,
	}, nil
}

func (s *Service) loadSplitInput(file *StagedFile) (PDFDocument, error) {
	if !IsPDF(file.MimeType) {
		return nil, invalid("Only PDF files are allowed", fmt.Sprintf("Invalid file type: %s", file.MimeType), nil)
	}
	data, err := s.store.Read(file.Path)
	if err != nil {
		return nil, invalid("Uploaded file is not accessible", "", err)
	}
	doc, err := s.pdf.Parse(data)
	if err != nil {
		return nil, invalid("Invalid or corrupted PDF file", "", err)
	}
	if doc.PageCount() <= 1 {
		return nil, invalid("PDF must have more than one page to split", "", nil)
	}
	return doc, nil
}

func (s *Service) splitPage(doc PDFDocument, index int) (*ProducedFile, error) {
	page, err := s.pdf.CopyPages(doc, []int{index})
	if err != nil {
		return nil, fmt.Errorf("failed to copy page: %w", err)
	}
	data, err := s.pdf.Serialize(page)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize page: %w", err)
	}
	out, err := s.store.Write(fmt.Sprintf("%s-%d", splitPrefix, index+1), pdfExt, data)
	if err != nil {
		return nil, fmt.Errorf("failed to write page: %w", err)
	}
	return out, nil
}
