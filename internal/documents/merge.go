package documents

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

const (
	mergedPrefix = "merged"
	pdfExt       = ".pdf"

	minMergeInputs = 2
)

// MergeInput pairs a staged PDF with its caller-declared order index
type MergeInput struct {
	File  *StagedFile
	Order int
}

// MergeResult describes a merged PDF
type MergeResult struct {
	File       *ProducedFile
	TotalPages int
	FileCount  int
}

// OrderInputs returns inputs sorted ascending by order index; ties keep
// arrival order
func OrderInputs(inputs []MergeInput) []MergeInput {
	ordered := slices.Clone(inputs)
	slices.SortStableFunc(ordered, func(a, b MergeInput) int {
		return cmp.Compare(a.Order, b.Order)
	})
	return ordered
}

// Merge concatenates the pages of inputs in order-index order into a new
// PDF. Staged inputs are always removed; on failure nothing produced by this
// call survives
func (s *Service) Merge(ctx context.Context, inputs []MergeInput) (*MergeResult, error) {
	logger := slog.With("task", "merge", "file_count", len(inputs))

	rel := NewReleaser(s.store, logger)
	for _, in := range inputs {
		rel.Add(in.File.Path)
	}
	defer rel.Release()

	if len(inputs) < minMergeInputs {
		return nil, invalid("At least 2 PDFs required for merging", fmt.Sprintf("Received %d files", len(inputs)), nil)
	}

	ordered := OrderInputs(inputs)
	docs := make([]PDFDocument, 0, len(ordered))
	for _, in := range ordered {
		doc, err := s.loadMergeInput(in.File)
		if err != nil {
			logger.Error("Merge input rejected",
				"error", err,
				"name", in.File.OriginalName,
				"size", in.File.Size,
				"type", in.File.MimeType,
			)
			details := fmt.Sprintf("Failed to process %s: %v", in.File.OriginalName, err)
			var e *Error
			if errors.As(err, &e) && e.Kind == KindInternal {
				return nil, &Error{Kind: KindInternal, Message: "PDF merge operation failed", Details: details, Err: err}
			}
			return nil, invalid("PDF merge operation failed", details, err)
		}
		docs = append(docs, doc)
	}

	merged, err := s.pdf.Merge(docs)
	if err != nil {
		return nil, internal("PDF merge operation failed", fmt.Errorf("failed to merge documents: %w", err))
	}
	data, err := s.pdf.Serialize(merged)
	if err != nil {
		return nil, internal("PDF merge operation failed", fmt.Errorf("failed to serialize merged document: %w", err))
	}

	created := s.now()
	out, err := s.store.Write(mergedPrefix, pdfExt, data)
	if err != nil {
		return nil, internal("PDF merge operation failed", fmt.Errorf("failed to write merged document: %w", err))
	}
	s.track(KindMergedOutput, out.Path, out.Name, out.Size, created)
	s.mirrorPut(ctx, out)

	logger.Info("Successfully merged PDFs", "output", out.Path, "size", out.Size, "pages", merged.PageCount())
	return &MergeResult{
		File:       out,
		TotalPages: merged.PageCount(),
		FileCount:  len(inputs),
	}, nil
}

func (s *Service) loadMergeInput(file *StagedFile) (PDFDocument, error) {
	if !IsPDF(file.MimeType) {
		return nil, fmt.Errorf("invalid file type: %s", file.MimeType)
	}
	data, err := s.store.Read(file.Path)
	if err != nil {
		return nil, internal("failed to read input", err)
	}
	doc, err := s.pdf.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid PDF: %w", err)
	}
	if doc.PageCount() == 0 {
		return nil, errors.New("PDF contains no pages")
	}
	return doc, nil
}
