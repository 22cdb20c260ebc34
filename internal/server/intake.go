package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/pavel-fokin/doc-utils/internal/documents"
)

// maxMemory is how much of a multipart body is kept in memory before parts
// spill to temporary files
const maxMemory = 32 << 20

// parseUpload parses a multipart body and returns the status to answer with
// when it cannot
func parseUpload(r *http.Request) (int, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return http.StatusBadRequest, fmt.Errorf("failed to parse multipart form: %w", err)
	}
	return http.StatusOK, nil
}

func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		r.MultipartForm.RemoveAll()
	}
}

func partType(fh *multipart.FileHeader) string {
	return fh.Header.Get("Content-Type")
}

// stageFiles writes every part to the store. Either all parts are staged or
// none are left behind
func stageFiles(cfg *Config, svc *documents.Service, field string, headers []*multipart.FileHeader) ([]*documents.StagedFile, error) {
	staged := make([]*documents.StagedFile, 0, len(headers))
	for _, fh := range headers {
		file, err := stagePart(cfg, svc, field, fh)
		if err != nil {
			svc.Discard(staged...)
			return nil, err
		}
		staged = append(staged, file)
	}
	return staged, nil
}

func stagePart(cfg *Config, svc *documents.Service, field string, fh *multipart.FileHeader) (*documents.StagedFile, error) {
	if fh.Size > cfg.MaxSize {
		return nil, fmt.Errorf("%s: %w", fh.Filename, documents.ErrTooLarge)
	}

	content, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open part %s: %w", fh.Filename, err)
	}
	defer content.Close()

	return svc.Stage(field, fh.Filename, partType(fh), content, cfg.MaxSize)
}

func stageStatus(err error) int {
	if errors.Is(err, documents.ErrTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// mergeOrder returns the order index of each uploaded PDF. A JSON "order"
// array takes precedence over per-position order_N fields; a missing or
// malformed index defaults to the upload position
func mergeOrder(r *http.Request, n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	if raw := r.FormValue("order"); raw != "" {
		var list []int
		if err := json.Unmarshal([]byte(raw), &list); err == nil && len(list) == n {
			copy(order, list)
			return order
		}
	}

	for i := range order {
		v, err := strconv.Atoi(strings.TrimSpace(r.FormValue(fmt.Sprintf("order_%d", i))))
		if err == nil {
			order[i] = v
		}
	}
	return order
}
