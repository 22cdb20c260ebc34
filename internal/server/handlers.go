package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/pavel-fokin/doc-utils/internal/documents"
)

const mergeSuggestion = "Please ensure all files are valid PDFs and try again"

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

type ocrResponse struct {
	Message string `json:"message"`
	Text    string `json:"text"`
}

type ocrErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type mergeDetails struct {
	TotalPages int `json:"totalPages"`
	FileCount  int `json:"fileCount"`
}

type mergeResponse struct {
	MergedPDFPath string       `json:"mergedPdfPath"`
	URL           string       `json:"url"`
	Message       string       `json:"message"`
	Details       mergeDetails `json:"details"`
}

type splitResponse struct {
	Success      bool                  `json:"success"`
	Message      string                `json:"message"`
	Pages        []documents.SplitPage `json:"pages"`
	OriginalFile string                `json:"originalFile"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// taskStatus maps a task error to an HTTP status
func taskStatus(err error) int {
	if documents.IsInvalid(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// taskError extracts the human-readable parts of a task error
func taskError(err error) (message, details string) {
	var e *documents.Error
	if errors.As(err, &e) {
		return e.Message, e.Details
	}
	return "Internal server error", err.Error()
}

// taskContext detaches task processing from the client connection so that
// cleanup completes even when the client goes away
func taskContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func recognizeImage(cfg *Config, svc *documents.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if status, err := parseUpload(r); err != nil {
			writeJSON(w, status, ocrErrorResponse{Message: "File upload failed", Error: err.Error()})
			return
		}
		defer cleanupForm(r)

		headers := r.MultipartForm.File["file"]
		if len(headers) == 0 {
			writeJSON(w, http.StatusBadRequest, ocrErrorResponse{Message: "File upload failed", Error: "No file provided"})
			return
		}
		fh := headers[0]
		if !documents.IsImage(partType(fh)) {
			writeJSON(w, http.StatusBadRequest, ocrErrorResponse{
				Message: "Only image files are supported",
				Error:   fmt.Sprintf("Invalid file type: %s", partType(fh)),
			})
			return
		}

		staged, err := stagePart(cfg, svc, "file", fh)
		if err != nil {
			slog.Error("Upload failed", "error", err, "filename", fh.Filename)
			writeJSON(w, stageStatus(err), ocrErrorResponse{Message: "File upload failed", Error: err.Error()})
			return
		}

		text, err := svc.Recognize(taskContext(r), staged)
		if err != nil {
			message, details := taskError(err)
			writeJSON(w, taskStatus(err), ocrErrorResponse{Message: message, Error: details})
			return
		}

		writeJSON(w, http.StatusOK, ocrResponse{Message: "File uploaded successfully", Text: text})
	}
}

func mergePDFs(cfg *Config, svc *documents.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if status, err := parseUpload(r); err != nil {
			writeJSON(w, status, errorResponse{Error: "File upload failed", Details: err.Error()})
			return
		}
		defer cleanupForm(r)

		headers := r.MultipartForm.File["pdfs"]
		if len(headers) < 2 {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error:   "At least 2 PDFs required for merging",
				Details: fmt.Sprintf("Received %d files", len(headers)),
			})
			return
		}
		if len(headers) > cfg.MaxFiles {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error:   "Too many files",
				Details: fmt.Sprintf("Received %d files, at most %d allowed", len(headers), cfg.MaxFiles),
			})
			return
		}

		order := mergeOrder(r, len(headers))
		staged, err := stageFiles(cfg, svc, "pdfs", headers)
		if err != nil {
			slog.Error("Upload failed", "error", err)
			writeJSON(w, stageStatus(err), errorResponse{Error: "File upload failed", Details: err.Error()})
			return
		}

		inputs := make([]documents.MergeInput, len(staged))
		for i, f := range staged {
			inputs[i] = documents.MergeInput{File: f, Order: order[i]}
		}

		result, err := svc.Merge(taskContext(r), inputs)
		if err != nil {
			message, details := taskError(err)
			writeJSON(w, taskStatus(err), errorResponse{Error: message, Details: details, Suggestion: mergeSuggestion})
			return
		}

		writeJSON(w, http.StatusOK, mergeResponse{
			MergedPDFPath: result.File.Path,
			URL:           result.File.URL,
			Message:       "PDFs merged successfully",
			Details: mergeDetails{
				TotalPages: result.TotalPages,
				FileCount:  result.FileCount,
			},
		})
	}
}

func splitPDF(cfg *Config, svc *documents.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if status, err := parseUpload(r); err != nil {
			writeJSON(w, status, errorResponse{Error: "File upload failed", Details: err.Error()})
			return
		}
		defer cleanupForm(r)

		headers := r.MultipartForm.File["pdf"]
		if len(headers) == 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No PDF file uploaded"})
			return
		}
		fh := headers[0]
		if !documents.IsPDF(partType(fh)) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Only PDF files are allowed"})
			return
		}

		staged, err := stagePart(cfg, svc, "pdf", fh)
		if err != nil {
			slog.Error("Upload failed", "error", err, "filename", fh.Filename)
			writeJSON(w, stageStatus(err), errorResponse{Error: "File upload failed", Details: err.Error()})
			return
		}

		result, err := svc.Split(taskContext(r), staged)
		if err != nil {
			message, details := taskError(err)
			writeJSON(w, taskStatus(err), errorResponse{Error: message, Details: details})
			return
		}

		writeJSON(w, http.StatusOK, splitResponse{
			Success:      true,
			Message:      fmt.Sprintf("PDF split into %d pages", len(result.Pages)),
			Pages:        result.Pages,
			OriginalFile: result.OriginalFile,
		})
	}
}

func listMerged(svc *documents.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merged, err := svc.ListMerged()
		if err != nil {
			slog.Error("Error listing merged PDFs", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error:   "Failed to list merged PDFs",
				Details: err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, merged)
	}
}

func download(svc *documents.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Query().Get has already URL-decoded the value
		path := r.URL.Query().Get("file")
		serveDownload(w, r, func() (*documents.Download, error) {
			return svc.Download(path)
		})
	}
}

func downloadByName(svc *documents.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		serveDownload(w, r, func() (*documents.Download, error) {
			return svc.DownloadByName(name)
		})
	}
}

func serveDownload(w http.ResponseWriter, r *http.Request, open func() (*documents.Download, error)) {
	dl, err := open()
	switch {
	case errors.Is(err, documents.ErrForbidden):
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	case errors.Is(err, documents.ErrNotFound):
		http.Error(w, "File not found", http.StatusNotFound)
		return
	case err != nil:
		slog.Error("Download failed", "error", err)
		http.Error(w, "Error downloading file", http.StatusInternalServerError)
		return
	}
	defer dl.Content.Close()

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.Name}))
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, dl.Name, dl.ModTime, dl.Content)
}
