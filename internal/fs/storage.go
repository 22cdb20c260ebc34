package fs

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pavel-fokin/doc-utils/internal/documents"
)

const (
	// URLPrefix is the route serving store files by name
	URLPrefix = "/uploads/"

	maxCreateAttempts = 8
)

var safeExt = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

// Storage implements documents.Store on a single flat directory
type Storage struct {
	root  string
	alias string
}

// NewStorage creates the root directory if needed and returns a storage
// rooted at its canonical path
func NewStorage(root string) (*Storage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}

	return &Storage{
		root:  resolved,
		alias: abs,
	}, nil
}

// Root returns the canonical store directory
func (s *Storage) Root() string {
	return s.root
}

// URL returns the download route for a file name
func (s *Storage) URL(name string) string {
	return URLPrefix + url.PathEscape(name)
}

// Stage stores an upload as field-<timestamp><ext>
func (s *Storage) Stage(field, originalName, mimeType string, content io.Reader, limit int64) (*documents.StagedFile, error) {
	ext := filepath.Ext(originalName)
	if !safeExt.MatchString(ext) {
		ext = ""
	}

	file, path, err := s.create(field, ext)
	if err != nil {
		return nil, err
	}

	// Copy content to file
	size, err := io.Copy(file, io.LimitReader(content, limit+1))
	if err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write file content: %w", err)
	}
	if size > limit {
		file.Close()
		os.Remove(path)
		return nil, documents.ErrTooLarge
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	return &documents.StagedFile{
		Name:         filepath.Base(path),
		Path:         path,
		MimeType:     mimeType,
		Size:         size,
		OriginalName: originalName,
	}, nil
}

// Write stores a produced file as prefix-<timestamp><ext>
func (s *Storage) Write(prefix, ext string, data []byte) (*documents.ProducedFile, error) {
	file, path, err := s.create(prefix, ext)
	if err != nil {
		return nil, err
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write file content: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	name := filepath.Base(path)
	return &documents.ProducedFile{
		Name: name,
		Path: path,
		Size: int64(len(data)),
		URL:  s.URL(name),
	}, nil
}

// create opens a new file exclusively, retrying with a fresh timestamp when
// the name is taken
func (s *Storage) create(prefix, ext string) (*os.File, string, error) {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create data directory: %w", err)
	}

	for range maxCreateAttempts {
		name := fmt.Sprintf("%s-%d%s", prefix, time.Now().UnixNano(), ext)
		path := filepath.Join(s.root, name)

		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return file, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("failed to create file: %w", err)
		}
	}

	return nil, "", fmt.Errorf("failed to create file: no free name for %s", prefix)
}

// Read returns the content of a file inside the store
func (s *Storage) Read(path string) ([]byte, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// Open resolves path and opens it for streaming
func (s *Storage) Open(path string) (*documents.Download, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, documents.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &documents.Download{
		Name:    filepath.Base(resolved),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Content: file,
	}, nil
}

// Remove deletes a file inside the store
func (s *Storage) Remove(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	if !s.contains(abs) {
		return documents.ErrForbidden
	}

	if err := os.Remove(abs); err != nil {
		if os.IsNotExist(err) {
			return nil // File already deleted
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// Entries lists regular files in the store
func (s *Storage) Entries() ([]documents.Entry, error) {
	dirEntries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	entries := make([]documents.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Removed between listing and stat
			continue
		}
		entries = append(entries, documents.Entry{
			Name:    de.Name(),
			Path:    filepath.Join(s.root, de.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	return entries, nil
}

// Resolve canonicalizes path and checks it names an existing regular file
// inside the store. The containment check runs before and after symlink
// evaluation
func (s *Storage) Resolve(path string) (string, error) {
	if path == "" {
		return "", documents.ErrForbidden
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", documents.ErrForbidden
	}
	if !s.contains(abs) {
		return "", documents.ErrForbidden
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			if s.linksOutside(abs) {
				return "", documents.ErrForbidden
			}
			return "", documents.ErrNotFound
		}
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if !s.contains(resolved) {
		return "", documents.ErrForbidden
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", documents.ErrNotFound
		}
		return "", fmt.Errorf("failed to stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", documents.ErrNotFound
	}

	return resolved, nil
}

// linksOutside reports whether path is a dangling symlink whose target lies
// outside the store
func (s *Storage) linksOutside(path string) bool {
	info, err := os.Lstat(path)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return false
	}
	target, err := os.Readlink(path)
	if err != nil {
		return true
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return !s.contains(filepath.Clean(target))
}

func (s *Storage) contains(path string) bool {
	return within(s.root, path) || within(s.alias, path)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}
