package documents

import (
	"log/slog"
	"slices"
	"sync"
)

// Releaser collects paths created during a request and removes them on the
// way out. Removal failures are logged and never returned
type Releaser struct {
	store  Store
	logger *slog.Logger

	mu    sync.Mutex
	paths []string
}

// NewReleaser returns a Releaser removing paths from store
func NewReleaser(store Store, logger *slog.Logger) *Releaser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Releaser{store: store, logger: logger}
}

// Add registers paths for release
func (r *Releaser) Add(paths ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, paths...)
}

// Keep unregisters paths that must outlive the request
func (r *Releaser) Keep(paths ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = slices.DeleteFunc(r.paths, func(p string) bool {
		return slices.Contains(paths, p)
	})
}

// Release removes every registered path. It is safe to call more than once
func (r *Releaser) Release() {
	r.mu.Lock()
	paths := r.paths
	r.paths = nil
	r.mu.Unlock()

	for _, p := range paths {
		if err := r.store.Remove(p); err != nil {
			r.logger.Error("Cleanup failed", "path", p, "error", err)
			continue
		}
		r.logger.Debug("File removed", "path", p)
	}
}
