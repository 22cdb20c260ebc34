package documents

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"
)

const defaultSweepInterval = 5 * time.Minute

// managedName matches names generated by the store: staged uploads and
// produced files. Anything else in the directory is left alone
var managedName = regexp.MustCompile(`^[A-Za-z0-9_]+(-page-\d+)?-\d+(\.[A-Za-z0-9]{1,10})?$`)

// Sweep removes expired artifacts, then untracked store files older than the
// TTL. It returns the number of files removed
func (s *Service) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	removed := 0

	expired, err := s.repo.ListExpired(now)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired artifacts: %w", err)
	}
	for _, a := range expired {
		if err := s.store.Remove(a.Path); err != nil {
			slog.Error("Failed to remove expired file", "error", err, "path", a.Path)
			continue
		}
		if a.Kind != KindSplitInput {
			s.mirrorRemove(ctx, a.Name)
		}
		if err := s.repo.Delete(a.Name); err != nil {
			slog.Error("Failed to delete expiry record", "error", err, "name", a.Name)
		}
		removed++
	}

	tracked, err := s.repo.Names()
	if err != nil {
		return removed, fmt.Errorf("failed to list tracked artifacts: %w", err)
	}
	entries, err := s.store.Entries()
	if err != nil {
		return removed, fmt.Errorf("failed to list store: %w", err)
	}
	for _, e := range entries {
		if _, ok := tracked[e.Name]; ok || !managedName.MatchString(e.Name) {
			continue
		}
		if now.Sub(e.ModTime) < s.ttl {
			continue
		}
		if err := s.store.Remove(e.Path); err != nil {
			slog.Error("Failed to remove orphaned file", "error", err, "path", e.Path)
			continue
		}
		removed++
	}

	return removed, nil
}

// RunSweeper sweeps immediately and then every interval until ctx is done
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := s.Sweep(ctx)
		if err != nil {
			slog.Error("Sweep failed", "error", err)
		} else if n > 0 {
			slog.Info("Sweep removed expired files", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
