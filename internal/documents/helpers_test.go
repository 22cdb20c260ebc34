package documents_test

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pavel-fokin/doc-utils/internal/documents"
	"github.com/pavel-fokin/doc-utils/internal/documents/documentstest"
	"github.com/pavel-fokin/doc-utils/internal/fs"
	"github.com/pavel-fokin/doc-utils/internal/sqlite"
)

const testTTL = time.Hour

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	svc        *documents.Service
	store      *fs.Storage
	repo       *sqlite.Repository
	engine     *documentstest.PDFEngine
	recognizer *documentstest.Recognizer
	mirror     *documentstest.Mirror
	clock      *clock
}

func newTestEnv(t *testing.T, opts ...documents.Option) *testEnv {
	t.Helper()

	store, err := fs.NewStorage(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	repo, err := sqlite.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	e := &testEnv{
		store:      store,
		repo:       repo,
		engine:     &documentstest.PDFEngine{},
		recognizer: &documentstest.Recognizer{},
		mirror:     &documentstest.Mirror{},
		clock:      &clock{now: time.Now()},
	}

	all := []documents.Option{
		documents.WithTTL(testTTL),
		documents.WithClock(e.clock.Now),
		documents.WithMirror(e.mirror),
	}
	e.svc = documents.NewService(store, repo, e.recognizer, e.engine, append(all, opts...)...)
	return e
}

func (e *testEnv) stage(t *testing.T, field, name, mimeType string, data []byte) *documents.StagedFile {
	t.Helper()
	f, err := e.svc.Stage(field, name, mimeType, bytes.NewReader(data), 1<<20)
	require.NoError(t, err)
	return f
}

// files returns the sorted names of files in the store
func (e *testEnv) files(t *testing.T) []string {
	t.Helper()
	entries, err := e.store.Entries()
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	sort.Strings(names)
	return names
}

func (e *testEnv) readPages(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := e.engine.Parse(data)
	require.NoError(t, err)
	return doc.(*documentstest.Document).Pages
}
