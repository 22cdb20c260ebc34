package fs

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-fokin/doc-utils/internal/documents"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return s
}

func TestNewStorageIsIdempotent(t *testing.T) {
	root := filepath.Join(t.TempDir(), "a", "b")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = NewStorage(root)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.DirExists(t, root)
}

func TestStage(t *testing.T) {
	s := newTestStorage(t)

	file, err := s.Stage("pdfs", "Report.PDF", "application/pdf", strings.NewReader("content"), 100)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(file.Name, "pdfs-"))
	assert.Equal(t, ".PDF", filepath.Ext(file.Name))
	assert.Equal(t, filepath.Join(s.Root(), file.Name), file.Path)
	assert.Equal(t, int64(7), file.Size)
	assert.Equal(t, "application/pdf", file.MimeType)
	assert.Equal(t, "Report.PDF", file.OriginalName)

	data, err := os.ReadFile(file.Path)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestStageNamesAreUnique(t *testing.T) {
	s := newTestStorage(t)

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			file, err := s.Stage("file", "a.png", "image/png", strings.NewReader("x"), 10)
			assert.NoError(t, err)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[file.Name], "duplicate name %s", file.Name)
			seen[file.Name] = true
		}()
	}
	wg.Wait()

	entries, err := s.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 50)
}

func TestStageDropsUnsafeExtensions(t *testing.T) {
	s := newTestStorage(t)

	for _, name := range []string{"noext", "weird.p\\df", "long.abcdefghijklmnop", "dots."} {
		file, err := s.Stage("file", name, "image/png", strings.NewReader("x"), 10)
		require.NoError(t, err)
		assert.Empty(t, filepath.Ext(file.Name), name)
	}
}

func TestStageTooLarge(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.Stage("file", "big.png", "image/png", strings.NewReader("0123456789x"), 10)
	assert.ErrorIs(t, err, documents.ErrTooLarge)

	entries, err := s.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}

func TestStageWriteFailureLeavesNothing(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.Stage("file", "a.png", "image/png", failingReader{}, 10)
	require.Error(t, err)

	entries, err := s.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWrite(t *testing.T) {
	s := newTestStorage(t)

	file, err := s.Write("split-page-3", ".pdf", []byte("page"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(file.Name, "split-page-3-"))
	assert.Equal(t, int64(4), file.Size)
	assert.Equal(t, "/uploads/"+file.Name, file.URL)

	data, err := s.Read(file.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte("page"), data)
}

func TestResolve(t *testing.T) {
	s := newTestStorage(t)

	inside, err := s.Write("merged", ".pdf", []byte("pdf"))
	require.NoError(t, err)

	outsideDir := t.TempDir()
	secret := filepath.Join(outsideDir, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("secret"), 0644))

	require.NoError(t, os.Symlink(secret, filepath.Join(s.Root(), "link.txt")))
	require.NoError(t, os.Symlink(filepath.Join(outsideDir, "gone.txt"), filepath.Join(s.Root(), "dangling.txt")))
	require.NoError(t, os.Symlink("../../elsewhere/gone.txt", filepath.Join(s.Root(), "dangling-rel.txt")))
	require.NoError(t, os.Symlink("missing-target.pdf", filepath.Join(s.Root(), "dangling-inside.pdf")))
	require.NoError(t, os.Mkdir(filepath.Join(s.Root(), "sub"), 0755))

	tests := []struct {
		name string
		path string
		want error
	}{
		{name: "file inside", path: inside.Path, want: nil},
		{name: "dot segments staying inside", path: filepath.Join(s.Root(), "sub", "..", inside.Name), want: nil},
		{name: "relative traversal", path: "../../etc/passwd", want: documents.ErrForbidden},
		{name: "traversal from root", path: s.Root() + "/../../etc/passwd", want: documents.ErrForbidden},
		{name: "absolute elsewhere", path: secret, want: documents.ErrForbidden},
		{name: "prefix sibling", path: s.Root() + "-evil/file.pdf", want: documents.ErrForbidden},
		{name: "root itself", path: s.Root(), want: documents.ErrForbidden},
		{name: "empty", path: "", want: documents.ErrForbidden},
		{name: "symlink escaping root", path: filepath.Join(s.Root(), "link.txt"), want: documents.ErrForbidden},
		{name: "dangling symlink escaping root", path: filepath.Join(s.Root(), "dangling.txt"), want: documents.ErrForbidden},
		{name: "dangling relative symlink escaping root", path: filepath.Join(s.Root(), "dangling-rel.txt"), want: documents.ErrForbidden},
		{name: "dangling symlink inside", path: filepath.Join(s.Root(), "dangling-inside.pdf"), want: documents.ErrNotFound},
		{name: "missing inside", path: filepath.Join(s.Root(), "missing.pdf"), want: documents.ErrNotFound},
		{name: "directory inside", path: filepath.Join(s.Root(), "sub"), want: documents.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := s.Resolve(tt.path)
			if tt.want == nil {
				require.NoError(t, err)
				assert.Equal(t, inside.Path, resolved)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpen(t *testing.T) {
	s := newTestStorage(t)

	file, err := s.Write("merged", ".pdf", []byte("merged content"))
	require.NoError(t, err)

	dl, err := s.Open(file.Path)
	require.NoError(t, err)
	defer dl.Content.Close()

	assert.Equal(t, file.Name, dl.Name)
	assert.Equal(t, int64(14), dl.Size)

	var buf bytes.Buffer
	_, err = io.Copy(&buf, dl.Content)
	require.NoError(t, err)
	assert.Equal(t, "merged content", buf.String())
}

func TestRemove(t *testing.T) {
	s := newTestStorage(t)

	file, err := s.Write("merged", ".pdf", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(file.Path))
	assert.NoFileExists(t, file.Path)

	// Already gone
	assert.NoError(t, s.Remove(file.Path))

	outside := filepath.Join(t.TempDir(), "keep.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0644))
	assert.ErrorIs(t, s.Remove(outside), documents.ErrForbidden)
	assert.FileExists(t, outside)
}

func TestEntriesSkipsDirectories(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.Write("merged", ".pdf", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(s.Root(), "nested"), 0755))

	entries, err := s.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name, "merged-"))
}
