package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-fokin/doc-utils/internal/documents"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepository(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now()

	artifacts := []*documents.Artifact{
		{Name: "merged-1.pdf", Path: "/data/merged-1.pdf", Kind: documents.KindMergedOutput, Size: 10, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)},
		{Name: "split-page-1-2.pdf", Path: "/data/split-page-1-2.pdf", Kind: documents.KindSplitPage, Size: 5, CreatedAt: now, ExpiresAt: now},
		{Name: "pdf-3.pdf", Path: "/data/pdf-3.pdf", Kind: documents.KindSplitInput, Size: 20, CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
	}
	for _, a := range artifacts {
		require.NoError(t, repo.Create(a))
	}

	t.Run("list expired", func(t *testing.T) {
		expired, err := repo.ListExpired(now)
		require.NoError(t, err)
		require.Len(t, expired, 2)

		assert.Equal(t, "merged-1.pdf", expired[0].Name)
		assert.Equal(t, "/data/merged-1.pdf", expired[0].Path)
		assert.Equal(t, documents.KindMergedOutput, expired[0].Kind)
		assert.Equal(t, int64(10), expired[0].Size)
		assert.True(t, artifacts[0].ExpiresAt.Equal(expired[0].ExpiresAt))
		assert.Equal(t, "split-page-1-2.pdf", expired[1].Name)
	})

	t.Run("names", func(t *testing.T) {
		names, err := repo.Names()
		require.NoError(t, err)
		assert.Len(t, names, 3)
		assert.Contains(t, names, "pdf-3.pdf")
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete("merged-1.pdf"))
		assert.ErrorIs(t, repo.Delete("merged-1.pdf"), documents.ErrNotFound)

		expired, err := repo.ListExpired(now)
		require.NoError(t, err)
		require.Len(t, expired, 1)
	})

	t.Run("create replaces", func(t *testing.T) {
		updated := *artifacts[2]
		updated.ExpiresAt = now.Add(-time.Minute)
		require.NoError(t, repo.Create(&updated))

		expired, err := repo.ListExpired(now)
		require.NoError(t, err)
		assert.Len(t, expired, 2)
	})
}

func TestRepositorySurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	repo, err := NewRepository(dbPath)
	require.NoError(t, err)
	require.NoError(t, repo.Create(&documents.Artifact{
		Name:      "merged-1.pdf",
		Path:      "/data/merged-1.pdf",
		Kind:      documents.KindMergedOutput,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, repo.Close())

	repo, err = NewRepository(dbPath)
	require.NoError(t, err)
	defer repo.Close()

	names, err := repo.Names()
	require.NoError(t, err)
	assert.Contains(t, names, "merged-1.pdf")
}
