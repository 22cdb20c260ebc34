package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pavel-fokin/doc-utils/internal/documents"
	_ "modernc.org/sqlite"
)

// Repository implements documents.Repository using SQLite
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite repository
func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single writer connection, otherwise concurrent inserts fail with SQLITE_BUSY
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}

	// Initialize database schema
	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// initSchema creates the necessary database tables
func (r *Repository) initSchema() error {
	createTableQuery := `
	CREATE TABLE IF NOT EXISTS artifacts (
		name TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		kind TEXT NOT NULL,
		size INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);`
	if _, err := r.db.Exec(createTableQuery); err != nil {
		return fmt.Errorf("failed to create artifacts table: %w", err)
	}

	createIndexesQuery := `
	CREATE INDEX IF NOT EXISTS idx_artifacts_expires_at ON artifacts(expires_at);
	`
	if _, err := r.db.Exec(createIndexesQuery); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// Create stores an expiry record, replacing any record with the same name
func (r *Repository) Create(artifact *documents.Artifact) error {
	query := `
	INSERT OR REPLACE INTO artifacts (name, path, kind, size, created_at, expires_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		artifact.Name,
		artifact.Path,
		artifact.Kind,
		artifact.Size,
		artifact.CreatedAt.UnixNano(),
		artifact.ExpiresAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to create artifact record: %w", err)
	}

	return nil
}

// ListExpired retrieves records whose expiry is at or before now
func (r *Repository) ListExpired(now time.Time) ([]*documents.Artifact, error) {
	query := `
	SELECT name, path, kind, size, created_at, expires_at
	FROM artifacts
	WHERE expires_at <= ?
	ORDER BY expires_at ASC
	`

	rows, err := r.db.Query(query, now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*documents.Artifact
	for rows.Next() {
		var a documents.Artifact
		var createdAt, expiresAt int64
		if err := rows.Scan(&a.Name, &a.Path, &a.Kind, &a.Size, &createdAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact row: %w", err)
		}
		a.CreatedAt = time.Unix(0, createdAt)
		a.ExpiresAt = time.Unix(0, expiresAt)
		artifacts = append(artifacts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artifact rows: %w", err)
	}

	return artifacts, nil
}

// Names returns the names of all tracked artifacts
func (r *Repository) Names() (map[string]struct{}, error) {
	rows, err := r.db.Query(`SELECT name FROM artifacts`)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifact names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan artifact name: %w", err)
		}
		names[name] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artifact names: %w", err)
	}

	return names, nil
}

// Delete removes an expiry record by name
func (r *Repository) Delete(name string) error {
	result, err := r.db.Exec(`DELETE FROM artifacts WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete artifact record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return documents.ErrNotFound
	}

	return nil
}
