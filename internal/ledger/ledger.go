// Package ledger records pipeline runs (seal, unseal, push, pull) in a
// local sqlite database so operators can trace which local files map to
// which sealed objects.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Record is one pipeline run.
type Record struct {
	ID        int64
	Op        string // seal | unseal | push | pull
	LocalPath string
	Bucket    string
	Key       string
	SizeBytes int64
	CreatedAt time.Time
}

// Ledger wraps the sqlite database. Safe for concurrent use; sqlite
// serializes writers internally.
type Ledger struct {
	db *sql.DB
}

// Open opens (and if needed creates) the ledger database at path.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database %s: %w", path, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS pipeline_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			op TEXT NOT NULL,
			local_path TEXT NOT NULL,
			bucket TEXT NOT NULL DEFAULT '',
			object_key TEXT NOT NULL DEFAULT '',
			size_bytes INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error { return l.db.Close() }

// Append records a pipeline run. CreatedAt defaults to now when zero.
func (l *Ledger) Append(ctx context.Context, r Record) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (op, local_path, bucket, object_key, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.Op, r.LocalPath, r.Bucket, r.Key, r.SizeBytes, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record pipeline run: %w", err)
	}
	return nil
}

// Recent returns the latest n runs, newest first.
func (l *Ledger) Recent(ctx context.Context, n int) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, op, local_path, bucket, object_key, size_bytes, created_at
		FROM pipeline_runs
		ORDER BY id DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Op, &r.LocalPath, &r.Bucket, &r.Key, &r.SizeBytes, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pipeline run: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
