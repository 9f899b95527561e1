// Package ledger is the durable source of ingestion idempotency: a
// (path, fingerprint) pair marked ingested is never processed again. The
// ledger survives restarts and is never rebuilt from the vector store.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/opsgrep/lograg/internal/domain"
)

// Store is a SQLite-backed ingestion ledger.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the ledger database under dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "ledger.db")

	// WAL mode: parallel file workers write their own rows concurrently.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ingestions (
			path        TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			size        INTEGER NOT NULL,
			mtime       DATETIME,
			status      TEXT NOT NULL,
			last_error  TEXT,
			updated_at  DATETIME NOT NULL,
			PRIMARY KEY (path, fingerprint)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ingestions table: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// IsIngested reports whether (path, fingerprint) is marked ingested.
func (s *Store) IsIngested(ctx context.Context, path, fingerprint string) (bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT status FROM ingestions WHERE path = ? AND fingerprint = ?
	`, path, fingerprint).Scan(&status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying ledger: %w", err)
	}
	return domain.IngestStatus(status) == domain.StatusIngested, nil
}

// MarkIngested records a successful ingestion. This must be the last step of
// the per-file pipeline: vectors are written before the ledger mark.
func (s *Store) MarkIngested(ctx context.Context, file domain.FileRecord) error {
	return s.upsert(ctx, file, domain.StatusIngested, "")
}

// MarkFailed records a failed ingestion so the next run retries the file in full.
func (s *Store) MarkFailed(ctx context.Context, file domain.FileRecord, reason string) error {
	return s.upsert(ctx, file, domain.StatusFailed, reason)
}

func (s *Store) upsert(ctx context.Context, file domain.FileRecord, status domain.IngestStatus, lastErr string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingestions (path, fingerprint, size, mtime, status, last_error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, fingerprint) DO UPDATE SET
			size = excluded.size,
			mtime = excluded.mtime,
			status = excluded.status,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at
	`, file.Path, file.Fingerprint, file.Size, file.ModTime, string(status), lastErr, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving ledger entry: %w", err)
	}
	return nil
}

// Get retrieves the ledger entry for (path, fingerprint).
func (s *Store) Get(ctx context.Context, path, fingerprint string) (domain.FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT path, fingerprint, size, mtime, status, last_error
		FROM ingestions WHERE path = ? AND fingerprint = ?
	`, path, fingerprint)

	var rec domain.FileRecord
	var status string
	var lastErr sql.NullString
	var mtime sql.NullTime
	if err := row.Scan(&rec.Path, &rec.Fingerprint, &rec.Size, &mtime, &status, &lastErr); err != nil {
		if err == sql.ErrNoRows {
			return domain.FileRecord{}, domain.ErrNotFound
		}
		return domain.FileRecord{}, fmt.Errorf("scanning ledger entry: %w", err)
	}
	rec.Status = domain.IngestStatus(status)
	rec.LastError = lastErr.String
	if mtime.Valid {
		rec.ModTime = mtime.Time
	}
	return rec, nil
}

// ListPending filters candidates down to files not yet marked ingested.
// Known failed entries keep their recorded status and last error.
func (s *Store) ListPending(ctx context.Context, candidates []domain.FileRecord) ([]domain.FileRecord, error) {
	pending := make([]domain.FileRecord, 0, len(candidates))
	for _, c := range candidates {
		known, err := s.Get(ctx, c.Path, c.Fingerprint)
		if err != nil {
			if err == domain.ErrNotFound {
				c.Status = domain.StatusPending
				pending = append(pending, c)
				continue
			}
			return nil, err
		}
		if known.Status == domain.StatusIngested {
			continue
		}
		c.Status = known.Status
		c.LastError = known.LastError
		pending = append(pending, c)
	}
	return pending, nil
}

// Reset drops all ledger entries. Explicit operation only; the ledger is
// never cleared implicitly.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM ingestions"); err != nil {
		return fmt.Errorf("resetting ledger: %w", err)
	}
	return nil
}
