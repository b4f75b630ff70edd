package contentindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-curator/internal/logging"
)

// MaxBatchSize is the largest batch ApplyBatch accepts.
const MaxBatchSize = 50

const defaultTimeout = 10 * time.Second

// ErrBatchTooLarge is returned for batches above MaxBatchSize.
var ErrBatchTooLarge = fmt.Errorf("batch exceeds %d updates", MaxBatchSize)

// Update sets the date taken, in epoch milliseconds, of one path.
type Update struct {
	Path      string
	DateTaken int64
}

// Index is the platform media index that holds date-taken values.
type Index interface {
	// ApplyBatch applies all updates and returns how many rows matched.
	ApplyBatch(ctx context.Context, updates []Update) (int, error)
}

// SQLiteIndex is an Index stored in its own SQLite database.
type SQLiteIndex struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLite opens or creates the content index at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteIndex, error) {
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open content index: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS content (
			path TEXT PRIMARY KEY COLLATE NOCASE,
			date_taken INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close content index after schema failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize content index: %w", err)
	}

	logging.Info("Content index opened at %s", path)
	return &SQLiteIndex{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

// Register ensures path has a row so later updates can match it.
func (s *SQLiteIndex) Register(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO content (path) VALUES (?)`, path)
	return err
}

// DateTaken returns the stored date taken of path.
func (s *SQLiteIndex) DateTaken(ctx context.Context, path string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var ts int64
	err := s.db.QueryRowContext(ctx, `SELECT date_taken FROM content WHERE path = ?`, path).Scan(&ts)
	return ts, err
}

// ApplyBatch updates every path in one transaction. Paths without a row do
// not count towards the result.
func (s *SQLiteIndex) ApplyBatch(ctx context.Context, updates []Update) (int, error) {
	if len(updates) > MaxBatchSize {
		return 0, ErrBatchTooLarge
	}
	if len(updates) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	applied, err := applyInTx(ctx, tx, updates)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return 0, errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	logging.Debug("Content index applied %d/%d date updates", applied, len(updates))
	return applied, nil
}

func applyInTx(ctx context.Context, tx *sql.Tx, updates []Update) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `UPDATE content SET date_taken = ? WHERE path = ?`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	applied := 0
	for _, u := range updates {
		res, err := stmt.ExecContext(ctx, u.DateTaken, u.Path)
		if err != nil {
			return 0, fmt.Errorf("update %s: %w", u.Path, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			applied += int(n)
		}
	}
	return applied, nil
}
