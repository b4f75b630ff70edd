package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-sqlite3"

	"media-curator/internal/logging"
	"media-curator/internal/metrics"
	"media-curator/internal/trashpath"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// noMmapDriver is a sqlite3 driver that disables memory-mapped I/O on every
// new connection. A database on a network share can raise SIGBUS when the
// mapped file shrinks underneath the process.
const noMmapDriver = "sqlite3_nommap"

var registerNoMmap sync.Once

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Options controls how the database is opened. A nil *Options selects the
// defaults.
type Options struct {
	// MmapDisabled turns off memory-mapped I/O for every connection.
	MmapDisabled bool
	// TrashPrefix is the key prefix of trashed media rows.
	TrashPrefix string
	// SentinelPath is the directory key reserved for the recycle bin.
	SentinelPath string
}

// OpenInfo describes how the database was opened.
type OpenInfo struct {
	MmapStatus string
}

// Database is the persistent index of directories and media.
type Database struct {
	db       *sql.DB
	dbPath   string
	mu       sync.RWMutex
	prefix   string
	sentinel string
}

// New creates a new Database instance.
// IMPORTANT: dbPath should be the full path to the database FILE (e.g., "/database/curator.db"),
// and the parent directory must already exist and be writable.
// Use startup.LoadConfig() to ensure proper directory validation before calling this.
func New(ctx context.Context, dbPath string, opts *Options) (*Database, OpenInfo, error) {
	if opts == nil {
		opts = &Options{}
	}
	info := OpenInfo{MmapStatus: "mmap enabled (standard mode)"}

	logging.Info("Database path: %s", dbPath)

	// Diagnose potential permission issues
	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	driverName := "sqlite3"
	if opts.MmapDisabled {
		registerNoMmap.Do(func() {
			sql.Register(noMmapDriver, &sqlite3.SQLiteDriver{
				ConnectHook: func(conn *sqlite3.SQLiteConn) error {
					_, err := conn.Exec("PRAGMA mmap_size = 0", nil)
					return err
				},
			})
		})
		driverName = noMmapDriver
		info.MmapStatus = "mmap disabled (SIGBUS protection active)"
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return nil, info, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, info, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:       db,
		dbPath:   dbPath,
		prefix:   opts.TrashPrefix,
		sentinel: opts.SentinelPath,
	}
	if d.prefix == "" {
		d.prefix = trashpath.DefaultPrefix
	}
	if d.sentinel == "" {
		d.sentinel = trashpath.SentinelPath
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, info, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s (%s)", dbPath, info.MmapStatus)
	return d, info, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS directories (
		path TEXT PRIMARY KEY COLLATE NOCASE,
		thumbnail TEXT NOT NULL DEFAULT '',
		filename TEXT NOT NULL DEFAULT '',
		media_count INTEGER NOT NULL DEFAULT 0,
		last_modified INTEGER NOT NULL DEFAULT 0,
		date_taken INTEGER NOT NULL DEFAULT 0,
		size INTEGER NOT NULL DEFAULT 0,
		location INTEGER NOT NULL DEFAULT 0,
		media_types INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS media (
		path TEXT PRIMARY KEY COLLATE NOCASE,
		name TEXT NOT NULL,
		parent_path TEXT NOT NULL COLLATE NOCASE,
		size INTEGER NOT NULL DEFAULT 0,
		last_modified INTEGER NOT NULL DEFAULT 0,
		date_taken INTEGER NOT NULL DEFAULT 0,
		type INTEGER NOT NULL DEFAULT 0,
		favorite INTEGER NOT NULL DEFAULT 0,
		deleted_ts INTEGER NOT NULL DEFAULT 0,
		state TEXT NOT NULL DEFAULT 'active' CHECK (state IN ('active', 'trashed'))
	);

	CREATE INDEX IF NOT EXISTS idx_media_parent_path ON media(parent_path);
	CREATE INDEX IF NOT EXISTS idx_media_state ON media(state);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return d.runMigrations(ctx)
}

// runMigrations applies database schema migrations
func (d *Database) runMigrations(ctx context.Context) error {
	// Migration 1: older indexes encoded trash state only in the key prefix.
	// Derive the explicit state column for any row that disagrees.
	result, err := d.db.ExecContext(ctx, `
		UPDATE media SET state = CASE
			WHEN substr(path, 1, ?) = ? THEN 'trashed'
			ELSE 'active'
		END
		WHERE state != CASE
			WHEN substr(path, 1, ?) = ? THEN 'trashed'
			ELSE 'active'
		END
	`, utf8.RuneCountInString(d.prefix), d.prefix, utf8.RuneCountInString(d.prefix), d.prefix)
	if err != nil {
		return fmt.Errorf("failed to reconcile media state column: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows > 0 {
		logging.Info("Migration complete: reconciled state for %d media rows", rows)
	}
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// TrashPrefix returns the key prefix of trashed media rows.
func (d *Database) TrashPrefix() string {
	return d.prefix
}

// stateForPath derives the media state from its key.
func (d *Database) stateForPath(path string) MediaState {
	if len(path) >= len(d.prefix) && path[:len(d.prefix)] == d.prefix {
		return StateTrashed
	}
	return StateActive
}

// withTx runs fn in a transaction, rolling back on error.
func (d *Database) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}
	return tx.Commit()
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

func recordRows(operation string, result sql.Result) int64 {
	rows, err := result.RowsAffected()
	if err != nil {
		return 0
	}
	observeRows(operation, rows)
	return rows
}

func observeRows(operation string, rows int64) {
	metrics.DBRowsAffected.WithLabelValues(operation).Observe(float64(rows))
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)
	logging.Debug("Database directory is writable")

	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", p, fi.Mode(), fi.Size())
		if fi.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("%s is read-only! Mode: %v - this will cause write failures", p, fi.Mode())
		if p == dbPath {
			continue
		}
		if chmodErr := os.Chmod(p, 0o600); chmodErr != nil {
			logging.Error("Failed to fix permissions on %s: %v", p, chmodErr)
		} else {
			logging.Info("Fixed permissions on %s", p)
		}
	}

	return nil
}
