package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"media-curator/internal/mediatypes"
)

const directoryColumns = `path, thumbnail, filename, media_count, last_modified, date_taken, size, location, media_types`

const upsertDirectorySQL = `
	INSERT OR REPLACE INTO directories (` + directoryColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func scanDirectory(row interface{ Scan(...any) error }) (Directory, error) {
	var dir Directory
	var types int
	err := row.Scan(&dir.Path, &dir.Thumbnail, &dir.Filename, &dir.MediaCount,
		&dir.LastModified, &dir.DateTaken, &dir.Size, &dir.Location, &types)
	dir.MediaTypes = mediatypes.Mask(types)
	return dir, err
}

func directoryArgs(dir *Directory) []any {
	return []any{dir.Path, dir.Thumbnail, dir.Filename, dir.MediaCount,
		dir.LastModified, dir.DateTaken, dir.Size, dir.Location, int(dir.MediaTypes)}
}

// GetAllDirectories returns every directory row in insertion order.
func (d *Database) GetAllDirectories(ctx context.Context) ([]Directory, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_all_directories", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `SELECT `+directoryColumns+` FROM directories ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dirs := []Directory{}
	for rows.Next() {
		var dir Directory
		dir, err = scanDirectory(rows)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, dir)
	}
	err = rows.Err()
	return dirs, err
}

// GetDirectory returns the directory row for path. Returns ErrNotFound if absent.
func (d *Database) GetDirectory(ctx context.Context, path string) (*Directory, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_directory", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `SELECT `+directoryColumns+` FROM directories WHERE path = ?`, path)
	dir, err := scanDirectory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dir, nil
}

// UpsertDirectory inserts dir, replacing any row with the same path.
func (d *Database) UpsertDirectory(ctx context.Context, dir *Directory) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_directory", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, upsertDirectorySQL, directoryArgs(dir)...)
	if err == nil {
		recordRows("upsert_directory", result)
	}
	return err
}

// UpsertDirectories replaces all given rows in a single transaction.
func (d *Database) UpsertDirectories(ctx context.Context, dirs []Directory) error {
	if len(dirs) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_directories", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertDirectorySQL)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range dirs {
			if _, err := stmt.ExecContext(ctx, directoryArgs(&dirs[i])...); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		observeRows("upsert_directories", int64(len(dirs)))
	}
	return err
}

// DeleteDirectory removes the row for path. Deleting an absent row is not an error.
func (d *Database) DeleteDirectory(ctx context.Context, path string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_directory", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, `DELETE FROM directories WHERE path = ?`, path)
	if err == nil {
		recordRows("delete_directory", result)
	}
	return err
}

// UpdateDirectoryStats rewrites the aggregate columns of an existing row and
// returns the number of rows changed. A missing row changes nothing.
func (d *Database) UpdateDirectoryStats(ctx context.Context, path, thumbnail string, mediaCount int,
	lastModified, dateTaken, size int64, types mediatypes.Mask,
) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_directory_stats", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, `
		UPDATE OR REPLACE directories
		SET thumbnail = ?, media_count = ?, last_modified = ?, date_taken = ?, size = ?, media_types = ?
		WHERE path = ?
	`, thumbnail, mediaCount, lastModified, dateTaken, size, int(types), path)
	if err != nil {
		return 0, err
	}
	return recordRows("update_directory_stats", result), nil
}

// RenameDirectory moves the row at oldPath to newPath. An existing row at
// newPath is replaced.
func (d *Database) RenameDirectory(ctx context.Context, oldPath, newPath, thumbnail, filename string) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("rename_directory", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, `
		UPDATE OR REPLACE directories SET path = ?, thumbnail = ?, filename = ?
		WHERE path = ?
	`, newPath, thumbnail, filename, oldPath)
	if err != nil {
		return 0, err
	}
	return recordRows("rename_directory", result), nil
}

// DeleteRecycleBinRow removes the sentinel directory row.
func (d *Database) DeleteRecycleBinRow(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_recycle_bin_row", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `DELETE FROM directories WHERE path = ?`, d.sentinel)
	return err
}

// SentinelPath returns the directory key reserved for the recycle bin.
func (d *Database) SentinelPath() string {
	return d.sentinel
}
