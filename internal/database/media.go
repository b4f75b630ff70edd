package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"time"
	"unicode/utf8"

	"media-curator/internal/mediatypes"
)

const mediaColumns = `path, name, parent_path, size, last_modified, date_taken, type, favorite, deleted_ts, state`

const upsertMediaSQL = `
	INSERT OR REPLACE INTO media (` + mediaColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func scanMedia(row interface{ Scan(...any) error }) (Media, error) {
	var m Media
	var typ int
	var state string
	err := row.Scan(&m.Path, &m.Name, &m.ParentPath, &m.Size, &m.LastModified,
		&m.DateTaken, &typ, &m.Favorite, &m.DeletedTimestamp, &state)
	m.Type = mediatypes.Mask(typ)
	m.State = MediaState(state)
	return m, err
}

// mediaArgs derives State from the key so the two never disagree.
func (d *Database) mediaArgs(m *Media) []any {
	m.State = d.stateForPath(m.Path)
	return []any{m.Path, m.Name, m.ParentPath, m.Size, m.LastModified,
		m.DateTaken, int(m.Type), m.Favorite, m.DeletedTimestamp, string(m.State)}
}

func (d *Database) queryMedia(ctx context.Context, query string, args ...any) ([]Media, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Media{}
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// UpsertMedia inserts m, replacing any row with the same path.
func (d *Database) UpsertMedia(ctx context.Context, m *Media) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_media", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, upsertMediaSQL, d.mediaArgs(m)...)
	if err == nil {
		recordRows("upsert_media", result)
	}
	return err
}

// UpsertMediaBatch replaces all given rows in a single transaction.
func (d *Database) UpsertMediaBatch(ctx context.Context, items []Media) error {
	if len(items) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_media_batch", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	// Rescans can write many thousands of rows.
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertMediaSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range items {
			if _, err := stmt.ExecContext(ctx, d.mediaArgs(&items[i])...); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		observeRows("upsert_media_batch", int64(len(items)))
	}
	return err
}

// GetMedia returns the row keyed by path. Returns ErrNotFound if absent.
func (d *Database) GetMedia(ctx context.Context, path string) (*Media, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_media", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE path = ?`, path)
	m, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMediaInDirectory returns the active media whose parent is dir.
func (d *Database) GetMediaInDirectory(ctx context.Context, dir string) ([]Media, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_media_in_directory", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	items, err := d.queryMedia(ctx,
		`SELECT `+mediaColumns+` FROM media WHERE parent_path = ? AND state = 'active' ORDER BY name`, dir)
	return items, err
}

// GetTrashedMedia returns every media row in the recycle bin, newest first.
func (d *Database) GetTrashedMedia(ctx context.Context) ([]Media, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_trashed_media", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	items, err := d.queryMedia(ctx,
		`SELECT `+mediaColumns+` FROM media WHERE state = 'trashed' ORDER BY deleted_ts DESC, path`)
	return items, err
}

// GetAllMedia returns every media row, active and trashed.
func (d *Database) GetAllMedia(ctx context.Context) ([]Media, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_all_media", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	items, err := d.queryMedia(ctx, `SELECT `+mediaColumns+` FROM media ORDER BY path`)
	return items, err
}

// DeleteMediaBatch removes the rows keyed by paths in a single transaction
// and returns the number of rows removed.
func (d *Database) DeleteMediaBatch(ctx context.Context, paths []string) (int64, error) {
	if len(paths) == 0 {
		return 0, nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("delete_media_batch", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var total int64
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM media WHERE path = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range paths {
			result, err := stmt.ExecContext(ctx, p)
			if err != nil {
				return err
			}
			if n, err := result.RowsAffected(); err == nil {
				total += n
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	observeRows("delete_media_batch", total)
	return total, nil
}

// DeleteMedia removes the row keyed by path.
func (d *Database) DeleteMedia(ctx context.Context, path string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_media", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, `DELETE FROM media WHERE path = ?`, path)
	if err == nil {
		recordRows("delete_media", result)
	}
	return err
}

// UpdateDeletedFlag rekeys the row at oldPath to newPath and sets its
// deleted timestamp. The state column follows the prefix of newPath. An
// existing row at newPath is replaced. Returns the number of rows changed.
func (d *Database) UpdateDeletedFlag(ctx context.Context, newPath string, deletedTimestamp int64, oldPath string) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_deleted_flag", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, `
		UPDATE OR REPLACE media SET path = ?, deleted_ts = ?, state = ?
		WHERE path = ?
	`, newPath, deletedTimestamp, string(d.stateForPath(newPath)), oldPath)
	if err != nil {
		return 0, err
	}
	return recordRows("update_deleted_flag", result), nil
}

// UpdateMediaPath rekeys a renamed or moved file, rewriting its name and
// parent. Returns the number of rows changed.
func (d *Database) UpdateMediaPath(ctx context.Context, oldPath, newPath string) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_media_path", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, `
		UPDATE OR REPLACE media SET path = ?, name = ?, parent_path = ?, state = ?
		WHERE path = ?
	`, newPath, filepath.Base(newPath), filepath.Dir(newPath), string(d.stateForPath(newPath)), oldPath)
	if err != nil {
		return 0, err
	}
	return recordRows("update_media_path", result), nil
}

// RenameMediaTree rewrites every active row at or below oldDir so that it
// lives under newDir instead.
func (d *Database) RenameMediaTree(ctx context.Context, oldDir, newDir string) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("rename_media_tree", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oldDir = filepath.Clean(oldDir)
	newDir = filepath.Clean(newDir)
	n := utf8.RuneCountInString(oldDir)

	result, err := d.db.ExecContext(ctx, `
		UPDATE OR REPLACE media
		SET path = ? || substr(path, ?),
			parent_path = ? || substr(parent_path, ?)
		WHERE substr(path, 1, ?) = ? COLLATE NOCASE
	`, newDir, n+1, newDir, n+1, n+1, oldDir+"/")
	if err != nil {
		return 0, err
	}
	return recordRows("rename_media_tree", result), nil
}

// UpdateFavoriteDateTaken sets the date taken of a row whether or not it is
// a favorite.
func (d *Database) UpdateFavoriteDateTaken(ctx context.Context, path string, dateTaken int64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_favorite_date_taken", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `UPDATE media SET date_taken = ? WHERE path = ?`, dateTaken, path)
	return err
}

// UpdateLastModified sets the last-modified time of a row.
func (d *Database) UpdateLastModified(ctx context.Context, path string, lastModified int64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_last_modified", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `UPDATE media SET last_modified = ? WHERE path = ?`, lastModified, path)
	return err
}

// SetFavorite marks or unmarks path as a favorite. Returns ErrNotFound if
// path has no row.
func (d *Database) SetFavorite(ctx context.Context, path string, favorite bool) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_favorite", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, `UPDATE media SET favorite = ? WHERE path = ?`, favorite, path)
	if err != nil {
		return err
	}
	if recordRows("set_favorite", result) == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearRecycleBin deletes every trashed media row and returns how many were removed.
func (d *Database) ClearRecycleBin(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("clear_recycle_bin", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx,
		`DELETE FROM media WHERE state = 'trashed' OR substr(path, 1, ?) = ?`,
		utf8.RuneCountInString(d.prefix), d.prefix)
	if err != nil {
		return 0, err
	}
	return recordRows("clear_recycle_bin", result), nil
}
