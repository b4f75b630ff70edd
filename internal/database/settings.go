package database

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"
)

// Setting keys
const (
	SettingUseRecycleBin    = "use_recycle_bin"
	SettingKeepLastModified = "keep_last_modified"
)

// GetSetting retrieves a setting value by key.
// Returns ErrNotFound if the key doesn't exist.
func (d *Database) GetSetting(ctx context.Context, key string) (string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_setting", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value sql.NullString
	err = d.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value.String, nil
}

// SetSetting sets a setting key-value pair.
func (d *Database) SetSetting(ctx context.Context, key, value string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_setting", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetBoolSetting returns a boolean setting, or def when it has never been set.
func (d *Database) GetBoolSetting(ctx context.Context, key string, def bool) (bool, error) {
	value, err := d.GetSetting(ctx, key)
	if errors.Is(err, ErrNotFound) || (err == nil && value == "") {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return def, err
	}
	return b, nil
}

// SetBoolSetting stores a boolean setting.
func (d *Database) SetBoolSetting(ctx context.Context, key string, value bool) error {
	return d.SetSetting(ctx, key, strconv.FormatBool(value))
}

// RecycleBinEnabled reports whether deletes go to the recycle bin.
// Defaults to true.
func (d *Database) RecycleBinEnabled(ctx context.Context) (bool, error) {
	return d.GetBoolSetting(ctx, SettingUseRecycleBin, true)
}

// SetRecycleBinEnabled persists the recycle bin feature flag.
func (d *Database) SetRecycleBinEnabled(ctx context.Context, enabled bool) error {
	return d.SetBoolSetting(ctx, SettingUseRecycleBin, enabled)
}
