package database

import (
	"context"
	"errors"
	"path/filepath"
)

// SummarizeDirectory builds the directory row for path from the media it
// contains. The thumbnail is the most recently modified file.
func SummarizeDirectory(path string, items []Media) Directory {
	dir := Directory{
		Path:     path,
		Filename: filepath.Base(path),
	}

	var newest int64 = -1
	for i := range items {
		m := &items[i]
		dir.MediaCount++
		dir.Size += m.Size
		dir.MediaTypes |= m.Type
		if m.DateTaken > dir.DateTaken {
			dir.DateTaken = m.DateTaken
		}
		if m.LastModified > newest {
			newest = m.LastModified
			dir.LastModified = m.LastModified
			dir.Thumbnail = m.Path
		}
	}
	return dir
}

// RefreshDirectory recomputes the row of dir from its active media, or
// deletes it when no media is left. The storage location is preserved.
func (d *Database) RefreshDirectory(ctx context.Context, dir string) error {
	items, err := d.GetMediaInDirectory(ctx, dir)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return d.DeleteDirectory(ctx, dir)
	}

	row := SummarizeDirectory(dir, items)
	existing, err := d.GetDirectory(ctx, dir)
	switch {
	case err == nil:
		row.Location = existing.Location
	case !errors.Is(err, ErrNotFound):
		return err
	}
	return d.UpsertDirectory(ctx, &row)
}

// RefreshRecycleBinRow recomputes the sentinel directory row from the
// trashed media, or deletes it when the recycle bin is empty. thumbnail maps
// a trashed key to the file shown for it.
func (d *Database) RefreshRecycleBinRow(ctx context.Context, thumbnail func(key string) string) error {
	items, err := d.GetTrashedMedia(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return d.DeleteRecycleBinRow(ctx)
	}

	row := SummarizeDirectory(d.sentinel, items)
	row.Filename = d.sentinel
	if thumbnail != nil {
		row.Thumbnail = thumbnail(row.Thumbnail)
	}
	return d.UpsertDirectory(ctx, &row)
}
