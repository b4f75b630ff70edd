package database

import (
	"context"
	"time"

	"media-curator/internal/metrics"
)

// IndexStats counts active and trashed media and directory rows.
func (d *Database) IndexStats(ctx context.Context) (metrics.Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("index_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats metrics.Stats
	err = d.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN state = 'active' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = 'trashed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = 'trashed' THEN size ELSE 0 END), 0)
		FROM media
	`).Scan(&stats.ActiveMedia, &stats.TrashedMedia, &stats.TrashedBytes)
	if err != nil {
		return stats, err
	}

	err = d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM directories`).Scan(&stats.Directories)
	return stats, err
}
