package handlers

import (
	"path/filepath"
	"time"

	"media-curator/internal/database"
	"media-curator/internal/indexer"
	"media-curator/internal/media"
	"media-curator/internal/recyclebin"
	"media-curator/internal/startup"
	"media-curator/internal/workers"
)

// Handlers serves the curator HTTP API.
type Handlers struct {
	db       *database.Database
	bin      *recyclebin.Manager
	indexer  *indexer.Indexer
	rotator  *media.Rotator
	repairer recyclebin.Repairer
	runner   *workers.Runner

	mediaDir   string
	stagingDir string
	startTime  time.Time
}

// New creates the handlers. repairer may be nil when the content index is
// unavailable, in which case date repair requests are refused.
func New(db *database.Database, bin *recyclebin.Manager, idx *indexer.Indexer, rot *media.Rotator,
	repairer recyclebin.Repairer, config *startup.Config,
) *Handlers {
	return &Handlers{
		db:         db,
		bin:        bin,
		indexer:    idx,
		rotator:    rot,
		repairer:   repairer,
		runner:     bin.Runner(),
		mediaDir:   filepath.Clean(config.MediaDir),
		stagingDir: filepath.Clean(config.StagingDir),
		startTime:  time.Now(),
	}
}
