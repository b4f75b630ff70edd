package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"media-curator/internal/contentindex"
	"media-curator/internal/database"
	"media-curator/internal/filesystem"
	"media-curator/internal/indexer"
	"media-curator/internal/invalidation"
	"media-curator/internal/logging"
	"media-curator/internal/media"
	"media-curator/internal/memory"
	"media-curator/internal/metrics"
	"media-curator/internal/recyclebin"
	"media-curator/internal/repair"
	"media-curator/internal/startup"
	"media-curator/internal/trashpath"
	"media-curator/internal/workers"
)

// invalidationQueue bounds pending thumbnail invalidations.
const invalidationQueue = 1024

// App is the wired set of components shared by the server and the CLI.
type App struct {
	Config *startup.Config

	DB         *database.Database
	Index      *contentindex.SQLiteIndex
	Mover      *filesystem.Mover
	Translator trashpath.Translator
	Runner     *workers.Runner
	Bin        *recyclebin.Manager
	Indexer    *indexer.Indexer
	Rotator    *media.Rotator
	Memory     *memory.Monitor

	// Repairer is nil when the content index could not be opened.
	Repairer recyclebin.Repairer

	notifier *invalidation.Async
}

// Open builds every component from cfg. The caller owns the result and
// must Close it. Nothing is started.
func Open(ctx context.Context, cfg *startup.Config) (*App, error) {
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"media":    cfg.MediaDir,
		"staging":  cfg.StagingDir,
		"database": cfg.DatabaseDir,
		"cache":    cfg.CacheDir,
	}))

	a := &App{Config: cfg}

	dbStart := time.Now()
	db, info, err := database.New(ctx, cfg.DatabasePath, &database.Options{
		MmapDisabled: cfg.MmapDisabled,
		TrashPrefix:  cfg.RecycleBinPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = db
	logging.Debug("Database mmap: %s", info.MmapStatus)
	startup.LogDatabaseInit(time.Since(dbStart))

	index, err := contentindex.OpenSQLite(ctx, cfg.ContentIndexPath)
	startup.LogContentIndexInit(cfg.ContentIndexPath, err)
	if err == nil {
		a.Index = index
	}

	a.Mover = filesystem.NewMover(a.selector(), filesystem.MoverOptions{
		KeepLastModified: cfg.KeepLastModified,
		Retry:            cfg.Retry,
	})
	a.Translator = trashpath.New(cfg.StagingDir, cfg.RecycleBinPrefix)
	a.Runner = workers.NewRunner(cfg.Workers)

	var notifier invalidation.Notifier = invalidation.Nop{}
	if cfg.ThumbnailsEnabled {
		a.notifier = invalidation.NewAsync(invalidation.NewThumbnailCache(cfg.ThumbnailDir), invalidationQueue)
		notifier = a.notifier
	}

	if a.Index != nil {
		a.Repairer = repair.New(repair.NewExifReader(a.Mover), a.Index, db, repair.Config{
			BatchSize:         cfg.Repair.BatchSize,
			RequestsPerSecond: cfg.Repair.RequestsPerSecond,
			Burst:             cfg.Repair.Burst,
			Location:          time.Local,
		})
	}

	a.Bin = recyclebin.NewManager(db, a.Mover, a.Translator, notifier, a.Repairer, a.Runner,
		recyclebin.Options{Parallelism: cfg.Workers})
	startup.LogRecycleBinInit(cfg.StagingDir, cfg.RecycleBinPrefix)

	a.Indexer = indexer.New(db, a.Mover, a.Translator, cfg.MediaDir, cfg.IndexInterval)
	walk := indexer.DefaultParallelWalkerConfig()
	if cfg.Workers > 0 {
		walk.NumWorkers = cfg.Workers
	}
	a.Indexer.SetParallelConfig(walk)
	startup.LogIndexerInit(cfg.IndexInterval)

	memory.Configure(cfg.MemoryLimit, cfg.MemoryRatio)
	a.Memory = memory.NewMonitor(memory.DefaultConfig())

	a.Rotator = media.NewRotator(a.Mover, db, notifier, media.RotatorOptions{
		ScratchDir: cfg.StagingDir,
		MaxPixels:  cfg.MaxImagePixels,
		Gate:       a.Memory,
	})

	return a, nil
}

// selector routes restricted roots through their granted trees.
func (a *App) selector() *filesystem.Selector {
	trees := make([]*filesystem.TreeStorage, 0, len(a.Config.GrantedRoots))
	for _, root := range a.Config.GrantedRoots {
		trees = append(trees, filesystem.NewTreeStorage(root))
	}
	return filesystem.NewSelector(filesystem.NewDirectStorage(), a.Config.RestrictedRoots, trees...)
}

// Start launches the background components: the memory monitor and the
// indexer with its initial rescan.
func (a *App) Start(ctx context.Context) {
	a.Memory.Start()
	a.Indexer.Start(ctx)
	startup.LogIndexerStarted()
}

// Close stops background work and releases the stores. Tasks still running
// get until ctx expires.
func (a *App) Close(ctx context.Context) error {
	var errs []error

	a.Indexer.Stop()
	if err := a.Runner.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("task runner: %w", err))
	}
	a.Memory.Stop()
	if a.notifier != nil {
		a.notifier.Close()
	}
	if a.Index != nil {
		if err := a.Index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("content index: %w", err))
		}
	}
	if err := a.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	return errors.Join(errs...)
}
