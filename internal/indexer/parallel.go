package indexer

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-curator/internal/database"
	"media-curator/internal/filesystem"
	"media-curator/internal/logging"
	"media-curator/internal/mediatypes"
	"media-curator/internal/workers"
)

// ParallelWalkerConfig configures the parallel directory walker
type ParallelWalkerConfig struct {
	// NumWorkers is the number of parallel workers (0 = workers.ForIO)
	NumWorkers int
	// ChannelBuffer is the size of the work channel buffer
	ChannelBuffer int
	// SkipHidden skips files and directories starting with "."
	SkipHidden bool
	// SkipDirs are directory trees never descended into.
	SkipDirs []string
}

// DefaultParallelWalkerConfig returns defaults sized for network shares.
func DefaultParallelWalkerConfig() ParallelWalkerConfig {
	return ParallelWalkerConfig{
		NumWorkers:    workers.ForIO(8),
		ChannelBuffer: 1000,
		SkipHidden:    true,
	}
}

// fileJob represents a file to be processed
type fileJob struct {
	path string
	info os.FileInfo
}

// ParallelWalker walks a tree through a Mover and turns media files into
// index rows on a pool of workers.
type ParallelWalker struct {
	config ParallelWalkerConfig
	mover  *filesystem.Mover
	root   string

	jobs    chan fileJob
	results chan database.Media

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	filesProcessed   atomic.Int64
	foldersProcessed atomic.Int64
	errorsCount      atomic.Int64
}

// NewParallelWalker creates a walker over root.
func NewParallelWalker(ctx context.Context, mover *filesystem.Mover, root string, config ParallelWalkerConfig) *ParallelWalker {
	if config.NumWorkers < 1 {
		config.NumWorkers = workers.ForIO(0)
	}
	if config.ChannelBuffer < 1 {
		config.ChannelBuffer = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	return &ParallelWalker{
		config:  config,
		mover:   mover,
		root:    filepath.Clean(root),
		jobs:    make(chan fileJob, config.ChannelBuffer),
		results: make(chan database.Media, config.ChannelBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Walk performs a parallel walk of the tree and returns an active media row
// for every media file found.
func (pw *ParallelWalker) Walk() ([]database.Media, error) {
	logging.Info("Starting parallel walk of %s with %d workers", pw.root, pw.config.NumWorkers)
	startTime := time.Now()

	for i := 0; i < pw.config.NumWorkers; i++ {
		pw.wg.Add(1)
		go pw.worker(i)
	}

	var found []database.Media
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for m := range pw.results {
			found = append(found, m)
		}
	}()

	err := pw.walkAndEnqueue()

	close(pw.jobs)
	pw.wg.Wait()
	close(pw.results)
	<-collected

	logging.Info("Parallel walk complete: %d files, %d folders in %v (errors: %d)",
		pw.filesProcessed.Load(),
		pw.foldersProcessed.Load(),
		time.Since(startTime),
		pw.errorsCount.Load())

	if err == nil {
		err = pw.ctx.Err()
	}
	return found, err
}

func (pw *ParallelWalker) skipDir(path string) bool {
	for _, d := range pw.config.SkipDirs {
		if path == filepath.Clean(d) {
			return true
		}
	}
	return false
}

// walkAndEnqueue walks the directory tree and sends jobs to workers
func (pw *ParallelWalker) walkAndEnqueue() error {
	err := pw.mover.Walk(pw.root, func(path string, info os.FileInfo, err error) error {
		select {
		case <-pw.ctx.Done():
			return fs.SkipAll
		default:
		}

		if err != nil {
			pw.errorsCount.Add(1)
			logging.Warn("Error accessing path %s: %v", path, err)
			if info != nil && info.IsDir() && path != pw.root {
				return filepath.SkipDir
			}
			return nil
		}

		if path != pw.root && pw.config.SkipHidden && strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			if pw.skipDir(path) {
				return filepath.SkipDir
			}
			if pw.mover.Exists(filepath.Join(path, filesystem.NoMediaFile)) {
				logging.Debug("Skipping %s: %s marker present", path, filesystem.NoMediaFile)
				return filepath.SkipDir
			}
			pw.foldersProcessed.Add(1)
			return nil
		}

		select {
		case pw.jobs <- fileJob{path: path, info: info}:
		case <-pw.ctx.Done():
			return fs.SkipAll
		}
		return nil
	})
	if errors.Is(err, fs.SkipAll) {
		return nil
	}
	return err
}

// worker processes files from the jobs channel
func (pw *ParallelWalker) worker(id int) {
	defer pw.wg.Done()

	logging.Debug("Worker %d started", id)

	for job := range pw.jobs {
		m, ok := mediaFromFile(job.path, job.info)
		if !ok {
			continue
		}
		pw.filesProcessed.Add(1)

		select {
		case pw.results <- m:
		case <-pw.ctx.Done():
			return
		}
	}

	logging.Debug("Worker %d finished", id)
}

// mediaFromFile builds the active row for a media file. Non-media files
// report false.
func mediaFromFile(path string, info os.FileInfo) (database.Media, bool) {
	typ := mediatypes.FromPath(path)
	if typ == mediatypes.TypeNone {
		return database.Media{}, false
	}
	mtime := info.ModTime().UnixMilli()
	return database.Media{
		Path:         path,
		Name:         info.Name(),
		ParentPath:   filepath.Dir(path),
		Size:         info.Size(),
		LastModified: mtime,
		DateTaken:    mtime,
		Type:         typ,
	}, true
}

// Stop cancels the parallel walk
func (pw *ParallelWalker) Stop() {
	pw.cancel()
}

// Stats returns current processing statistics
func (pw *ParallelWalker) Stats() (files, folders, errors int64) {
	return pw.filesProcessed.Load(), pw.foldersProcessed.Load(), pw.errorsCount.Load()
}
