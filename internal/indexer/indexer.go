package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-curator/internal/database"
	"media-curator/internal/filesystem"
	"media-curator/internal/logging"
	"media-curator/internal/metrics"
	"media-curator/internal/trashpath"
)

// Number of rows written per transaction
const batchSize = 500

// ErrAlreadyRunning is returned when a rescan is requested while one is in
// progress.
var ErrAlreadyRunning = errors.New("rescan already in progress")

// Indexer rebuilds the metadata index from the files on disk.
type Indexer struct {
	db       *database.Database
	mover    *filesystem.Mover
	tr       trashpath.Translator
	mediaDir string

	indexInterval time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once

	indexMu       sync.Mutex
	isIndexing    bool
	lastIndexTime time.Time
	lastResult    *Result
	lastError     error
	startTime     time.Time

	filesIndexed   atomic.Int64
	foldersIndexed atomic.Int64
	indexProgress  atomic.Value

	parallelConfig ParallelWalkerConfig
}

// IndexProgress tracks the current indexing progress
type IndexProgress struct {
	FilesIndexed   int64     `json:"filesIndexed"`
	FoldersIndexed int64     `json:"foldersIndexed"`
	IsIndexing     bool      `json:"isIndexing"`
	StartedAt      time.Time `json:"startedAt,omitempty"`
}

// Result summarizes one rescan.
type Result struct {
	Files         int           `json:"files"`
	Directories   int           `json:"directories"`
	Updated       int           `json:"updated"`
	Removed       int64         `json:"removed"`
	DirsRemoved   int           `json:"dirsRemoved"`
	Adopted       int           `json:"adopted"`
	OrphansPurged int64         `json:"orphansPurged"`
	Trashed       int           `json:"trashed"`
	Duration      time.Duration `json:"duration"`
}

// New creates an Indexer for mediaDir. The staging root of tr is skipped
// while walking and reconciled separately. A zero interval disables
// periodic rescans.
func New(db *database.Database, mover *filesystem.Mover, tr trashpath.Translator, mediaDir string, indexInterval time.Duration) *Indexer {
	cfg := DefaultParallelWalkerConfig()
	cfg.SkipDirs = []string{tr.StagingRoot}

	idx := &Indexer{
		db:             db,
		mover:          mover,
		tr:             tr,
		mediaDir:       filepath.Clean(mediaDir),
		indexInterval:  indexInterval,
		stopChan:       make(chan struct{}),
		startTime:      time.Now(),
		parallelConfig: cfg,
	}
	idx.indexProgress.Store(IndexProgress{})
	return idx
}

// SetParallelConfig sets the parallel walker configuration. The staging root
// is always skipped.
func (idx *Indexer) SetParallelConfig(config ParallelWalkerConfig) {
	config.SkipDirs = append(config.SkipDirs, idx.tr.StagingRoot)
	idx.parallelConfig = config
}

// Start runs an initial rescan in the background and, when an interval is
// configured, periodic rescans after it.
func (idx *Indexer) Start(ctx context.Context) {
	go func() {
		logging.Info("Starting initial rescan in background...")
		if _, err := idx.Rescan(ctx); err != nil {
			logging.Error("Initial rescan error: %v", err)
		}
	}()

	if idx.indexInterval > 0 {
		go idx.periodicIndex(ctx)
	}
}

// Stop stops periodic rescans. Safe to call more than once.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(func() { close(idx.stopChan) })
}

func (idx *Indexer) periodicIndex(ctx context.Context) {
	ticker := time.NewTicker(idx.indexInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic rescan triggered")
			if _, err := idx.Rescan(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
				logging.Error("periodic rescan failed: %v", err)
			}
		case <-idx.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Rescan walks the media directory and brings the index in line with it:
// media and directory rows are upserted, rows for vanished files are
// removed and the recycle bin is reconciled with the staging area.
func (idx *Indexer) Rescan(ctx context.Context) (*Result, error) {
	if !idx.tryStartIndexing() {
		return nil, ErrAlreadyRunning
	}

	startTime := time.Now()
	logging.Info("Starting rescan of %s", idx.mediaDir)
	idx.resetCounters(startTime)

	res, err := idx.rescan(ctx, startTime)
	if err == nil {
		res.Duration = time.Since(startTime)
	}
	idx.finishIndexing(res, err)

	status := "success"
	if err != nil {
		status = "error"
		logging.Error("Rescan failed after %v: %v", time.Since(startTime), err)
	}
	metrics.RescanRunsTotal.WithLabelValues(status).Inc()
	metrics.RescanLastDuration.Set(time.Since(startTime).Seconds())

	if err != nil {
		return nil, err
	}

	logging.Info("Rescan complete: %d files in %d folders, %d updated, %d removed, %d trashed in %v",
		res.Files, res.Directories, res.Updated, res.Removed, res.Trashed, res.Duration)
	return res, nil
}

func (idx *Indexer) rescan(ctx context.Context, startTime time.Time) (*Result, error) {
	// Never treat an unreachable root as an empty library.
	if _, err := idx.mover.Stat(idx.mediaDir); err != nil {
		return nil, fmt.Errorf("media directory %s: %w", idx.mediaDir, err)
	}

	walker := NewParallelWalker(ctx, idx.mover, idx.mediaDir, idx.parallelConfig)
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-idx.stopChan:
			walker.Stop()
		case <-stopped:
		}
	}()

	found, err := walker.Walk()
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", idx.mediaDir, err)
	}
	files, folders, _ := walker.Stats()
	idx.filesIndexed.Store(files)
	idx.foldersIndexed.Store(folders)
	idx.updateProgress(startTime)

	existing, err := idx.db.GetAllMedia(ctx)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	res := &Result{Files: len(found)}
	if res.Updated, err = idx.upsertFound(ctx, found, existing); err != nil {
		return nil, err
	}
	if res.Removed, err = idx.removeVanished(ctx, found, existing); err != nil {
		return nil, err
	}
	if res.Directories, res.DirsRemoved, err = idx.rebuildDirectories(ctx, found); err != nil {
		return nil, err
	}
	if err := idx.reconcileStaging(ctx, existing, res); err != nil {
		return nil, err
	}
	return res, nil
}

func foldKey(p string) string {
	return strings.ToLower(p)
}

// upsertFound writes new and changed rows. Favorites and repaired dates of
// unchanged files survive.
func (idx *Indexer) upsertFound(ctx context.Context, found, existing []database.Media) (int, error) {
	byPath := make(map[string]*database.Media, len(existing))
	for i := range existing {
		byPath[foldKey(existing[i].Path)] = &existing[i]
	}

	var changed []database.Media
	for _, m := range found {
		if old, ok := byPath[foldKey(m.Path)]; ok {
			if old.Size == m.Size && old.LastModified == m.LastModified && old.Type == m.Type {
				continue
			}
			m.Favorite = old.Favorite
			if old.LastModified == m.LastModified {
				m.DateTaken = old.DateTaken
			}
		}
		changed = append(changed, m)
	}

	for i := 0; i < len(changed); i += batchSize {
		end := min(i+batchSize, len(changed))
		if err := idx.db.UpsertMediaBatch(ctx, changed[i:end]); err != nil {
			return 0, fmt.Errorf("upsert media: %w", err)
		}
		if end%5000 == 0 || end == len(changed) {
			logging.Info("Index write progress: %d/%d rows", end, len(changed))
		}
	}
	return len(changed), nil
}

// removeVanished deletes active rows whose file was not seen.
func (idx *Indexer) removeVanished(ctx context.Context, found, existing []database.Media) (int64, error) {
	seen := make(map[string]bool, len(found))
	for _, m := range found {
		seen[foldKey(m.Path)] = true
	}

	var stale []string
	for _, m := range existing {
		if m.IsTrashed() || seen[foldKey(m.Path)] {
			continue
		}
		stale = append(stale, m.Path)
	}

	n, err := idx.db.DeleteMediaBatch(ctx, stale)
	if err != nil {
		return 0, fmt.Errorf("remove vanished media: %w", err)
	}
	if n > 0 {
		logging.Info("Removed %d missing files from index", n)
	}
	return n, nil
}

// rebuildDirectories upserts one row per directory holding media and drops
// rows of directories that no longer do.
func (idx *Indexer) rebuildDirectories(ctx context.Context, found []database.Media) (kept, removed int, err error) {
	groups := map[string][]database.Media{}
	for _, m := range found {
		groups[m.ParentPath] = append(groups[m.ParentPath], m)
	}

	current, err := idx.db.GetAllDirectories(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load directories: %w", err)
	}
	locations := make(map[string]int, len(current))
	for _, d := range current {
		locations[foldKey(d.Path)] = d.Location
	}

	rows := make([]database.Directory, 0, len(groups))
	for dir, items := range groups {
		row := database.SummarizeDirectory(dir, items)
		row.Location = locations[foldKey(dir)]
		rows = append(rows, row)
	}
	if err := idx.db.UpsertDirectories(ctx, rows); err != nil {
		return 0, 0, fmt.Errorf("upsert directories: %w", err)
	}

	sentinel := idx.db.SentinelPath()
	for _, d := range current {
		if d.Path == sentinel {
			continue
		}
		if _, ok := groups[d.Path]; ok {
			continue
		}
		if err := idx.db.DeleteDirectory(ctx, d.Path); err != nil {
			return 0, 0, fmt.Errorf("delete directory %s: %w", d.Path, err)
		}
		removed++
	}
	return len(rows), removed, nil
}

// reconcileStaging makes trashed rows match the staging area: staged files
// without a row are adopted and rows without a staged file are dropped.
func (idx *Indexer) reconcileStaging(ctx context.Context, existing []database.Media, res *Result) error {
	rows := map[string]bool{}
	for _, m := range existing {
		if m.IsTrashed() {
			rows[foldKey(m.Path)] = true
		}
	}

	staged := map[string]bool{}
	var adopt []database.Media
	err := idx.mover.Walk(idx.tr.StagingRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == idx.tr.StagingRoot && errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() || trashpath.IsScratch(path) {
			return nil
		}
		orig, err := idx.tr.ToOriginalPath(path)
		if err != nil {
			return nil
		}
		m, ok := mediaFromFile(orig, info)
		if !ok {
			return nil
		}
		key := idx.tr.IndexKey(orig)
		staged[foldKey(key)] = true
		if rows[foldKey(key)] {
			return nil
		}
		m.Path = key
		m.DeletedTimestamp = m.LastModified
		adopt = append(adopt, m)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk staging area: %w", err)
	}

	if err := idx.db.UpsertMediaBatch(ctx, adopt); err != nil {
		return fmt.Errorf("adopt staged files: %w", err)
	}
	res.Adopted = len(adopt)
	metrics.RescanReconciledTotal.WithLabelValues("adopted_staged").Add(float64(len(adopt)))

	var orphans []string
	for _, m := range existing {
		if m.IsTrashed() && !staged[foldKey(m.Path)] {
			orphans = append(orphans, m.Path)
		}
	}
	if res.OrphansPurged, err = idx.db.DeleteMediaBatch(ctx, orphans); err != nil {
		return fmt.Errorf("drop orphaned trash rows: %w", err)
	}
	metrics.RescanReconciledTotal.WithLabelValues("dropped_orphan").Add(float64(res.OrphansPurged))

	if res.Adopted > 0 || res.OrphansPurged > 0 {
		logging.Info("Recycle bin reconciled: %d staged files adopted, %d orphaned rows dropped",
			res.Adopted, res.OrphansPurged)
	}
	res.Trashed = len(staged)

	thumb := func(key string) string {
		return idx.tr.ToRecycleBinPath(idx.tr.OriginalFromIndexKey(key))
	}
	if err := idx.db.RefreshRecycleBinRow(ctx, thumb); err != nil {
		return fmt.Errorf("refresh recycle bin row: %w", err)
	}
	return nil
}

// tryStartIndexing attempts to start indexing, returns false if already in progress.
func (idx *Indexer) tryStartIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	if idx.isIndexing {
		return false
	}
	idx.isIndexing = true
	return true
}

// finishIndexing marks indexing as complete.
func (idx *Indexer) finishIndexing(res *Result, err error) {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	idx.isIndexing = false
	idx.lastError = err
	if err == nil {
		idx.lastIndexTime = time.Now()
		idx.lastResult = res
	}
	idx.indexProgress.Store(IndexProgress{
		FilesIndexed:   idx.filesIndexed.Load(),
		FoldersIndexed: idx.foldersIndexed.Load(),
	})
}

// resetCounters resets the indexing counters.
func (idx *Indexer) resetCounters(startTime time.Time) {
	idx.filesIndexed.Store(0)
	idx.foldersIndexed.Store(0)
	idx.indexProgress.Store(IndexProgress{
		IsIndexing: true,
		StartedAt:  startTime,
	})
}

// updateProgress updates the indexing progress.
func (idx *Indexer) updateProgress(startTime time.Time) {
	idx.indexProgress.Store(IndexProgress{
		FilesIndexed:   idx.filesIndexed.Load(),
		FoldersIndexed: idx.foldersIndexed.Load(),
		IsIndexing:     true,
		StartedAt:      startTime,
	})
}

// IsIndexing returns whether a rescan is currently in progress.
func (idx *Indexer) IsIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.isIndexing
}

// LastIndexTime returns the time of the last completed rescan.
func (idx *Indexer) LastIndexTime() time.Time {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.lastIndexTime
}

// GetProgress returns the current indexing progress.
func (idx *Indexer) GetProgress() IndexProgress {
	if progress, ok := idx.indexProgress.Load().(IndexProgress); ok {
		return progress
	}
	return IndexProgress{}
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Indexing      bool           `json:"indexing"`
	StartTime     time.Time      `json:"startTime"`
	Uptime        string         `json:"uptime"`
	LastIndexed   time.Time      `json:"lastIndexed,omitempty"`
	LastResult    *Result        `json:"lastResult,omitempty"`
	LastError     string         `json:"lastError,omitempty"`
	IndexProgress *IndexProgress `json:"indexProgress,omitempty"`
}

// GetHealthStatus returns detailed health information.
func (idx *Indexer) GetHealthStatus() HealthStatus {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	status := HealthStatus{
		Indexing:    idx.isIndexing,
		StartTime:   idx.startTime,
		Uptime:      time.Since(idx.startTime).Round(time.Second).String(),
		LastIndexed: idx.lastIndexTime,
		LastResult:  idx.lastResult,
	}
	if idx.isIndexing {
		progress := idx.GetProgress()
		status.IndexProgress = &progress
	}
	if idx.lastError != nil {
		status.LastError = idx.lastError.Error()
	}
	return status
}
