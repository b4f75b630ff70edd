package recyclebin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"media-curator/internal/database"
	"media-curator/internal/filesystem"
	"media-curator/internal/invalidation"
	"media-curator/internal/logging"
	"media-curator/internal/mediatypes"
	"media-curator/internal/metrics"
	"media-curator/internal/repair"
	"media-curator/internal/trashpath"
	"media-curator/internal/workers"
)

// ErrAlreadyTrashed is returned when trashing a path inside the recycle bin.
var ErrAlreadyTrashed = errors.New("path is already in the recycle bin")

// Repairer re-dates restored files.
type Repairer interface {
	Run(ctx context.Context, paths []string) (*repair.Report, error)
}

// Options configures a Manager.
type Options struct {
	// Parallelism bounds per-path work within a batch. Zero selects workers.ForIO(0).
	Parallelism int
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Manager moves media into and out of the recycle bin and keeps the
// metadata index in step with the filesystem.
type Manager struct {
	db       *database.Database
	mover    *filesystem.Mover
	tr       trashpath.Translator
	notifier invalidation.Notifier
	repairer Repairer
	runner   *workers.Runner

	parallelism int
	now         func() time.Time
}

// NewManager wires a Manager. notifier and repairer may be nil; a nil
// runner is replaced by a default one.
func NewManager(db *database.Database, mover *filesystem.Mover, tr trashpath.Translator,
	notifier invalidation.Notifier, repairer Repairer, runner *workers.Runner, opts Options,
) *Manager {
	if notifier == nil {
		notifier = invalidation.Nop{}
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = workers.ForIO(0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if runner == nil {
		runner = workers.NewRunner(0)
	}
	return &Manager{
		db:          db,
		mover:       mover,
		tr:          tr,
		notifier:    notifier,
		repairer:    repairer,
		runner:      runner,
		parallelism: opts.Parallelism,
		now:         opts.Now,
	}
}

// Runner returns the task runner used by the Submit methods.
func (m *Manager) Runner() *workers.Runner {
	return m.runner
}

// Translator returns the path translator in use.
func (m *Manager) Translator() trashpath.Translator {
	return m.tr
}

// batch runs fn for every path in parallel and records metrics.
func (m *Manager) batch(op string, paths []string, fn func(path string) PathResult) *BatchResult {
	start := time.Now()
	res := &BatchResult{Operation: op, Results: make([]PathResult, len(paths))}

	workers.ForEach(paths, m.parallelism, func(i int, p string) {
		r := fn(p)
		if r.Outcome != OutcomeOK {
			logging.Warn("%s %s failed (%s): %v", op, p, r.Outcome, r.err)
		}
		metrics.RecycleBinPathsTotal.WithLabelValues(op, string(r.Outcome)).Inc()
		res.Results[i] = r
	})

	status := "success"
	if !res.Succeeded() {
		status = "error"
	}
	metrics.RecycleBinOperationsTotal.WithLabelValues(op, status).Inc()
	metrics.RecycleBinOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	logging.Info("%s: %d/%d paths succeeded in %v", op, len(res.Done()), len(paths), time.Since(start))
	return res
}

// Trash moves each path into the recycle bin. A path whose move or index
// update fails is left where it was; the rest of the batch continues.
func (m *Manager) Trash(ctx context.Context, paths []string) *BatchResult {
	res := m.batch("trash", paths, func(p string) PathResult {
		return m.trashOne(ctx, p)
	})
	m.refreshAfter(ctx, res.Done(), func(staged string) string {
		orig, _ := m.tr.ToOriginalPath(staged)
		return filepath.Dir(orig)
	})
	return res
}

func (m *Manager) trashOne(ctx context.Context, p string) PathResult {
	p = filepath.Clean(p)
	if m.tr.IsStaged(p) {
		return failed(p, OutcomeIOError, ErrAlreadyTrashed)
	}

	info, err := m.mover.Stat(p)
	if err != nil {
		return failed(p, OutcomeIOError, err)
	}
	if info.IsDir() {
		return failed(p, OutcomeIOError, filesystem.ErrIsDirectory)
	}

	staged := m.tr.ToRecycleBinPath(p)
	if err := m.mover.Move(p, staged); err != nil {
		return failed(p, OutcomeIOError, err)
	}

	key := m.tr.IndexKey(p)
	deletedAt := m.now().UnixMilli()
	if err := m.markDeleted(ctx, p, key, deletedAt, info); err != nil {
		if mvErr := m.mover.Move(staged, p); mvErr != nil {
			logging.Error("Failed to move %s back out of the recycle bin: %v", p, mvErr)
			err = errors.Join(err, fmt.Errorf("rollback: %w", mvErr))
		}
		return failed(p, OutcomeIndexError, err)
	}

	m.notifier.Invalidate(p)
	return ok(p, staged)
}

// markDeleted rekeys the row of p to key, creating a trashed row from info
// when p was never indexed.
func (m *Manager) markDeleted(ctx context.Context, p, key string, deletedAt int64, info os.FileInfo) error {
	n, err := m.db.UpdateDeletedFlag(ctx, key, deletedAt, p)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	row := mediaFromInfo(key, p, info)
	row.DeletedTimestamp = deletedAt
	return m.db.UpsertMedia(ctx, row)
}

func mediaFromInfo(key, original string, info os.FileInfo) *database.Media {
	return &database.Media{
		Path:         key,
		Name:         filepath.Base(original),
		ParentPath:   filepath.Dir(original),
		Size:         info.Size(),
		LastModified: info.ModTime().UnixMilli(),
		DateTaken:    info.ModTime().UnixMilli(),
		Type:         mediatypes.FromPath(original),
	}
}

// Restore moves staged files back to their original locations. A restore
// only counts once the copy has the staged file's size; otherwise the
// partial copy is removed and the staged file kept. Restored files are
// re-dated afterwards.
func (m *Manager) Restore(ctx context.Context, stagedPaths []string) *BatchResult {
	res := m.batch("restore", stagedPaths, func(s string) PathResult {
		return m.restoreOne(ctx, s)
	})

	restored := res.Done()
	m.refreshAfter(ctx, restored, filepath.Dir)

	if m.repairer != nil && len(restored) > 0 {
		report, err := m.repairer.Run(ctx, restored)
		res.Repair = report
		if err != nil {
			res.RepairError = err.Error()
			logging.Warn("Date repair after restoring %d files: %v", len(restored), err)
		}
	}
	return res
}

func (m *Manager) restoreOne(ctx context.Context, s string) PathResult {
	s = filepath.Clean(s)
	orig, err := m.tr.ToOriginalPath(s)
	if err != nil {
		return failed(s, OutcomeIOError, err)
	}

	if err := m.mover.Copy(s, orig); err != nil {
		return failed(s, OutcomeIOError, err)
	}
	if err := m.mover.VerifySameSize(s, orig); err != nil {
		m.discard(orig)
		return failed(s, OutcomeVerifyFailed, err)
	}

	key := m.tr.IndexKey(orig)
	n, err := m.db.UpdateDeletedFlag(ctx, orig, 0, key)
	if err == nil && n == 0 {
		var info os.FileInfo
		if info, err = m.mover.Stat(orig); err == nil {
			err = m.db.UpsertMedia(ctx, mediaFromInfo(orig, orig, info))
		}
	}
	if err != nil {
		m.discard(orig)
		return failed(s, OutcomeIndexError, err)
	}

	if err := m.mover.Delete(s, false); err != nil {
		logging.Warn("Restored %s but could not remove staged copy %s: %v", orig, s, err)
	}

	m.notifier.Invalidate(orig)
	m.notifier.Invalidate(s)
	return ok(s, orig)
}

// discard removes a restore copy that must not survive.
func (m *Manager) discard(path string) {
	if err := m.mover.Delete(path, false); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Error("Failed to remove partial restore %s: %v", path, err)
	}
}

// Empty permanently deletes everything in the recycle bin.
func (m *Manager) Empty(ctx context.Context) error {
	start := time.Now()
	var errs []error

	trashed, err := m.db.GetTrashedMedia(ctx)
	if err != nil {
		logging.Warn("Could not list trashed media before emptying: %v", err)
	}

	entries, err := m.mover.ReadDir(m.tr.StagingRoot)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("list recycle bin: %w", err))
	}
	for _, e := range entries {
		if trashpath.IsScratch(e.Name()) {
			continue
		}
		p := filepath.Join(m.tr.StagingRoot, e.Name())
		if err := m.mover.RemoveAll(p); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
		}
	}

	n, err := m.db.ClearRecycleBin(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("clear recycle bin rows: %w", err))
	}
	if err := m.db.DeleteRecycleBinRow(ctx); err != nil {
		errs = append(errs, fmt.Errorf("delete recycle bin directory row: %w", err))
	}

	for _, t := range trashed {
		m.notifier.Invalidate(m.tr.ToRecycleBinPath(m.tr.OriginalFromIndexKey(t.Path)))
	}

	err = errors.Join(errs...)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecycleBinOperationsTotal.WithLabelValues("empty", status).Inc()
	metrics.RecycleBinOperationDuration.WithLabelValues("empty").Observe(time.Since(start).Seconds())
	logging.Info("Emptied recycle bin: %d entries, %d rows in %v (err=%v)", len(entries), n, time.Since(start), err)
	return err
}

// EmptyAndDisable empties the recycle bin and turns it off, so later
// deletes are permanent.
func (m *Manager) EmptyAndDisable(ctx context.Context) error {
	emptyErr := m.Empty(ctx)
	if err := m.db.SetRecycleBinEnabled(ctx, false); err != nil {
		return errors.Join(emptyErr, fmt.Errorf("disable recycle bin: %w", err))
	}
	logging.Info("Recycle bin disabled")
	return emptyErr
}

// Delete removes paths. Paths already in the recycle bin, and every path
// when the recycle bin is disabled, are deleted permanently; the rest are
// trashed.
func (m *Manager) Delete(ctx context.Context, paths []string) *BatchResult {
	useBin, err := m.db.RecycleBinEnabled(ctx)
	if err != nil {
		logging.Warn("Could not read recycle bin setting, deleting permanently: %v", err)
		useBin = false
	}

	res := m.batch("delete", paths, func(p string) PathResult {
		p = filepath.Clean(p)
		if useBin && !m.tr.IsStaged(p) {
			return m.trashOne(ctx, p)
		}
		return m.purgeOne(ctx, p)
	})

	m.refreshAfter(ctx, append(res.Done(), paths...), func(p string) string {
		if orig, err := m.tr.ToOriginalPath(p); err == nil {
			return filepath.Dir(orig)
		}
		return filepath.Dir(p)
	})
	return res
}

func (m *Manager) purgeOne(ctx context.Context, p string) PathResult {
	key := p
	if orig, err := m.tr.ToOriginalPath(p); err == nil {
		key = m.tr.IndexKey(orig)
	}

	if err := m.mover.Delete(p, false); err != nil {
		return failed(p, OutcomeIOError, err)
	}
	if err := m.db.DeleteMedia(ctx, key); err != nil {
		return failed(p, OutcomeIndexError, err)
	}
	m.notifier.Invalidate(p)
	return ok(p, "")
}

// refreshAfter recomputes the directory rows touched by a batch and the
// recycle bin row.
func (m *Manager) refreshAfter(ctx context.Context, paths []string, dirOf func(string) string) {
	dirs := make([]string, 0, len(paths))
	for _, p := range paths {
		dirs = append(dirs, dirOf(p))
	}
	m.refreshDirs(ctx, dirs...)
}

func (m *Manager) refreshDirs(ctx context.Context, dirs ...string) {
	seen := map[string]bool{}
	var unique []string
	for _, d := range dirs {
		if d == "." || seen[d] {
			continue
		}
		seen[d] = true
		unique = append(unique, d)
	}
	sort.Strings(unique)

	for _, d := range unique {
		if err := m.db.RefreshDirectory(ctx, d); err != nil {
			logging.Warn("Failed to refresh directory row %s: %v", d, err)
		}
	}
	if err := m.db.RefreshRecycleBinRow(ctx, m.stagedThumbnail); err != nil {
		logging.Warn("Failed to refresh recycle bin row: %v", err)
	}
}

func (m *Manager) stagedThumbnail(key string) string {
	return m.tr.ToRecycleBinPath(m.tr.OriginalFromIndexKey(key))
}
