package recyclebin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"media-curator/internal/logging"
	"media-curator/internal/metrics"
)

// ErrStagedPath is returned when a rename or move targets the recycle bin.
var ErrStagedPath = errors.New("path is inside the recycle bin")

func recordMutation(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.PathMutationsTotal.WithLabelValues(op, status).Inc()
}

func (m *Manager) checkUnstaged(paths ...string) error {
	for _, p := range paths {
		if m.tr.IsStaged(p) {
			return fmt.Errorf("%s: %w", p, ErrStagedPath)
		}
	}
	return nil
}

// Rename renames a file or a directory, whichever oldPath is.
func (m *Manager) Rename(ctx context.Context, oldPath, newPath string) error {
	info, err := m.mover.Stat(oldPath)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return m.RenameDirectory(ctx, oldPath, newPath)
	}
	return m.RenameFile(ctx, oldPath, newPath)
}

// RenameFile renames a single file and rekeys its index row. The file is
// renamed back when the index update fails.
func (m *Manager) RenameFile(ctx context.Context, oldPath, newPath string) (err error) {
	defer func() { recordMutation("rename_file", err) }()

	oldPath, newPath = filepath.Clean(oldPath), filepath.Clean(newPath)
	if err := m.checkUnstaged(oldPath, newPath); err != nil {
		return err
	}

	if err := m.mover.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("rename %s: %w", oldPath, err)
	}
	if err := m.rekeyFile(ctx, oldPath, newPath); err != nil {
		if rbErr := m.mover.Rename(newPath, oldPath); rbErr != nil {
			logging.Error("Failed to undo rename of %s: %v", oldPath, rbErr)
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	m.refreshAfter(ctx, []string{oldPath, newPath}, filepath.Dir)
	m.notifier.Invalidate(oldPath)
	logging.Info("Renamed %s -> %s", oldPath, newPath)
	return nil
}

// rekeyFile points the row of oldPath at newPath, indexing newPath from
// disk when oldPath was not indexed.
func (m *Manager) rekeyFile(ctx context.Context, oldPath, newPath string) error {
	n, err := m.db.UpdateMediaPath(ctx, oldPath, newPath)
	if err != nil {
		return fmt.Errorf("update index for %s: %w", oldPath, err)
	}
	if n > 0 {
		return nil
	}
	info, err := m.mover.Stat(newPath)
	if err != nil {
		return err
	}
	return m.db.UpsertMedia(ctx, mediaFromInfo(newPath, newPath, info))
}

// RenameDirectory renames a directory and rewrites every index row below it,
// including the directory rows of its subdirectories.
func (m *Manager) RenameDirectory(ctx context.Context, oldDir, newDir string) (err error) {
	defer func() { recordMutation("rename_directory", err) }()

	oldDir, newDir = filepath.Clean(oldDir), filepath.Clean(newDir)
	if err := m.checkUnstaged(oldDir, newDir); err != nil {
		return err
	}
	if strings.HasPrefix(newDir, oldDir+string(filepath.Separator)) {
		return fmt.Errorf("rename %s into its own subdirectory %s", oldDir, newDir)
	}

	info, err := m.mover.Stat(oldDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("rename directory %s: not a directory", oldDir)
	}

	if err := m.mover.Rename(oldDir, newDir); err != nil {
		return fmt.Errorf("rename %s: %w", oldDir, err)
	}

	n, err := m.db.RenameMediaTree(ctx, oldDir, newDir)
	if err != nil {
		return m.undoDirectoryRename(oldDir, newDir, fmt.Errorf("update media below %s: %w", oldDir, err))
	}
	if err := m.renameDirectoryRows(ctx, oldDir, newDir); err != nil {
		if _, rbErr := m.db.RenameMediaTree(ctx, newDir, oldDir); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback index: %w", rbErr))
		}
		return m.undoDirectoryRename(oldDir, newDir, err)
	}

	m.refreshDirs(ctx, filepath.Dir(oldDir), filepath.Dir(newDir), newDir)
	m.notifier.Invalidate(oldDir)
	logging.Info("Renamed directory %s -> %s (%d media rows)", oldDir, newDir, n)
	return nil
}

// undoDirectoryRename moves newDir back to oldDir after the index could not
// follow the rename, joining any rollback failure onto err.
func (m *Manager) undoDirectoryRename(oldDir, newDir string, err error) error {
	if rbErr := m.mover.Rename(newDir, oldDir); rbErr != nil {
		logging.Error("Failed to undo rename of %s: %v", oldDir, rbErr)
		err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
	}
	return err
}

func (m *Manager) renameDirectoryRows(ctx context.Context, oldDir, newDir string) error {
	dirs, err := m.db.GetAllDirectories(ctx)
	if err != nil {
		return err
	}

	for _, d := range dirs {
		target, moved := rebase(d.Path, oldDir, newDir)
		if !moved {
			continue
		}
		thumb, _ := rebase(d.Thumbnail, oldDir, newDir)
		if _, err := m.db.RenameDirectory(ctx, d.Path, target, thumb, filepath.Base(target)); err != nil {
			return fmt.Errorf("rename directory row %s: %w", d.Path, err)
		}
	}
	return nil
}

// rebase rewrites p from below oldDir to below newDir.
func rebase(p, oldDir, newDir string) (string, bool) {
	if strings.EqualFold(p, oldDir) {
		return newDir, true
	}
	prefix := oldDir + string(filepath.Separator)
	if len(p) > len(prefix) && strings.EqualFold(p[:len(prefix)], prefix) {
		return newDir + p[len(oldDir):], true
	}
	return p, false
}

// MoveFiles moves files into destDir, keeping their names. Failures are
// reported per path.
func (m *Manager) MoveFiles(ctx context.Context, paths []string, destDir string) *BatchResult {
	destDir = filepath.Clean(destDir)

	res := m.batch("move", paths, func(p string) PathResult {
		p = filepath.Clean(p)
		dst := filepath.Join(destDir, filepath.Base(p))
		if err := m.checkUnstaged(p, dst); err != nil {
			return failed(p, OutcomeIOError, err)
		}
		if dst == p {
			return ok(p, dst)
		}
		if m.mover.Exists(dst) {
			return failed(p, OutcomeIOError, fmt.Errorf("%s: %w", dst, os.ErrExist))
		}

		if err := m.mover.Move(p, dst); err != nil {
			return failed(p, OutcomeIOError, err)
		}
		if err := m.rekeyFile(ctx, p, dst); err != nil {
			if mvErr := m.mover.Move(dst, p); mvErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback: %w", mvErr))
			}
			return failed(p, OutcomeIndexError, err)
		}
		m.notifier.Invalidate(p)
		return ok(p, dst)
	})

	var touched []string
	for _, r := range res.Results {
		if r.Outcome == OutcomeOK {
			touched = append(touched, r.Path, r.NewPath)
		}
	}
	m.refreshAfter(ctx, touched, filepath.Dir)
	recordMutation("move", res.Err())
	return res
}

// ToggleHidden hides or unhides a path. Files gain or lose a leading dot;
// directories gain or lose a .nomedia marker. The returned path is where the
// file now lives.
func (m *Manager) ToggleHidden(ctx context.Context, path string, hide bool) (newPath string, err error) {
	defer func() { recordMutation("toggle_hidden", err) }()

	path = filepath.Clean(path)
	if err := m.checkUnstaged(path); err != nil {
		return path, err
	}

	info, err := m.mover.Stat(path)
	if err != nil {
		return path, err
	}
	if info.IsDir() {
		return path, m.toggleHiddenDir(ctx, path, hide)
	}

	newPath, err = m.mover.ToggleHidden(path, hide)
	if err != nil || newPath == path {
		return newPath, err
	}
	if hide {
		// Hidden files are not indexed.
		err = m.db.DeleteMedia(ctx, path)
	} else {
		err = m.rekeyFile(ctx, path, newPath)
	}
	if err != nil {
		return newPath, fmt.Errorf("update index for %s: %w", path, err)
	}

	m.refreshAfter(ctx, []string{path}, filepath.Dir)
	m.notifier.Invalidate(path)
	logging.Info("Toggled hidden=%v: %s -> %s", hide, path, newPath)
	return newPath, nil
}

func (m *Manager) toggleHiddenDir(ctx context.Context, dir string, hide bool) error {
	if !hide {
		if err := m.mover.RemoveNoMedia(dir); err != nil {
			return err
		}
		logging.Info("Unhid directory %s; rescan to index its media", dir)
		return nil
	}

	if err := m.mover.AddNoMedia(dir); err != nil {
		return err
	}
	items, err := m.db.GetMediaInDirectory(ctx, dir)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := m.db.DeleteMedia(ctx, it.Path); err != nil {
			return err
		}
	}
	if err := m.db.DeleteDirectory(ctx, dir); err != nil {
		return err
	}
	m.notifier.Invalidate(dir)
	logging.Info("Hid directory %s (%d media rows removed)", dir, len(items))
	return nil
}
