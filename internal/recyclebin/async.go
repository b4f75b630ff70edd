package recyclebin

import (
	"context"

	"media-curator/internal/workers"
)

// BatchTask is the handle of a batch running in the background.
type BatchTask = workers.Task[*BatchResult]

func (m *Manager) submitBatch(kind string, fn func(ctx context.Context) *BatchResult) *BatchTask {
	return workers.Submit(m.runner, kind, func(ctx context.Context) (*BatchResult, error) {
		res := fn(ctx)
		return res, res.Err()
	})
}

// SubmitTrash runs Trash in the background.
func (m *Manager) SubmitTrash(paths []string) *BatchTask {
	return m.submitBatch("trash", func(ctx context.Context) *BatchResult {
		return m.Trash(ctx, paths)
	})
}

// SubmitRestore runs Restore in the background.
func (m *Manager) SubmitRestore(stagedPaths []string) *BatchTask {
	return m.submitBatch("restore", func(ctx context.Context) *BatchResult {
		return m.Restore(ctx, stagedPaths)
	})
}

// SubmitDelete runs Delete in the background.
func (m *Manager) SubmitDelete(paths []string) *BatchTask {
	return m.submitBatch("delete", func(ctx context.Context) *BatchResult {
		return m.Delete(ctx, paths)
	})
}

// SubmitMove runs MoveFiles in the background.
func (m *Manager) SubmitMove(paths []string, destDir string) *BatchTask {
	return m.submitBatch("move", func(ctx context.Context) *BatchResult {
		return m.MoveFiles(ctx, paths, destDir)
	})
}

// SubmitEmpty runs Empty, or EmptyAndDisable when disable is set, in the
// background.
func (m *Manager) SubmitEmpty(disable bool) *workers.Task[struct{}] {
	return workers.Submit(m.runner, "empty", func(ctx context.Context) (struct{}, error) {
		if disable {
			return struct{}{}, m.EmptyAndDisable(ctx)
		}
		return struct{}{}, m.Empty(ctx)
	})
}
