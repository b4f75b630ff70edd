package recyclebin

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-curator/internal/database"
	"media-curator/internal/filesystem"
	"media-curator/internal/mediatypes"
	"media-curator/internal/repair"
	"media-curator/internal/trashpath"
	"media-curator/internal/workers"
)

const stagingRoot = "/staging"

// faultyStorage breaks reads and renames of chosen sources and truncates
// writes to chosen destinations.
type faultyStorage struct {
	*filesystem.DirectStorage

	mu     sync.Mutex
	broken map[string]bool
	short  map[string]bool
}

func (s *faultyStorage) isBroken(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.broken[path]
}

func (s *faultyStorage) isShort(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.short[path]
}

func (s *faultyStorage) OpenRead(path string) (io.ReadCloser, error) {
	if s.isBroken(path) {
		return nil, errors.New("input/output error")
	}
	return s.DirectStorage.OpenRead(path)
}

func (s *faultyStorage) Rename(oldPath, newPath string) error {
	if s.isBroken(oldPath) {
		return errors.New("input/output error")
	}
	return s.DirectStorage.Rename(oldPath, newPath)
}

func (s *faultyStorage) OpenWrite(path string) (io.WriteCloser, error) {
	w, err := s.DirectStorage.OpenWrite(path)
	if err != nil || !s.isShort(path) {
		return w, err
	}
	return halfWriter{w}, nil
}

// halfWriter claims full writes but keeps only half of every buffer.
type halfWriter struct{ io.WriteCloser }

func (h halfWriter) Write(p []byte) (int, error) {
	if _, err := h.WriteCloser.Write(p[:len(p)/2]); err != nil {
		return 0, err
	}
	return len(p), nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNotifier) Invalidate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNotifier) seen() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

type fakeRepairer struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (f *fakeRepairer) Run(_ context.Context, paths []string) (*repair.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), paths...))
	return &repair.Report{Processed: len(paths)}, f.err
}

type testEnv struct {
	mgr      *Manager
	db       *database.Database
	fs       afero.Fs
	store    *faultyStorage
	notifier *recordingNotifier
	repairer *fakeRepairer
	tr       trashpath.Translator
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, _, err := database.New(context.Background(), filepath.Join(t.TempDir(), "index.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fs := afero.NewMemMapFs()
	store := &faultyStorage{
		DirectStorage: filesystem.NewDirectStorageFs(fs),
		broken:        map[string]bool{},
		short:         map[string]bool{},
	}
	mover := filesystem.NewMover(filesystem.NewSelector(store, nil), filesystem.MoverOptions{})

	env := &testEnv{
		db:       db,
		fs:       fs,
		store:    store,
		notifier: &recordingNotifier{},
		repairer: &fakeRepairer{},
		tr:       trashpath.New(stagingRoot, ""),
		now:      time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	}
	env.mgr = NewManager(db, mover, env.tr, env.notifier, env.repairer, workers.NewRunner(2), Options{
		Parallelism: 4,
		Now:         func() time.Time { return env.now },
	})
	return env
}

// addFile writes a file and indexes it as active media.
func (e *testEnv) addFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(e.fs, path, []byte(content), 0o644))
	require.NoError(t, e.db.UpsertMedia(context.Background(), &database.Media{
		Path:         path,
		Name:         filepath.Base(path),
		ParentPath:   filepath.Dir(path),
		Size:         int64(len(content)),
		LastModified: 1000,
		DateTaken:    1000,
		Type:         mediatypes.TypeImage,
	}))
	require.NoError(t, e.db.RefreshDirectory(context.Background(), filepath.Dir(path)))
}

func (e *testEnv) exists(t *testing.T, path string) bool {
	t.Helper()
	ok, err := afero.Exists(e.fs, path)
	require.NoError(t, err)
	return ok
}

func (e *testEnv) requireRow(t *testing.T, key string) *database.Media {
	t.Helper()
	m, err := e.db.GetMedia(context.Background(), key)
	require.NoError(t, err, "row %s", key)
	return m
}

func (e *testEnv) requireNoRow(t *testing.T, key string) {
	t.Helper()
	_, err := e.db.GetMedia(context.Background(), key)
	require.ErrorIs(t, err, database.ErrNotFound, "row %s", key)
}

func TestTrash_PrefixesRowAndStagesFile(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.addFile(t, "/media/a/x.jpg", "jpeg-bytes")

	res := env.mgr.Trash(ctx, []string{"/media/a/x.jpg"})
	require.True(t, res.Succeeded(), "%v", res.Err())
	require.Len(t, res.Results, 1)
	assert.Equal(t, "/staging/media/a/x.jpg", res.Results[0].NewPath)

	assert.False(t, env.exists(t, "/media/a/x.jpg"))
	assert.True(t, env.exists(t, "/staging/media/a/x.jpg"))

	row := env.requireRow(t, "recycle_bin/media/a/x.jpg")
	assert.Equal(t, database.StateTrashed, row.State)
	assert.Equal(t, env.now.UnixMilli(), row.DeletedTimestamp)
	env.requireNoRow(t, "/media/a/x.jpg")

	sentinel, err := env.db.GetDirectory(ctx, trashpath.SentinelPath)
	require.NoError(t, err)
	assert.Equal(t, 1, sentinel.MediaCount)
	assert.Equal(t, "/staging/media/a/x.jpg", sentinel.Thumbnail)

	_, err = env.db.GetDirectory(ctx, "/media/a")
	assert.ErrorIs(t, err, database.ErrNotFound, "emptied directory row should be dropped")

	assert.Contains(t, env.notifier.seen(), "/media/a/x.jpg")
}

func TestTrash_UnindexedFileGetsTrashedRow(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	require.NoError(t, afero.WriteFile(env.fs, "/media/new.png", []byte("png"), 0o644))

	res := env.mgr.Trash(context.Background(), []string{"/media/new.png"})
	require.True(t, res.Succeeded(), "%v", res.Err())

	row := env.requireRow(t, "recycle_bin/media/new.png")
	assert.Equal(t, database.StateTrashed, row.State)
	assert.Equal(t, int64(3), row.Size)
	assert.Equal(t, "/media", row.ParentPath)
}

func TestTrash_PartialFailureIsIsolated(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.addFile(t, "/media/A.jpg", "aaaa")
	env.addFile(t, "/media/B.jpg", "bbbb")
	env.store.broken["/media/B.jpg"] = true

	res := env.mgr.Trash(context.Background(), []string{"/media/A.jpg", "/media/B.jpg"})

	assert.False(t, res.Succeeded())
	require.Error(t, res.Err())
	require.Len(t, res.Results, 2)
	assert.Equal(t, OutcomeOK, res.Results[0].Outcome)
	assert.Equal(t, OutcomeIOError, res.Results[1].Outcome)
	assert.Len(t, res.Failed(), 1)

	assert.True(t, env.exists(t, "/staging/media/A.jpg"))
	env.requireRow(t, "recycle_bin/media/A.jpg")
	env.requireNoRow(t, "/media/A.jpg")

	assert.True(t, env.exists(t, "/media/B.jpg"))
	assert.False(t, env.exists(t, "/staging/media/B.jpg"))
	assert.Equal(t, database.StateActive, env.requireRow(t, "/media/B.jpg").State)
	env.requireNoRow(t, "recycle_bin/media/B.jpg")
}

func TestTrash_RejectsStagedPath(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	res := env.mgr.Trash(context.Background(), []string{"/staging/media/x.jpg"})
	require.Len(t, res.Results, 1)
	assert.ErrorIs(t, res.Results[0].Err(), ErrAlreadyTrashed)
}

func TestTrash_IndexFailureMovesFileBack(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.addFile(t, "/media/x.jpg", "data")
	require.NoError(t, env.db.Close())

	res := env.mgr.Trash(context.Background(), []string{"/media/x.jpg"})

	require.Len(t, res.Results, 1)
	assert.Equal(t, OutcomeIndexError, res.Results[0].Outcome)
	assert.True(t, env.exists(t, "/media/x.jpg"))
	assert.False(t, env.exists(t, "/staging/media/x.jpg"))
}

func TestRestore_RoundTrip(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.addFile(t, "/media/a/x.jpg", "original content")

	require.True(t, env.mgr.Trash(ctx, []string{"/media/a/x.jpg"}).Succeeded())

	res := env.mgr.Restore(ctx, []string{"/staging/media/a/x.jpg"})
	require.True(t, res.Succeeded(), "%v", res.Err())
	assert.Equal(t, "/media/a/x.jpg", res.Results[0].NewPath)

	data, err := afero.ReadFile(env.fs, "/media/a/x.jpg")
	require.NoError(t, err)
	assert.Equal(t, "original content", string(data))
	assert.False(t, env.exists(t, "/staging/media/a/x.jpg"))

	row := env.requireRow(t, "/media/a/x.jpg")
	assert.Equal(t, database.StateActive, row.State)
	assert.Zero(t, row.DeletedTimestamp)
	env.requireNoRow(t, "recycle_bin/media/a/x.jpg")

	_, err = env.db.GetDirectory(ctx, trashpath.SentinelPath)
	assert.ErrorIs(t, err, database.ErrNotFound)
	dir, err := env.db.GetDirectory(ctx, "/media/a")
	require.NoError(t, err)
	assert.Equal(t, 1, dir.MediaCount)

	require.Len(t, env.repairer.calls, 1)
	assert.Equal(t, []string{"/media/a/x.jpg"}, env.repairer.calls[0])
	require.NotNil(t, res.Repair)
	assert.Equal(t, 1, res.Repair.Processed)
}

func TestRestore_SizeMismatchKeepsStagedCopy(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.addFile(t, "/media/x.jpg", "0123456789")
	require.True(t, env.mgr.Trash(ctx, []string{"/media/x.jpg"}).Succeeded())
	env.store.short["/media/x.jpg"] = true

	res := env.mgr.Restore(ctx, []string{"/staging/media/x.jpg"})

	require.Len(t, res.Results, 1)
	assert.Equal(t, OutcomeVerifyFailed, res.Results[0].Outcome)
	assert.ErrorIs(t, res.Results[0].Err(), filesystem.ErrSizeMismatch)
	assert.False(t, env.exists(t, "/media/x.jpg"), "partial restore must be removed")
	assert.True(t, env.exists(t, "/staging/media/x.jpg"))
	env.requireRow(t, "recycle_bin/media/x.jpg")
	env.requireNoRow(t, "/media/x.jpg")
	assert.Empty(t, env.repairer.calls)
}

func TestRestore_RepairErrorDoesNotFailBatch(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.repairer.err = repair.ErrUnknown
	env.addFile(t, "/media/x.jpg", "data")
	require.True(t, env.mgr.Trash(ctx, []string{"/media/x.jpg"}).Succeeded())

	res := env.mgr.Restore(ctx, []string{"/staging/media/x.jpg"})

	assert.True(t, res.Succeeded())
	assert.Equal(t, repair.ErrUnknown.Error(), res.RepairError)
}

func TestRestore_RejectsUnstagedPath(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	res := env.mgr.Restore(context.Background(), []string{"/media/x.jpg"})
	require.Len(t, res.Results, 1)
	assert.ErrorIs(t, res.Results[0].Err(), trashpath.ErrNotStaged)
}

func TestEmpty_ClearsEverything(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.addFile(t, "/media/a/x.jpg", "x")
	env.addFile(t, "/media/b/y.jpg", "y")
	require.True(t, env.mgr.Trash(ctx, []string{"/media/a/x.jpg", "/media/b/y.jpg"}).Succeeded())

	require.NoError(t, env.mgr.Empty(ctx))

	entries, err := afero.ReadDir(env.fs, stagingRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)

	trashed, err := env.db.GetTrashedMedia(ctx)
	require.NoError(t, err)
	assert.Empty(t, trashed)

	_, err = env.db.GetDirectory(ctx, trashpath.SentinelPath)
	assert.ErrorIs(t, err, database.ErrNotFound)

	enabled, err := env.db.RecycleBinEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestEmpty_LeavesScratchFiles(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.addFile(t, "/media/a/x.jpg", "x")
	require.True(t, env.mgr.Trash(ctx, []string{"/media/a/x.jpg"}).Succeeded())
	scratch := stagingRoot + "/" + trashpath.ScratchPrefix + "x.jpg"
	require.NoError(t, afero.WriteFile(env.fs, scratch, []byte("partial"), 0o644))

	require.NoError(t, env.mgr.Empty(ctx))

	assert.True(t, env.exists(t, scratch))
	assert.False(t, env.exists(t, env.tr.ToRecycleBinPath("/media/a/x.jpg")))
}

func TestEmpty_MissingStagingRoot(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	assert.NoError(t, env.mgr.Empty(context.Background()))
}

func TestEmptyAndDisable_MakesDeletesPermanent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.addFile(t, "/media/x.jpg", "x")
	env.addFile(t, "/media/y.jpg", "y")
	require.True(t, env.mgr.Trash(ctx, []string{"/media/x.jpg"}).Succeeded())

	require.NoError(t, env.mgr.EmptyAndDisable(ctx))

	enabled, err := env.db.RecycleBinEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	res := env.mgr.Delete(ctx, []string{"/media/y.jpg"})
	require.True(t, res.Succeeded(), "%v", res.Err())
	assert.False(t, env.exists(t, "/media/y.jpg"))
	assert.False(t, env.exists(t, "/staging/media/y.jpg"))
	env.requireNoRow(t, "/media/y.jpg")
	env.requireNoRow(t, "recycle_bin/media/y.jpg")
}

func TestDelete_TrashesWhenEnabled(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.addFile(t, "/media/x.jpg", "x")

	res := env.mgr.Delete(context.Background(), []string{"/media/x.jpg"})
	require.True(t, res.Succeeded(), "%v", res.Err())
	assert.True(t, env.exists(t, "/staging/media/x.jpg"))
	env.requireRow(t, "recycle_bin/media/x.jpg")
}

func TestDelete_PurgesStagedPath(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	env.addFile(t, "/media/x.jpg", "x")
	require.True(t, env.mgr.Trash(ctx, []string{"/media/x.jpg"}).Succeeded())

	res := env.mgr.Delete(ctx, []string{"/staging/media/x.jpg"})
	require.True(t, res.Succeeded(), "%v", res.Err())
	assert.False(t, env.exists(t, "/staging/media/x.jpg"))
	env.requireNoRow(t, "recycle_bin/media/x.jpg")

	_, err := env.db.GetDirectory(ctx, trashpath.SentinelPath)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestSubmitTrash_ReturnsResultThroughTask(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.addFile(t, "/media/x.jpg", "x")

	task := env.mgr.SubmitTrash([]string{"/media/x.jpg"})
	require.NotEmpty(t, task.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := task.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, res.Succeeded())

	info, ok := env.mgr.Runner().Status(task.ID)
	require.True(t, ok)
	assert.Equal(t, workers.TaskSucceeded, info.State)
}

func TestSubmitEmpty_Disable(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := env.mgr.SubmitEmpty(true).Wait(ctx)
	require.NoError(t, err)

	enabled, err := env.db.RecycleBinEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestBatchResult(t *testing.T) {
	t.Parallel()

	res := &BatchResult{Results: []PathResult{
		ok("/a", "/staging/a"),
		ok("/b", ""),
		failed("/c", OutcomeIOError, os.ErrPermission),
	}}

	assert.False(t, res.Succeeded())
	assert.Equal(t, []string{"/staging/a", "/b"}, res.Done())
	require.Len(t, res.Failed(), 1)
	assert.ErrorIs(t, res.Err(), os.ErrPermission)
	assert.Contains(t, res.Err().Error(), "/c")

	assert.NoError(t, (&BatchResult{}).Err())
	assert.True(t, (&BatchResult{}).Succeeded())
}
