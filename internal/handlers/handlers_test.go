package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-curator/internal/database"
	"media-curator/internal/filesystem"
	"media-curator/internal/indexer"
	"media-curator/internal/media"
	"media-curator/internal/recyclebin"
	"media-curator/internal/repair"
	"media-curator/internal/startup"
	"media-curator/internal/trashpath"
	"media-curator/internal/workers"
)

const (
	mediaRoot   = "/media"
	stagingRoot = "/media/.recycle_bin"
)

type apiEnv struct {
	router *mux.Router
	db     *database.Database
	fs     afero.Fs
	bin    *recyclebin.Manager
}

func newAPIEnv(t *testing.T, repairer recyclebin.Repairer) *apiEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, _, err := database.New(context.Background(), filepath.Join(t.TempDir(), "curator.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(mediaRoot, 0o755))
	mover := filesystem.NewMover(filesystem.NewSelector(filesystem.NewDirectStorageFs(fs), nil), filesystem.MoverOptions{})
	tr := trashpath.New(stagingRoot, "")

	runner := workers.NewRunner(2)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = runner.Shutdown(ctx)
	})

	bin := recyclebin.NewManager(db, mover, tr, nil, repairer, runner, recyclebin.Options{Parallelism: 2})
	idx := indexer.New(db, mover, tr, mediaRoot, 0)
	rot := media.NewRotator(mover, db, nil, media.RotatorOptions{ScratchDir: stagingRoot, MaxPixels: 4})

	h := New(db, bin, idx, rot, repairer, &startup.Config{MediaDir: mediaRoot, StagingDir: stagingRoot})
	r := mux.NewRouter()
	h.Register(r)

	return &apiEnv{router: r, db: db, fs: fs, bin: bin}
}

func (e *apiEnv) write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(e.fs, path, []byte(content), 0o644))
}

func (e *apiEnv) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func (e *apiEnv) exists(t *testing.T, path string) bool {
	t.Helper()
	ok, err := afero.Exists(e.fs, path)
	require.NoError(t, err)
	return ok
}

func TestTrashListRestore(t *testing.T) {
	t.Parallel()
	env := newAPIEnv(t, nil)
	env.write(t, "/media/album/a.jpg", "aaaa")

	w := env.do(t, http.MethodPost, "/api/trash", PathsRequest{Paths: []string{"/media/album/a.jpg"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[BatchResponse](t, w).Success)
	assert.True(t, env.exists(t, stagingRoot+"/media/album/a.jpg"))

	w = env.do(t, http.MethodGet, "/api/recycle-bin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	listing := decode[RecycleBinListing](t, w)
	assert.True(t, listing.Enabled)
	require.Len(t, listing.Items, 1)
	assert.Equal(t, "/media/album/a.jpg", listing.Items[0].OriginalPath)
	assert.Equal(t, stagingRoot+"/media/album/a.jpg", listing.Items[0].StagedPath)
	assert.Equal(t, int64(4), listing.TotalBytes)

	// Original paths are translated to their staged location.
	w = env.do(t, http.MethodPost, "/api/restore", PathsRequest{Paths: []string{"/media/album/a.jpg"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.exists(t, "/media/album/a.jpg"))
	assert.False(t, env.exists(t, stagingRoot+"/media/album/a.jpg"))

	row, err := env.db.GetMedia(context.Background(), "/media/album/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, database.StateActive, row.State)
}

func TestTrashPartialFailureIsMultiStatus(t *testing.T) {
	t.Parallel()
	env := newAPIEnv(t, nil)
	env.write(t, "/media/a.jpg", "a")

	w := env.do(t, http.MethodPost, "/api/trash", PathsRequest{Paths: []string{"/media/a.jpg", "/media/missing.jpg"}})
	require.Equal(t, http.StatusMultiStatus, w.Code)

	resp := decode[BatchResponse](t, w)
	assert.False(t, resp.Success)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, recyclebin.OutcomeOK, resp.Results[0].Outcome)
	assert.Equal(t, recyclebin.OutcomeIOError, resp.Results[1].Outcome)
	assert.NotEmpty(t, resp.Results[1].Error)
}

func TestRequestValidation(t *testing.T) {
	t.Parallel()
	env := newAPIEnv(t, nil)

	tests := []struct {
		name   string
		target string
		body   interface{}
	}{
		{"outside library", "/api/trash", PathsRequest{Paths: []string{"/etc/passwd"}}},
		{"relative path", "/api/delete", PathsRequest{Paths: []string{"media/a.jpg"}}},
		{"sibling prefix", "/api/trash", PathsRequest{Paths: []string{"/media2/a.jpg"}}},
		{"no paths", "/api/trash", PathsRequest{}},
		{"unknown field", "/api/trash", `{"paths":["/media/a.jpg"],"force":true}`},
		{"malformed", "/api/rename", `{"from":`},
		{"bad disable flag", "/api/recycle-bin/empty?disable=maybe", nil},
		{"enabled missing", "/api/recycle-bin/enabled", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := http.MethodPost
			if strings.HasSuffix(tt.target, "/enabled") {
				method = http.MethodPut
			}
			w := env.do(t, method, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, decode[map[string]string](t, w), "error")
		})
	}
}

func TestAsyncTrashReportsTask(t *testing.T) {
	t.Parallel()
	env := newAPIEnv(t, nil)
	env.write(t, "/media/a.jpg", "a")

	w := env.do(t, http.MethodPost, "/api/trash?async=true", PathsRequest{Paths: []string{"/media/a.jpg"}})
	require.Equal(t, http.StatusAccepted, w.Code)
	accepted := decode[map[string]string](t, w)
	id := accepted["taskId"]
	require.NotEmpty(t, id)
	assert.Equal(t, "/api/tasks/"+id, w.Header().Get("Location"))

	var info workers.TaskInfo
	for deadline := time.Now().Add(5 * time.Second); time.Now().Before(deadline); time.Sleep(10 * time.Millisecond) {
		w := env.do(t, http.MethodGet, "/api/tasks/"+id, nil)
		require.Equal(t, http.StatusOK, w.Code)
		if info = decode[workers.TaskInfo](t, w); info.State != workers.TaskRunning {
			break
		}
	}
	require.Equal(t, workers.TaskSucceeded, info.State, info.Error)

	assert.True(t, env.exists(t, stagingRoot+"/media/a.jpg"))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/tasks/unknown", nil).Code)
}

func TestEmptyAndDisableThenDeleteIsPermanent(t *testing.T) {
	t.Parallel()
	env := newAPIEnv(t, nil)
	env.write(t, "/media/a.jpg", "a")
	env.write(t, "/media/b.jpg", "b")

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/delete", PathsRequest{Paths: []string{"/media/a.jpg"}}).Code)
	assert.True(t, env.exists(t, stagingRoot+"/media/a.jpg"))

	w := env.do(t, http.MethodPost, "/api/recycle-bin/empty?disable=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, env.exists(t, stagingRoot+"/media/a.jpg"))

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/delete", PathsRequest{Paths: []string{"/media/b.jpg"}}).Code)
	assert.False(t, env.exists(t, "/media/b.jpg"))
	assert.False(t, env.exists(t, stagingRoot+"/media/b.jpg"))

	listing := decode[RecycleBinListing](t, env.do(t, http.MethodGet, "/api/recycle-bin", nil))
	assert.False(t, listing.Enabled)
	assert.Empty(t, listing.Items)

	w = env.do(t, http.MethodPut, "/api/recycle-bin/enabled", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	enabled, err := env.db.RecycleBinEnabled(context.Background())
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestRenameMoveHide(t *testing.T) {
	t.Parallel()
	env := newAPIEnv(t, nil)
	ctx := context.Background()
	env.write(t, "/media/a/x.jpg", "x")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/rescan", nil).Code)

	w := env.do(t, http.MethodPost, "/api/rename", RenameRequest{From: "/media/a", To: "/media/b"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, err := env.db.GetMedia(ctx, "/media/b/x.jpg")
	require.NoError(t, err)

	w = env.do(t, http.MethodPost, "/api/move", MoveRequest{Paths: []string{"/media/b/x.jpg"}, Destination: "/media/c"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.exists(t, "/media/c/x.jpg"))

	w = env.do(t, http.MethodPost, "/api/hide", HideRequest{Path: "/media/c/x.jpg", Hidden: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "/media/c/.x.jpg", decode[map[string]interface{}](t, w)["path"])

	w = env.do(t, http.MethodPost, "/api/rename", RenameRequest{From: "/media/nope.jpg", To: "/media/other.jpg"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFavorite(t *testing.T) {
	t.Parallel()
	env := newAPIEnv(t, nil)
	ctx := context.Background()
	env.write(t, "/media/a/x.jpg", "x")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/rescan", nil).Code)

	w := env.do(t, http.MethodPost, "/api/favorite", FavoriteRequest{Paths: []string{"/media/a/x.jpg"}, Favorite: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	row, err := env.db.GetMedia(ctx, "/media/a/x.jpg")
	require.NoError(t, err)
	assert.True(t, row.Favorite)

	w = env.do(t, http.MethodPost, "/api/favorite", FavoriteRequest{Paths: []string{"/media/a/x.jpg"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	row, err = env.db.GetMedia(ctx, "/media/a/x.jpg")
	require.NoError(t, err)
	assert.False(t, row.Favorite)

	w = env.do(t, http.MethodPost, "/api/favorite", FavoriteRequest{Paths: []string{"/media/a/missing.jpg"}, Favorite: true})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRotateOverBudgetIsDistinct(t *testing.T) {
	t.Parallel()
	env := newAPIEnv(t, nil)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 4, 2))))
	env.write(t, "/media/big.png", buf.String())

	w := env.do(t, http.MethodPost, "/api/rotate", RotateRequest{Path: "/media/big.png", Degrees: 90})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
}

func TestFixDates(t *testing.T) {
	t.Parallel()

	t.Run("unavailable without content index", func(t *testing.T) {
		t.Parallel()
		env := newAPIEnv(t, nil)
		w := env.do(t, http.MethodPost, "/api/fix-dates", FixDatesRequest{Paths: []string{"/media/a.jpg"}})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("directory expands to indexed media", func(t *testing.T) {
		t.Parallel()
		rep := &stubRepairer{}
		env := newAPIEnv(t, rep)
		env.write(t, "/media/d/1.jpg", "1")
		env.write(t, "/media/d/2.jpg", "2")
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/rescan", nil).Code)

		w := env.do(t, http.MethodPost, "/api/fix-dates", FixDatesRequest{Directory: "/media/d"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.ElementsMatch(t, []string{"/media/d/1.jpg", "/media/d/2.jpg"}, rep.paths)
		assert.Equal(t, 2, decode[repair.Report](t, w).Processed)
	})

	t.Run("unknown error maps to bad gateway", func(t *testing.T) {
		t.Parallel()
		env := newAPIEnv(t, &stubRepairer{err: repair.ErrUnknown})
		w := env.do(t, http.MethodPost, "/api/fix-dates", FixDatesRequest{Paths: []string{"/media/a.jpg"}})
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

type stubRepairer struct {
	paths []string
	err   error
}

func (s *stubRepairer) Run(_ context.Context, paths []string) (*repair.Report, error) {
	s.paths = append(s.paths, paths...)
	return &repair.Report{Processed: len(paths), Batches: []repair.BatchOutcome{}}, s.err
}

func TestListDirectoriesAndHealth(t *testing.T) {
	t.Parallel()
	env := newAPIEnv(t, nil)
	env.write(t, "/media/a/1.jpg", "1")
	env.write(t, "/media/b/2.jpg", "22")

	w := env.do(t, http.MethodPost, "/api/rescan", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, decode[indexer.Result](t, w).Files)

	dirs := decode[[]database.Directory](t, env.do(t, http.MethodGet, "/api/directories", nil))
	assert.Len(t, dirs, 2)

	items := decode[[]database.Media](t, env.do(t, http.MethodGet, "/api/directories?path=/media/b", nil))
	require.Len(t, items, 1)
	assert.Equal(t, "/media/b/2.jpg", items[0].Path)

	w = env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[HealthResponse](t, w)
	assert.Equal(t, statusHealthy, health.Status)
	assert.Equal(t, 2, health.ActiveMedia)
	assert.True(t, health.RecycleBinEnabled)
	assert.False(t, health.DateRepair)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/version", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodHead, "/livez", nil).Code)
}

func TestErrorStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", errBadRequest), http.StatusBadRequest},
		{fmt.Errorf("x: %w", recyclebin.ErrStagedPath), http.StatusBadRequest},
		{trashpath.ErrNotStaged, http.StatusBadRequest},
		{filesystem.ErrIsDirectory, http.StatusBadRequest},
		{filesystem.ErrPermissionDenied, http.StatusForbidden},
		{database.ErrNotFound, http.StatusNotFound},
		{&os.PathError{Op: "stat", Path: "/x", Err: os.ErrNotExist}, http.StatusNotFound},
		{os.ErrExist, http.StatusConflict},
		{indexer.ErrAlreadyRunning, http.StatusConflict},
		{fmt.Errorf("decode: %w", media.ErrResourceExhausted), http.StatusRequestEntityTooLarge},
		{repair.ErrUnknown, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.want {
			t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestIsSubPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		parent, child string
		want          bool
	}{
		{"/media", "/media", true},
		{"/media", "/media/a/b.jpg", true},
		{"/media/", "/media/a", true},
		{"/media", "/media2/a", false},
		{"/media", "/", false},
		{"/media", "/media/../etc", false},
	}
	for _, tt := range tests {
		if got := isSubPath(tt.parent, tt.child); got != tt.want {
			t.Errorf("isSubPath(%q, %q) = %v, want %v", tt.parent, tt.child, got, tt.want)
		}
	}
}
