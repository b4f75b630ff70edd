package indexer

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-curator/internal/filesystem"
	"media-curator/internal/mediatypes"
)

func memMover(t *testing.T, files ...string) *filesystem.Mover {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fs, f, []byte("data"), 0o644))
	}
	return filesystem.NewMover(filesystem.NewSelector(filesystem.NewDirectStorageFs(fs), nil), filesystem.MoverOptions{})
}

func walkPaths(t *testing.T, pw *ParallelWalker) []string {
	t.Helper()
	found, err := pw.Walk()
	require.NoError(t, err)
	paths := make([]string, 0, len(found))
	for _, m := range found {
		paths = append(paths, m.Path)
	}
	sort.Strings(paths)
	return paths
}

func TestParallelWalker(t *testing.T) {
	t.Parallel()

	files := []string{
		"/root/a.jpg",
		"/root/b.txt",
		"/root/.c.jpg",
		"/root/sub/d.mkv",
		"/root/.git/e.jpg",
		"/root/skip/f.jpg",
		"/root/quiet/g.jpg",
		"/root/quiet/.nomedia",
	}

	tests := []struct {
		name string
		cfg  ParallelWalkerConfig
		want []string
	}{
		{
			name: "defaults skip hidden and marked folders",
			cfg:  ParallelWalkerConfig{NumWorkers: 3, SkipHidden: true},
			want: []string{"/root/a.jpg", "/root/skip/f.jpg", "/root/sub/d.mkv"},
		},
		{
			name: "skip dirs",
			cfg:  ParallelWalkerConfig{NumWorkers: 1, SkipHidden: true, SkipDirs: []string{"/root/skip/"}},
			want: []string{"/root/a.jpg", "/root/sub/d.mkv"},
		},
		{
			name: "hidden included",
			cfg:  ParallelWalkerConfig{NumWorkers: 2},
			want: []string{"/root/.c.jpg", "/root/.git/e.jpg", "/root/a.jpg", "/root/skip/f.jpg", "/root/sub/d.mkv"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pw := NewParallelWalker(context.Background(), memMover(t, files...), "/root", tt.cfg)
			assert.Equal(t, tt.want, walkPaths(t, pw))

			filesSeen, _, errs := pw.Stats()
			assert.Equal(t, int64(len(tt.want)), filesSeen)
			assert.Zero(t, errs)
		})
	}
}

func TestParallelWalkerStop(t *testing.T) {
	t.Parallel()

	pw := NewParallelWalker(context.Background(), memMover(t, "/root/a.jpg"), "/root", ParallelWalkerConfig{NumWorkers: 1})
	pw.Stop()

	_, err := pw.Walk()
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestMediaFromFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/x/photo.JPG", []byte("12345"), 0o644))
	info, err := fs.Stat("/x/photo.JPG")
	require.NoError(t, err)

	m, ok := mediaFromFile("/x/photo.JPG", info)
	require.True(t, ok)
	assert.Equal(t, "photo.JPG", m.Name)
	assert.Equal(t, "/x", m.ParentPath)
	assert.Equal(t, int64(5), m.Size)
	assert.Equal(t, mediatypes.TypeImage, m.Type)
	assert.Equal(t, m.LastModified, m.DateTaken)

	_, ok = mediaFromFile("/x/readme.md", info)
	assert.False(t, ok)
}

func TestDefaultParallelWalkerConfig(t *testing.T) {
	t.Setenv("CURATOR_WORKERS", "5")

	cfg := DefaultParallelWalkerConfig()
	assert.Equal(t, 5, cfg.NumWorkers)
	assert.True(t, cfg.SkipHidden)
	assert.Positive(t, cfg.ChannelBuffer)
}
