package contentindex

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	idx, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "content.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestApplyBatchCountsMatchedRows(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	idx := openTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Register(ctx, "/p/a.jpg"))
	require.NoError(t, idx.Register(ctx, "/p/b.jpg"))
	require.NoError(t, idx.Register(ctx, "/p/b.jpg"))

	n, err := idx.ApplyBatch(ctx, []Update{
		{Path: "/p/a.jpg", DateTaken: 100},
		{Path: "/P/B.JPG", DateTaken: 200},
		{Path: "/p/unknown.jpg", DateTaken: 300},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ts, err := idx.DateTaken(ctx, "/p/b.jpg")
	require.NoError(t, err)
	assert.EqualValues(t, 200, ts)
}

func TestApplyBatchLimits(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	idx := openTestIndex(t)
	ctx := context.Background()

	n, err := idx.ApplyBatch(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	big := make([]Update, MaxBatchSize+1)
	for i := range big {
		big[i] = Update{Path: fmt.Sprintf("/p/%d.jpg", i)}
	}
	_, err = idx.ApplyBatch(ctx, big)
	assert.True(t, errors.Is(err, ErrBatchTooLarge))

	n, err = idx.ApplyBatch(ctx, big[:MaxBatchSize])
	require.NoError(t, err)
	assert.Zero(t, n, "no rows registered")
}
