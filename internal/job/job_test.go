package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	cutoff int64
	err    error
}

func (f *fakeCache) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	f.cutoff = cutoff
	return 3, f.err
}

type fakeTemp struct {
	before time.Time
}

func (f *fakeTemp) CleanupTemp(ctx context.Context, before time.Time) (int, error) {
	f.before = before
	return 1, nil
}

func TestEmbeddingCacheCleanupCutoff(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cache := &fakeCache{}
	j := NewEmbeddingCacheCleanupJob(cache, 0)
	j.now = func() time.Time { return now }

	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, now.Add(-30*24*time.Hour).Unix(), cache.cutoff)

	j.maxAgeDays = 7
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, now.Add(-7*24*time.Hour).Unix(), cache.cutoff)

	cache.err = errors.New("db down")
	require.Error(t, j.Run(context.Background()))
}

func TestCleanupJobsWithoutTarget(t *testing.T) {
	require.NoError(t, NewEmbeddingCacheCleanupJob(nil, 1).Run(context.Background()))
	require.NoError(t, NewUploadTempCleanupJob(nil, time.Hour).Run(context.Background()))
}

func TestUploadTempCleanupCutoff(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := &fakeTemp{}
	j := NewUploadTempCleanupJob(store, 2*time.Hour)
	j.now = func() time.Time { return now }
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, now.Add(-2*time.Hour), store.before)
}
