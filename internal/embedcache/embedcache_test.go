package embedcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/notesrag/internal/model"
)

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) ModelName() string { return "test:model" }

type memStore struct {
	items  map[string][]float32
	getErr error
}

func (m *memStore) Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.items[modelName+"|"+taskType+"|"+contentHash]
	return v, ok, nil
}

func (m *memStore) Save(ctx context.Context, item *model.EmbeddingCache) error {
	m.items[item.ModelName+"|"+item.TaskType+"|"+item.ContentHash] = item.Embedding
	return nil
}

func TestLRUCachesByTaskType(t *testing.T) {
	inner := &countingEmbedder{}
	e := WrapLRU(inner, 16, time.Minute)
	ctx := context.Background()

	a, err := e.Embed(ctx, "hello", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "hello", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Equal(t, 1, inner.calls)

	_, err = e.Embed(ctx, "hello", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)

	// callers may mutate what they get back
	b[0] = 99
	c, _ := e.Embed(ctx, "hello", "RETRIEVAL_QUERY")
	require.Equal(t, float32(5), c[0])
	require.Equal(t, "test:model", e.ModelName())
}

func TestWrapDisabled(t *testing.T) {
	inner := &countingEmbedder{}
	require.Same(t, inner, WrapLRU(inner, 0, time.Minute))
	require.Same(t, inner, WrapStore(inner, nil))
}

func TestStoreFallsThroughOnReadError(t *testing.T) {
	inner := &countingEmbedder{}
	store := &memStore{items: map[string][]float32{}, getErr: errors.New("db down")}
	e := WrapStore(inner, store)
	res, err := e.Embed(context.Background(), "abc", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, []float32{3, 1}, res)
	require.Equal(t, 1, inner.calls)
}

func TestStoreHit(t *testing.T) {
	inner := &countingEmbedder{}
	store := &memStore{items: map[string][]float32{}}
	e := WrapStore(inner, store)
	ctx := context.Background()
	_, err := e.Embed(ctx, "abc", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	_, err = e.Embed(ctx, "abc", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)
	require.Len(t, store.items, 1)
}

func TestEmbedErrorNotCached(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("quota")}
	store := &memStore{items: map[string][]float32{}}
	e := WrapLRU(WrapStore(inner, store), 4, time.Minute)
	_, err := e.Embed(context.Background(), "x", "RETRIEVAL_QUERY")
	require.Error(t, err)
	require.Empty(t, store.items)
}
