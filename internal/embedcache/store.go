package embedcache

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/notesrag/internal/ai"
	"github.com/xxxsen/notesrag/internal/model"
	"github.com/xxxsen/notesrag/internal/pkg/timeutil"
	"go.uber.org/zap"
)

// Store persists vectors across restarts.
type Store interface {
	Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error)
	Save(ctx context.Context, item *model.EmbeddingCache) error
}

// WrapStore consults store before calling e. A failing store never fails
// the embedding; the call falls through to e.
func WrapStore(e ai.IEmbedder, store Store) ai.IEmbedder {
	if e == nil || store == nil {
		return e
	}
	return &storeEmbedder{next: e, store: store}
}

type storeEmbedder struct {
	next  ai.IEmbedder
	store Store
}

func (s *storeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	logger := logutil.GetLogger(ctx)
	key := newCacheKey(s.next.ModelName(), taskType, text)
	values, ok, err := s.store.Get(ctx, key.model, key.taskType, key.contentHash)
	if err != nil {
		logger.Warn("read embedding cache failed", zap.Error(err))
	}
	if ok {
		logger.Debug("embedding cache hit", zap.String("layer", "store"), zap.String("task_type", taskType))
		return values, nil
	}
	res, err := s.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, &model.EmbeddingCache{
		ModelName:   key.model,
		TaskType:    key.taskType,
		ContentHash: key.contentHash,
		Embedding:   res,
		CreatedAt:   timeutil.NowUnix(),
	}); err != nil {
		logger.Warn("save embedding cache failed", zap.Error(err))
	}
	return res, nil
}

func (s *storeEmbedder) ModelName() string {
	return s.next.ModelName()
}
