package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/notesrag/internal/model"
)

// EmbeddingCacheRepo is the persistent layer under the in-process LRU. It
// satisfies embedcache.Store and job.CacheCleaner.
type EmbeddingCacheRepo struct {
	db *sql.DB
}

func NewEmbeddingCacheRepo(db *sql.DB) *EmbeddingCacheRepo {
	return &EmbeddingCacheRepo{db: db}
}

// Get reports ok=false without error on a miss.
func (r *EmbeddingCacheRepo) Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	var vec pgvector.Vector
	err := r.db.QueryRowContext(ctx,
		`SELECT embedding FROM embedding_cache
		 WHERE model_name = $1 AND task_type = $2 AND content_hash = $3`,
		modelName, taskType, contentHash,
	).Scan(&vec)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("read cached embedding: %w", err)
	}
	return vec.Slice(), true, nil
}

// Save stores item, replacing the vector and timestamp of an existing key.
func (r *EmbeddingCacheRepo) Save(ctx context.Context, item *model.EmbeddingCache) error {
	if len(item.Embedding) == 0 {
		return fmt.Errorf("save cached embedding: empty vector")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO embedding_cache (model_name, task_type, content_hash, embedding, ctime)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (model_name, task_type, content_hash)
		 DO UPDATE SET embedding = EXCLUDED.embedding, ctime = EXCLUDED.ctime`,
		item.ModelName, item.TaskType, item.ContentHash,
		pgvector.NewVector(item.Embedding), item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save cached embedding: %w", err)
	}
	return nil
}

// DeleteBefore drops entries written before cutoff (unix seconds) and
// returns how many went.
func (r *EmbeddingCacheRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM embedding_cache WHERE ctime < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire cached embeddings: %w", err)
	}
	return res.RowsAffected()
}
