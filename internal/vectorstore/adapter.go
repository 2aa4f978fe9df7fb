package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/notesrag/internal/ai"
	"go.uber.org/zap"
)

const DefaultTimeout = 30 * time.Second

type Embedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}

// Adapter isolates students by collection and turns chunk text into
// embedded records.
type Adapter struct {
	backend  Backend
	embedder Embedder
	timeout  time.Duration
}

func NewAdapter(backend Backend, embedder Embedder, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Adapter{backend: backend, embedder: embedder, timeout: timeout}
}

// Upsert writes chunks as {noteID}_chunk_{i}. Every chunk gets its own copy
// of metadata with note_id set.
func (a *Adapter) Upsert(ctx context.Context, studentID, noteID string, chunks []string, metadata map[string]string) error {
	if len(chunks) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	records := make([]Record, 0, len(chunks))
	for i, chunk := range chunks {
		vec, err := a.embedder.Embed(ctx, chunk, ai.TaskRetrievalDocument)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", i, err)
		}
		meta := copyMeta(metadata)
		meta[MetaNoteID] = noteID
		records = append(records, Record{
			ID:        ChunkID(noteID, i),
			Text:      chunk,
			Metadata:  meta,
			Embedding: vec,
		})
	}
	if err := a.backend.Upsert(ctx, CollectionKey(studentID), records); err != nil {
		return fmt.Errorf("upsert %d chunks: %w", len(records), err)
	}
	return nil
}

// Search never fails: embedding or backend errors are logged and yield no hits.
func (a *Adapter) Search(ctx context.Context, studentID, query string, k int, filter map[string]string) []Result {
	if k <= 0 {
		return []Result{}
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	logger := logutil.GetLogger(ctx).With(zap.String("student_id", studentID))
	vec, err := a.embedder.Embed(ctx, query, ai.TaskRetrievalQuery)
	if err != nil {
		logger.Error("embed query failed", zap.Error(err))
		return []Result{}
	}
	res, err := a.backend.Query(ctx, CollectionKey(studentID), vec, k, filter)
	if err != nil {
		logger.Error("vector query failed", zap.Error(err))
		return []Result{}
	}
	if len(res) > k {
		res = res[:k]
	}
	return res
}

// DeleteByNote is idempotent.
func (a *Adapter) DeleteByNote(ctx context.Context, studentID, noteID string) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.backend.DeleteWhere(ctx, CollectionKey(studentID), MetaNoteID, noteID); err != nil {
		return fmt.Errorf("delete chunks of note %s: %w", noteID, err)
	}
	return nil
}
