package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"sync"
)

type memoryCollection struct {
	order   []string
	records map[string]Record
}

// MemoryBackend keeps everything in process and scores by brute force.
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: make(map[string]*memoryCollection)}
}

func init() {
	Register("memory", func(args interface{}, db *sql.DB) (Backend, error) {
		return NewMemoryBackend(), nil
	})
}

func (m *MemoryBackend) Upsert(ctx context.Context, collection string, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collection]
	if !ok {
		col = &memoryCollection{records: make(map[string]Record)}
		m.collections[collection] = col
	}
	for _, r := range records {
		if len(r.Embedding) == 0 {
			return fmt.Errorf("record %s has no embedding", r.ID)
		}
		if _, exists := col.records[r.ID]; !exists {
			col.order = append(col.order, r.ID)
		}
		r.Metadata = copyMeta(r.Metadata)
		r.Embedding = append([]float32(nil), r.Embedding...)
		col.records[r.ID] = r
	}
	return nil
}

func (m *MemoryBackend) Query(ctx context.Context, collection string, embedding []float32, k int, filter map[string]string) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.collections[collection]
	if !ok {
		return []Result{}, nil
	}
	out := make([]Result, 0, len(col.order))
	for _, id := range col.order {
		r := col.records[id]
		if !matchFilter(r.Metadata, filter) {
			continue
		}
		out = append(out, Result{
			ID:       r.ID,
			Text:     r.Text,
			Metadata: copyMeta(r.Metadata),
			Score:    cosine(embedding, r.Embedding),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *MemoryBackend) DeleteWhere(ctx context.Context, collection string, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collection]
	if !ok {
		return nil
	}
	kept := col.order[:0]
	for _, id := range col.order {
		if col.records[id].Metadata[key] == value {
			delete(col.records, id)
			continue
		}
		kept = append(kept, id)
	}
	col.order = kept
	return nil
}

// Count reports how many records a collection holds.
func (m *MemoryBackend) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if col, ok := m.collections[collection]; ok {
		return len(col.records)
	}
	return 0
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
