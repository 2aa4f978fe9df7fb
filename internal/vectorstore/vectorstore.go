package vectorstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

const (
	MetaNoteID   = "note_id"
	MetaSubject  = "subject"
	MetaTopic    = "topic"
	MetaFileName = "file_name"
	MetaSource   = "source"

	collectionPrefix  = "student_"
	collectionHashLen = 40
)

// Record is one chunk as handed to a backend.
type Record struct {
	ID        string
	Text      string
	Metadata  map[string]string
	Embedding []float32
}

// Result is a search hit. Score is cosine similarity, higher is closer.
type Result struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"score"`
}

// Backend stores embedded records in named collections. Collections are
// created on first use.
type Backend interface {
	Upsert(ctx context.Context, collection string, records []Record) error
	Query(ctx context.Context, collection string, embedding []float32, k int, filter map[string]string) ([]Result, error)
	DeleteWhere(ctx context.Context, collection string, key string, value string) error
}

// CollectionKey maps a student id to its private collection name.
func CollectionKey(studentID string) string {
	sum := sha256.Sum256([]byte(studentID))
	return collectionPrefix + hex.EncodeToString(sum[:])[:collectionHashLen]
}

func ChunkID(noteID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", noteID, index)
}

// Factory builds a backend from its config section. db is only used by
// backends living in the relational database.
type Factory func(args interface{}, db *sql.DB) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func NewBackend(name string, args interface{}, db *sql.DB) (Backend, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("vector_store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported vector store type: %s", name)
	}
	return factory(args, db)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode vector store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode vector store config: %w", err)
	}
	return nil
}

func matchFilter(meta map[string]string, filter map[string]string) bool {
	for k, v := range filter {
		if meta[k] != v {
			return false
		}
	}
	return true
}

func copyMeta(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src)+1)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
