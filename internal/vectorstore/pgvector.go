package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/notesrag/internal/pkg/dbutil"
)

type pgvectorBackend struct {
	db *sql.DB
}

func init() {
	Register("pgvector", createPGVectorBackend)
}

func createPGVectorBackend(args interface{}, db *sql.DB) (Backend, error) {
	if db == nil {
		return nil, fmt.Errorf("pgvector backend requires a database")
	}
	return NewPGVectorBackend(db), nil
}

// NewPGVectorBackend stores chunks in the note_chunks table, one row per
// (collection, id).
func NewPGVectorBackend(db *sql.DB) Backend {
	return &pgvectorBackend{db: db}
}

func (p *pgvectorBackend) Upsert(ctx context.Context, collection string, records []Record) error {
	const query = `
		INSERT INTO note_chunks (collection, id, note_id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (collection, id) DO UPDATE SET
			note_id = EXCLUDED.note_id,
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding
	`
	return dbutil.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		for _, r := range records {
			meta, err := json.Marshal(r.Metadata)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query,
				collection,
				r.ID,
				r.Metadata[MetaNoteID],
				r.Text,
				string(meta),
				pgvector.NewVector(r.Embedding),
			); err != nil {
				return fmt.Errorf("upsert chunk %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

func (p *pgvectorBackend) Query(ctx context.Context, collection string, embedding []float32, k int, filter map[string]string) ([]Result, error) {
	if filter == nil {
		filter = map[string]string{}
	}
	where, err := json.Marshal(filter)
	if err != nil {
		return nil, err
	}
	const query = `
		SELECT id, content, metadata, 1 - (embedding <=> $1) AS score
		FROM note_chunks
		WHERE collection = $2 AND metadata @> $3::jsonb
		ORDER BY embedding <=> $1
		LIMIT $4
	`
	rows, err := p.db.QueryContext(ctx, query, pgvector.NewVector(embedding), collection, string(where), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Result, 0, k)
	for rows.Next() {
		var item Result
		var meta []byte
		if err := rows.Scan(&item.ID, &item.Text, &meta, &item.Score); err != nil {
			return nil, err
		}
		item.Metadata = map[string]string{}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &item.Metadata); err != nil {
				return nil, fmt.Errorf("decode chunk metadata: %w", err)
			}
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (p *pgvectorBackend) DeleteWhere(ctx context.Context, collection string, key string, value string) error {
	if key == MetaNoteID {
		_, err := p.db.ExecContext(ctx, `DELETE FROM note_chunks WHERE collection = $1 AND note_id = $2`, collection, value)
		return err
	}
	_, err := p.db.ExecContext(ctx, `DELETE FROM note_chunks WHERE collection = $1 AND metadata->>$2 = $3`, collection, key, value)
	return err
}
