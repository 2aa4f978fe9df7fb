package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
)

type chromaConfig struct {
	BaseURL string `json:"base_url"`
}

type chromaBackend struct {
	client chromago.Client

	mu          sync.Mutex
	collections map[string]chromago.Collection
}

func init() {
	Register("chroma", createChromaBackend)
}

func createChromaBackend(args interface{}, db *sql.DB) (Backend, error) {
	cfg := &chromaConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	opts := []chromago.ClientOption{}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, chromago.WithBaseURL(base))
	}
	client, err := chromago.NewHTTPClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create chroma client: %w", err)
	}
	return &chromaBackend{client: client, collections: make(map[string]chromago.Collection)}, nil
}

func (c *chromaBackend) collection(ctx context.Context, name string) (chromago.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if col, ok := c.collections[name]; ok {
		return col, nil
	}
	col, err := c.client.GetOrCreateCollection(
		ctx,
		name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(chromago.NewStringAttribute("hnsw:space", "cosine")),
		),
		chromago.WithEmbeddingFunctionCreate(precomputedEmbeddings{}),
	)
	if err != nil {
		return nil, fmt.Errorf("get or create collection %s: %w", name, err)
	}
	c.collections[name] = col
	return col, nil
}

func (c *chromaBackend) Upsert(ctx context.Context, collection string, records []Record) error {
	col, err := c.collection(ctx, collection)
	if err != nil {
		return err
	}
	ids := make([]chromago.DocumentID, 0, len(records))
	texts := make([]string, 0, len(records))
	vecs := make([]embeddings.Embedding, 0, len(records))
	metas := make([]chromago.DocumentMetadata, 0, len(records))
	for _, r := range records {
		attrs := make([]*chromago.MetaAttribute, 0, len(r.Metadata))
		for k, v := range r.Metadata {
			attrs = append(attrs, chromago.NewStringAttribute(k, v))
		}
		ids = append(ids, chromago.DocumentID(r.ID))
		texts = append(texts, r.Text)
		vecs = append(vecs, embeddings.NewEmbeddingFromFloat32(r.Embedding))
		metas = append(metas, chromago.NewDocumentMetadata(attrs...))
	}
	return col.Upsert(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(vecs...),
		chromago.WithMetadatas(metas...),
	)
}

func (c *chromaBackend) Query(ctx context.Context, collection string, embedding []float32, k int, filter map[string]string) ([]Result, error) {
	col, err := c.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	opts := []chromago.CollectionQueryOption{
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(embedding)),
		chromago.WithNResults(k),
	}
	if where := chromaWhere(filter); where != nil {
		opts = append(opts, chromago.WithWhereQuery(where))
	}
	res, err := col.Query(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("query chroma: %w", err)
	}
	idGroups := res.GetIDGroups()
	docGroups := res.GetDocumentsGroups()
	metaGroups := res.GetMetadatasGroups()
	distGroups := res.GetDistancesGroups()
	if len(idGroups) == 0 {
		return []Result{}, nil
	}
	out := make([]Result, 0, len(idGroups[0]))
	for i, id := range idGroups[0] {
		item := Result{ID: string(id), Metadata: map[string]string{}}
		if len(docGroups) > 0 && i < len(docGroups[0]) && docGroups[0][i] != nil {
			item.Text = docGroups[0][i].ContentString()
		}
		if len(metaGroups) > 0 && i < len(metaGroups[0]) && metaGroups[0][i] != nil {
			item.Metadata = metadataToMap(metaGroups[0][i])
		}
		if len(distGroups) > 0 && i < len(distGroups[0]) {
			// cosine space reports 1 - similarity
			item.Score = 1 - float64(distGroups[0][i])
		}
		out = append(out, item)
	}
	return out, nil
}

func (c *chromaBackend) DeleteWhere(ctx context.Context, collection string, key string, value string) error {
	col, err := c.collection(ctx, collection)
	if err != nil {
		return err
	}
	return col.Delete(ctx, chromago.WithWhereDelete(chromago.EqString(key, value)))
}

func chromaWhere(filter map[string]string) chromago.WhereFilter {
	if len(filter) == 0 {
		return nil
	}
	clauses := make([]chromago.WhereClause, 0, len(filter))
	for k, v := range filter {
		clauses = append(clauses, chromago.EqString(k, v))
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return chromago.And(clauses...)
}

// DocumentMetadata has no exported accessor for all keys, so go through JSON.
func metadataToMap(meta chromago.DocumentMetadata) map[string]string {
	out := map[string]string{}
	raw, err := json.Marshal(meta)
	if err != nil {
		return out
	}
	var values map[string]interface{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return out
	}
	for k, v := range values {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// precomputedEmbeddings keeps chroma from loading its default embedding
// function; vectors are always supplied by the adapter.
type precomputedEmbeddings struct{}

func (precomputedEmbeddings) EmbedDocuments(ctx context.Context, texts []string) ([]embeddings.Embedding, error) {
	return nil, fmt.Errorf("chroma collections expect precomputed embeddings")
}

func (precomputedEmbeddings) EmbedQuery(ctx context.Context, text string) (embeddings.Embedding, error) {
	return nil, fmt.Errorf("chroma collections expect precomputed embeddings")
}
