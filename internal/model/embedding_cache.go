package model

// EmbeddingCache is a persisted vector for one piece of note text. Rows are
// addressed by embedder model, task type and the hex SHA-256 of the text, so
// a chunk uploaded again reuses its vector instead of calling the provider.
type EmbeddingCache struct {
	ModelName   string    `json:"model_name"`
	TaskType    string    `json:"task_type"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"embedding"`
	// CreatedAt is unix seconds; the retention job deletes by it.
	CreatedAt int64 `json:"ctime"`
}
