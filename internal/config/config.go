package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        int               `json:"port"`
	JWTSecret   string            `json:"jwt_secret"`
	Database    DatabaseConfig    `json:"database"`
	LogConfig   logger.LogConfig  `json:"log_config"`
	FileStore   FileStoreConfig   `json:"file_store"`
	VectorStore VectorStoreConfig `json:"vector_store"`
	AI          AIConfig          `json:"ai"`
	OCR         OCRConfig         `json:"ocr"`
	Notes       NotesConfig       `json:"notes"`
	EmbedCache  EmbedCacheConfig  `json:"embed_cache"`
	CORSOrigins []string          `json:"cors_origins"`
	RateLimitMS int               `json:"rate_limit_ms"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type VectorStoreConfig struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data"`
	Timeout int         `json:"timeout"`
}

type AIProviderConfig struct {
	Name     string      `json:"name"`
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type AIConfig struct {
	Generators        []AIProviderConfig `json:"generators"`
	Embedders         []AIProviderConfig `json:"embedders"`
	Timeout           int                `json:"timeout"`
	MaxInputChars     int                `json:"max_input_chars"`
	RequestsPerMinute int                `json:"requests_per_minute"`
}

type OCRConfig struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data"`
	Timeout int         `json:"timeout"`
}

type NotesConfig struct {
	ChunkSize          int   `json:"chunk_size"`
	ChunkOverlap       *int  `json:"chunk_overlap"`
	TopK               int   `json:"top_k"`
	MaxStoredTextChars int   `json:"max_stored_text_chars"`
	MaxUploadSize      int64 `json:"max_upload_size"`
}

type EmbedCacheConfig struct {
	LRUSize       int  `json:"lru_size"`
	LRUTTLSeconds int  `json:"lru_ttl_seconds"`
	Persist       bool `json:"persist"`
	RetentionDays int  `json:"retention_days"`
}

// Load reads a JSON (or YAML, by extension) config file. A .env file next to
// the working directory is loaded first and ${VAR} references in the file
// are expanded from the environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	content := []byte(os.ExpandEnv(string(raw)))
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		content, err = yamlToJSON(content)
		if err != nil {
			return nil, fmt.Errorf("decode yaml config: %w", err)
		}
	}
	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// yamlToJSON lets YAML files share the json tags and the loosely typed
// "data" sections.
func yamlToJSON(content []byte) ([]byte, error) {
	var m map[string]interface{}
	if err := yaml.Unmarshal(content, &m); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func (c *Config) applyDefaults() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.FileStore.Type == "" {
		c.FileStore.Type = "local"
	}
	if c.VectorStore.Type == "" {
		c.VectorStore.Type = "pgvector"
	}
	if c.OCR.Timeout <= 0 {
		c.OCR.Timeout = 120
	}
	if c.VectorStore.Timeout <= 0 {
		c.VectorStore.Timeout = 30
	}
	if len(c.AI.Embedders) == 0 {
		return fmt.Errorf("ai.embedders is required")
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 60
	}
	if c.Notes.ChunkSize == 0 {
		c.Notes.ChunkSize = 500
	}
	if c.Notes.ChunkOverlap == nil {
		overlap := 50
		c.Notes.ChunkOverlap = &overlap
	}
	if *c.Notes.ChunkOverlap >= c.Notes.ChunkSize || *c.Notes.ChunkOverlap < 0 {
		return fmt.Errorf("notes.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Notes.TopK <= 0 {
		c.Notes.TopK = 5
	}
	if c.Notes.MaxStoredTextChars <= 0 {
		c.Notes.MaxStoredTextChars = 5000
	}
	if c.Notes.MaxUploadSize <= 0 {
		c.Notes.MaxUploadSize = 20 << 20
	}
	if c.EmbedCache.LRUSize == 0 {
		c.EmbedCache.LRUSize = 2048
	}
	if c.EmbedCache.LRUTTLSeconds == 0 {
		c.EmbedCache.LRUTTLSeconds = 3600
	}
	if c.EmbedCache.RetentionDays <= 0 {
		c.EmbedCache.RetentionDays = 30
	}
	if c.RateLimitMS < 0 {
		c.RateLimitMS = 0
	}
	return nil
}
