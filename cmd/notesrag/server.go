package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/notesrag/internal/ai"
	"github.com/xxxsen/notesrag/internal/chunker"
	"github.com/xxxsen/notesrag/internal/config"
	"github.com/xxxsen/notesrag/internal/embedcache"
	"github.com/xxxsen/notesrag/internal/extract"
	"github.com/xxxsen/notesrag/internal/filestore"
	"github.com/xxxsen/notesrag/internal/handler"
	"github.com/xxxsen/notesrag/internal/ingest"
	"github.com/xxxsen/notesrag/internal/job"
	"github.com/xxxsen/notesrag/internal/middleware"
	"github.com/xxxsen/notesrag/internal/rag"
	"github.com/xxxsen/notesrag/internal/repo"
	"github.com/xxxsen/notesrag/internal/schedule"
	"github.com/xxxsen/notesrag/internal/service"
	"github.com/xxxsen/notesrag/internal/vectorstore"
)

func runServer(cfg *config.Config, db *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("ocr", cfg.OCR.Type),
	)

	noteRepo := repo.NewNoteRepo(db)
	cacheRepo := repo.NewEmbeddingCacheRepo(db)

	generator, err := buildGenerator(cfg.AI)
	if err != nil {
		return err
	}
	embedder, err := buildEmbedder(cfg.AI, cfg.EmbedCache, cacheRepo)
	if err != nil {
		return err
	}
	manager := ai.NewManager(generator, generator, generator, embedder, ai.ManagerConfig{
		Timeout:       cfg.AI.Timeout,
		MaxInputChars: cfg.AI.MaxInputChars,
	})

	ocr, err := extract.NewOCR(cfg.OCR.Type, cfg.OCR.Data)
	if err != nil {
		return fmt.Errorf("init ocr: %w", err)
	}
	ck, err := chunker.New(cfg.Notes.ChunkSize, *cfg.Notes.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("init chunker: %w", err)
	}
	backend, err := vectorstore.NewBackend(cfg.VectorStore.Type, cfg.VectorStore.Data, db)
	if err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}
	vectors := vectorstore.NewAdapter(backend, manager, time.Duration(cfg.VectorStore.Timeout)*time.Second)
	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	orchestrator := ingest.New(extract.New(ocr, extract.WithOCRTimeout(time.Duration(cfg.OCR.Timeout)*time.Second)), manager, ck, vectors, store, noteRepo, ingest.Config{
		MaxStoredTextChars: cfg.Notes.MaxStoredTextChars,
	})
	answerer := rag.New(vectors, manager, cfg.Notes.TopK)
	noteService := service.NewNoteService(noteRepo, orchestrator, answerer, vectors, store)

	deps := handler.RouterDeps{
		Notes:     handler.NewNoteHandler(noteService, cfg.Notes.MaxUploadSize),
		Files:     handler.NewFileHandler(store),
		JWTSecret: []byte(cfg.JWTSecret),
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			middleware.RateLimit(time.Duration(cfg.RateLimitMS)*time.Millisecond),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if cfg.EmbedCache.Persist {
		if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(cacheRepo, cfg.EmbedCache.RetentionDays), "@daily"); err != nil {
			return err
		}
	}
	if cleaner, ok := store.(job.TempCleaner); ok {
		if err := scheduler.AddJob(job.NewUploadTempCleanupJob(cleaner, 24*time.Hour), "@hourly"); err != nil {
			return err
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(ctx).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

// buildGenerator guards every configured generator on its own and falls back
// through them in order.
func buildGenerator(cfg config.AIConfig) (ai.IGenerator, error) {
	entries := make([]ai.GeneratorEntry, 0, len(cfg.Generators))
	for _, item := range cfg.Generators {
		provider, err := ai.NewProvider(item.Provider, item.Data)
		if err != nil {
			return nil, fmt.Errorf("init generator %s: %w", item.Name, err)
		}
		name := entryName(item)
		entries = append(entries, ai.GeneratorEntry{
			Name: name,
			Generator: ai.NewGuardedGenerator(ai.NewGenerator(provider, item.Model), ai.GuardConfig{
				Name:              name,
				RequestsPerMinute: cfg.RequestsPerMinute,
			}),
		})
	}
	if len(entries) == 0 {
		logutil.GetLogger(context.Background()).Warn("no generator configured, classification and answers will degrade")
	}
	return ai.NewGroupGenerator(entries), nil
}

// buildEmbedder layers the in-process LRU over the persistent cache over the
// provider group.
func buildEmbedder(cfg config.AIConfig, cacheCfg config.EmbedCacheConfig, cacheRepo *repo.EmbeddingCacheRepo) (ai.IEmbedder, error) {
	entries := make([]ai.EmbedderEntry, 0, len(cfg.Embedders))
	for _, item := range cfg.Embedders {
		provider, err := ai.NewEmbedProvider(item.Provider, item.Data)
		if err != nil {
			return nil, fmt.Errorf("init embedder %s: %w", item.Name, err)
		}
		entries = append(entries, ai.EmbedderEntry{
			Name:     entryName(item),
			Embedder: ai.NewEmbedder(provider, item.Model),
		})
	}
	embedder := ai.NewGroupEmbedder(entries)
	if cacheCfg.Persist {
		embedder = embedcache.WrapStore(embedder, cacheRepo)
	}
	return embedcache.WrapLRU(embedder, cacheCfg.LRUSize, time.Duration(cacheCfg.LRUTTLSeconds)*time.Second), nil
}

func entryName(item config.AIProviderConfig) string {
	if item.Name != "" {
		return item.Name
	}
	return item.Provider + ":" + item.Model
}
