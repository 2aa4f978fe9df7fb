package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/xxxsen/notesrag/internal/ai"
	"github.com/xxxsen/notesrag/internal/extract"
	"github.com/xxxsen/notesrag/internal/model"
	appErr "github.com/xxxsen/notesrag/internal/pkg/errors"
	"github.com/xxxsen/notesrag/internal/pkg/timeutil"
	"github.com/xxxsen/notesrag/internal/vectorstore"
)

const (
	DefaultMaxStoredTextChars = 5000
	unknownLabel              = "Unknown"
)

type Extractor interface {
	Extract(ctx context.Context, data []byte, fileType string) string
}

type Classifier interface {
	Classify(ctx context.Context, text string) (*ai.Classification, error)
	Summarize(ctx context.Context, text string) (string, error)
}

type Chunker interface {
	Chunk(text string) []string
}

type Indexer interface {
	Upsert(ctx context.Context, studentID, noteID string, chunks []string, metadata map[string]string) error
	DeleteByNote(ctx context.Context, studentID, noteID string) error
}

type BlobStore interface {
	Save(ctx context.Context, key string, r io.ReadSeeker, size int64) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

type NoteCreator interface {
	Create(ctx context.Context, note *model.Note) error
}

type Upload struct {
	StudentID string
	FileName  string
	Source    string
	Data      []byte
}

type Result struct {
	Note   *model.Note `json:"note"`
	Report *Report     `json:"report"`
}

type Config struct {
	// MaxStoredTextChars bounds the text kept on the note record. The
	// vector index always receives the full text.
	MaxStoredTextChars int
}

type Orchestrator struct {
	extractor  Extractor
	classifier Classifier
	chunker    Chunker
	indexer    Indexer
	blobs      BlobStore
	notes      NoteCreator
	cfg        Config
}

func New(extractor Extractor, classifier Classifier, chunker Chunker, indexer Indexer, blobs BlobStore, notes NoteCreator, cfg Config) *Orchestrator {
	if cfg.MaxStoredTextChars <= 0 {
		cfg.MaxStoredTextChars = DefaultMaxStoredTextChars
	}
	return &Orchestrator{
		extractor:  extractor,
		classifier: classifier,
		chunker:    chunker,
		indexer:    indexer,
		blobs:      blobs,
		notes:      notes,
		cfg:        cfg,
	}
}

// FileType is the lowercased extension of name without the dot.
func FileType(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// Ingest runs an upload through every stage. Only an unsupported file type
// is rejected. Extraction, classification and indexing degrade instead of
// failing; storing the blob and persisting the note are required.
func (o *Orchestrator) Ingest(ctx context.Context, up *Upload) (*Result, error) {
	ctx, span := otel.Tracer("notesrag/ingest").Start(ctx, "ingest.upload")
	defer span.End()

	noteID := uuid.NewString()
	logger := logutil.GetLogger(ctx).With(
		zap.String("student_id", up.StudentID),
		zap.String("note_id", noteID),
		zap.String("file_name", up.FileName),
	)
	report := &Report{}
	report.add(StageReceived, StatusSuccess, "")

	fileType := FileType(up.FileName)
	span.SetAttributes(attribute.String("ingest.file_type", fileType), attribute.Int("ingest.size", len(up.Data)))
	if !extract.IsSupported(fileType) {
		report.add(StageTypeValidated, StatusFailed, "unsupported file type")
		logger.Info("upload rejected", zap.String("file_type", fileType))
		return nil, fmt.Errorf("file type %q: %w", fileType, appErr.ErrUnsupportedType)
	}
	report.add(StageTypeValidated, StatusSuccess, "")

	source := up.Source
	if source == "" {
		source = model.NoteSourceStudent
	}
	note := &model.Note{
		ID:        noteID,
		StudentID: up.StudentID,
		FileKey:   noteID + "." + fileType,
		FileName:  up.FileName,
		FileType:  fileType,
		Source:    source,
	}

	if err := o.blobs.Save(ctx, note.FileKey, bytes.NewReader(up.Data), int64(len(up.Data))); err != nil {
		report.add(StageStored, StatusFailed, err.Error())
		logger.Error("store upload failed", zap.Error(err))
		return nil, fmt.Errorf("store file: %w", err)
	}
	note.FileURL = o.blobs.URL(note.FileKey)
	report.add(StageStored, StatusSuccess, "")

	text := o.extractor.Extract(ctx, up.Data, fileType)
	if strings.TrimSpace(text) == "" {
		text = ""
		report.add(StageExtracted, StatusDegraded, "no text extracted")
	} else {
		report.add(StageExtracted, StatusSuccess, "")
	}

	o.classify(ctx, logger, note, text, report)
	o.index(ctx, logger, note, text, report)

	note.ExtractedText = truncate(text, o.cfg.MaxStoredTextChars)
	note.CreatedAt = timeutil.NowUnix()
	if err := o.notes.Create(ctx, note); err != nil {
		report.add(StagePersisted, StatusFailed, err.Error())
		logger.Error("persist note failed", zap.Error(err))
		o.rollback(ctx, logger, note)
		return nil, fmt.Errorf("persist note: %w", err)
	}
	report.add(StagePersisted, StatusSuccess, "")
	span.SetAttributes(attribute.Bool("ingest.degraded", report.Degraded()))
	logger.Info("note ingested", zap.Bool("degraded", report.Degraded()))
	return &Result{Note: note, Report: report}, nil
}

// rollback removes the chunks and file of an upload whose note record could
// not be written. No chunk may outlive its note.
func (o *Orchestrator) rollback(ctx context.Context, logger *zap.Logger, note *model.Note) {
	if err := o.indexer.DeleteByNote(ctx, note.StudentID, note.ID); err != nil {
		logger.Warn("remove indexed chunks after persist failure", zap.Error(err))
	}
	if err := o.blobs.Delete(ctx, note.FileKey); err != nil {
		logger.Warn("remove stored file after persist failure", zap.Error(err))
	}
}

// classify fills subject, topic, chapter and summary. The two model calls
// degrade independently.
func (o *Orchestrator) classify(ctx context.Context, logger *zap.Logger, note *model.Note, text string, report *Report) {
	if text == "" {
		report.add(StageClassified, StatusDegraded, "no text")
		return
	}
	var failures []string
	cls, err := o.classifier.Classify(ctx, text)
	if err != nil {
		logger.Warn("classify note failed", zap.Error(err))
		failures = append(failures, "classify: "+err.Error())
	} else if cls != nil {
		note.Subject = cls.Subject
		note.Topic = cls.Topic
		note.Chapter = cls.Chapter
	}
	summary, err := o.classifier.Summarize(ctx, text)
	if err != nil {
		logger.Warn("summarize note failed", zap.Error(err))
		failures = append(failures, "summarize: "+err.Error())
	} else {
		note.Summary = &summary
	}
	if len(failures) > 0 {
		report.add(StageClassified, StatusDegraded, strings.Join(failures, "; "))
		return
	}
	report.add(StageClassified, StatusSuccess, "")
}

func (o *Orchestrator) index(ctx context.Context, logger *zap.Logger, note *model.Note, text string, report *Report) {
	if text == "" {
		report.add(StageIndexed, StatusSkipped, "no text")
		return
	}
	chunks := o.chunker.Chunk(text)
	if len(chunks) == 0 {
		report.add(StageIndexed, StatusSkipped, "no chunks")
		return
	}
	meta := map[string]string{
		vectorstore.MetaSubject:  valueOr(note.Subject, unknownLabel),
		vectorstore.MetaTopic:    valueOr(note.Topic, unknownLabel),
		vectorstore.MetaFileName: note.FileName,
		vectorstore.MetaSource:   note.Source,
	}
	if err := o.indexer.Upsert(ctx, note.StudentID, note.ID, chunks, meta); err != nil {
		logger.Error("index note failed", zap.Int("chunks", len(chunks)), zap.Error(err))
		report.add(StageIndexed, StatusDegraded, err.Error())
		return
	}
	logger.Debug("note indexed", zap.Int("chunks", len(chunks)))
	report.add(StageIndexed, StatusSuccess, "")
}

func valueOr(v *string, def string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return def
	}
	return *v
}

func truncate(text string, max int) *string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) > max {
		text = string(runes[:max])
	}
	return &text
}
