package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notesrag/internal/ingest"
	"github.com/xxxsen/notesrag/internal/model"
	appErr "github.com/xxxsen/notesrag/internal/pkg/errors"
	"github.com/xxxsen/notesrag/internal/rag"
)

type NoteRepository interface {
	GetByID(ctx context.Context, studentID, noteID string) (*model.Note, error)
	List(ctx context.Context, studentID, subject string) ([]model.Note, error)
	Delete(ctx context.Context, studentID, noteID string, beforeCommit func(ctx context.Context) error) error
}

type Ingester interface {
	Ingest(ctx context.Context, up *ingest.Upload) (*ingest.Result, error)
}

type Answerer interface {
	Answer(ctx context.Context, studentID, question, subject string) *rag.Answer
}

type VectorDeleter interface {
	DeleteByNote(ctx context.Context, studentID, noteID string) error
}

type FileDeleter interface {
	Delete(ctx context.Context, key string) error
}

type NoteService struct {
	notes    NoteRepository
	ingester Ingester
	answerer Answerer
	vectors  VectorDeleter
	files    FileDeleter
}

func NewNoteService(notes NoteRepository, ingester Ingester, answerer Answerer, vectors VectorDeleter, files FileDeleter) *NoteService {
	return &NoteService{notes: notes, ingester: ingester, answerer: answerer, vectors: vectors, files: files}
}

func (s *NoteService) Upload(ctx context.Context, studentID, fileName, source string, data []byte) (*ingest.Result, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	if source != "" && !model.IsValidNoteSource(source) {
		return nil, fmt.Errorf("source %q: %w", source, appErr.ErrInvalid)
	}
	if strings.TrimSpace(fileName) == "" || len(data) == 0 {
		return nil, fmt.Errorf("empty upload: %w", appErr.ErrInvalid)
	}
	return s.ingester.Ingest(ctx, &ingest.Upload{
		StudentID: studentID,
		FileName:  fileName,
		Source:    source,
		Data:      data,
	})
}

func (s *NoteService) List(ctx context.Context, studentID, subject string) ([]model.Note, error) {
	return s.notes.List(ctx, studentID, subject)
}

func (s *NoteService) Get(ctx context.Context, studentID, noteID string) (*model.Note, error) {
	return s.notes.GetByID(ctx, studentID, noteID)
}

// Delete removes the note and its vectors together: the record delete only
// commits once the vectors are gone. The stored file is removed afterwards
// on a best effort basis.
func (s *NoteService) Delete(ctx context.Context, studentID, noteID string) error {
	note, err := s.notes.GetByID(ctx, studentID, noteID)
	if err != nil {
		return err
	}
	err = s.notes.Delete(ctx, studentID, noteID, func(ctx context.Context) error {
		return s.vectors.DeleteByNote(ctx, studentID, noteID)
	})
	if err != nil {
		return err
	}
	if s.files != nil && note.FileKey != "" {
		if err := s.files.Delete(ctx, note.FileKey); err != nil {
			logutil.GetLogger(ctx).Warn("remove note file failed",
				zap.String("note_id", noteID), zap.String("file_key", note.FileKey), zap.Error(err))
		}
	}
	return nil
}

func (s *NoteService) Ask(ctx context.Context, studentID, question, subject string) (*rag.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is required: %w", appErr.ErrInvalid)
	}
	return s.answerer.Answer(ctx, studentID, question, subject), nil
}
