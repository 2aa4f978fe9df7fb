package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/notesrag/internal/model"
	"github.com/xxxsen/notesrag/internal/pkg/dbutil"
	appErr "github.com/xxxsen/notesrag/internal/pkg/errors"
)

const tableNotes = "notes"

var noteColumns = []string{
	"id", "student_id", "subject", "topic", "chapter", "file_key", "file_url",
	"file_name", "file_type", "extracted_text", "summary", "source", "created_at",
}

type NoteRepo struct {
	db *sql.DB
}

func NewNoteRepo(db *sql.DB) *NoteRepo {
	return &NoteRepo{db: db}
}

func (r *NoteRepo) Create(ctx context.Context, note *model.Note) error {
	data := map[string]interface{}{
		"id":             note.ID,
		"student_id":     note.StudentID,
		"subject":        nullable(note.Subject),
		"topic":          nullable(note.Topic),
		"chapter":        nullable(note.Chapter),
		"file_key":       note.FileKey,
		"file_url":       note.FileURL,
		"file_name":      note.FileName,
		"file_type":      note.FileType,
		"extracted_text": nullable(note.ExtractedText),
		"summary":        nullable(note.Summary),
		"source":         note.Source,
		"created_at":     note.CreatedAt,
	}
	sqlStr, args, err := builder.BuildInsert(tableNotes, []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *NoteRepo) GetByID(ctx context.Context, studentID, noteID string) (*model.Note, error) {
	where := map[string]interface{}{
		"id":         noteID,
		"student_id": studentID,
	}
	sqlStr, args, err := builder.BuildSelect(tableNotes, where, noteColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErr.ErrNotFound
	}
	return scanNote(rows)
}

// List returns the student's notes newest first. subject, when set, is a
// case-insensitive substring match.
func (r *NoteRepo) List(ctx context.Context, studentID, subject string) ([]model.Note, error) {
	where := map[string]interface{}{
		"student_id": studentID,
		"_orderby":   "created_at desc",
	}
	if subject = strings.TrimSpace(subject); subject != "" {
		where["_custom_subject"] = builder.Custom("subject ILIKE ?", "%"+escapeLike(subject)+"%")
	}
	sqlStr, args, err := builder.BuildSelect(tableNotes, where, noteColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	notes := make([]model.Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *note)
	}
	return notes, rows.Err()
}

// Delete removes the note inside a transaction. beforeCommit runs after the
// row is gone but before commit; if it fails the row is restored.
func (r *NoteRepo) Delete(ctx context.Context, studentID, noteID string, beforeCommit func(ctx context.Context) error) error {
	where := map[string]interface{}{
		"id":         noteID,
		"student_id": studentID,
	}
	sqlStr, args, err := builder.BuildDelete(tableNotes, where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return dbutil.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, sqlStr, args...)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return appErr.ErrNotFound
		}
		if beforeCommit != nil {
			return beforeCommit(ctx)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNote(row rowScanner) (*model.Note, error) {
	var note model.Note
	var subject, topic, chapter, text, summary sql.NullString
	if err := row.Scan(
		&note.ID, &note.StudentID, &subject, &topic, &chapter, &note.FileKey, &note.FileURL,
		&note.FileName, &note.FileType, &text, &summary, &note.Source, &note.CreatedAt,
	); err != nil {
		return nil, err
	}
	note.Subject = fromNull(subject)
	note.Topic = fromNull(topic)
	note.Chapter = fromNull(chapter)
	note.ExtractedText = fromNull(text)
	note.Summary = fromNull(summary)
	return &note, nil
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
