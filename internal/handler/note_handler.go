package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notesrag/internal/model"
	"github.com/xxxsen/notesrag/internal/pkg/errcode"
	appErr "github.com/xxxsen/notesrag/internal/pkg/errors"
	"github.com/xxxsen/notesrag/internal/pkg/response"
	"github.com/xxxsen/notesrag/internal/service"
)

type NoteHandler struct {
	notes         *service.NoteService
	maxUploadSize int64
}

func NewNoteHandler(notes *service.NoteService, maxUploadSize int64) *NoteHandler {
	return &NoteHandler{notes: notes, maxUploadSize: maxUploadSize}
}

type askRequest struct {
	Question string `json:"question"`
	Subject  string `json:"subject"`
}

type listResponse struct {
	Total int          `json:"total"`
	Notes []model.Note `json:"notes"`
}

func (h *NoteHandler) Upload(c *gin.Context) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+multipartOverhead)
	}
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handleError(c, fileTooLarge(h.maxUploadSize))
			return
		}
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxUploadSize > 0 && file.Size > h.maxUploadSize {
		handleError(c, fileTooLarge(h.maxUploadSize))
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	data, err := io.ReadAll(opened)
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to read file")
		return
	}
	result, err := h.notes.Upload(c.Request.Context(), getUserID(c), filepath.Base(file.Filename), c.PostForm("source"), data)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"note":     result.Note,
		"stages":   result.Report.Stages,
		"degraded": result.Report.Degraded(),
	})
}

func (h *NoteHandler) List(c *gin.Context) {
	notes, err := h.notes.List(c.Request.Context(), getUserID(c), c.Query("subject"))
	if err != nil {
		handleError(c, err)
		return
	}
	if notes == nil {
		notes = []model.Note{}
	}
	response.Success(c, listResponse{Total: len(notes), Notes: notes})
}

func (h *NoteHandler) Get(c *gin.Context) {
	note, err := h.notes.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, note)
}

func (h *NoteHandler) Delete(c *gin.Context) {
	if err := h.notes.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *NoteHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	answer, err := h.notes.Ask(c.Request.Context(), getUserID(c), req.Question, req.Subject)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, answer)
}

func fileTooLarge(limit int64) error {
	return fmt.Errorf("%w (max %s)", appErr.ErrFileTooLarge, formatUploadLimit(limit))
}
