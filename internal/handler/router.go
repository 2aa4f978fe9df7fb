package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notesrag/internal/middleware"
)

type RouterDeps struct {
	Notes     *NoteHandler
	Files     *FileHandler
	JWTSecret []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.POST("/notes/upload", deps.Notes.Upload)
	authGroup.POST("/notes/ask", deps.Notes.Ask)
	authGroup.GET("/notes", deps.Notes.List)
	authGroup.GET("/notes/:id", deps.Notes.Get)
	authGroup.DELETE("/notes/:id", deps.Notes.Delete)

	api.GET("/files/:key", deps.Files.Get)
}
