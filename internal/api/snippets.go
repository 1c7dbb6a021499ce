package api

import (
	"database/sql"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fabricguide/internal/models"
)

const maxUploadBytes = 10 << 20 // 10 MB

var allowedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".html": true,
	".htm":  true,
	".json": true,
	".csv":  true,
}

func (h *Handler) listSnippets(c *gin.Context) {
	list, err := h.assistant.ListSnippets(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if list == nil {
		list = make([]*models.KnowledgeSnippet, 0)
	}
	c.JSON(http.StatusOK, gin.H{"snippets": list})
}

func (h *Handler) createSnippet(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	snippet, err := h.assistant.CreateSnippet(c.Request.Context(), req.Title, req.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, snippet)
}

// uploadSnippet turns an uploaded text document into a snippet. The file is
// staged in a temporary directory only for the duration of the import.
func (h *Handler) uploadSnippet(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes+1<<20)
	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	filename := filepath.Base(file.Filename)
	if !allowedExtensions[strings.ToLower(filepath.Ext(filename))] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		return
	}
	dir, err := os.MkdirTemp("", "fabricguide-upload-")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create directory failed"})
		return
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			h.logger.Warn("remove upload dir failed", zap.String("dir", dir), zap.Error(err))
		}
	}()
	dest := filepath.Join(dir, filename)
	if err := c.SaveUploadedFile(file, dest); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save file failed"})
		return
	}
	snippet, err := h.assistant.ImportSnippetFile(c.Request.Context(), dest, c.PostForm("title"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, snippet)
}

// updateSnippet sets the active flag, or flips it when the body omits it.
func (h *Handler) updateSnippet(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var req struct {
		Active *bool `json:"active"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	var (
		snippet *models.KnowledgeSnippet
		err     error
	)
	if req.Active != nil {
		snippet, err = h.assistant.SetSnippetActive(c.Request.Context(), id, *req.Active)
	} else {
		snippet, err = h.assistant.ToggleSnippet(c.Request.Context(), id)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "snippet not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snippet)
}

func (h *Handler) deleteSnippet(c *gin.Context) {
	if err := h.assistant.DeleteSnippet(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "snippet not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
