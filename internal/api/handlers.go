package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fabricguide/internal/blueprint"
	"fabricguide/internal/config"
	"fabricguide/internal/export"
	"fabricguide/internal/models"
	"fabricguide/internal/presentation"
	"fabricguide/internal/service/assistant"
	"fabricguide/internal/worker"
)

// TurnManager runs conversation turns.
type TurnManager interface {
	Send(worker.TurnRequest) (*worker.TurnResult, error)
	Typing(conversationID int64) bool
	Phase(conversationID int64) worker.Phase
	Purge(conversationID int64)
}

// Exporter produces the blueprint download.
type Exporter interface {
	Export(ctx context.Context) (*export.Artifact, error)
}

// Handler wires HTTP routes to the assistant service, the turn manager and
// the page renderer.
type Handler struct {
	assistant *assistant.Service
	workers   TurnManager
	renderer  *presentation.Renderer
	exporter  Exporter
	cfg       *config.Config
	logger    *zap.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(service *assistant.Service, workers TurnManager, renderer *presentation.Renderer, exporter Exporter, cfg *config.Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return &Handler{
		assistant: service,
		workers:   workers,
		renderer:  renderer,
		exporter:  exporter,
		cfg:       cfg,
		logger:    logger,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.page)

	api := router.Group("/api")
	api.GET("/blueprint", h.getBlueprint)
	api.POST("/export", h.exportBlueprint)

	api.GET("/conversations", h.listConversations)
	api.POST("/conversations", h.createConversation)
	api.GET("/conversations/:id", h.getConversation)
	api.PATCH("/conversations/:id", h.renameConversation)
	api.DELETE("/conversations/:id", h.deleteConversation)
	api.POST("/conversations/:id/messages", h.sendMessage)

	api.GET("/snippets", h.listSnippets)
	api.POST("/snippets", h.createSnippet)
	api.POST("/snippets/upload", h.uploadSnippet)
	api.PATCH("/snippets/:id", h.updateSnippet)
	api.DELETE("/snippets/:id", h.deleteSnippet)
}

func conversationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) page(c *gin.Context) {
	ctx := c.Request.Context()
	data := presentation.PageData{
		Selection:   presentation.ParseSelection(c.Request.URL.Query()),
		IgnoreClass: h.cfg.Export.IgnoreClass,
	}
	if !data.Selection.Export {
		list, err := h.assistant.ListConversations(ctx)
		if err != nil {
			h.logger.Error("list conversations failed", zap.Error(err))
			c.String(http.StatusInternalServerError, "internal error")
			return
		}
		data.Conversations = list
		if id, err := strconv.ParseInt(c.Query("conversation"), 10, 64); err == nil && id > 0 {
			conv, messages, err := h.assistant.GetConversationWithMessages(ctx, id)
			switch {
			case err == nil:
				data.Conversation = &presentation.ConversationView{
					Conversation: conv,
					Messages:     messages,
					Typing:       h.workers.Typing(id),
				}
			case !errors.Is(err, sql.ErrNoRows):
				h.logger.Error("load conversation failed", zap.Int64("conversation_id", id), zap.Error(err))
			}
		}
	}
	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, data); err != nil {
		h.logger.Error("render page failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (h *Handler) getBlueprint(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"nodes":      blueprint.Nodes(),
		"steps":      blueprint.Steps(),
		"compliance": blueprint.ComplianceRules(),
	})
}

func (h *Handler) listConversations(c *gin.Context) {
	list, err := h.assistant.ListConversations(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if list == nil {
		list = make([]*models.Conversation, 0)
	}
	c.JSON(http.StatusOK, gin.H{"conversations": list})
}

type conversationRequest struct {
	Title    string `json:"title"`
	Mode     string `json:"mode"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Search   *bool  `json:"search"`
}

// options fills unset fields from the guide configuration.
func (h *Handler) options(req conversationRequest) (assistant.ConversationOptions, error) {
	raw := req.Mode
	if strings.TrimSpace(raw) == "" {
		raw = h.cfg.Guide.Mode
	}
	mode, err := models.ParseMode(raw)
	if err != nil {
		return assistant.ConversationOptions{}, err
	}
	opts := assistant.ConversationOptions{Title: req.Title, Mode: mode}
	if mode != models.ModeRemote {
		return opts, nil
	}
	opts.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
	if opts.Provider == "" {
		opts.Provider = h.cfg.Guide.Provider
	}
	if _, ok := h.cfg.Providers[opts.Provider]; !ok {
		return assistant.ConversationOptions{}, fmt.Errorf("unknown provider %q", opts.Provider)
	}
	opts.Model = strings.TrimSpace(req.Model)
	if opts.Model == "" {
		opts.Model = h.cfg.Providers[opts.Provider].Model
	}
	opts.Search = h.cfg.Guide.Search
	if req.Search != nil {
		opts.Search = *req.Search
	}
	return opts, nil
}

func (h *Handler) createConversation(c *gin.Context) {
	var req conversationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	opts, err := h.options(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conv, err := h.assistant.CreateConversation(c.Request.Context(), opts)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (h *Handler) getConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	conv, messages, err := h.assistant.GetConversationWithMessages(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if messages == nil {
		messages = make([]*models.Message, 0)
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation": conv,
		"messages":     messages,
		"typing":       h.workers.Typing(id),
		"phase":        h.workers.Phase(id),
	})
}

func (h *Handler) renameConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.assistant.UpdateConversationTitle(c.Request.Context(), id, req.Title); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	if h.workers.Typing(id) {
		c.JSON(http.StatusConflict, gin.H{"error": "a reply is still being generated"})
		return
	}
	if err := h.assistant.DeleteConversation(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.workers.Purge(id)
	c.Status(http.StatusNoContent)
}

// turnStatus maps turn errors raised before the user message was stored.
func turnStatus(err error) int {
	switch {
	case errors.Is(err, worker.ErrEmptyInput):
		return http.StatusNoContent
	case errors.Is(err, worker.ErrTurnInProgress):
		return http.StatusConflict
	case errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, worker.ErrDispatcherBusy), errors.Is(err, worker.ErrManagerClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) sendMessage(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	// SSE Request construction
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	sendEvent := func(event string, payload interface{}) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	// Headers are only committed once the user message is stored, so
	// rejected turns still get a plain status code.
	streaming := false
	result, err := h.workers.Send(worker.TurnRequest{
		Context:        c.Request.Context(),
		ConversationID: id,
		Content:        req.Content,
		AckFn: func(msg *models.Message) error {
			c.Writer.Header().Set("Content-Type", "text/event-stream")
			c.Writer.Header().Set("Cache-Control", "no-cache")
			c.Writer.Header().Set("Connection", "keep-alive")
			c.Writer.Header().Set("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)
			streaming = true
			return sendEvent("ack", msg)
		},
	})
	if !streaming {
		status := turnStatus(err)
		if status == http.StatusNoContent {
			c.Status(status)
			return
		}
		if errors.Is(err, worker.ErrDispatcherBusy) {
			c.JSON(status, gin.H{"error": "server is busy, please retry"})
			return
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if result != nil && result.Reply != nil {
		if err != nil {
			h.logger.Warn("turn answered with fallback", zap.Int64("conversation_id", id), zap.Error(err))
		}
		_ = sendEvent("done", result)
		return
	}
	msg := "reply failed"
	if err != nil {
		msg = err.Error()
	}
	_ = sendEvent("error", gin.H{"error": msg})
}

func (h *Handler) exportBlueprint(c *gin.Context) {
	if h.exporter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "export is not available"})
		return
	}
	art, err := h.exporter.Export(c.Request.Context())
	if err != nil {
		h.logger.Error("export failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "export failed, use the browser print dialog instead"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
	c.Data(http.StatusOK, art.ContentType(), art.Data)
}
