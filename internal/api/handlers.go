// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Corphon/TranslationStudio/internal/config"
	"github.com/Corphon/TranslationStudio/internal/llm"
	"github.com/Corphon/TranslationStudio/internal/models"
	"github.com/Corphon/TranslationStudio/internal/relay"
	"github.com/Corphon/TranslationStudio/internal/storage"
	"github.com/Corphon/TranslationStudio/internal/utils"
	"github.com/gin-gonic/gin"
)

// Translator 翻译服务
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
	ProviderName() string
}

// Handler 处理API请求
type Handler struct {
	Store    storage.Store
	Hub      *Hub
	Relay    relay.Relay
	Response *ResponseHelper

	translatorMu sync.RWMutex
	translator   Translator

	logger    *utils.Logger
	metrics   *utils.MetricsCollector
	heartbeat time.Duration
}

// NewHandler 创建处理器
func NewHandler(store storage.Store, translator Translator, hub *Hub, rl relay.Relay, logger *utils.Logger, metrics *utils.MetricsCollector) *Handler {
	return &Handler{
		Store:      store,
		Hub:        hub,
		Relay:      rl,
		Response:   NewResponseHelper(),
		translator: translator,
		logger:     logger,
		metrics:    metrics,
		heartbeat:  sseHeartbeatInterval,
	}
}

// Translator 当前翻译服务
func (h *Handler) Translator() Translator {
	h.translatorMu.RLock()
	defer h.translatorMu.RUnlock()
	return h.translator
}

// SetTranslator 替换翻译服务
func (h *Handler) SetTranslator(t Translator) {
	h.translatorMu.Lock()
	h.translator = t
	h.translatorMu.Unlock()
}

// ===============================
// 书籍
// ===============================

// ListBooks GET /api/books
func (h *Handler) ListBooks(c *gin.Context) {
	books, err := h.Store.ListBooks(c.Request.Context())
	if err != nil {
		h.Response.StoreError(c, err, ErrorBookNotFound, ErrorInvalidBook)
		return
	}
	if books == nil {
		books = []models.Book{}
	}
	c.JSON(http.StatusOK, books)
}

// CreateBook POST /api/books
func (h *Handler) CreateBook(c *gin.Context) {
	var form models.BookForm
	if err := c.ShouldBindJSON(&form); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	book, err := h.Store.CreateBook(c.Request.Context(), form)
	if err != nil {
		h.Response.StoreError(c, err, ErrorBookNotFound, ErrorInvalidBook)
		return
	}

	h.logger.Info("📚 书籍已创建", map[string]interface{}{"book_id": book.ID, "title": book.Title})
	c.JSON(http.StatusCreated, book)
}

// ===============================
// 章节
// ===============================

// ListChapters GET /api/chapters?book_id=
func (h *Handler) ListChapters(c *gin.Context) {
	bookID := models.ID(c.Query("book_id"))
	if bookID.IsZero() {
		h.Response.BadRequest(c, "book_id is required")
		return
	}

	chapters, err := h.Store.ListChapters(c.Request.Context(), bookID)
	if err != nil {
		h.Response.StoreError(c, err, ErrorBookNotFound, ErrorInvalidChapter)
		return
	}
	if chapters == nil {
		chapters = []models.Chapter{}
	}
	c.JSON(http.StatusOK, chapters)
}

// CreateChapter POST /api/chapters
func (h *Handler) CreateChapter(c *gin.Context) {
	var req models.CreateChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	chapter, err := h.Store.CreateChapter(c.Request.Context(), req)
	if err != nil {
		h.Response.StoreError(c, err, ErrorBookNotFound, ErrorInvalidChapter)
		return
	}

	h.logger.Info("📄 章节已创建", map[string]interface{}{
		"chapter_id": chapter.ID,
		"book_id":    chapter.BookID,
	})
	c.JSON(http.StatusCreated, chapter)
}

// UpdateChapter PATCH /api/chapters/:id
func (h *Handler) UpdateChapter(c *gin.Context) {
	var req models.UpdateTranslationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	chapter, err := h.Store.UpdateTranslation(c.Request.Context(), models.ID(c.Param("id")), req.TranslationText)
	if err != nil {
		h.Response.StoreError(c, err, ErrorChapterNotFound, ErrorInvalidChapter)
		return
	}
	c.JSON(http.StatusOK, chapter)
}

// ===============================
// 翻译
// ===============================

// Translate POST /api/translate
func (h *Handler) Translate(c *gin.Context) {
	var req models.TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	translator := h.Translator()
	if translator == nil {
		h.Response.Error(c, http.StatusServiceUnavailable, ErrorLLMServiceUnavailable, "翻译引擎未配置")
		return
	}

	text, err := translator.Translate(c.Request.Context(), req.Text, req.SourceLanguage, req.TargetLanguage)
	if err != nil {
		h.logger.Error("翻译失败", map[string]interface{}{
			"provider": translator.ProviderName(),
			"error":    err.Error(),
		})
		h.Response.Error(c, http.StatusBadGateway, ErrorLLMServiceUnavailable, "翻译失败", err.Error())
		return
	}

	c.JSON(http.StatusOK, models.TranslateResponse{TranslatedText: text})
}

// GetLLMStatus GET /api/llm/status
func (h *Handler) GetLLMStatus(c *gin.Context) {
	status := map[string]interface{}{
		"ready":     h.Translator() != nil,
		"providers": llm.ListProviders(),
	}
	if t := h.Translator(); t != nil {
		status["provider"] = t.ProviderName()
		status["models"] = llm.GetSupportedModelsForProvider(t.ProviderName())
	}
	if cfg := config.GetCurrentConfig(); cfg != nil {
		status["config"] = map[string]interface{}{
			"provider":    cfg.LLMProvider,
			"model":       cfg.LLMConfig["default_model"],
			"has_api_key": cfg.LLMConfig["api_key"] != "",
		}
	}
	c.JSON(http.StatusOK, status)
}

// UpdateLLMConfig PUT /api/llm/config
func (h *Handler) UpdateLLMConfig(c *gin.Context) {
	var req struct {
		Provider string            `json:"provider" binding:"required"`
		Config   map[string]string `json:"config"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}
	if req.Config == nil {
		req.Config = map[string]string{}
	}

	// 未提供密钥时沿用当前密钥
	if req.Config["api_key"] == "" {
		if cfg := config.GetCurrentConfig(); cfg != nil {
			req.Config["api_key"] = cfg.LLMConfig["api_key"]
		}
	}

	translator, err := llm.NewTranslator(req.Provider, req.Config)
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorLLMConfigInvalid, "翻译引擎配置无效", err.Error())
		return
	}

	if config.GetCurrentConfig() != nil {
		if err := config.UpdateLLMConfig(req.Provider, req.Config); err != nil {
			h.Response.InternalError(c, "保存配置失败", err.Error())
			return
		}
	}
	h.SetTranslator(translator)

	h.logger.Info("🔄 翻译引擎已切换", map[string]interface{}{"provider": req.Provider})
	c.JSON(http.StatusOK, gin.H{"provider": req.Provider})
}

// ===============================
// 实时更新
// ===============================

// Publish POST /api/collab/publish
func (h *Handler) Publish(c *gin.Context) {
	var update models.LiveUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	payload, err := json.Marshal(update)
	if err != nil {
		h.Response.InternalError(c, "序列化消息失败", err.Error())
		return
	}

	if err := h.Relay.Publish(c.Request.Context(), payload); err != nil {
		h.Response.Error(c, http.StatusBadGateway, ErrorPublishFailed, "发布实时更新失败", err.Error())
		return
	}

	h.metrics.IncrementCounter("live_updates_published")
	c.JSON(http.StatusOK, gin.H{"status": "published"})
}

// ===============================
// 系统状态
// ===============================

// GetStatus GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	status := models.Status{
		Store:       h.Store.Kind(),
		Subscribers: h.Hub.ClientCount(),
		Relay:       h.Relay.Name(),
		Metrics:     h.metrics.GetMetrics(),
	}
	if t := h.Translator(); t != nil {
		status.Translator = t.ProviderName()
	}
	c.JSON(http.StatusOK, status)
}

// GetStreamStatus GET /api/collab/status
func (h *Handler) GetStreamStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Hub.Status())
}
