// internal/api/router.go
package api

import (
	"fmt"
	"time"

	"github.com/Corphon/TranslationStudio/internal/di"
	"github.com/Corphon/TranslationStudio/internal/relay"
	"github.com/Corphon/TranslationStudio/internal/storage"
	"github.com/Corphon/TranslationStudio/internal/utils"
	"github.com/gin-gonic/gin"
)

// 默认每个IP每分钟的请求上限
const defaultRateLimit = 600

// SetupRouter 配置HTTP路由
func SetupRouter(container *di.Container) (*gin.Engine, error) {
	// ✅ 只从容器获取服务，不再创建新实例
	store, err := di.Resolve[storage.Store](container, di.ServiceStore)
	if err != nil {
		return nil, fmt.Errorf("存储服务未正确初始化: %w", err)
	}

	hub, err := di.Resolve[*Hub](container, di.ServiceHub)
	if err != nil {
		return nil, fmt.Errorf("广播中心未正确初始化: %w", err)
	}

	rl, err := di.Resolve[relay.Relay](container, di.ServiceRelay)
	if err != nil {
		return nil, fmt.Errorf("消息转发未正确初始化: %w", err)
	}

	logger, err := di.Resolve[*utils.Logger](container, di.ServiceLogger)
	if err != nil {
		logger = utils.GetLogger()
	}

	metrics, err := di.Resolve[*utils.MetricsCollector](container, di.ServiceMetrics)
	if err != nil {
		metrics = utils.GetMetricsCollector()
	}

	// 翻译引擎可以缺省，/api/translate 此时返回 503
	var translator Translator
	if t, err := di.Resolve[Translator](container, di.ServiceTranslator); err == nil {
		translator = t
	} else {
		logger.Warn("翻译引擎未注册", map[string]interface{}{"error": err.Error()})
	}

	handler := NewHandler(store, translator, hub, rl, logger, metrics)
	return newEngine(handler, defaultRateLimit, time.Minute), nil
}

// newEngine 注册中间件和路由
func newEngine(handler *Handler, rateLimit int, window time.Duration) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(RequestID())
	r.Use(RequestLogger(handler.logger, utils.NewAPIMetricsWith(handler.metrics, handler.logger)))
	r.Use(NewRateLimiter(rateLimit, window).Middleware(handler.Response))

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	{
		api.GET("/status", handler.GetStatus)

		// 书籍
		api.GET("/books", handler.ListBooks)
		api.POST("/books", handler.CreateBook)

		// 章节
		api.GET("/chapters", handler.ListChapters)
		api.POST("/chapters", handler.CreateChapter)
		api.PATCH("/chapters/:id", handler.UpdateChapter)

		// 翻译
		api.POST("/translate", handler.Translate)

		llmGroup := api.Group("/llm")
		{
			llmGroup.GET("/status", handler.GetLLMStatus)
			llmGroup.PUT("/config", handler.UpdateLLMConfig)
		}

		// 实时协作
		collabGroup := api.Group("/collab")
		{
			collabGroup.GET("/stream", handler.CollabStream)
			collabGroup.POST("/publish", handler.Publish)
			collabGroup.GET("/status", handler.GetStreamStatus)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		handler.Response.NotFound(c, ErrorNotFound, "接口不存在")
	})

	return r
}
