// internal/api/middleware.go
package api

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Corphon/TranslationStudio/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RateLimiter 固定窗口限流器，按 key 计数
type RateLimiter struct {
	limit    int
	window   time.Duration
	visitors map[string]*visitor
	mu       sync.Mutex
	now      func() time.Time
}

type visitor struct {
	remaining int
	reset     time.Time
}

// NewRateLimiter 创建限流器，limit <= 0 表示不限流
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		window:   window,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Allow 检查 key 是否还有剩余额度，返回剩余次数和窗口重置时间
func (rl *RateLimiter) Allow(key string) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[key]
	if !exists || now.After(v.reset) {
		// 顺带清理过期条目
		for k, old := range rl.visitors {
			if now.After(old.reset) {
				delete(rl.visitors, k)
			}
		}
		v = &visitor{remaining: rl.limit, reset: now.Add(rl.window)}
		rl.visitors[key] = v
	}

	if v.remaining <= 0 {
		return false, 0, v.reset
	}
	v.remaining--
	return true, v.remaining, v.reset
}

// Middleware 按客户端IP限流
func (rl *RateLimiter) Middleware(rh *ResponseHelper) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}

		allowed, remaining, reset := rl.Allow(c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			rh.Error(c, http.StatusTooManyRequests, ErrorRateLimited, "Rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequestID 为每个请求分配 request_id，优先沿用客户端提供的 X-Request-ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RequestLogger 记录请求日志和接口指标
func RequestLogger(logger *utils.Logger, metrics *utils.APIMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// 推送流是长连接，不计入请求耗时
		if strings.HasSuffix(c.FullPath(), "/stream") {
			return
		}

		duration := time.Since(start)
		status := c.Writer.Status()
		endpoint := endpointName(c.FullPath())
		metrics.RecordAPIRequest(endpoint, c.Request.Method, status, duration)

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"duration":   duration.Milliseconds(),
			"request_id": c.GetString("request_id"),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("请求失败", fields)
		} else {
			logger.Debug("请求完成", fields)
		}
	}
}

// endpointName 把路由模板转换成指标名，如 /api/chapters/:id -> chapters_id
func endpointName(path string) string {
	path = strings.TrimPrefix(path, "/api/")
	if path == "" {
		return "unknown"
	}
	path = strings.ReplaceAll(path, ":", "")
	return strings.ReplaceAll(path, "/", "_")
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, Origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
