// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/Corphon/TranslationStudio/internal/api"
	"github.com/Corphon/TranslationStudio/internal/config"
	"github.com/Corphon/TranslationStudio/internal/di"
	"github.com/Corphon/TranslationStudio/internal/discovery"
	"github.com/Corphon/TranslationStudio/internal/llm"
	"github.com/Corphon/TranslationStudio/internal/relay"
	"github.com/Corphon/TranslationStudio/internal/storage"
	"github.com/Corphon/TranslationStudio/internal/utils"
	"github.com/gin-gonic/gin"

	// 注册翻译引擎
	_ "github.com/Corphon/TranslationStudio/internal/llm/providers/anthropic"
	_ "github.com/Corphon/TranslationStudio/internal/llm/providers/echo"
	_ "github.com/Corphon/TranslationStudio/internal/llm/providers/ollama"
	_ "github.com/Corphon/TranslationStudio/internal/llm/providers/openrouter"
)

const shutdownTimeout = 10 * time.Second

// App 开发后端应用
type App struct {
	config    *config.ServerConfig
	container *di.Container
	router    *gin.Engine
	logger    *utils.Logger
	metrics   *utils.MetricsCollector

	server     *http.Server
	listener   net.Listener
	advertiser *discovery.Advertiser

	cancel      context.CancelFunc
	stopChan    chan struct{}
	stopOnce    sync.Once
	cleanupOnce sync.Once
}

// New 创建应用实例，需要调用 Initialize
func New(cfg *config.ServerConfig) *App {
	return &App{
		config:    cfg,
		container: di.NewContainer(),
		logger:    utils.GetLogger(),
		metrics:   utils.GetMetricsCollector(),
		stopChan:  make(chan struct{}),
	}
}

// Initialize 加载配置、初始化服务并设置路由
func (a *App) Initialize(ctx context.Context) error {
	if err := config.InitConfig(a.config); err != nil {
		return fmt.Errorf("初始化配置系统失败: %w", err)
	}
	a.config = config.GetCurrentConfig()

	if err := a.initLogger(); err != nil {
		return err
	}

	if !a.config.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel

	if err := InitServices(runCtx, a.container, a.config, a.logger, a.metrics); err != nil {
		cancel()
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	router, err := api.SetupRouter(a.container)
	if err != nil {
		cancel()
		return fmt.Errorf("设置路由失败: %w", err)
	}
	a.router = router

	// 调试模式下定期输出指标快照
	if a.config.DebugMode {
		utils.NewAPIMetricsWith(a.metrics, a.logger).StartMetricsCollection(runCtx, 5*time.Minute)
	}

	a.logger.Info("✅ 应用初始化完成", map[string]interface{}{
		"services": a.container.GetNames(),
	})
	return nil
}

// initLogger 日志同时写入 LOG_DIR/server.log
func (a *App) initLogger() error {
	if a.config.LogDir == "" {
		return nil
	}
	if err := a.logger.OpenFile(filepath.Join(a.config.LogDir, "server.log")); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	if a.config.DebugMode {
		a.logger.SetLogLevel(utils.DEBUG)
	}
	return nil
}

// InitServices 按依赖顺序创建服务并注册到容器
func InitServices(ctx context.Context, container *di.Container, cfg *config.ServerConfig, logger *utils.Logger, metrics *utils.MetricsCollector) error {
	container.Register(di.ServiceLogger, logger)
	container.Register(di.ServiceMetrics, metrics)

	// 1. 存储
	var store storage.Store
	switch cfg.Store {
	case "postgres":
		pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		store = pg
	case "file", "":
		fs, err := storage.NewFileStore(cfg.DataDir)
		if err != nil {
			return err
		}
		store = fs
	default:
		return fmt.Errorf("未知的存储类型: %s", cfg.Store)
	}
	container.Register(di.ServiceStore, store)
	logger.Info("✅ 存储初始化完成", map[string]interface{}{"store": store.Kind()})

	// 2. 翻译引擎，配置无效时服务仍可启动
	translator, err := llm.NewTranslator(cfg.LLMProvider, cfg.LLMConfig)
	if err != nil {
		logger.Warn("⚠️ 翻译引擎初始化失败", map[string]interface{}{
			"provider": cfg.LLMProvider,
			"error":    err.Error(),
		})
	} else {
		container.Register(di.ServiceTranslator, translator)
		logger.Info("✅ 翻译引擎初始化完成", map[string]interface{}{"provider": cfg.LLMProvider})
	}

	// 3. 广播中心
	hub := api.NewHub(logger, metrics)
	go hub.Run(ctx)
	container.Register(di.ServiceHub, hub)

	// 4. 消息转发
	var rl relay.Relay
	if cfg.RedisAddr != "" {
		redisRelay, err := relay.NewRedisRelay(ctx, cfg.RedisAddr, relay.DefaultChannel)
		if err != nil {
			return err
		}
		rl = redisRelay
	} else {
		rl = relay.NewLocalRelay()
	}
	if err := rl.Start(ctx, hub.Broadcast); err != nil {
		rl.Close()
		return fmt.Errorf("启动消息转发失败: %w", err)
	}
	container.Register(di.ServiceRelay, rl)
	logger.Info("✅ 消息转发初始化完成", map[string]interface{}{"relay": rl.Name()})

	return nil
}

// Handler 返回 HTTP 处理器
func (a *App) Handler() http.Handler {
	return a.router
}

// Addr 实际监听地址，Run 之前为空
func (a *App) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Listen 绑定端口，PORT=0 时由系统分配
func (a *App) Listen() error {
	listener, err := net.Listen("tcp", ":"+a.config.Port)
	if err != nil {
		return fmt.Errorf("监听端口失败: %w", err)
	}
	a.listener = listener
	return nil
}

// Run 启动服务器，直到 ctx 结束或调用 Stop
func (a *App) Run(ctx context.Context) error {
	if a.router == nil {
		return errors.New("应用未初始化")
	}
	if a.listener == nil {
		if err := a.Listen(); err != nil {
			return err
		}
	}

	a.server = &http.Server{Handler: a.router}
	port := a.listener.Addr().(*net.TCPAddr).Port

	if a.config.MDNSEnabled {
		advertiser, err := discovery.Advertise(port, a.config.Store)
		if err != nil {
			a.logger.Warn("⚠️ mDNS 广播失败", map[string]interface{}{"error": err.Error()})
		} else {
			a.advertiser = advertiser
			a.logger.Info("📡 已在局域网广播服务", map[string]interface{}{"service": discovery.ServiceType, "port": port})
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("🌐 服务器已启动", map[string]interface{}{"addr": a.Addr()})
		if err := a.server.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("启动服务器失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	case <-a.stopChan:
	}

	a.logger.Info("🛑 正在关闭服务器...", nil)

	// 先结束推送流，否则长连接会拖住 Shutdown
	a.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("服务器强制关闭: %w", err)
	}

	a.logger.Info("✅ 服务器优雅关闭完成", nil)
	return nil
}

// Stop 通知 Run 退出
func (a *App) Stop() {
	a.stopOnce.Do(func() { close(a.stopChan) })
}

// Cleanup 释放所有资源
func (a *App) Cleanup() error {
	var err error
	a.cleanupOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
		}
		a.logger.Info("🧹 正在释放资源", nil)
		// 日志也注册在容器中，最后关闭
		err = errors.Join(a.advertiser.Close(), a.container.Close())
	})
	return err
}

// GetConfig 当前配置
func (a *App) GetConfig() *config.ServerConfig {
	return a.config
}

// GetDIContainer 依赖注入容器
func (a *App) GetDIContainer() *di.Container {
	return a.container
}

// IsDebugMode 是否调试模式
func (a *App) IsDebugMode() bool {
	return a.config != nil && a.config.DebugMode
}
