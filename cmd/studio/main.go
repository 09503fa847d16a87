// cmd/studio/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Corphon/TranslationStudio/internal/client"
	"github.com/Corphon/TranslationStudio/internal/collab"
	"github.com/Corphon/TranslationStudio/internal/config"
	"github.com/Corphon/TranslationStudio/internal/discovery"
	"github.com/Corphon/TranslationStudio/internal/tui"
	"github.com/Corphon/TranslationStudio/internal/utils"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	backendURL := flag.String("backend", cfg.BackendURL, "后端基础地址")
	transport := flag.String("transport", cfg.StreamTransport, "实时更新传输方式: sse 或 websocket")
	user := flag.String("user", cfg.EditorUser, "广播消息中的用户标签")
	discover := flag.Bool("discover", false, "通过 mDNS 在局域网内查找后端")
	flag.Parse()

	cfg.BackendURL = strings.TrimRight(*backendURL, "/")
	cfg.StreamTransport = strings.ToLower(*transport)
	cfg.EditorUser = *user

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *discover {
		backends, err := discovery.Browse(ctx, discovery.DefaultBrowseTimeout)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		if len(backends) == 0 {
			log.Fatalf("❌ 局域网内没有发现后端 (%s)", discovery.ServiceType)
		}
		for _, b := range backends {
			log.Printf("📡 发现后端 %s at %s (store: %s)", b.Instance, b.URL(), b.Store)
		}
		cfg.BackendURL = backends[0].URL()
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ %v", err)
	}

	// 终端界面运行时日志只写文件
	logger := utils.GetLogger()
	if err := logger.OpenFile(filepath.Join(cfg.LogDir, "studio.log")); err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer logger.Close()
	logger.SetConsole(nil)
	logger.SetLogLevel(utils.ParseLogLevel(cfg.LogLevel))
	logger.Info("🚀 TranslationStudio 启动", map[string]interface{}{
		"backend":   cfg.BackendURL,
		"transport": cfg.StreamTransport,
		"user":      cfg.EditorUser,
	})

	metrics := utils.NewAPIMetrics()
	backend := client.New(cfg.BackendURL, client.WithTimeout(cfg.RequestTimeout), client.WithMetrics(metrics))
	subscriber := collab.NewSubscriber(cfg.BackendURL, cfg.StreamTransport,
		collab.WithSubscriberLogger(logger),
		collab.WithSubscriberMetrics(metrics))

	ui := tui.New(ctx, backend, subscriber, tui.Config{
		User:       cfg.EditorUser,
		BackendURL: cfg.BackendURL,
		Transport:  cfg.StreamTransport,
		Logger:     logger,
		Metrics:    metrics,
	})

	go func() {
		<-ctx.Done()
		ui.Stop()
	}()

	if err := ui.Run(); err != nil {
		logger.Error("界面异常退出", map[string]interface{}{"error": err.Error()})
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	}
}
