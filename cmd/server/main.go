// cmd/server/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Corphon/TranslationStudio/internal/app"
	"github.com/Corphon/TranslationStudio/internal/config"
)

func main() {
	log.Println("🚀 启动 TranslationStudio 开发后端...")

	// 1. 加载基础配置
	baseConfig, err := config.LoadServer()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("✅ 基础配置加载完成，端口: %s，存储: %s", baseConfig.Port, baseConfig.Store)

	// 2. 初始化应用（配置系统、服务、路由）
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := app.New(baseConfig)
	if err := application.Initialize(ctx); err != nil {
		log.Fatalf("❌ 初始化失败: %v", err)
	}
	defer application.Cleanup()

	// 3. 启动服务器，收到中断信号后优雅关闭
	if err := application.Listen(); err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Printf("🔗 访问地址: http://%s/api/status", application.Addr())

	if err := application.Run(ctx); err != nil {
		log.Printf("❌ %v", err)
		return
	}
}
