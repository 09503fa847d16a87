package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Corphon/TranslationStudio/internal/client"
	"github.com/Corphon/TranslationStudio/internal/collab"
	"github.com/Corphon/TranslationStudio/internal/config"
	"github.com/Corphon/TranslationStudio/internal/di"
	"github.com/Corphon/TranslationStudio/internal/models"
	"github.com/Corphon/TranslationStudio/internal/utils"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T) *config.ServerConfig {
	t.Helper()
	t.Setenv("LLM_PROVIDER", "echo")
	dir := t.TempDir()
	return &config.ServerConfig{
		Port:        "0",
		DataDir:     filepath.Join(dir, "data"),
		LogDir:      filepath.Join(dir, "logs"),
		DebugMode:   true,
		Store:       "file",
		LLMProvider: "echo",
		LLMConfig:   map[string]string{},
	}
}

func newTestApp(t *testing.T, cfg *config.ServerConfig) *App {
	t.Helper()
	a := New(cfg)
	a.logger = utils.NewLogger(nil)
	a.metrics = utils.NewMetricsCollector()
	if err := a.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { a.Cleanup() })
	return a
}

func TestInitialize(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)

	for _, name := range []string{di.ServiceStore, di.ServiceTranslator, di.ServiceHub, di.ServiceRelay, di.ServiceLogger, di.ServiceMetrics} {
		if !a.GetDIContainer().Has(name) {
			t.Errorf("service %s not registered", name)
		}
	}
	if !a.IsDebugMode() {
		t.Error("debug mode should be on")
	}

	// 配置文件已创建
	if _, err := os.Stat(filepath.Join(cfg.DataDir, "config.json")); err != nil {
		t.Errorf("config.json missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.LogDir, "server.log")); err != nil {
		t.Errorf("server.log missing: %v", err)
	}
}

func TestInitializeUnknownStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store = "sqlite"

	a := New(cfg)
	a.logger = utils.NewLogger(nil)
	err := a.Initialize(context.Background())
	if err == nil || !strings.Contains(err.Error(), "sqlite") {
		t.Fatalf("Initialize error = %v", err)
	}
}

func TestInvalidTranslatorStillServes(t *testing.T) {
	cfg := testConfig(t)
	t.Setenv("LLM_PROVIDER", "anthropic")
	cfg.LLMProvider = "anthropic"

	a := newTestApp(t, cfg)
	if a.GetDIContainer().Has(di.ServiceTranslator) {
		t.Fatal("translator without api key should not be registered")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/translate", strings.NewReader(`{"text":"hi","source_language":"en","target_language":"es"}`))
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("translate status = %d", w.Code)
	}
}

// 启动真实服务器，客户端创建书籍并通过推送流收到广播
func TestRunServesAndShutsDown(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	if err := a.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	baseURL := "http://" + a.Addr()
	quiet := utils.NewAPIMetricsWith(utils.NewMetricsCollector(), utils.NewLogger(nil))
	api := client.New(baseURL, client.WithMetrics(quiet))

	if err := api.CreateBook(ctx, models.BookForm{Title: "Ficciones"}); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	sub, err := collab.NewSubscriber(baseURL, config.TransportSSE,
		collab.WithSubscriberLogger(utils.NewLogger(nil)),
		collab.WithSubscriberMetrics(quiet)).Subscribe(ctx, "")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		status, err := api.Status(ctx)
		if err == nil && status.Subscribers == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered: %+v %v", status, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := api.Publish(ctx, models.LiveUpdate{ChapterID: "1", User: "borges", Content: "Tlön"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case msg := <-sub.Updates():
		if msg.Content != "Tlön" {
			t.Fatalf("got %+v", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for live update")
	}

	a.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	// 关闭后推送流结束
	select {
	case _, ok := <-sub.Updates():
		for ok {
			_, ok = <-sub.Updates()
		}
	case <-time.After(3 * time.Second):
		t.Fatal("stream not closed after shutdown")
	}
}

func TestRunWithoutInitialize(t *testing.T) {
	a := New(testConfig(t))
	if err := a.Run(context.Background()); err == nil {
		t.Fatal("Run before Initialize should fail")
	}
}
