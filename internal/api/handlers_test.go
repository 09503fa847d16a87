package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Corphon/TranslationStudio/internal/models"
	"github.com/Corphon/TranslationStudio/internal/relay"
	"github.com/Corphon/TranslationStudio/internal/storage"
	"github.com/Corphon/TranslationStudio/internal/utils"
	"github.com/gin-gonic/gin"

	_ "github.com/Corphon/TranslationStudio/internal/llm/providers/echo"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubTranslator struct {
	err error
}

func (s *stubTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return strings.ToUpper(text) + " (" + source + ">" + target + ")", nil
}

func (s *stubTranslator) ProviderName() string { return "stub" }

type testEnv struct {
	handler *Handler
	engine  *gin.Engine
	metrics *utils.MetricsCollector
}

func newTestEnv(t *testing.T, translator Translator) *testEnv {
	t.Helper()
	return newTestEnvWithLimit(t, translator, 0)
}

func newTestEnvWithLimit(t *testing.T, translator Translator, limit int) *testEnv {
	t.Helper()

	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	logger := utils.NewLogger(nil)
	metrics := utils.NewMetricsCollector()
	hub := NewHub(logger, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	rl := relay.NewLocalRelay()
	if err := rl.Start(ctx, hub.Broadcast); err != nil {
		t.Fatalf("relay start: %v", err)
	}

	h := NewHandler(store, translator, hub, rl, logger, metrics)
	h.heartbeat = 50 * time.Millisecond

	return &testEnv{
		handler: h,
		engine:  newEngine(h, limit, time.Minute),
		metrics: metrics,
	}
}

func (env *testEnv) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out
}

func TestBooksAndChapters(t *testing.T) {
	env := newTestEnv(t, &stubTranslator{})

	w := env.request(t, http.MethodGet, "/api/books", nil)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("empty list = %d %s", w.Code, w.Body.String())
	}

	w = env.request(t, http.MethodPost, "/api/books", models.BookForm{Title: "Dune", Author: "Herbert"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create book = %d %s", w.Code, w.Body.String())
	}
	book := decode[models.Book](t, w)
	if book.ID.IsZero() || book.Title != "Dune" {
		t.Fatalf("unexpected book: %+v", book)
	}

	books := decode[[]models.Book](t, env.request(t, http.MethodGet, "/api/books", nil))
	if len(books) != 1 || books[0].ID != book.ID {
		t.Fatalf("books = %+v", books)
	}

	w = env.request(t, http.MethodPost, "/api/chapters", models.CreateChapterRequest{
		BookID:      book.ID,
		ChapterForm: models.ChapterForm{Title: "Ch 1", SourceText: "Hello"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create chapter = %d %s", w.Code, w.Body.String())
	}
	chapter := decode[models.Chapter](t, w)
	if chapter.SourceLanguage != models.DefaultSourceLanguage || chapter.TargetLanguage != models.DefaultTargetLanguage {
		t.Errorf("default languages not applied: %+v", chapter)
	}

	w = env.request(t, http.MethodPatch, "/api/chapters/"+chapter.ID.String(), models.UpdateTranslationRequest{TranslationText: "Hola"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d %s", w.Code, w.Body.String())
	}

	chapters := decode[[]models.Chapter](t, env.request(t, http.MethodGet, "/api/chapters?book_id="+book.ID.String(), nil))
	if len(chapters) != 1 || chapters[0].TranslationText != "Hola" {
		t.Fatalf("chapters = %+v", chapters)
	}
}

func TestErrorEnvelope(t *testing.T) {
	env := newTestEnv(t, &stubTranslator{})

	tests := []struct {
		name       string
		method     string
		path       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"缺少book_id", http.MethodGet, "/api/chapters", nil, http.StatusBadRequest, ErrorBadRequest},
		{"空标题", http.MethodPost, "/api/books", models.BookForm{Title: "  "}, http.StatusBadRequest, ErrorInvalidBook},
		{"章节缺少书籍", http.MethodPost, "/api/chapters", models.CreateChapterRequest{ChapterForm: models.ChapterForm{Title: "x"}}, http.StatusBadRequest, ErrorInvalidChapter},
		{"章节不存在", http.MethodPatch, "/api/chapters/6f1c1f5e-0000-4000-8000-000000000000", models.UpdateTranslationRequest{TranslationText: "x"}, http.StatusNotFound, ErrorChapterNotFound},
		{"未知接口", http.MethodGet, "/api/nope", nil, http.StatusNotFound, ErrorNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.request(t, tt.method, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			resp := decode[APIResponse](t, w)
			if resp.Success || resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Fatalf("unexpected envelope: %s", w.Body.String())
			}
			if resp.RequestID == "" {
				t.Error("request_id missing from envelope")
			}
		})
	}
}

func TestTranslateEndpoint(t *testing.T) {
	req := models.TranslateRequest{Text: "hi", SourceLanguage: "en", TargetLanguage: "fr"}

	t.Run("成功", func(t *testing.T) {
		env := newTestEnv(t, &stubTranslator{})
		w := env.request(t, http.MethodPost, "/api/translate", req)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d %s", w.Code, w.Body.String())
		}
		if got := decode[models.TranslateResponse](t, w).TranslatedText; got != "HI (en>fr)" {
			t.Fatalf("translated = %q", got)
		}
	})

	t.Run("引擎失败", func(t *testing.T) {
		env := newTestEnv(t, &stubTranslator{err: errors.New("quota exceeded")})
		w := env.request(t, http.MethodPost, "/api/translate", req)
		if w.Code != http.StatusBadGateway {
			t.Fatalf("status = %d", w.Code)
		}
		if resp := decode[APIResponse](t, w); resp.Error.Code != ErrorLLMServiceUnavailable {
			t.Fatalf("code = %s", resp.Error.Code)
		}
	})

	t.Run("未配置引擎", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.request(t, http.MethodPost, "/api/translate", req)
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d", w.Code)
		}
	})
}

func TestUpdateLLMConfigSwapsTranslator(t *testing.T) {
	env := newTestEnv(t, &stubTranslator{})

	w := env.request(t, http.MethodPut, "/api/llm/config", map[string]interface{}{"provider": "echo"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}
	if env.handler.Translator().ProviderName() != "echo" {
		t.Fatalf("provider = %s", env.handler.Translator().ProviderName())
	}

	w = env.request(t, http.MethodPut, "/api/llm/config", map[string]interface{}{"provider": "does-not-exist"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown provider status = %d", w.Code)
	}
	if resp := decode[APIResponse](t, w); resp.Error.Code != ErrorLLMConfigInvalid {
		t.Fatalf("code = %s", resp.Error.Code)
	}
	if env.handler.Translator().ProviderName() != "echo" {
		t.Fatal("failed update must keep the previous translator")
	}
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubTranslator{})
	env.handler.Hub.Register("sse")

	w := env.request(t, http.MethodGet, "/api/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	status := decode[models.Status](t, w)
	if status.Store != "file" || status.Translator != "stub" || status.Relay != "local" || status.Subscribers != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestPublishReachesHub(t *testing.T) {
	env := newTestEnv(t, &stubTranslator{})
	client := env.handler.Hub.Register("sse")

	w := env.request(t, http.MethodPost, "/api/collab/publish", models.LiveUpdate{ChapterID: "c1", User: "ana", Content: "hola"})
	if w.Code != http.StatusOK {
		t.Fatalf("publish = %d %s", w.Code, w.Body.String())
	}

	var got models.LiveUpdate
	if err := json.Unmarshal(recv(t, client), &got); err != nil {
		t.Fatalf("broadcast payload: %v", err)
	}
	if got.ChapterID != "c1" || got.User != "ana" || got.Content != "hola" {
		t.Fatalf("got %+v", got)
	}
	if env.metrics.GetCounterValue("live_updates_published") != 1 {
		t.Error("publish counter not incremented")
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, &stubTranslator{})
	w := env.request(t, http.MethodOptions, "/api/chapters/x", nil)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "PATCH") {
		t.Fatalf("PATCH not allowed: %s", w.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnvWithLimit(t, &stubTranslator{}, 2)

	for i := 0; i < 2; i++ {
		if w := env.request(t, http.MethodGet, "/api/books", nil); w.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, w.Code)
		}
	}
	w := env.request(t, http.MethodGet, "/api/books", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", w.Code)
	}
	if resp := decode[APIResponse](t, w); resp.Error.Code != ErrorRateLimited {
		t.Fatalf("code = %s", resp.Error.Code)
	}
}

func TestRateLimiterWindowResets(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Now()
	rl.now = func() time.Time { return now }

	if ok, _, _ := rl.Allow("ip"); !ok {
		t.Fatal("first request should pass")
	}
	if ok, _, _ := rl.Allow("ip"); ok {
		t.Fatal("second request should be limited")
	}

	now = now.Add(2 * time.Minute)
	if ok, remaining, _ := rl.Allow("ip"); !ok || remaining != 0 {
		t.Fatalf("after reset ok=%v remaining=%d", ok, remaining)
	}
}

func TestEndpointName(t *testing.T) {
	tests := map[string]string{
		"/api/books":         "books",
		"/api/chapters/:id":  "chapters_id",
		"/api/collab/stream": "collab_stream",
		"":                   "unknown",
	}
	for in, want := range tests {
		if got := endpointName(in); got != want {
			t.Errorf("endpointName(%q) = %q, want %q", in, got, want)
		}
	}
}
