// internal/client/client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/Corphon/TranslationStudio/internal/errors"
	"github.com/Corphon/TranslationStudio/internal/models"
	"github.com/Corphon/TranslationStudio/internal/utils"
)

// 错误响应体最多保留的字节数
const maxErrorBody = 4096

// Client 翻译工作室后端 REST 客户端
type Client struct {
	baseURL string
	http    *http.Client
	metrics *utils.APIMetrics
}

// Option 客户端选项
type Option func(*Client)

// WithHTTPClient 使用自定义 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout 设置单次请求超时
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithMetrics 指定指标记录器
func WithMetrics(m *utils.APIMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New 创建客户端，baseURL 形如 http://localhost:8000
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		metrics: utils.NewAPIMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL 返回后端基础地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListBooks GET /api/books
func (c *Client) ListBooks(ctx context.Context) ([]models.Book, error) {
	var books []models.Book
	if err := c.do(ctx, http.MethodGet, "/api/books", "books", nil, &books); err != nil {
		return nil, err
	}
	return books, nil
}

// CreateBook POST /api/books。成功以2xx状态为准，响应体不做要求。
func (c *Client) CreateBook(ctx context.Context, form models.BookForm) error {
	return c.do(ctx, http.MethodPost, "/api/books", "books", form, nil)
}

// ListChapters GET /api/chapters?book_id=
func (c *Client) ListChapters(ctx context.Context, bookID models.ID) ([]models.Chapter, error) {
	path := "/api/chapters?book_id=" + url.QueryEscape(bookID.String())

	var chapters []models.Chapter
	if err := c.do(ctx, http.MethodGet, path, "chapters", nil, &chapters); err != nil {
		return nil, err
	}
	return chapters, nil
}

// CreateChapter POST /api/chapters
func (c *Client) CreateChapter(ctx context.Context, bookID models.ID, form models.ChapterForm) error {
	req := models.CreateChapterRequest{ChapterForm: form, BookID: bookID}
	return c.do(ctx, http.MethodPost, "/api/chapters", "chapters", req, nil)
}

// UpdateTranslation PATCH /api/chapters/{id}
func (c *Client) UpdateTranslation(ctx context.Context, chapterID models.ID, text string) error {
	path := "/api/chapters/" + url.PathEscape(chapterID.String())
	req := models.UpdateTranslationRequest{TranslationText: text}
	return c.do(ctx, http.MethodPatch, path, "chapter", req, nil)
}

// Translate POST /api/translate
func (c *Client) Translate(ctx context.Context, req models.TranslateRequest) (string, error) {
	var resp models.TranslateResponse
	if err := c.do(ctx, http.MethodPost, "/api/translate", "translate", req, &resp); err != nil {
		return "", err
	}
	return resp.TranslatedText, nil
}

// Publish POST /api/collab/publish
func (c *Client) Publish(ctx context.Context, update models.LiveUpdate) error {
	return c.do(ctx, http.MethodPost, "/api/collab/publish", "publish", update, nil)
}

// Status GET /api/status
func (c *Client) Status(ctx context.Context) (*models.Status, error) {
	var status models.Status
	if err := c.do(ctx, http.MethodGet, "/api/status", "status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// do 发送一次 JSON 请求。out 为 nil 时忽略响应体。
func (c *Client) do(ctx context.Context, method, path, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.NewProcessingError("序列化请求失败", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.NewProcessingError("创建请求失败", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordAPIRequest(endpoint, method, 0, time.Since(start))
		return apperrors.NewNetworkError(method+" "+path+" 请求失败", err)
	}
	defer resp.Body.Close()
	c.metrics.RecordAPIRequest(endpoint, method, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apperrors.NewStatusError(method+" "+path, resp.StatusCode, string(data))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewDecodeError(method+" "+path+" 响应解析失败", err)
	}
	return nil
}
