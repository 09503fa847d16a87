// internal/collab/subscriber.go
package collab

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Corphon/TranslationStudio/internal/config"
	apperrors "github.com/Corphon/TranslationStudio/internal/errors"
	"github.com/Corphon/TranslationStudio/internal/models"
	"github.com/Corphon/TranslationStudio/internal/utils"
	"github.com/gorilla/websocket"
)

// StreamPath 推送更新流的路径
const StreamPath = "/api/collab/stream"

// Subscriber 打开到 /api/collab/stream 的推送连接
type Subscriber struct {
	baseURL   string
	transport string
	http      *http.Client
	dialer    *websocket.Dialer
	logger    *utils.Logger
	metrics   *utils.APIMetrics
}

// SubscriberOption 订阅器选项
type SubscriberOption func(*Subscriber)

// WithStreamHTTPClient 指定 SSE 使用的 http.Client（不应设置整体超时）
func WithStreamHTTPClient(hc *http.Client) SubscriberOption {
	return func(s *Subscriber) { s.http = hc }
}

// WithSubscriberLogger 指定日志
func WithSubscriberLogger(l *utils.Logger) SubscriberOption {
	return func(s *Subscriber) { s.logger = l }
}

// WithSubscriberMetrics 指定指标
func WithSubscriberMetrics(m *utils.APIMetrics) SubscriberOption {
	return func(s *Subscriber) { s.metrics = m }
}

// NewSubscriber 创建订阅器。transport 为 config.TransportSSE 或 config.TransportWebSocket。
func NewSubscriber(baseURL, transport string, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		baseURL:   strings.TrimRight(baseURL, "/"),
		transport: transport,
		http:      &http.Client{},
		dialer:    websocket.DefaultDialer,
		logger:    utils.GetLogger(),
		metrics:   utils.NewAPIMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe 打开一条连接。返回时连接已建立，消息由后台协程按序转发。
// chapterID 只用于标记订阅所属章节，流本身不按章节过滤。
func (s *Subscriber) Subscribe(ctx context.Context, chapterID models.ID) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	var err error
	var sub *Subscription
	switch s.transport {
	case config.TransportWebSocket:
		sub, err = s.subscribeWebSocket(ctx, cancel, chapterID)
	default:
		sub, err = s.subscribeSSE(ctx, cancel, chapterID)
	}
	if err != nil {
		cancel()
		return nil, err
	}

	s.logger.Debug("实时更新连接已建立", map[string]interface{}{
		"transport":  s.transport,
		"chapter_id": chapterID,
	})
	return sub, nil
}

func (s *Subscriber) subscribeSSE(ctx context.Context, cancel context.CancelFunc, chapterID models.ID) (*Subscription, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+StreamPath, nil)
	if err != nil {
		return nil, apperrors.NewProcessingError("创建流请求失败", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError("连接实时更新流失败", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, apperrors.NewStatusError("连接实时更新流失败", resp.StatusCode, string(body))
	}

	sub := newSubscription(chapterID, cancel)
	s.metrics.StreamOpened()
	go func() {
		defer s.metrics.StreamClosed()
		defer resp.Body.Close()
		defer sub.finish()
		defer cancel()

		events := NewEventReader(resp.Body)
		for {
			ev, err := events.Next()
			if err != nil {
				if err != io.EOF && ctx.Err() == nil {
					s.logger.Debug("实时更新流读取结束", map[string]interface{}{"error": err.Error()})
				}
				return
			}
			if ev.Type != "" && ev.Type != "message" {
				continue
			}
			if !s.forward(sub, []byte(ev.Data)) {
				return
			}
		}
	}()
	return sub, nil
}

func (s *Subscriber) subscribeWebSocket(ctx context.Context, cancel context.CancelFunc, chapterID models.ID) (*Subscription, error) {
	wsURL, err := WebSocketURL(s.baseURL + StreamPath)
	if err != nil {
		return nil, apperrors.NewProcessingError("解析流地址失败", err)
	}

	conn, resp, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, apperrors.NewStatusError("连接实时更新流失败", resp.StatusCode, "")
		}
		return nil, apperrors.NewNetworkError("连接实时更新流失败", err)
	}

	sub := newSubscription(chapterID, cancel)

	// 取消时关闭底层连接以打断阻塞的读取
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	s.metrics.StreamOpened()
	go func() {
		defer s.metrics.StreamClosed()
		defer sub.finish()
		defer cancel()

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Debug("实时更新连接读取错误", map[string]interface{}{"error": err.Error()})
				}
				return
			}
			if msgType != websocket.TextMessage {
				continue
			}
			if !s.forward(sub, data) {
				return
			}
		}
	}()
	return sub, nil
}

// forward 解析一条消息并投递，格式错误的消息静默丢弃
func (s *Subscriber) forward(sub *Subscription, data []byte) bool {
	msg, ok := DecodeLiveUpdate(data)
	if !ok {
		s.metrics.RecordLiveUpdate("malformed")
		return true
	}
	s.metrics.RecordLiveUpdate("received")
	return sub.Deliver(msg)
}

// DecodeLiveUpdate 解析一条实时更新，失败返回 false
func DecodeLiveUpdate(data []byte) (models.LiveUpdate, bool) {
	var msg models.LiveUpdate
	if err := json.Unmarshal(data, &msg); err != nil {
		return models.LiveUpdate{}, false
	}
	return msg, true
}

// WebSocketURL 把 http(s) 地址转换为 ws(s)
func WebSocketURL(httpURL string) (string, error) {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://"), nil
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://"), nil
	case strings.HasPrefix(httpURL, "ws://"), strings.HasPrefix(httpURL, "wss://"):
		return httpURL, nil
	default:
		return "", fmt.Errorf("unsupported scheme in %q", httpURL)
	}
}

// Event 一条 SSE 事件
type Event struct {
	Type string
	Data string
	ID   string
}

// EventReader 按 text/event-stream 规则切分事件
type EventReader struct {
	r *bufio.Reader
}

// NewEventReader 包装一个 SSE 响应体
func NewEventReader(r io.Reader) *EventReader {
	return &EventReader{r: bufio.NewReader(r)}
}

// Next 返回下一条带数据的事件。流结束时返回 io.EOF。
func (er *EventReader) Next() (Event, error) {
	var ev Event
	var data []string
	hasData := false

	for {
		line, err := er.r.ReadString('\n')
		// 末尾没有空行的事件不派发
		if err != nil && line == "" {
			return Event{}, err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasData {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
			ev = Event{}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			data = append(data, value)
			hasData = true
		case "event":
			ev.Type = value
		case "id":
			ev.ID = value
		}

		if err != nil {
			return Event{}, err
		}
	}
}
