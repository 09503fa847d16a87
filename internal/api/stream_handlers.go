// internal/api/stream_handlers.go
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	sseHeartbeatInterval = 15 * time.Second
	wsPingInterval       = 54 * time.Second
	wsPongWait           = 60 * time.Second
	wsWriteWait          = 10 * time.Second
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// CollabStream GET /api/collab/stream
// 升级请求走 WebSocket，其余按 SSE 处理
func (h *Handler) CollabStream(c *gin.Context) {
	if websocket.IsWebSocketUpgrade(c.Request) {
		h.streamWebSocket(c)
		return
	}
	h.streamSSE(c)
}

func (h *Handler) streamSSE(c *gin.Context) {
	client := h.Hub.Register("sse")
	defer h.Hub.Unregister(client)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	// 先发送注释行，让客户端尽快拿到响应头
	fmt.Fprint(c.Writer, ": connected\n\n")
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case message, ok := <-client.send:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", message); err != nil {
				return
			}
			c.Writer.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(c.Writer, ": heartbeat\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

func (h *Handler) streamWebSocket(c *gin.Context) {
	// 升级前注册，握手完成时已能收到广播
	client := h.Hub.Register("websocket")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Hub.Unregister(client)
		h.logger.Warn("WebSocket 升级失败", map[string]interface{}{"error": err.Error()})
		return
	}

	go h.wsReadPump(conn, client)
	h.wsWritePump(conn, client)
}

// wsReadPump 只处理控制帧，客户端发来的数据被忽略
func (h *Handler) wsReadPump(conn *websocket.Conn, client *StreamClient) {
	defer h.Hub.Unregister(client)

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket 读取错误", map[string]interface{}{"error": err.Error()})
			}
			return
		}
	}
}

func (h *Handler) wsWritePump(conn *websocket.Conn, client *StreamClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		h.Hub.Unregister(client)
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Debug("WebSocket 写入失败", map[string]interface{}{"error": err.Error()})
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
