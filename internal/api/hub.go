// internal/api/hub.go
package api

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Corphon/TranslationStudio/internal/utils"
	"github.com/google/uuid"
)

// 每个订阅者的发送队列长度，队列满的订阅者会被断开
const clientQueueSize = 64

// StreamClient 一个实时更新订阅者（SSE 或 WebSocket）
type StreamClient struct {
	id        string
	transport string
	send      chan []byte
	createdAt time.Time

	mu     sync.Mutex
	closed bool
}

// trySend 非阻塞投递，队列满或已关闭时返回 false
func (client *StreamClient) trySend(message []byte) bool {
	client.mu.Lock()
	defer client.mu.Unlock()

	if client.closed {
		return false
	}
	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// close 关闭发送队列，可重复调用
func (client *StreamClient) close() {
	client.mu.Lock()
	defer client.mu.Unlock()

	if !client.closed {
		client.closed = true
		close(client.send)
	}
}

// Hub 把发布的实时更新广播给所有订阅者
type Hub struct {
	clients   map[*StreamClient]struct{}
	mutex     sync.RWMutex
	broadcast chan []byte
	count     int64

	logger  *utils.Logger
	metrics *utils.MetricsCollector
}

// NewHub 创建广播中心，需要调用 Run 启动
func NewHub(logger *utils.Logger, metrics *utils.MetricsCollector) *Hub {
	return &Hub{
		clients:   make(map[*StreamClient]struct{}),
		broadcast: make(chan []byte, 256),
		logger:    logger,
		metrics:   metrics,
	}
}

// Run 主循环，ctx 结束时断开所有订阅者
func (hub *Hub) Run(ctx context.Context) {
	for {
		select {
		case message := <-hub.broadcast:
			hub.broadcastMessage(message)
		case <-ctx.Done():
			hub.shutdown()
			return
		}
	}
}

// Register 同步注册订阅者，返回后即可收到广播
func (hub *Hub) Register(transport string) *StreamClient {
	client := &StreamClient{
		id:        uuid.NewString(),
		transport: transport,
		send:      make(chan []byte, clientQueueSize),
		createdAt: time.Now(),
	}

	hub.mutex.Lock()
	hub.clients[client] = struct{}{}
	hub.mutex.Unlock()

	atomic.AddInt64(&hub.count, 1)
	hub.metrics.SetGauge("stream_subscribers", atomic.LoadInt64(&hub.count))
	hub.logger.Info("✅ 实时更新订阅者已连接", map[string]interface{}{
		"client_id": client.id,
		"transport": transport,
	})
	return client
}

// Unregister 注销订阅者并关闭其队列，可重复调用
func (hub *Hub) Unregister(client *StreamClient) {
	hub.mutex.Lock()
	_, exists := hub.clients[client]
	delete(hub.clients, client)
	hub.mutex.Unlock()

	client.close()
	if !exists {
		return
	}

	atomic.AddInt64(&hub.count, -1)
	hub.metrics.SetGauge("stream_subscribers", atomic.LoadInt64(&hub.count))
	hub.logger.Info("🔌 实时更新订阅者已断开", map[string]interface{}{
		"client_id": client.id,
		"transport": client.transport,
		"duration":  time.Since(client.createdAt).Round(time.Second).String(),
	})
}

// Broadcast 排队一条消息，队列满时丢弃
func (hub *Hub) Broadcast(message []byte) {
	select {
	case hub.broadcast <- message:
	default:
		hub.metrics.IncrementCounter("live_updates_dropped")
		hub.logger.Warn("⚠️ 广播队列已满，消息被丢弃", nil)
	}
}

// ClientCount 当前订阅者数量
func (hub *Hub) ClientCount() int {
	return int(atomic.LoadInt64(&hub.count))
}

// Status 订阅者概况
func (hub *Hub) Status() map[string]interface{} {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()

	byTransport := map[string]int{}
	for client := range hub.clients {
		byTransport[client.transport]++
	}
	return map[string]interface{}{
		"total_connections": len(hub.clients),
		"by_transport":      byTransport,
	}
}

func (hub *Hub) broadcastMessage(message []byte) {
	hub.mutex.RLock()
	clients := make([]*StreamClient, 0, len(hub.clients))
	for client := range hub.clients {
		clients = append(clients, client)
	}
	hub.mutex.RUnlock()

	delivered := 0
	for _, client := range clients {
		if client.trySend(message) {
			delivered++
			continue
		}
		// 慢订阅者直接断开
		hub.logger.Warn("⚠️ 订阅者队列已满，断开连接", map[string]interface{}{"client_id": client.id})
		hub.Unregister(client)
	}

	hub.metrics.IncrementCounter("live_updates_broadcast")
	hub.metrics.AddCounter("live_updates_delivered", int64(delivered))
}

func (hub *Hub) shutdown() {
	hub.mutex.Lock()
	clients := hub.clients
	hub.clients = make(map[*StreamClient]struct{})
	hub.mutex.Unlock()

	for client := range clients {
		client.close()
	}
	atomic.StoreInt64(&hub.count, 0)
	hub.metrics.SetGauge("stream_subscribers", 0)
	hub.logger.Info("🛑 实时更新广播已关闭", nil)
}
