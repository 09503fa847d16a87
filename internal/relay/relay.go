// internal/relay/relay.go
package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/Corphon/TranslationStudio/internal/utils"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel Redis 频道名
const DefaultChannel = "translation-studio:live"

// Relay 在服务实例之间转发实时更新。
// Publish 的每条消息都会交给所有实例 Start 时注册的 deliver。
type Relay interface {
	Name() string
	Publish(ctx context.Context, payload []byte) error
	Start(ctx context.Context, deliver func([]byte)) error
	Close() error
}

// LocalRelay 单进程转发，直接调用 deliver
type LocalRelay struct {
	mu      sync.RWMutex
	deliver func([]byte)
}

// NewLocalRelay 创建进程内转发
func NewLocalRelay() *LocalRelay {
	return &LocalRelay{}
}

func (r *LocalRelay) Name() string { return "local" }

func (r *LocalRelay) Start(ctx context.Context, deliver func([]byte)) error {
	r.mu.Lock()
	r.deliver = deliver
	r.mu.Unlock()
	return nil
}

func (r *LocalRelay) Publish(ctx context.Context, payload []byte) error {
	r.mu.RLock()
	deliver := r.deliver
	r.mu.RUnlock()

	if deliver == nil {
		return fmt.Errorf("relay not started")
	}
	deliver(payload)
	return nil
}

func (r *LocalRelay) Close() error { return nil }

// RedisRelay 通过 Redis pub/sub 在多个实例间转发
type RedisRelay struct {
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub
	logger  *utils.Logger
}

// NewRedisRelay 连接 Redis 并检查可用性
func NewRedisRelay(ctx context.Context, addr, channel string) (*RedisRelay, error) {
	if channel == "" {
		channel = DefaultChannel
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接Redis失败 %s: %w", addr, err)
	}

	return &RedisRelay{
		client:  client,
		channel: channel,
		logger:  utils.GetLogger(),
	}, nil
}

func (r *RedisRelay) Name() string { return "redis" }

// Start 订阅频道，确认订阅成功后在后台转发消息
func (r *RedisRelay) Start(ctx context.Context, deliver func([]byte)) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("订阅Redis频道失败: %w", err)
	}
	r.pubsub = pubsub

	go func() {
		for msg := range pubsub.Channel() {
			deliver([]byte(msg.Payload))
		}
		r.logger.Info("Redis转发已停止", map[string]interface{}{"channel": r.channel})
	}()

	r.logger.Info("📡 Redis转发已启动", map[string]interface{}{"channel": r.channel})
	return nil
}

func (r *RedisRelay) Publish(ctx context.Context, payload []byte) error {
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("发布到Redis失败: %w", err)
	}
	return nil
}

func (r *RedisRelay) Close() error {
	if r.pubsub != nil {
		r.pubsub.Close()
	}
	return r.client.Close()
}
