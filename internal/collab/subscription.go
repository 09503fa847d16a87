// internal/collab/subscription.go
package collab

import (
	"context"
	"sync"

	"github.com/Corphon/TranslationStudio/internal/models"
)

// 每个订阅缓冲的消息数
const updateBuffer = 64

// Subscription 一条推送更新连接的句柄，由打开它的编辑器独占。
// 消息按到达顺序从 Updates() 读出；连接关闭或流结束后通道关闭。
type Subscription struct {
	ChapterID models.ID

	updates chan models.LiveUpdate
	done    chan struct{}
	ending  chan struct{} // End 或 Close 时关闭，解除阻塞中的 Deliver
	cancel  context.CancelFunc

	mu       sync.Mutex
	finished bool
	once     sync.Once
	endOnce  sync.Once
}

func newSubscription(chapterID models.ID, cancel context.CancelFunc) *Subscription {
	if cancel == nil {
		cancel = func() {}
	}
	return &Subscription{
		ChapterID: chapterID,
		updates:   make(chan models.LiveUpdate, updateBuffer),
		done:      make(chan struct{}),
		ending:    make(chan struct{}),
		cancel:    cancel,
	}
}

// NewLocalSubscription 创建不依赖网络的订阅，消息通过 Deliver 注入。
// 用于进程内转发和测试。
func NewLocalSubscription(chapterID models.ID) *Subscription {
	return newSubscription(chapterID, nil)
}

// Updates 返回已解析的实时更新
func (s *Subscription) Updates() <-chan models.LiveUpdate {
	return s.updates
}

// Done 在 Close 被调用后关闭
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Deliver 投递一条消息，订阅已关闭时返回 false
func (s *Subscription) Deliver(msg models.LiveUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return false
	}
	select {
	case s.updates <- msg:
		return true
	case <-s.ending:
		return false
	}
}

// End 表示流已结束（服务端断开），关闭 Updates 通道
func (s *Subscription) End() {
	s.stop()
	s.finish()
}

// Close 断开连接，可重复调用
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.cancel()
	})
	s.stop()
	s.finish()
}

func (s *Subscription) stop() {
	s.endOnce.Do(func() { close(s.ending) })
}

func (s *Subscription) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return
	}
	s.finished = true
	close(s.updates)
}
