// internal/di/container.go
package di

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// 容器中的服务名称
const (
	ServiceStore      = "store"
	ServiceTranslator = "translator"
	ServiceHub        = "hub"
	ServiceRelay      = "relay"
	ServiceLogger     = "logger"
	ServiceMetrics    = "metrics"
)

// Container 是一个简单的依赖注入容器
type Container struct {
	services map[string]interface{}
	order    []string
	mutex    sync.RWMutex
}

// 全局容器实例（单例模式）
// NewContainer 创建一个新的依赖注入容器
func NewContainer() *Container {
	return &Container{
		services: make(map[string]interface{}),
	}
}

// Register 在容器中注册一个服务实例，同名服务会被替换
func (c *Container) Register(name string, service interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.services[name]; !exists {
		c.order = append(c.order, name)
	}
	c.services[name] = service
}

// Get 从容器中获取一个服务实例
func (c *Container) Get(name string) interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.services[name]
}

// Has 检查容器中是否存在指定名称的服务
func (c *Container) Has(name string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	_, exists := c.services[name]
	return exists
}

// GetNames 获取所有已注册服务的名称（排序）
func (c *Container) GetNames() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close 按注册的逆序关闭实现了 io.Closer 的服务，并清空容器
func (c *Container) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var errs []error
	for i := len(c.order) - 1; i >= 0; i-- {
		if closer, ok := c.services[c.order[i]].(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("关闭服务 %s 失败: %w", c.order[i], err))
			}
		}
	}

	c.services = make(map[string]interface{})
	c.order = nil
	return errors.Join(errs...)
}

// Resolve 获取指定类型的服务，不存在或类型不符时返回错误
func Resolve[T any](c *Container, name string) (T, error) {
	var zero T
	service := c.Get(name)
	if service == nil {
		return zero, fmt.Errorf("服务 %s 未注册", name)
	}
	typed, ok := service.(T)
	if !ok {
		return zero, fmt.Errorf("服务 %s 类型不匹配: %T", name, service)
	}
	return typed, nil
}
