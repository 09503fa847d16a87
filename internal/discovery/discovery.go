// internal/discovery/discovery.go
package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType 局域网内开发后端的 mDNS 服务类型
	ServiceType = "_translation-studio._tcp"
	Domain      = "local."

	DefaultBrowseTimeout = 3 * time.Second
)

// Backend 发现的一个后端实例
type Backend struct {
	Instance string
	Host     string
	Port     int
	Store    string
}

// URL 后端基础地址
func (b Backend) URL() string {
	return "http://" + net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}

// Advertiser 已注册的 mDNS 服务
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise 在局域网内广播开发后端
func Advertise(port int, store string) (*Advertiser, error) {
	host, _ := os.Hostname()
	if host == "" {
		host = "localhost"
	}

	server, err := zeroconf.Register(
		fmt.Sprintf("TranslationStudio-%s", host),
		ServiceType,
		Domain,
		port,
		[]string{"txtv=1", "path=/api", "store=" + store},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("注册 mDNS 服务失败: %w", err)
	}
	return &Advertiser{server: server}, nil
}

// Close 停止广播
func (a *Advertiser) Close() error {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
	return nil
}

// Browse 在 timeout 内收集局域网中的后端实例
func Browse(ctx context.Context, timeout time.Duration) ([]Backend, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("初始化 mDNS 解析器失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	results := make(chan []Backend, 1)
	go func() {
		var backends []Backend
		seen := map[string]bool{}
		for entry := range entries {
			b, ok := fromEntry(entry)
			if !ok || seen[b.Instance] {
				continue
			}
			seen[b.Instance] = true
			backends = append(backends, b)
		}
		results <- backends
	}()

	if err := resolver.Browse(ctx, ServiceType, Domain, entries); err != nil {
		return nil, fmt.Errorf("浏览 mDNS 服务失败: %w", err)
	}
	<-ctx.Done()
	return <-results, nil
}

// fromEntry 把 mDNS 记录转换为后端地址，优先使用 IPv4
func fromEntry(entry *zeroconf.ServiceEntry) (Backend, bool) {
	if entry == nil {
		return Backend{}, false
	}

	b := Backend{Instance: entry.Instance, Port: entry.Port}
	switch {
	case len(entry.AddrIPv4) > 0:
		b.Host = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		b.Host = entry.AddrIPv6[0].String()
	case entry.HostName != "":
		b.Host = strings.TrimSuffix(entry.HostName, ".")
	default:
		return Backend{}, false
	}

	for _, txt := range entry.Text {
		if value, ok := strings.CutPrefix(txt, "store="); ok {
			b.Store = value
		}
	}
	return b, true
}
