// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// 流传输方式
const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

// ClientConfig 编辑器客户端配置
type ClientConfig struct {
	BackendURL      string        // 后端基础地址
	StreamTransport string        // sse 或 websocket
	EditorUser      string        // 广播消息中的用户标签
	RequestTimeout  time.Duration // 单次REST请求超时
	LogDir          string
	LogLevel        string
	DebugMode       bool
}

// ServerConfig 开发后端配置
type ServerConfig struct {
	Port        string `json:"port"`
	DataDir     string `json:"data_dir"`
	LogDir      string `json:"log_dir"`
	DebugMode   bool   `json:"debug_mode"`
	Store       string `json:"store"` // file 或 postgres
	DatabaseURL string `json:"database_url,omitempty"`
	RedisAddr   string `json:"redis_addr,omitempty"`
	MDNSEnabled bool   `json:"mdns_enabled"`

	// 翻译引擎相关配置
	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config"`
}

// 当前服务端配置的单例实例
var (
	currentConfig *ServerConfig
	configMutex   sync.RWMutex
	configFile    string
)

// LoadClient 从环境变量加载客户端配置
func LoadClient() (*ClientConfig, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	cfg := &ClientConfig{
		BackendURL:      strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:8000"), "/"),
		StreamTransport: strings.ToLower(getEnv("STREAM_TRANSPORT", TransportSSE)),
		EditorUser:      getEnv("EDITOR_USER", "editor"),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		LogDir:          getEnv("LOG_DIR", "logs"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DebugMode:       getEnvBool("DEBUG_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查客户端配置
func (c *ClientConfig) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL 不能为空")
	}
	if !strings.HasPrefix(c.BackendURL, "http://") && !strings.HasPrefix(c.BackendURL, "https://") {
		return fmt.Errorf("BACKEND_URL 必须以 http:// 或 https:// 开头: %s", c.BackendURL)
	}
	switch c.StreamTransport {
	case TransportSSE, TransportWebSocket:
	default:
		return fmt.Errorf("未知的 STREAM_TRANSPORT: %s", c.StreamTransport)
	}
	return nil
}

// LoadServer 从环境变量加载开发后端配置
func LoadServer() (*ServerConfig, error) {
	godotenv.Load()

	cfg := &ServerConfig{
		Port:        getEnv("PORT", "8000"),
		DataDir:     getEnvPath("DATA_DIR", "data"),
		LogDir:      getEnvPath("LOG_DIR", "logs"),
		DebugMode:   getEnvBool("DEBUG_MODE", true),
		Store:       strings.ToLower(getEnv("STORE", "file")),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisAddr:   getEnv("REDIS_ADDR", ""),
		MDNSEnabled: getEnvBool("MDNS_ENABLED", false),
		LLMProvider: getEnv("LLM_PROVIDER", "echo"),
		LLMConfig: map[string]string{
			"api_key":       getEnv("LLM_API_KEY", ""),
			"default_model": getEnv("LLM_MODEL", ""),
			"base_url":      getEnv("LLM_BASE_URL", ""),
		},
	}

	if cfg.Store == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("STORE=postgres 需要设置 DATABASE_URL")
	}
	return cfg, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，并确保目录存在
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// getEnvDuration 获取时长类型环境变量，支持 "30s" 或纯秒数
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if d, err := time.ParseDuration(value + "s"); err == nil {
		return d
	}
	return defaultValue
}

// InitConfig 初始化服务端配置管理器，合并 DATA_DIR/config.json 中保存的翻译引擎设置
func InitConfig(base *ServerConfig) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	configFile = filepath.Join(base.DataDir, "config.json")
	merged := *base

	if data, err := os.ReadFile(configFile); err == nil {
		var saved ServerConfig
		if json.Unmarshal(data, &saved) == nil && saved.LLMProvider != "" {
			// 环境变量显式设置时优先
			if os.Getenv("LLM_PROVIDER") == "" {
				merged.LLMProvider = saved.LLMProvider
				merged.LLMConfig = saved.LLMConfig
				if merged.LLMConfig == nil {
					merged.LLMConfig = map[string]string{}
				}
				// 密钥只来自环境变量
				merged.LLMConfig["api_key"] = base.LLMConfig["api_key"]
			}
		}
	}

	currentConfig = &merged
	return saveConfigLocked()
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *ServerConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		return nil
	}

	configCopy := *currentConfig
	configCopy.LLMConfig = make(map[string]string, len(currentConfig.LLMConfig))
	for k, v := range currentConfig.LLMConfig {
		configCopy.LLMConfig[k] = v
	}
	return &configCopy
}

// UpdateLLMConfig 更新翻译引擎配置并持久化
func UpdateLLMConfig(provider string, llmConfig map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	currentConfig.LLMProvider = provider
	currentConfig.LLMConfig = llmConfig

	return saveConfigLocked()
}

// saveConfigLocked 保存当前配置到文件，调用方需持有写锁
func saveConfigLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	// 不把密钥写入磁盘
	persisted := *currentConfig
	persisted.DatabaseURL = ""
	persisted.LLMConfig = make(map[string]string, len(currentConfig.LLMConfig))
	for k, v := range currentConfig.LLMConfig {
		if k != "api_key" {
			persisted.LLMConfig[k] = v
		}
	}

	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
