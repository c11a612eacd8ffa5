package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/lumen/backend/internal/metrics"
	"github.com/zhouzirui/lumen/backend/internal/model/search"
	"github.com/zhouzirui/lumen/backend/internal/service/inference"
)

// 支持的推理后端。
const (
	ProviderOllama = "ollama"
	ProviderArk    = "ark"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Inference InferenceConfig
	Ark       ArkConfig
	Search    SearchConfig
	History   HistoryConfig
}

// ServerConfig 描述 HTTP 服务配置。Addr 由 Port 推导。
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Addr string `env:"-"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// InferenceConfig 描述本地推理服务。
type InferenceConfig struct {
	Provider      string        `env:"INFERENCE_PROVIDER" envDefault:"ollama"`
	BaseURL       string        `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`
	Model         string        `env:"OLLAMA_MODEL" envDefault:"granite3-moe"`
	HeaderTimeout time.Duration `env:"OLLAMA_HEADER_TIMEOUT" envDefault:"60s"`
	StreamBuffer  int           `env:"CHAT_STREAM_BUFFER" envDefault:"100"`
}

// ArkConfig 描述火山方舟模型配置，仅在 INFERENCE_PROVIDER=ark 时使用。
type ArkConfig struct {
	APIKey      string   `env:"ARK_API_KEY"`
	AccessKey   string   `env:"ARK_ACCESS_KEY"`
	SecretKey   string   `env:"ARK_SECRET_KEY"`
	Model       string   `env:"ARK_MODEL"`
	BaseURL     string   `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region      string   `env:"ARK_REGION" envDefault:"cn-beijing"`
	Temperature *float64 `env:"ARK_TEMPERATURE"`
	TopP        *float64 `env:"ARK_TOP_P"`
	MaxTokens   *int     `env:"ARK_MAX_TOKENS"`
}

// SearchConfig 描述网页搜索。ParseWorkers 为 0 时使用 GOMAXPROCS。
type SearchConfig struct {
	BaseURL      string        `env:"SEARCH_BASE_URL" envDefault:"https://duckduckgo.com/html"`
	Locale       string        `env:"SEARCH_LOCALE" envDefault:"us-en"`
	MaxResults   int           `env:"SEARCH_MAX_RESULTS" envDefault:"5"`
	Timeout      time.Duration `env:"SEARCH_TIMEOUT" envDefault:"30s"`
	Mode         string        `env:"SEARCH_MODE" envDefault:"fast"`
	Buffer       int           `env:"SEARCH_BUFFER" envDefault:"100"`
	ParseWorkers int           `env:"PARSE_WORKERS" envDefault:"0"`
}

// HistoryConfig 控制对话窗口大小。
type HistoryConfig struct {
	ContextSize int `env:"HISTORY_CONTEXT" envDefault:"5"`
	Limit       int `env:"HISTORY_LIMIT" envDefault:"10"`
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return finish(&cfg)
}

// LoadFrom 从给定的键值加载配置，不读取进程环境。
func LoadFrom(values map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: values}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	addr, err := resolveAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr
	cfg.Inference.Provider = strings.ToLower(strings.TrimSpace(cfg.Inference.Provider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveAddr 解析服务器监听地址。
func resolveAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// Validate 检查各项取值是否可用。
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	switch c.Inference.Provider {
	case ProviderOllama:
		if strings.TrimSpace(c.Inference.BaseURL) == "" {
			errs = append(errs, errors.New("OLLAMA_BASE_URL must not be empty"))
		}
		if strings.TrimSpace(c.Inference.Model) == "" {
			errs = append(errs, errors.New("OLLAMA_MODEL must not be empty"))
		}
	case ProviderArk:
		if !c.Ark.Enabled() {
			errs = append(errs, errors.New("ark provider needs ARK_MODEL and either ARK_API_KEY or ARK_ACCESS_KEY + ARK_SECRET_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown INFERENCE_PROVIDER %q", c.Inference.Provider))
	}
	if c.Inference.HeaderTimeout <= 0 {
		errs = append(errs, errors.New("OLLAMA_HEADER_TIMEOUT must be positive"))
	}
	if c.Inference.StreamBuffer < 1 {
		errs = append(errs, errors.New("CHAT_STREAM_BUFFER must be at least 1"))
	}

	if _, err := search.ParseMode(c.Search.Mode); err != nil {
		errs = append(errs, fmt.Errorf("SEARCH_MODE: %w", err))
	}
	if c.Search.MaxResults < 1 {
		errs = append(errs, errors.New("SEARCH_MAX_RESULTS must be at least 1"))
	}
	if c.Search.Timeout <= 0 {
		errs = append(errs, errors.New("SEARCH_TIMEOUT must be positive"))
	}
	if c.Search.Buffer < 1 {
		errs = append(errs, errors.New("SEARCH_BUFFER must be at least 1"))
	}
	if c.Search.ParseWorkers < 0 {
		errs = append(errs, errors.New("PARSE_WORKERS must not be negative"))
	}

	if c.History.ContextSize < 1 || c.History.Limit < 1 {
		errs = append(errs, errors.New("HISTORY_CONTEXT and HISTORY_LIMIT must be at least 1"))
	} else if c.History.ContextSize > c.History.Limit {
		errs = append(errs, fmt.Errorf("HISTORY_CONTEXT (%d) must not exceed HISTORY_LIMIT (%d)", c.History.ContextSize, c.History.Limit))
	}

	return errors.Join(errs...)
}

// SlogLevel 将 LOG_LEVEL 转换为 slog 级别。
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.Level, err)
	}
	return level, nil
}

// SearchMode 返回默认搜索模式，Validate 已保证可以解析。
func (c SearchConfig) SearchMode() search.Mode {
	mode, err := search.ParseMode(c.Mode)
	if err != nil {
		return search.ModeFast
	}
	return mode
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 按 INFERENCE_PROVIDER 创建推理后端。
func (c *Config) NewChatModel(ctx context.Context, m *metrics.Metrics) (model.BaseChatModel, error) {
	switch c.Inference.Provider {
	case ProviderArk:
		return c.Ark.NewChatModel(ctx)
	default:
		return inference.NewClient(inference.Config{
			BaseURL:       c.Inference.BaseURL,
			Model:         c.Inference.Model,
			HeaderTimeout: c.Inference.HeaderTimeout,
			Buffer:        c.Inference.StreamBuffer,
		}, m), nil
	}
}

// NewChatModel 使用方舟配置创建一个模型实例。
func (c ArkConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	})
	if err != nil {
		return nil, fmt.Errorf("create ark chat model: %w", err)
	}
	return chatModel, nil
}
