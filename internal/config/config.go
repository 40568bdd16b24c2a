package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix 是环境变量覆盖配置时使用的前缀。
// 双下划线表示层级，例如 AGENTKIT_STORAGE__TASK_STORE__DRIVER。
const EnvPrefix = "AGENTKIT_"

// Config 描述了 AgentKit 在启动阶段需要加载的核心配置。
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Storage   StorageConfig   `koanf:"storage"`
	TaskQueue TaskQueueConfig `koanf:"task_queue"`
	Cache     CacheConfig     `koanf:"cache"`
	LLM       LLMConfig       `koanf:"llm"`
	Web3      Web3Config      `koanf:"web3"`
	Agent     AgentConfig     `koanf:"agent"`
	Providers ProvidersConfig `koanf:"providers"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Alerting  AlertingConfig  `koanf:"alerting"`
	Plugins   PluginsConfig   `koanf:"plugins"`
	Runtime   RuntimeConfig   `koanf:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址、限流与鉴权。
type ServerConfig struct {
	Address   string          `koanf:"address"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Auth      AuthConfig      `koanf:"auth"`
}

// RateLimitConfig 按客户端限制请求速率，RequestsPerSecond 为 0 表示关闭。
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// AuthConfig 描述 JWT 鉴权参数。
type AuthConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Secret    string `koanf:"secret"`
	SecretEnv string `koanf:"secret_env"`
	Issuer    string `koanf:"issuer"`
}

// LoggingConfig 对应 pkg/logger 的配置。
type LoggingConfig struct {
	Level   string      `koanf:"level"`
	Format  string      `koanf:"format"`
	Outputs []string    `koanf:"outputs"`
	Audit   AuditConfig `koanf:"audit"`
}

// AuditConfig 控制审计日志。
type AuditConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

// StorageConfig 统一描述任务存储后端的连接信息。
type StorageConfig struct {
	TaskStore TaskStoreConfig `koanf:"task_store"`
}

// TaskStoreConfig 支持 memory 与 mysql 两种驱动。
type TaskStoreConfig struct {
	Driver                 string `koanf:"driver"`
	DSN                    string `koanf:"dsn"`
	MaxOpenConns           int    `koanf:"max_open_conns"`
	MaxIdleConns           int    `koanf:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `koanf:"conn_max_lifetime_seconds"`
	Retries                int    `koanf:"retries"`
}

// TaskQueueConfig 描述异步任务队列。
type TaskQueueConfig struct {
	Driver  string `koanf:"driver"`
	Workers int    `koanf:"workers"`
	Buffer  int    `koanf:"buffer"`
	// KeepPartialResults 让步数耗尽的任务保留已执行的动作作为降级结果。
	KeepPartialResults bool           `koanf:"keep_partial_results"`
	Redis              RedisQueue     `koanf:"redis"`
	RabbitMQ           RabbitMQConfig `koanf:"rabbitmq"`
}

// RedisQueue 描述基于 Redis 列表的队列。
type RedisQueue struct {
	Address          string `koanf:"address"`
	Password         string `koanf:"password"`
	DB               int    `koanf:"db"`
	Queue            string `koanf:"queue"`
	BlockWaitSeconds int    `koanf:"block_wait_seconds"`
}

// RabbitMQConfig 描述 RabbitMQ 队列。
type RabbitMQConfig struct {
	URL        string `koanf:"url"`
	Queue      string `koanf:"queue"`
	Prefetch   int    `koanf:"prefetch"`
	Durable    bool   `koanf:"durable"`
	AutoDelete bool   `koanf:"auto_delete"`
}

// CacheConfig 选择缓存后端。
type CacheConfig struct {
	Driver     string `koanf:"driver"`
	Address    string `koanf:"address"`
	Password   string `koanf:"password"`
	DB         int    `koanf:"db"`
	Prefix     string `koanf:"prefix"`
	TTLSeconds int    `koanf:"ttl_seconds"`
	// Size 是内存缓存的条目上限。
	Size int `koanf:"size"`
}

// TTL 返回缓存项的过期时间。
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// LLMConfig 用于配置大模型推理的调用方式。
type LLMConfig struct {
	Provider string       `koanf:"provider"`
	OpenAI   OpenAIConfig `koanf:"openai"`
}

// OpenAIConfig 描述 OpenAI 兼容接口。
type OpenAIConfig struct {
	APIKey         string `koanf:"api_key"`
	APIKeyEnv      string `koanf:"api_key_env"`
	BaseURL        string `koanf:"base_url"`
	Model          string `koanf:"model"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

// Timeout 返回请求超时时间。
func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Web3Config 描述钱包与网络配置。
type Web3Config struct {
	NetworksFile          string `koanf:"networks_file"`
	DefaultNetwork        string `koanf:"default_network"`
	RPCURL                string `koanf:"rpc_url"`
	PrivateKey            string `koanf:"private_key"`
	PrivateKeyEnv         string `koanf:"private_key_env"`
	ReceiptPollMillis     int    `koanf:"receipt_poll_millis"`
	ReceiptTimeoutSeconds int    `koanf:"receipt_timeout_seconds"`
}

// PollInterval 返回交易回执轮询间隔。
func (c Web3Config) PollInterval() time.Duration {
	return time.Duration(c.ReceiptPollMillis) * time.Millisecond
}

// ReceiptTimeout 返回等待交易回执的超时时间。
func (c Web3Config) ReceiptTimeout() time.Duration {
	return time.Duration(c.ReceiptTimeoutSeconds) * time.Second
}

// AgentConfig 控制代理循环。
type AgentConfig struct {
	MaxSteps        int  `koanf:"max_steps"`
	MemoryDepth     int  `koanf:"memory_depth"`
	LenientProvider bool `koanf:"lenient_providers"`
}

// ProvidersConfig 控制启用哪些动作提供者。
type ProvidersConfig struct {
	Onchain   bool            `koanf:"onchain"`
	Pyth      PythConfig      `koanf:"pyth"`
	Alchemy   APIKeyConfig    `koanf:"alchemy"`
	Twitter   APIKeyConfig    `koanf:"twitter"`
	Farcaster FarcasterConfig `koanf:"farcaster"`
	Knowledge KnowledgeConfig `koanf:"knowledge"`
}

// KnowledgeConfig 指向静态知识库文件（JSON 或 YAML）。
type KnowledgeConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Source     string `koanf:"source"`
	MaxResults int    `koanf:"max_results"`
}

// PythConfig 描述 Pyth Hermes 接口。
type PythConfig struct {
	Enabled bool   `koanf:"enabled"`
	BaseURL string `koanf:"base_url"`
}

// APIKeyConfig 是需要单个密钥的 HTTP 提供者的通用配置。
type APIKeyConfig struct {
	Enabled   bool   `koanf:"enabled"`
	BaseURL   string `koanf:"base_url"`
	APIKey    string `koanf:"api_key"`
	APIKeyEnv string `koanf:"api_key_env"`
}

// FarcasterConfig 额外需要签名者 UUID。
type FarcasterConfig struct {
	Enabled    bool   `koanf:"enabled"`
	BaseURL    string `koanf:"base_url"`
	APIKey     string `koanf:"api_key"`
	APIKeyEnv  string `koanf:"api_key_env"`
	SignerUUID string `koanf:"signer_uuid"`
	FID        string `koanf:"fid"`
}

// TelemetryConfig 控制动作调用事件与 OpenTelemetry 导出。
type TelemetryConfig struct {
	EventsURL    string `koanf:"events_url"`
	Exporter     string `koanf:"exporter"`
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
	ServiceName  string `koanf:"service_name"`
}

// AlertingConfig 控制终态失败告警。
type AlertingConfig struct {
	WebhookURL string `koanf:"webhook_url"`
}

// PluginsConfig 描述外部动作提供者插件。
type PluginsConfig struct {
	Manifest  string   `koanf:"manifest"`
	Directory string   `koanf:"directory"`
	Allowed   []string `koanf:"allowed_capabilities"`
	Enabled   []string `koanf:"enabled"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `koanf:"data_dir"`
}

// Load 解析指定路径的 YAML 配置文件，并叠加 AGENTKIT_ 前缀的环境变量。
// path 为空时只使用默认值与环境变量。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	baseDir := "."
	if strings.TrimSpace(path) != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		baseDir = filepath.Dir(path)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("读取环境变量失败: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(baseDir)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey 将 AGENTKIT_TASK_QUEUE__REDIS__ADDRESS 转换为 task_queue.redis.address。
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.RateLimit.RequestsPerSecond > 0 && c.Server.RateLimit.Burst <= 0 {
		c.Server.RateLimit.Burst = int(c.Server.RateLimit.RequestsPerSecond) + 1
	}
	if c.Server.Auth.Issuer == "" {
		c.Server.Auth.Issuer = "agentkit"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Audit.Enabled {
		c.Logging.Audit.Path = resolve(baseDir, c.Logging.Audit.Path, filepath.Join("logs", "audit.log"))
	}

	if c.Storage.TaskStore.Driver == "" {
		c.Storage.TaskStore.Driver = "memory"
	}
	if c.Storage.TaskStore.Retries <= 0 {
		c.Storage.TaskStore.Retries = 3
	}

	if c.TaskQueue.Driver == "" {
		c.TaskQueue.Driver = "memory"
	}
	if c.TaskQueue.Workers <= 0 {
		c.TaskQueue.Workers = 4
	}
	if c.TaskQueue.Buffer <= 0 {
		c.TaskQueue.Buffer = 1024
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "agentkit:"
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = 3600
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.OpenAI.APIKeyEnv == "" {
		c.LLM.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.LLM.OpenAI.TimeoutSeconds <= 0 {
		c.LLM.OpenAI.TimeoutSeconds = 60
	}

	if c.Web3.NetworksFile != "" {
		c.Web3.NetworksFile = resolve(baseDir, c.Web3.NetworksFile, "")
	}
	if c.Web3.PrivateKeyEnv == "" {
		c.Web3.PrivateKeyEnv = "AGENTKIT_WALLET_PRIVATE_KEY"
	}
	if c.Web3.ReceiptPollMillis <= 0 {
		c.Web3.ReceiptPollMillis = 1000
	}
	if c.Web3.ReceiptTimeoutSeconds <= 0 {
		c.Web3.ReceiptTimeoutSeconds = 120
	}

	if c.Agent.MaxSteps <= 0 {
		c.Agent.MaxSteps = 5
	}
	if c.Agent.MemoryDepth <= 0 {
		c.Agent.MemoryDepth = 5
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "agentkit"
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = "none"
	}

	c.Runtime.DataDir = resolve(baseDir, c.Runtime.DataDir, "data")
	if c.Plugins.Directory != "" {
		c.Plugins.Directory = resolve(baseDir, c.Plugins.Directory, "")
	}
	if c.Providers.Knowledge.Source != "" {
		c.Providers.Knowledge.Source = resolve(baseDir, c.Providers.Knowledge.Source, "")
	}
	if c.Plugins.Manifest != "" {
		c.Plugins.Manifest = resolve(baseDir, c.Plugins.Manifest, "")
	}
}

func (c *Config) validate() error {
	switch c.Storage.TaskStore.Driver {
	case "memory":
	case "mysql":
		if strings.TrimSpace(c.Storage.TaskStore.DSN) == "" {
			return errors.New("mysql 任务存储需要配置 dsn")
		}
	default:
		return fmt.Errorf("未知的任务存储驱动: %s", c.Storage.TaskStore.Driver)
	}
	switch c.TaskQueue.Driver {
	case "memory", "redis", "rabbitmq":
	default:
		return fmt.Errorf("未知的队列驱动: %s", c.TaskQueue.Driver)
	}
	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("未知的缓存驱动: %s", c.Cache.Driver)
	}
	if c.Providers.Knowledge.Enabled && strings.TrimSpace(c.Providers.Knowledge.Source) == "" {
		return errors.New("启用知识库时必须配置 source")
	}
	if c.Server.Auth.Enabled && c.Server.Auth.Secret == "" && c.Server.Auth.SecretEnv == "" {
		return errors.New("启用鉴权时必须配置 secret 或 secret_env")
	}
	return nil
}

func resolve(baseDir, value, fallback string) string {
	if value == "" {
		value = fallback
	}
	if value == "" || filepath.IsAbs(value) {
		return value
	}
	return filepath.Join(baseDir, value)
}
