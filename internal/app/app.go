// Package app 根据配置装配运行时组件，供各个命令共用。
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"AgentKit-Chain/internal/action"
	"AgentKit-Chain/internal/agentkit"
	"AgentKit-Chain/internal/cache"
	"AgentKit-Chain/internal/config"
	"AgentKit-Chain/internal/providers"
	"AgentKit-Chain/internal/telemetry"
	"AgentKit-Chain/internal/web3/provider"
	"AgentKit-Chain/pkg/logger"
	"AgentKit-Chain/pkg/plugin"
)

// Version 在构建时通过 -ldflags 注入。
var Version = "dev"

// App 持有钱包、动作提供者与 Kit，以及它们的关闭顺序。
type App struct {
	Config  *config.Config
	Wallets *provider.Registry
	Plugins *plugin.Manager
	Kit     *agentkit.Kit

	cache   cache.Cache
	sink    telemetry.Sink
	http    *http.Client
	log     *slog.Logger
	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// Option 定制装配过程。
type Option func(*options)

type options struct {
	dialer provider.Dialer
	cache  cache.Cache
}

// WithDialer 替换默认的 EVM 钱包拨号器。
func WithDialer(d provider.Dialer) Option {
	return func(o *options) {
		if d != nil {
			o.dialer = d
		}
	}
}

// WithCache 使用外部提供的缓存，而不是按配置创建。
func WithCache(c cache.Cache) Option {
	return func(o *options) {
		if c != nil {
			o.cache = c
		}
	}
}

// InitLogging 将日志配置应用到全局 logger。
func InitLogging(cfg config.LoggingConfig) error {
	return logger.Init(logger.Config{
		Level:       cfg.Level,
		Format:      cfg.Format,
		OutputPaths: cfg.Outputs,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Audit.Enabled,
			Path:       cfg.Audit.Path,
			MaxSizeMB:  cfg.Audit.MaxSizeMB,
			MaxBackups: cfg.Audit.MaxBackups,
			MaxAgeDays: cfg.Audit.MaxAgeDays,
		},
	})
}

// New 依次初始化遥测、缓存、钱包、插件与 Kit。任一步骤失败都会关闭已创建的组件。
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	o := options{dialer: provider.DialEVM}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	a := &App{
		Config: cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		log:    logger.Named("app"),
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      Version,
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return nil, err
	}
	a.onClose("telemetry", shutdown)

	a.sink = telemetry.NopSink{}
	if url := strings.TrimSpace(cfg.Telemetry.EventsURL); url != "" {
		sink := telemetry.NewHTTPSink(url, telemetry.WithHTTPClient(a.http))
		a.sink = sink
		a.onClose("telemetry sink", sink.Close)
	}

	if o.cache != nil {
		a.cache = o.cache
	} else if a.cache, err = newCache(ctx, cfg.Cache); err != nil {
		return nil, err
	}
	a.onClose("cache", func(context.Context) error { return a.cache.Close() })

	a.Wallets, err = provider.NewRegistryWithDialer(ctx, cfg.Web3, o.dialer)
	if err != nil {
		return nil, err
	}
	a.onClose("wallets", func(context.Context) error {
		a.Wallets.Close()
		return nil
	})

	wallet, err := a.Wallets.Default()
	if err != nil {
		return nil, err
	}

	registry := action.NewRegistry()
	actionOpts := []action.Option{action.WithTelemetrySink(a.sink), action.WithRegistry(registry)}

	builtin, err := providers.FromConfig(cfg.Providers, providers.Options{
		Cache:      a.cache,
		CacheTTL:   cfg.Cache.TTL(),
		Sink:       a.sink,
		Registry:   registry,
		HTTPClient: a.http,
	})
	if err != nil {
		return nil, err
	}

	a.Plugins, err = a.startPlugins(ctx, registry, actionOpts)
	if err != nil {
		return nil, err
	}

	all := append(builtin, a.Plugins.Providers()...)
	var kitOpts []agentkit.Option
	if cfg.Agent.LenientProvider {
		kitOpts = append(kitOpts, agentkit.WithLenientProviders())
	}
	a.Kit, err = agentkit.New(wallet, all, kitOpts...)
	if err != nil {
		return nil, err
	}

	a.log.Info("AgentKit 已就绪",
		slog.String("network", wallet.Network().String()),
		slog.String("wallet", wallet.Address().Hex()),
		slog.Int("providers", len(all)),
		slog.Int("actions", len(a.Kit.Describe())))
	return a, nil
}

func (a *App) startPlugins(ctx context.Context, registry *action.Registry, actionOpts []action.Option) (*plugin.Manager, error) {
	cfg := a.Config.Plugins
	var (
		managerCfg plugin.ManagerConfig
		err        error
	)
	if cfg.Manifest != "" {
		managerCfg, err = plugin.LoadManagerConfig(cfg.Manifest)
	} else {
		managerCfg, err = plugin.NewManagerConfig(cfg.Directory, cfg.Allowed, cfg.Enabled)
	}
	if err != nil {
		return nil, err
	}
	m, err := plugin.NewManager(managerCfg,
		plugin.WithIsolationStrategy(plugin.DirectoryIsolation{Root: filepath.Join(a.Config.Runtime.DataDir, "plugins")}),
		plugin.WithResource(plugin.ResourceRegistry, registry),
		plugin.WithResource(plugin.ResourceActionOptions, actionOpts),
		plugin.WithResource(plugin.ResourceHTTPClient, a.http),
	)
	if err != nil {
		return nil, err
	}
	a.onClose("plugins", m.StopAll)
	if err := m.StartAll(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Cache 返回共享缓存。
func (a *App) Cache() cache.Cache { return a.cache }

// HTTPClient 返回各组件共用的出站 HTTP 客户端。
func (a *App) HTTPClient() *http.Client { return a.http }

// Close 按创建的逆序关闭组件，并汇总所有错误。
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.log.Warn("关闭组件失败", slog.String("component", c.name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Driver {
	case "redis":
		c, err := cache.NewRedis(ctx, cache.RedisConfig{
			Address:  cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
			Prefix:   cfg.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return cache.NewMemory(cfg.Size), nil
	}
}
