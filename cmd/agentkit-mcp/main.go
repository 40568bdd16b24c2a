// Command agentkit-mcp 通过 stdio 向 MCP 客户端发布动作目录。
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"AgentKit-Chain/internal/app"
	"AgentKit-Chain/internal/config"
	"AgentKit-Chain/internal/mcpserver"
	"AgentKit-Chain/internal/observability/metrics"
	"AgentKit-Chain/pkg/logger"
)

func main() {
	configPath := flag.String("config", defaultConfigPath(), "配置文件路径")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus 指标监听地址，留空则不启动")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	// stdout 专用于 JSON-RPC，日志与遥测一律改走 stderr 或关闭。
	if len(cfg.Logging.Outputs) == 0 {
		cfg.Logging.Outputs = []string{"stderr"}
	}
	for i, out := range cfg.Logging.Outputs {
		if out == "" || strings.EqualFold(out, "stdout") {
			cfg.Logging.Outputs[i] = "stderr"
		}
	}
	if cfg.Telemetry.Exporter == "stdout" {
		cfg.Telemetry.Exporter = "none"
	}
	if err := app.InitLogging(cfg.Logging); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}

	if err := run(ctx, cfg, *metricsAddr); err != nil {
		log.Fatalf("agentkit-mcp 运行失败: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, metricsAddr string) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.Close(shutdownCtx)
	}()

	if metricsAddr != "" {
		go func() {
			if err := metrics.StartServer(ctx, metricsAddr); err != nil && !errors.Is(err, context.Canceled) {
				logger.L().Warn("指标服务已退出", slog.Any("error", err))
			}
		}()
	}

	srv := mcpserver.New(a.Kit, "agentkit", app.Version)
	err = srv.ServeStdio(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func defaultConfigPath() string {
	if path := os.Getenv("AGENTKIT_CONFIG"); path != "" {
		return path
	}
	return filepath.Join("configs", "agentkit.yaml")
}
