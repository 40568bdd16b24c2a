package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"AgentKit-Chain/internal/app"
	"AgentKit-Chain/internal/auth"
	"AgentKit-Chain/internal/config"
)

// main 是 AgentKit 守护进程的入口。
func main() {
	configPath := flag.String("config", defaultConfigPath(), "配置文件路径")
	issue := flag.String("issue-token", "", "为指定调用方签发访问令牌后退出")
	perms := flag.String("permissions", auth.PermActionsInvoke+","+auth.PermTasksWrite, "签发令牌时授予的权限，逗号分隔")
	ttl := flag.Duration("ttl", 24*time.Hour, "签发令牌的有效期")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if err := app.InitLogging(cfg.Logging); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}

	if *issue != "" {
		if err := issueToken(cfg, *issue, *perms, *ttl); err != nil {
			log.Fatalf("签发令牌失败: %v", err)
		}
		return
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("agentkitd 运行失败: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			log.Printf("关闭组件失败: %v", err)
		}
	}()

	svc, err := a.Services(ctx)
	if err != nil {
		return err
	}
	return svc.Run(ctx)
}

func issueToken(cfg *config.Config, subject, perms string, ttl time.Duration) error {
	secret := cfg.Server.Auth.Secret
	if secret == "" && cfg.Server.Auth.SecretEnv != "" {
		secret = os.Getenv(cfg.Server.Auth.SecretEnv)
	}
	svc, err := auth.NewService(auth.Config{Enabled: true, Secret: secret, Issuer: cfg.Server.Auth.Issuer})
	if err != nil {
		return err
	}
	var granted []string
	for _, p := range strings.Split(perms, ",") {
		if p = strings.TrimSpace(p); p != "" {
			granted = append(granted, p)
		}
	}
	token, err := svc.Issue(auth.Subject{Name: subject, Permissions: granted}, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func defaultConfigPath() string {
	if path := os.Getenv("AGENTKIT_CONFIG"); path != "" {
		return path
	}
	return filepath.Join("configs", "agentkit.yaml")
}
