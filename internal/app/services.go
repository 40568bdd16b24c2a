package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"AgentKit-Chain/internal/agent"
	"AgentKit-Chain/internal/api"
	"AgentKit-Chain/internal/auth"
	"AgentKit-Chain/internal/config"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/llm"
	"AgentKit-Chain/internal/llm/openai"
	"AgentKit-Chain/internal/observability/alerting"
	"AgentKit-Chain/internal/task"
	"AgentKit-Chain/pkg/logger"
)

// Services 是守护进程在 Kit 之上运行的代理、任务与 HTTP 组件。
type Services struct {
	Agent     *agent.Agent
	Tasks     *task.Service
	Processor *task.Processor
	Auth      *auth.Service
	Server    *api.Server
}

// ServiceOption 定制 Services 的装配。
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	llm llm.Client
}

// WithLLMClient 使用给定的大模型客户端，而不是按配置创建。
func WithLLMClient(c llm.Client) ServiceOption {
	return func(o *serviceOptions) {
		if c != nil {
			o.llm = c
		}
	}
}

// Services 创建任务存储、队列、代理、鉴权与 API 服务，关闭逻辑并入 App.Close。
func (a *App) Services(ctx context.Context, opts ...ServiceOption) (*Services, error) {
	var o serviceOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	cfg := a.Config

	llmClient := o.llm
	if llmClient == nil {
		c, err := newLLMClient(cfg.LLM)
		if err != nil {
			return nil, err
		}
		llmClient = c
	}

	store, err := newTaskStore(ctx, cfg.Storage.TaskStore)
	if err != nil {
		return nil, err
	}
	a.onClose("task store", func(context.Context) error { return store.Close() })

	queue, err := newTaskQueue(ctx, cfg.TaskQueue)
	if err != nil {
		return nil, err
	}
	a.onClose("task queue", func(context.Context) error { return queue.Close() })

	tasks := task.NewService(store, queue, cfg.Storage.TaskStore.Retries)

	agentOpts := []agent.Option{
		agent.WithMaxSteps(cfg.Agent.MaxSteps),
		agent.WithMemoryDepth(cfg.Agent.MemoryDepth),
		agent.WithHistory(tasks),
	}
	if cfg.LLM.Provider == "openai" {
		agentOpts = append(agentOpts, agent.WithLLMTimeout(cfg.LLM.OpenAI.Timeout()))
	}
	ag := agent.New(llmClient, a.Kit, agentOpts...)

	procOpts := []task.ProcessorOption{
		task.WithWorkerCount(cfg.TaskQueue.Workers),
		task.WithProcessorLogger(logger.Named("task")),
		task.WithAlertDispatcher(newAlerter(cfg.Alerting, a)),
	}
	if cfg.TaskQueue.KeepPartialResults {
		procOpts = append(procOpts, task.WithRecoveryHandler(task.KeepPartialSteps{}))
	}
	processor := task.NewProcessor(ag, store, queue, queue, procOpts...)

	authSvc, err := auth.NewService(auth.Config{
		Enabled: cfg.Server.Auth.Enabled,
		Secret:  secret(cfg.Server.Auth.Secret, cfg.Server.Auth.SecretEnv),
		Issuer:  cfg.Server.Auth.Issuer,
	})
	if err != nil {
		return nil, err
	}

	var serverOpts []api.Option
	if rl := cfg.Server.RateLimit; rl.RequestsPerSecond > 0 {
		serverOpts = append(serverOpts, api.WithRateLimit(rl.RequestsPerSecond, rl.Burst))
	}
	server := api.NewServer(cfg.Server.Address, api.Dependencies{
		Actions: a.Kit,
		Agent:   ag,
		Tasks:   tasks,
		Auth:    authSvc,
	}, serverOpts...)

	return &Services{Agent: ag, Tasks: tasks, Processor: processor, Auth: authSvc, Server: server}, nil
}

// Run 启动任务处理器与 HTTP 服务，直到 ctx 结束或任一组件失败。
func (s *Services) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := logger.Named("app")
	procErr := make(chan error, 1)
	go func() {
		err := s.Processor.Start(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("任务处理器异常退出", slog.Any("error", err))
			cancel()
		}
		procErr <- err
	}()

	err := s.Server.Start(ctx)
	cancel()
	perr := <-procErr
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if perr != nil && !errors.Is(perr, context.Canceled) {
		return perr
	}
	return nil
}

func newLLMClient(cfg config.LLMConfig) (llm.Client, error) {
	switch cfg.Provider {
	case "openai":
		apiKey := secret(cfg.OpenAI.APIKey, cfg.OpenAI.APIKeyEnv)
		if apiKey == "" {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "OpenAI provider 需要配置 api_key 或 api_key_env")
		}
		return openai.NewClient(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			Timeout: cfg.OpenAI.Timeout(),
		})
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.Provider)
	}
}

func newTaskStore(ctx context.Context, cfg config.TaskStoreConfig) (task.Store, error) {
	switch cfg.Driver {
	case "mysql":
		store, err := task.NewMySQLStore(ctx, task.MySQLConfig{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return task.NewMemoryStore(), nil
	}
}

func newTaskQueue(ctx context.Context, cfg config.TaskQueueConfig) (task.Queue, error) {
	switch cfg.Driver {
	case "redis":
		queue, err := task.NewRedisQueue(ctx, task.RedisQueueConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Queue:     cfg.Redis.Queue,
			BlockWait: time.Duration(cfg.Redis.BlockWaitSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return queue, nil
	case "rabbitmq":
		queue, err := task.NewRabbitMQQueue(task.RabbitMQConfig{
			URL:        cfg.RabbitMQ.URL,
			Queue:      cfg.RabbitMQ.Queue,
			Prefetch:   cfg.RabbitMQ.Prefetch,
			Durable:    cfg.RabbitMQ.Durable,
			AutoDelete: cfg.RabbitMQ.AutoDelete,
		})
		if err != nil {
			return nil, err
		}
		return queue, nil
	default:
		return task.NewMemoryQueue(cfg.Buffer), nil
	}
}

func newAlerter(cfg config.AlertingConfig, a *App) alerting.Dispatcher {
	notifiers := []alerting.Notifier{alerting.LogNotifier{}}
	if url := strings.TrimSpace(cfg.WebhookURL); url != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{URL: url, Client: a.http})
	}
	return alerting.NewFanout(notifiers...)
}

func secret(value, envName string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	if envName == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(envName))
}
