package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"AgentKit-Chain/internal/action"
	"AgentKit-Chain/internal/agent"
	"AgentKit-Chain/internal/auth"
	"AgentKit-Chain/internal/observability/metrics"
	"AgentKit-Chain/internal/task"
	"AgentKit-Chain/pkg/logger"
)

// Dispatcher 是动作目录与调用能力，由 agentkit.Kit 实现。
type Dispatcher interface {
	Describe() []action.Spec
	Invoke(ctx context.Context, name string, args action.Args) (string, error)
}

// Executor 同步执行一次代理对话。
type Executor interface {
	Execute(ctx context.Context, req agent.TaskRequest) (*agent.TaskResult, error)
}

// TaskService 是异步任务接口所需的能力。
type TaskService interface {
	Submit(ctx context.Context, req agent.TaskRequest) (*task.Task, error)
	Get(ctx context.Context, id string) (*task.Task, error)
	List(ctx context.Context, opts ...task.ListOption) ([]*task.Task, error)
	Stats(ctx context.Context, opts ...task.ListOption) (task.TaskStats, error)
}

// Dependencies 汇总 API 依赖的组件，任一为 nil 时对应接口返回 503。
type Dependencies struct {
	Actions Dispatcher
	Agent   Executor
	Tasks   TaskService
	Auth    *auth.Service
}

// Option 定义可选配置。
type Option func(*Server)

// WithRateLimit 按客户端限制请求速率，rps <= 0 表示不限流。
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			s.limiter = newClientLimiter(rps, burst)
		}
	}
}

// WithChatTimeout 限制同步对话的最长执行时间。
func WithChatTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		if timeout > 0 {
			s.chatTimeout = timeout
		}
	}
}

// Server 负责暴露 REST 接口，供外部驱动智能体执行。
type Server struct {
	addr        string
	deps        Dependencies
	limiter     *clientLimiter
	chatTimeout time.Duration
	log         *slog.Logger
	handler     http.Handler
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, deps Dependencies, opts ...Option) *Server {
	s := &Server{
		addr:        addr,
		deps:        deps,
		chatTimeout: 2 * time.Minute,
		log:         logger.Named("api"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.handler = s.routes()
	return s
}

// Handler 返回完整的路由与中间件链。
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	authn := s.deps.Auth.Require(writeAuthError)
	invoke := s.deps.Auth.Require(writeAuthError, auth.PermActionsInvoke)
	submit := s.deps.Auth.Require(writeAuthError, auth.PermTasksWrite)

	mux.Handle("GET /api/v1/actions", authn(http.HandlerFunc(s.handleListActions)))
	mux.Handle("POST /api/v1/actions/invoke", invoke(http.HandlerFunc(s.handleInvokeAction)))
	mux.Handle("POST /api/v1/chat", invoke(http.HandlerFunc(s.handleChat)))
	mux.Handle("POST /api/v1/tasks", submit(http.HandlerFunc(s.handleCreateTask)))
	mux.Handle("GET /api/v1/tasks", authn(http.HandlerFunc(s.handleListTasks)))
	mux.Handle("GET /api/v1/tasks/stats", authn(http.HandlerFunc(s.handleTaskStats)))
	mux.Handle("GET /api/v1/tasks/{id}", authn(http.HandlerFunc(s.handleTaskDetail)))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	var h http.Handler = mux
	if s.limiter != nil {
		h = s.limiter.middleware(h)
	}
	return instrument(recoverer(h))
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		s.log.Info("API 服务已启动", slog.String("addr", s.addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
