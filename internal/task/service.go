package task

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"AgentKit-Chain/internal/agent"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/observability/metrics"
	"AgentKit-Chain/pkg/logger"
)

const defaultMaxRetries = 3

// Service 是任务的提交与查询入口，同时为代理提供对话记忆。
type Service struct {
	store      Store
	producer   Producer
	maxRetries int
}

// NewService 构造任务服务。maxRetries 不大于 0 时使用默认值 3。
func NewService(store Store, producer Producer, maxRetries int) *Service {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Service{store: store, producer: producer, maxRetries: maxRetries}
}

// Submit 创建任务并投递到队列。携带已存在 ID 的请求直接返回原任务。
func (s *Service) Submit(ctx context.Context, req agent.TaskRequest) (*Task, error) {
	goal := strings.TrimSpace(req.Goal)
	if goal == "" {
		return nil, xerrors.New(CodeTaskValidation, "任务目标不能为空")
	}
	if s.store == nil || s.producer == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未初始化")
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	} else if task, found, err := s.lookup(ctx, id); err != nil || found {
		return task, err
	}

	task := &Task{
		ID:         id,
		Goal:       goal,
		Metadata:   cloneMetadata(req.Metadata),
		Status:     StatusPending,
		MaxRetries: s.maxRetries,
	}
	if err := s.store.Create(ctx, task); err != nil {
		// 并发提交同一 ID 时以先写入者为准。
		if stdErrors.Is(err, ErrTaskConflict) {
			if existing, found, getErr := s.lookup(ctx, id); getErr != nil || found {
				return existing, getErr
			}
		}
		return nil, err
	}

	if err := s.producer.Publish(ctx, id); err != nil {
		wrapped := xerrors.Wrap(CodeTaskPublish, err, "发布任务到队列失败")
		logger.L().Error("任务入队失败", slog.Any("error", err), slog.String("task_id", id))
		if markErr := s.store.MarkFailed(ctx, id, CodeTaskPublish, wrapped.Error(), true); markErr != nil {
			logger.L().Error("记录入队失败状态出错", slog.Any("error", markErr), slog.String("task_id", id))
		}
		return nil, wrapped
	}
	metrics.ObserveTaskTransition(string(StatusPending))
	logger.Audit().Info("任务入队成功",
		slog.String("task_id", id),
		slog.String("goal", goal),
		slog.Int("max_retries", task.MaxRetries),
	)
	return task, nil
}

func (s *Service) lookup(ctx context.Context, id string) (*Task, bool, error) {
	task, err := s.store.Get(ctx, id)
	switch {
	case err == nil:
		return task, true, nil
	case stdErrors.Is(err, ErrTaskNotFound):
		return nil, false, nil
	default:
		return nil, false, err
	}
}

// Get 返回指定任务。
func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	if s.store == nil {
		return nil, errStoreMissing()
	}
	return s.store.Get(ctx, id)
}

// List 返回符合过滤条件的任务。
func (s *Service) List(ctx context.Context, opts ...ListOption) ([]*Task, error) {
	if s.store == nil {
		return nil, errStoreMissing()
	}
	return s.store.List(ctx, buildListOptions(opts))
}

// Stats 统计符合过滤条件的任务。
func (s *Service) Stats(ctx context.Context, opts ...ListOption) (TaskStats, error) {
	if s.store == nil {
		return TaskStats{}, errStoreMissing()
	}
	return s.store.Stats(ctx, buildListOptions(opts))
}

// Recent 返回最近成功的对话，按时间倒序。
func (s *Service) Recent(ctx context.Context, limit int) ([]agent.Exchange, error) {
	tasks, err := s.List(ctx, WithLimit(limit), WithStatuses(StatusSucceeded), WithResultPresence(true))
	if err != nil {
		return nil, err
	}
	out := make([]agent.Exchange, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, agent.Exchange{Goal: task.Goal, Reply: task.Result.Reply})
	}
	return out, nil
}

func errStoreMissing() error {
	return xerrors.New(xerrors.CodeInitializationFailure, "任务存储未初始化")
}

var _ agent.History = (*Service)(nil)
