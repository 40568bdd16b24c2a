package task

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"AgentKit-Chain/internal/agent"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/observability/alerting"
	"AgentKit-Chain/internal/observability/metrics"
	"AgentKit-Chain/pkg/logger"
)

// Executor 是处理器需要的代理能力。失败时仍可返回已产生的部分结果。
type Executor interface {
	Execute(ctx context.Context, req agent.TaskRequest) (*agent.TaskResult, error)
}

// Processor 从队列领取任务 ID，交给代理执行并回写状态。
type Processor struct {
	executor Executor
	store    Store
	consumer Consumer
	producer Producer
	workers  int
	log      *slog.Logger
	recovery RecoveryHandler
	alerter  alerting.Dispatcher
	tracer   trace.Tracer
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定调试日志输出。
func WithProcessorLogger(log *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if log != nil {
			p.log = log
		}
	}
}

// WithWorkerCount 设置并发消费的协程数。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workers = workers
		}
	}
}

// WithRecoveryHandler 配置不可重试失败时的降级策略。
func WithRecoveryHandler(handler RecoveryHandler) ProcessorOption {
	return func(p *Processor) {
		p.recovery = handler
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) ProcessorOption {
	return func(p *Processor) {
		p.alerter = dispatcher
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(executor Executor, store Store, consumer Consumer, producer Producer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		executor: executor,
		store:    store,
		consumer: consumer,
		producer: producer,
		workers:  1,
		log:      slog.New(slog.DiscardHandler),
		tracer:   otel.Tracer("AgentKit-Chain/internal/task"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start 阻塞消费队列，直到 ctx 结束或消费者出错。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置任务消费者")
	}
	return p.consumer.Consume(ctx, p.workers, p.handle)
}

func (p *Processor) handle(ctx context.Context, taskID string) error {
	if p.store == nil || p.executor == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "处理器未初始化")
	}
	task, err := p.store.Claim(ctx, taskID)
	switch {
	case stdErrors.Is(err, ErrTaskNotFound), stdErrors.Is(err, ErrTaskCompleted), stdErrors.Is(err, ErrTaskExhausted):
		p.log.Debug("跳过任务", slog.String("task_id", taskID), slog.String("reason", err.Error()))
		return nil
	case err != nil:
		logger.L().Error("领取任务失败", slog.Any("error", err), slog.String("task_id", taskID))
		p.alert(ctx, &Task{ID: taskID}, CodeTaskProcessing, err, "claim")
		return err
	}
	metrics.ObserveTaskTransition(string(StatusRunning))

	ctx, span := p.tracer.Start(ctx, "task.run", trace.WithAttributes(
		attribute.String("task.id", task.ID),
		attribute.Int("task.attempt", task.Attempts),
	))
	defer span.End()

	result, execErr := p.executor.Execute(ctx, agent.TaskRequest{
		ID:       task.ID,
		Goal:     task.Goal,
		Metadata: cloneMetadata(task.Metadata),
	})
	if execErr != nil {
		span.RecordError(execErr)
		span.SetStatus(codes.Error, string(xerrors.CodeOf(execErr)))
		return p.fail(ctx, task, toExecution(result), execErr)
	}
	record := toExecution(result)
	if record == nil {
		record = &ExecutionResult{}
	}
	span.SetAttributes(attribute.Int("task.steps", len(record.Steps)))
	if stored, err := p.succeed(ctx, task, *record); !stored {
		return err
	}
	logger.Audit().Info("任务执行成功",
		slog.String("task_id", task.ID),
		slog.String("goal", task.Goal),
		slog.String("network", record.Network),
		slog.Int("steps", len(record.Steps)),
	)
	return nil
}

// succeed 写入成功结果。写入失败时任务退回失败状态并重新排队，stored 为 false。
func (p *Processor) succeed(ctx context.Context, task *Task, record ExecutionResult) (stored bool, err error) {
	markErr := p.store.MarkSucceeded(ctx, task.ID, record)
	if markErr == nil {
		metrics.ObserveTaskTransition(string(StatusSucceeded))
		return true, nil
	}
	logger.L().Error("写入任务结果失败", slog.Any("error", markErr), slog.String("task_id", task.ID))
	if err := p.store.MarkFailed(ctx, task.ID, CodeTaskProcessing, markErr.Error(), false); err != nil {
		logger.L().Error("回写失败状态出错", slog.Any("error", err), slog.String("task_id", task.ID))
		return false, err
	}
	metrics.ObserveTaskTransition(string(StatusFailed))
	if err := p.requeue(ctx, task); err != nil {
		return false, err
	}
	logger.Audit().Warn("任务结果写入失败，已重新排队",
		slog.String("task_id", task.ID),
		slog.String("error", markErr.Error()),
	)
	return false, nil
}

func (p *Processor) fail(ctx context.Context, task *Task, partial *ExecutionResult, execErr error) error {
	code := xerrors.CodeOf(execErr)
	if code == xerrors.CodeUnknown {
		code = CodeTaskProcessing
	}
	retryable := xerrors.RetryableError(execErr)
	terminal := !retryable || task.Attempts >= task.MaxRetries

	if !retryable {
		if done, err := p.degrade(ctx, task, partial, code, execErr); done {
			return err
		}
	}

	if err := p.store.MarkFailed(ctx, task.ID, code, execErr.Error(), terminal); err != nil {
		logger.L().Error("标记任务失败状态出错", slog.Any("error", err), slog.String("task_id", task.ID))
		return err
	}
	metrics.ObserveTaskTransition(string(StatusFailed))
	logger.Audit().Warn("任务执行失败",
		slog.String("task_id", task.ID),
		slog.String("goal", task.Goal),
		slog.String("error_code", string(code)),
		slog.String("error", execErr.Error()),
		slog.Bool("terminal", terminal),
		slog.Int("attempts", task.Attempts),
		slog.Int("max_retries", task.MaxRetries),
	)

	switch {
	case terminal:
		p.alert(ctx, task, code, execErr, "terminal")
		return nil
	default:
		p.alert(ctx, task, code, execErr, "retry")
		if err := p.requeue(ctx, task); err != nil {
			return err
		}
		p.log.Debug("任务已重新排队", slog.String("task_id", task.ID), slog.Int("attempts", task.Attempts))
		return nil
	}
}

// degrade 尝试用降级结果结束任务，done 为 true 表示不再走失败流程。
func (p *Processor) degrade(ctx context.Context, task *Task, partial *ExecutionResult, code xerrors.Code, cause error) (done bool, err error) {
	if p.recovery == nil {
		return false, nil
	}
	fallback, recErr := p.recovery.Recover(ctx, task, partial, cause)
	if recErr != nil {
		wrapped := xerrors.Wrap(CodeTaskCompensate, recErr, "任务降级失败")
		logger.L().Error("执行降级策略失败", slog.Any("error", wrapped), slog.String("task_id", task.ID))
		p.alert(ctx, task, CodeTaskCompensate, wrapped, "compensate")
		return false, nil
	}
	if fallback == nil {
		return false, nil
	}
	if fallback.Reply == "" {
		fallback.Reply = fmt.Sprintf("降级处理: %v", cause)
	}
	if stored, err := p.succeed(ctx, task, *fallback); !stored {
		return true, err
	}
	logger.Audit().Warn("任务降级完成",
		slog.String("task_id", task.ID),
		slog.String("goal", task.Goal),
		slog.String("reply", fallback.Reply),
		slog.Int("steps", len(fallback.Steps)),
	)
	p.alert(ctx, task, code, cause, "degraded")
	return true, nil
}

func (p *Processor) requeue(ctx context.Context, task *Task) error {
	if p.producer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置任务生产者")
	}
	if err := p.producer.Publish(ctx, task.ID); err != nil {
		return xerrors.Wrap(CodeTaskPublish, err, fmt.Sprintf("任务 %s 重新排队失败", task.ID))
	}
	return nil
}

func (p *Processor) alert(ctx context.Context, task *Task, code xerrors.Code, cause error, stage string) {
	if p.alerter == nil {
		return
	}
	attrs := xerrors.AttributesOf(code)
	event := alerting.Event{
		Code:       code,
		Message:    attrs.Message,
		Severity:   attrs.Severity,
		TaskID:     task.ID,
		Attempts:   task.Attempts,
		MaxRetries: task.MaxRetries,
		Metadata:   map[string]string{"stage": stage},
		OccurredAt: time.Now(),
	}
	if cause != nil {
		event.Message = cause.Error()
		event.Metadata["cause"] = cause.Error()
	}
	if err := p.alerter.Notify(ctx, event); err != nil {
		logger.L().Error("告警通知失败",
			slog.Any("error", err),
			slog.String("task_id", task.ID),
			slog.String("stage", stage),
		)
	}
}

func toExecution(r *agent.TaskResult) *ExecutionResult {
	if r == nil {
		return nil
	}
	return &ExecutionResult{
		Reply:         r.Reply,
		Steps:         r.Steps,
		Network:       r.Network,
		WalletAddress: r.WalletAddress,
	}
}
