package task

import (
	"context"
	"fmt"

	"AgentKit-Chain/internal/agent"
	xerrors "AgentKit-Chain/internal/errors"
)

// RecoveryHandler 在任务不可重试地失败时决定是否记录降级结果。
// partial 是代理失败前已经产出的结果，可能为 nil；返回 nil 表示按失败处理。
type RecoveryHandler interface {
	Recover(ctx context.Context, task *Task, partial *ExecutionResult, cause error) (*ExecutionResult, error)
}

// RecoveryFunc 让普通函数满足 RecoveryHandler。
type RecoveryFunc func(ctx context.Context, task *Task, partial *ExecutionResult, cause error) (*ExecutionResult, error)

// Recover 调用 f。
func (f RecoveryFunc) Recover(ctx context.Context, task *Task, partial *ExecutionResult, cause error) (*ExecutionResult, error) {
	return f(ctx, task, partial, cause)
}

// KeepPartialSteps 在代理步数耗尽时保留已经执行过的动作，链上操作可能已经生效。
type KeepPartialSteps struct{}

// Recover 实现 RecoveryHandler。
func (KeepPartialSteps) Recover(_ context.Context, _ *Task, partial *ExecutionResult, cause error) (*ExecutionResult, error) {
	if partial == nil || len(partial.Steps) == 0 || !xerrors.HasCode(cause, agent.CodeStepsExhausted) {
		return nil, nil
	}
	out := *partial
	if out.Reply == "" {
		out.Reply = fmt.Sprintf("已执行 %d 个动作，但未得到最终回复", len(out.Steps))
	}
	return &out, nil
}
