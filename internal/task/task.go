package task

import (
	"maps"

	"AgentKit-Chain/internal/agent"
	xerrors "AgentKit-Chain/internal/errors"
)

// Status 表示任务在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ExecutionResult 保存一次代理执行的结果。
type ExecutionResult struct {
	Reply         string       `json:"reply"`
	Steps         []agent.Step `json:"steps,omitempty"`
	Network       string       `json:"network,omitempty"`
	WalletAddress string       `json:"wallet_address,omitempty"`
}

func (r *ExecutionResult) empty() bool {
	return r == nil || (r.Reply == "" && len(r.Steps) == 0)
}

// Task 描述了排队执行的代理对话。
type Task struct {
	ID         string           `json:"id"`
	Goal       string           `json:"goal"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
	Status     Status           `json:"status"`
	Attempts   int              `json:"attempts"`
	MaxRetries int              `json:"max_retries"`
	LastError  string           `json:"last_error,omitempty"`
	ErrorCode  string           `json:"error_code,omitempty"`
	Result     *ExecutionResult `json:"result,omitempty"`
	CreatedAt  int64            `json:"created_at"`
	UpdatedAt  int64            `json:"updated_at"`
}

const (
	CodeTaskNotFound   xerrors.Code = "TASK_NOT_FOUND"
	CodeTaskConflict   xerrors.Code = "TASK_CONFLICT"
	CodeTaskCompleted  xerrors.Code = "TASK_COMPLETED"
	CodeTaskExhausted  xerrors.Code = "TASK_RETRIES_EXHAUSTED"
	CodeTaskValidation xerrors.Code = "TASK_VALIDATION_FAILED"
	CodeTaskPublish    xerrors.Code = "TASK_PUBLISH_FAILED"
	CodeTaskProcessing xerrors.Code = "TASK_PROCESSING_FAILED"
	CodeTaskCompensate xerrors.Code = "TASK_COMPENSATION_FAILED"
)

func init() {
	xerrors.Register(CodeTaskNotFound, xerrors.Attributes{Message: "task not found", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeTaskConflict, xerrors.Attributes{Message: "task conflict", Severity: xerrors.SeverityWarning})
	xerrors.Register(CodeTaskCompleted, xerrors.Attributes{Message: "task already completed", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeTaskExhausted, xerrors.Attributes{Message: "task retries exhausted", Severity: xerrors.SeverityCritical, Alert: true})
	xerrors.Register(CodeTaskValidation, xerrors.Attributes{Message: "task validation failed", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeTaskPublish, xerrors.Attributes{Message: "failed to publish task", Severity: xerrors.SeverityCritical, Retryable: true, Alert: true})
	xerrors.Register(CodeTaskProcessing, xerrors.Attributes{Message: "task execution failed", Severity: xerrors.SeverityWarning, Retryable: true, Alert: true})
	xerrors.Register(CodeTaskCompensate, xerrors.Attributes{Message: "task compensation failed", Severity: xerrors.SeverityCritical, Alert: true})
}

var (
	// ErrTaskNotFound 表示指定的任务不存在。
	ErrTaskNotFound = xerrors.New(CodeTaskNotFound, "")
	// ErrTaskConflict 表示任务在当前状态下无法进行所请求的操作。
	ErrTaskConflict = xerrors.New(CodeTaskConflict, "")
	// ErrTaskCompleted 表示任务已经成功完成。
	ErrTaskCompleted = xerrors.New(CodeTaskCompleted, "")
	// ErrTaskExhausted 表示任务的重试次数已经耗尽。
	ErrTaskExhausted = xerrors.New(CodeTaskExhausted, "")
)

// IsValidStatus 检查给定的任务状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

func cloneMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	return maps.Clone(metadata)
}

func cloneTask(task *Task) *Task {
	clone := *task
	if task.Result != nil {
		result := *task.Result
		result.Steps = append([]agent.Step(nil), task.Result.Steps...)
		clone.Result = &result
	}
	clone.Metadata = cloneMetadata(task.Metadata)
	return &clone
}
