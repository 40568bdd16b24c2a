package task

import (
	"slices"
	"strings"
	"time"
)

// SortOrder 决定列表按更新时间的排序方向。
type SortOrder int

const (
	// SortByUpdatedDesc 最近更新的任务在前。
	SortByUpdatedDesc SortOrder = iota
	// SortByUpdatedAsc 最早更新的任务在前。
	SortByUpdatedAsc
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ListOptions 控制查询任务时的过滤与分页。
type ListOptions struct {
	Limit      int
	Offset     int
	Statuses   []Status
	UpdatedGTE int64
	UpdatedLTE int64
	HasResult  *bool
	Order      SortOrder
	// Query 对目标、回复与错误信息做不区分大小写的子串匹配。
	Query string
}

func (opts *ListOptions) applyDefaults() {
	switch {
	case opts.Limit <= 0:
		opts.Limit = defaultListLimit
	case opts.Limit > maxListLimit:
		opts.Limit = maxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	opts.Statuses = normalizeStatuses(opts.Statuses)
	if opts.Order != SortByUpdatedAsc {
		opts.Order = SortByUpdatedDesc
	}
	opts.Query = strings.TrimSpace(opts.Query)
}

// matches 判断任务是否满足过滤条件（不含分页）。
func (opts ListOptions) matches(task *Task) bool {
	if len(opts.Statuses) > 0 && !slices.Contains(opts.Statuses, task.Status) {
		return false
	}
	if opts.UpdatedGTE > 0 && task.UpdatedAt < opts.UpdatedGTE {
		return false
	}
	if opts.UpdatedLTE > 0 && task.UpdatedAt > opts.UpdatedLTE {
		return false
	}
	if opts.HasResult != nil && task.Result.empty() == *opts.HasResult {
		return false
	}
	if opts.Query != "" {
		q := strings.ToLower(opts.Query)
		reply := ""
		if task.Result != nil {
			reply = task.Result.Reply
		}
		if !strings.Contains(strings.ToLower(task.Goal), q) &&
			!strings.Contains(strings.ToLower(reply), q) &&
			!strings.Contains(strings.ToLower(task.LastError), q) {
			return false
		}
	}
	return true
}

// ListOption 修改 ListOptions。
type ListOption func(*ListOptions)

// WithLimit 限制返回的任务数量，上限为 100。
func WithLimit(limit int) ListOption {
	return func(opts *ListOptions) { opts.Limit = limit }
}

// WithOffset 跳过前 n 个匹配的任务。
func WithOffset(offset int) ListOption {
	return func(opts *ListOptions) { opts.Offset = offset }
}

// WithStatuses 按状态过滤。
func WithStatuses(statuses ...Status) ListOption {
	return func(opts *ListOptions) { opts.Statuses = append([]Status(nil), statuses...) }
}

// WithUpdatedSince 只返回在 ts 之后（含）更新的任务。
func WithUpdatedSince(ts time.Time) ListOption {
	return func(opts *ListOptions) {
		opts.UpdatedGTE = 0
		if !ts.IsZero() {
			opts.UpdatedGTE = ts.Unix()
		}
	}
}

// WithUpdatedUntil 只返回在 ts 之前（含）更新的任务。
func WithUpdatedUntil(ts time.Time) ListOption {
	return func(opts *ListOptions) {
		opts.UpdatedLTE = 0
		if !ts.IsZero() {
			opts.UpdatedLTE = ts.Unix()
		}
	}
}

// WithResultPresence 按是否已有执行结果过滤。
func WithResultPresence(hasResult bool) ListOption {
	return func(opts *ListOptions) { opts.HasResult = &hasResult }
}

// WithSortOrder 修改排序方向。
func WithSortOrder(order SortOrder) ListOption {
	return func(opts *ListOptions) { opts.Order = order }
}

// WithQuery 按关键字过滤。
func WithQuery(query string) ListOption {
	return func(opts *ListOptions) { opts.Query = query }
}

func buildListOptions(opts []ListOption) ListOptions {
	options := ListOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	options.applyDefaults()
	return options
}

func normalizeStatuses(input []Status) []Status {
	var result []Status
	for _, status := range input {
		if IsValidStatus(status) && !slices.Contains(result, status) {
			result = append(result, status)
		}
	}
	return result
}
