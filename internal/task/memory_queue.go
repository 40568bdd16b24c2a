package task

import (
	"context"
	"log/slog"
	"sync"

	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/pkg/logger"
)

// MemoryQueue 基于 channel 的进程内队列，适合单实例部署与测试。
type MemoryQueue struct {
	ch     chan string
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewMemoryQueue 创建一个内存队列，size 为缓冲区长度。
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{ch: make(chan string, size), done: make(chan struct{})}
}

func errQueueClosed() error {
	return xerrors.New(xerrors.CodeQueueFailure, "队列已关闭", xerrors.WithRetryable(false))
}

// Publish 将任务投递到队列，缓冲区满时阻塞直到 ctx 结束或队列关闭。
func (q *MemoryQueue) Publish(ctx context.Context, taskID string) error {
	select {
	case <-q.done:
		return errQueueClosed()
	default:
	}
	select {
	case <-ctx.Done():
		return xerrors.Wrap(xerrors.CodeQueueFailure, ctx.Err(), "投递任务被取消")
	case <-q.done:
		return errQueueClosed()
	case q.ch <- taskID:
		return nil
	}
}

// Consume 启动 workerCount 个协程消费任务，直到 ctx 结束或队列关闭。
// 队列关闭后会先处理完缓冲区中剩余的任务。
func (q *MemoryQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	log := logger.Named("memory_queue")
	handle := func(taskID string) {
		if err := handler(ctx, taskID); err != nil {
			log.Warn("任务处理失败", slog.String("task_id", taskID), slog.Any("error", err))
		}
	}
	var wg sync.WaitGroup
	for range workerCount {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case taskID := <-q.ch:
					handle(taskID)
				case <-q.done:
					for {
						select {
						case taskID := <-q.ch:
							handle(taskID)
						default:
							return
						}
					}
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// Close 关闭队列，之后的 Publish 返回错误，阻塞中的 Publish 立即返回。
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		close(q.done)
		q.closed = true
	}
	return nil
}
