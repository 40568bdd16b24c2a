package task

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/pkg/logger"
)

// RedisQueueConfig 描述 Redis 队列的连接参数。
type RedisQueueConfig struct {
	Address   string
	Password  string
	DB        int
	Queue     string
	BlockWait time.Duration
}

// redisList 是队列用到的 Redis 命令子集，*redis.Client 满足该接口。
type redisList interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	Close() error
}

// RedisQueue 使用 Redis list 实现任务队列，LPUSH 入队、BRPOP 出队。
type RedisQueue struct {
	client redisList
	queue  string
	wait   time.Duration
}

// NewRedisQueue 连接 Redis 并返回队列实例。
func NewRedisQueue(ctx context.Context, cfg RedisQueueConfig) (*RedisQueue, error) {
	if cfg.Address == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Redis 地址不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, xerrors.Wrap(xerrors.CodeQueueFailure, err, "连接 Redis 失败")
	}
	return newRedisQueue(client, cfg), nil
}

func newRedisQueue(client redisList, cfg RedisQueueConfig) *RedisQueue {
	queue := cfg.Queue
	if queue == "" {
		queue = "agentkit:tasks"
	}
	wait := cfg.BlockWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisQueue{client: client, queue: queue, wait: wait}
}

// Publish 将任务投递到 Redis。
func (q *RedisQueue) Publish(ctx context.Context, taskID string) error {
	if err := q.client.LPush(ctx, q.queue, taskID).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeQueueFailure, err, "Redis 发布任务失败")
	}
	return nil
}

// Consume 通过 BRPOP 获取任务，处理失败的任务重新放回队尾。
func (q *RedisQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	log := logger.Named("redis_queue").With(slog.String("queue", q.queue))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}
	for range workerCount {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				values, err := q.client.BRPop(ctx, q.wait, q.queue).Result()
				switch {
				case err == nil:
				case stdErrors.Is(err, redis.Nil):
					continue
				case ctx.Err() != nil:
					return
				default:
					fail(xerrors.Wrap(xerrors.CodeQueueFailure, err, "Redis 取任务失败"))
					return
				}
				if len(values) != 2 {
					continue
				}
				taskID := values[1]
				if err := handler(ctx, taskID); err != nil {
					log.Warn("任务处理失败，重新入队", slog.String("task_id", taskID), slog.Any("error", err))
					if pushErr := q.client.RPush(context.WithoutCancel(ctx), q.queue, taskID).Err(); pushErr != nil {
						log.Error("任务重新入队失败", slog.String("task_id", taskID), slog.Any("error", pushErr))
					}
				}
			}
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	return context.Cause(ctx)
}

// Close 关闭 Redis 连接。
func (q *RedisQueue) Close() error {
	if q == nil || q.client == nil {
		return nil
	}
	return q.client.Close()
}

var _ Queue = (*RedisQueue)(nil)
