package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	xerrors "AgentKit-Chain/internal/errors"
)

// fakeRedisList 在内存中模拟一个 Redis list，头部为 LPUSH 端。
type fakeRedisList struct {
	mu       sync.Mutex
	items    map[string][]string
	rpushed  []string
	brpopErr error
	closed   bool
}

func newFakeRedisList() *fakeRedisList {
	return &fakeRedisList{items: map[string][]string{}}
}

func (f *fakeRedisList) LPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.items[key] = append([]string{fmt.Sprint(v)}, f.items[key]...)
	}
	return redis.NewIntResult(int64(len(f.items[key])), nil)
}

func (f *fakeRedisList) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.items[key] = append(f.items[key], fmt.Sprint(v))
		f.rpushed = append(f.rpushed, fmt.Sprint(v))
	}
	return redis.NewIntResult(int64(len(f.items[key])), nil)
}

func (f *fakeRedisList) BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	deadline := time.Now().Add(timeout)
	for {
		f.mu.Lock()
		if f.brpopErr != nil {
			err := f.brpopErr
			f.mu.Unlock()
			return redis.NewStringSliceResult(nil, err)
		}
		for _, key := range keys {
			if list := f.items[key]; len(list) > 0 {
				last := list[len(list)-1]
				f.items[key] = list[:len(list)-1]
				f.mu.Unlock()
				return redis.NewStringSliceResult([]string{key, last}, nil)
			}
		}
		f.mu.Unlock()

		if ctx.Err() != nil {
			return redis.NewStringSliceResult(nil, ctx.Err())
		}
		if time.Now().After(deadline) {
			return redis.NewStringSliceResult(nil, redis.Nil)
		}
		time.Sleep(time.Millisecond)
	}
}

func (f *fakeRedisList) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestNewRedisQueueRequiresAddress(t *testing.T) {
	_, err := NewRedisQueue(context.Background(), RedisQueueConfig{})
	require.True(t, xerrors.HasCode(err, xerrors.CodeInvalidArgument))
}

func TestRedisQueueDeliversInOrderAndRequeuesFailures(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := newFakeRedisList()
	queue := newRedisQueue(client, RedisQueueConfig{BlockWait: 10 * time.Millisecond})
	require.Equal(t, "agentkit:tasks", queue.queue)

	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, queue.Publish(ctx, id))
	}

	var (
		mu       sync.Mutex
		seen     []string
		failedT2 bool
	)
	consumeCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- queue.Consume(consumeCtx, 1, func(_ context.Context, taskID string) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, taskID)
			if taskID == "t2" && !failedT2 {
				failedT2 = true
				return errors.New("executor busy")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 4
	}, 2*time.Second, 5*time.Millisecond)
	stop()

	err := <-done
	require.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"t1", "t2", "t2", "t3"}, seen)
	require.Equal(t, []string{"t2"}, client.rpushed)

	require.NoError(t, queue.Close())
	require.True(t, client.closed)
}

func TestRedisQueueConsumeFailsOnBackendError(t *testing.T) {
	client := newFakeRedisList()
	client.brpopErr = errors.New("connection reset")
	queue := newRedisQueue(client, RedisQueueConfig{Queue: "jobs", BlockWait: 10 * time.Millisecond})

	err := queue.Consume(context.Background(), 2, func(context.Context, string) error {
		t.Error("handler must not run")
		return nil
	})
	require.True(t, xerrors.HasCode(err, xerrors.CodeQueueFailure))
}
