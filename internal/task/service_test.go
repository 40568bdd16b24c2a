package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"AgentKit-Chain/internal/agent"
	xerrors "AgentKit-Chain/internal/errors"
)

type failingProducer struct{}

func (failingProducer) Publish(context.Context, string) error {
	return xerrors.New(xerrors.CodeQueueFailure, "broker down")
}

func (failingProducer) Close() error { return nil }

func TestServiceSubmitIsIdempotentByID(t *testing.T) {
	store := NewMemoryStore()
	queue := &recordingQueue{}
	svc := NewService(store, queue, 0)

	first, err := svc.Submit(context.Background(), agent.TaskRequest{ID: "req-1", Goal: "  check balance "})
	require.NoError(t, err)
	require.Equal(t, "check balance", first.Goal)
	require.Equal(t, 3, first.MaxRetries)

	second, err := svc.Submit(context.Background(), agent.TaskRequest{ID: "req-1", Goal: "something else"})
	require.NoError(t, err)
	require.Equal(t, "check balance", second.Goal)
	require.Equal(t, []string{"req-1"}, queue.published)
}

func TestServiceSubmitValidatesGoal(t *testing.T) {
	svc := NewService(NewMemoryStore(), &recordingQueue{}, 3)
	_, err := svc.Submit(context.Background(), agent.TaskRequest{Goal: "   "})
	require.True(t, xerrors.HasCode(err, CodeTaskValidation))
}

func TestServiceSubmitMarksPublishFailure(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, failingProducer{}, 3)

	_, err := svc.Submit(context.Background(), agent.TaskRequest{ID: "t1", Goal: "g"})
	require.True(t, xerrors.HasCode(err, CodeTaskPublish))

	task, err := store.Get(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, StatusFailed, task.Status)
	require.Equal(t, string(CodeTaskPublish), task.ErrorCode)
}

func TestServiceRecentReturnsSucceededExchanges(t *testing.T) {
	store, clock := newClockedStore()
	svc := NewService(store, &recordingQueue{}, 3)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := svc.Submit(ctx, agent.TaskRequest{ID: id, Goal: "goal " + id})
		require.NoError(t, err)
		clock.advance(time.Second)
	}
	require.NoError(t, store.MarkSucceeded(ctx, "a", ExecutionResult{Reply: "reply a"}))
	clock.advance(time.Second)
	require.NoError(t, store.MarkSucceeded(ctx, "c", ExecutionResult{Reply: "reply c"}))

	recent, err := svc.Recent(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, []agent.Exchange{
		{Goal: "goal c", Reply: "reply c"},
		{Goal: "goal a", Reply: "reply a"},
	}, recent)
}
