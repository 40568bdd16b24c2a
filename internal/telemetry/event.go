package telemetry

import (
	"context"
	"time"
)

// KindActionInvocation is the event kind emitted before an action body runs.
const KindActionInvocation = "agent_action_invocation"

// Event is a single usage record.
type Event struct {
	Kind          string    `json:"kind"`
	Action        string    `json:"action"`
	Provider      string    `json:"provider"`
	Network       string    `json:"network,omitempty"`
	WalletAddress string    `json:"wallet_address,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Sink receives usage events. Implementations must not block the caller for
// longer than it takes to enqueue the event.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// NopSink discards every event.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(context.Context, Event) error { return nil }

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev Event) error

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, ev Event) error { return f(ctx, ev) }
