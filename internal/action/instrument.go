package action

import (
	"context"
	"log/slog"
	"time"

	"AgentKit-Chain/internal/observability/metrics"
	"AgentKit-Chain/internal/telemetry"
	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "AgentKit-Chain/internal/action"

// instrument wraps body with the usage event, a span, metrics and an audit
// record. The usage event is sent before the body runs.
func (r *Registrar) instrument(name string, body Handler) Handler {
	return func(ctx context.Context, w web3.WalletProvider, args Args) (string, error) {
		r.emit(ctx, name, w)

		ctx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(
			attribute.String("agentkit.action", name),
			attribute.String("agentkit.provider", r.provider),
		))
		defer span.End()

		started := time.Now()
		out, err := body(ctx, w, args)

		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.ObserveActionInvocation(name, outcome)

		attrs := []any{
			slog.String("action", name),
			slog.String("provider", r.provider),
			slog.String("outcome", outcome),
			slog.Duration("duration", time.Since(started)),
		}
		if w != nil {
			attrs = append(attrs, slog.String("wallet", w.Address().Hex()), slog.String("network", w.Network().String()))
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		logger.Audit().Info("动作调用", attrs...)
		return out, err
	}
}

// emit never fails the call: sink errors and panics are logged at debug.
func (r *Registrar) emit(ctx context.Context, name string, w web3.WalletProvider) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Named("action").Debug("动作遥测发送异常", slog.String("action", name), slog.Any("panic", rec))
		}
	}()
	ev := telemetry.Event{
		Kind:      telemetry.KindActionInvocation,
		Action:    name,
		Provider:  r.provider,
		Timestamp: time.Now().UTC(),
	}
	if w != nil {
		ev.Network = w.Network().String()
		ev.WalletAddress = w.Address().Hex()
	}
	if err := r.sink.Emit(ctx, ev); err != nil {
		logger.Named("action").Debug("发送动作遥测失败", slog.String("action", name), slog.Any("error", err))
	}
}
