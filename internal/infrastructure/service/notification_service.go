// Package service adapts notification delivery: a sink that only logs and a
// circuit breaker around whichever sink is configured.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agepath/placement-engine/internal/domain/notification"
	"github.com/agepath/placement-engine/pkg/circuitbreaker"
)

// ErrSinkUnavailable is returned while the breaker rejects deliveries.
var ErrSinkUnavailable = errors.New("notification sink unavailable")

// LogSink writes each notification as a structured log record.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Deliver implements notification.Sink.
func (s *LogSink) Deliver(ctx context.Context, n *notification.Notification) error {
	s.logger.InfoContext(ctx, "notification",
		"id", n.ID,
		"type", n.Type.String(),
		"recipient_id", n.RecipientID,
		"tenant_id", n.TenantID,
		"title", n.Title,
		"link", n.Link,
	)
	return nil
}

// BreakerSink guards a notification.Sink with a circuit breaker. While the
// breaker is open deliveries fail fast with ErrSinkUnavailable.
type BreakerSink struct {
	next    notification.Sink
	breaker *circuitbreaker.CircuitBreaker
}

// NewBreakerSink wraps next with breaker.
func NewBreakerSink(next notification.Sink, breaker *circuitbreaker.CircuitBreaker) *BreakerSink {
	return &BreakerSink{next: next, breaker: breaker}
}

// Deliver implements notification.Sink.
func (s *BreakerSink) Deliver(ctx context.Context, n *notification.Notification) error {
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.next.Deliver(ctx, n)
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
	}
	return err
}

// State reports the breaker state for health checks.
func (s *BreakerSink) State() circuitbreaker.State {
	return s.breaker.State()
}

// LogStateChanges returns a breaker callback that logs every transition.
func LogStateChanges(logger *slog.Logger) func(name string, from, to circuitbreaker.State) {
	return func(name string, from, to circuitbreaker.State) {
		level := slog.LevelInfo
		if to == circuitbreaker.StateOpen {
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, "circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	}
}
