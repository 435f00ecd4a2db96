package observability

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Emitter counts the named events emitted by handlers and optionally forwards them.
type Emitter struct {
	counter *prometheus.CounterVec
	logger  *slog.Logger
	next    func(ctx context.Context, name string, payload any)
}

// WithLogger logs every emitted event at debug level.
func (e *Emitter) WithLogger(logger *slog.Logger) *Emitter {
	e.logger = logger
	return e
}

// Forward passes every emitted event to fn after counting it.
func (e *Emitter) Forward(fn func(ctx context.Context, name string, payload any)) *Emitter {
	e.next = fn
	return e
}

// Emit implements handler.Emitter.
func (e *Emitter) Emit(ctx context.Context, name string, payload any) {
	e.counter.WithLabelValues(name).Inc()
	if e.logger != nil {
		e.logger.DebugContext(ctx, "event emitted", "name", name)
	}
	if e.next != nil {
		e.next(ctx, name, payload)
	}
}
