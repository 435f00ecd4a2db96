package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/courier/pkg/domain"
)

// LogHooks returns lifecycle hooks that log every delivery and dispatch.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDelivery: func(ctx context.Context, e *domain.DeliveryEvent) {
			level := slog.LevelInfo
			if e.Err != nil {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "delivery",
				"channel", e.Channel,
				"platform", e.Platform,
				"events", e.Events,
				"status", e.Status,
				"duration", e.Duration,
				"err", e.Err,
			)
		},
		OnDispatchFinish: func(ctx context.Context, e *domain.DispatchEvent) {
			logger.Debug("dispatch",
				"channel", e.Channel,
				"event_kind", e.Kind,
				"session_key", e.SessionKey,
				"lock_wait", e.LockWait,
				"duration", e.Duration,
				"err", e.Err,
			)
		},
		OnLockTimeout: func(ctx context.Context, e *domain.DispatchEvent) {
			logger.Warn("session lock timeout", "channel", e.Channel, "session_key", e.SessionKey)
		},
	}
}

// Combine merges hooks so every non-nil callback runs, in argument order.
func Combine(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range hooks {
		out.OnDelivery = chain(out.OnDelivery, h.OnDelivery)
		out.OnDispatchStart = chain(out.OnDispatchStart, h.OnDispatchStart)
		out.OnDispatchFinish = chain(out.OnDispatchFinish, h.OnDispatchFinish)
		out.OnLockTimeout = chain(out.OnLockTimeout, h.OnLockTimeout)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
