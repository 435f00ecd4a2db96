package courier

import (
	"context"
	"log/slog"
	"maps"

	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/handler"
	"github.com/aretw0/courier/pkg/session"
	"golang.org/x/sync/semaphore"
)

// Plugin runs against every Context before the action chain.
type Plugin func(ctx context.Context, c *handler.Context)

// RequestObserver is called for every delivery before preprocessing.
type RequestObserver func(ctx context.Context, req *domain.Request)

// LockTimeoutPolicy decides what happens to an event whose session stays busy past the lock timeout.
type LockTimeoutPolicy string

const (
	// LockTimeoutFail fails the delivery with a retryable error so the platform redelivers.
	LockTimeoutFail LockTimeoutPolicy = "fail"
	// LockTimeoutSkip drops the event with a warning and acknowledges the delivery.
	LockTimeoutSkip LockTimeoutPolicy = "skip"
)

// DefaultMaxConcurrency bounds concurrently dispatched session groups per delivery stream.
const DefaultMaxConcurrency = 64

// Option defines a functional option for configuring the Bot.
type Option func(*Bot)

// WithChannel names the channel the bot serves. It tags logs, hooks and contexts.
func WithChannel(name string) Option {
	return func(b *Bot) {
		b.channel = name
	}
}

// WithSessionManager sets the session manager. Bots serving several channels may share one.
func WithSessionManager(m *session.Manager) Option {
	return func(b *Bot) {
		b.sessions = m
	}
}

// WithSync makes deliveries answer with the responses set by handlers.
func WithSync(sync bool) Option {
	return func(b *Bot) {
		b.sync = sync
	}
}

// WithInitialState seeds the state of newly created sessions. The map is copied.
func WithInitialState(state map[string]any) Option {
	return func(b *Bot) {
		b.initialState = maps.Clone(state)
	}
}

// Use appends plugins.
func Use(plugins ...Plugin) Option {
	return func(b *Bot) {
		b.plugins = append(b.plugins, plugins...)
	}
}

// WithOnRequest registers an observer for every delivery.
func WithOnRequest(fn RequestObserver) Option {
	return func(b *Bot) {
		b.onRequest = fn
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Bot) {
		b.hooks = hooks
	}
}

// WithEmitter sets the emitter handed to every Context.
func WithEmitter(e handler.Emitter) Option {
	return func(b *Bot) {
		b.emitter = e
	}
}

// WithLogger sets a custom structured logger for the bot.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMaxConcurrency bounds how many session groups of a delivery run at once.
func WithMaxConcurrency(n int64) Option {
	return func(b *Bot) {
		if n > 0 {
			b.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithSemaphore shares a concurrency bound between several bots.
func WithSemaphore(sem *semaphore.Weighted) Option {
	return func(b *Bot) {
		if sem != nil {
			b.sem = sem
		}
	}
}

// WithMaxHandoffs bounds the handoffs of a single action chain run.
func WithMaxHandoffs(n int) Option {
	return func(b *Bot) {
		b.chain.MaxHandoffs = n
	}
}

// WithLockTimeoutPolicy selects what happens when a session stays locked too long.
func WithLockTimeoutPolicy(p LockTimeoutPolicy) Option {
	return func(b *Bot) {
		if p == LockTimeoutFail || p == LockTimeoutSkip {
			b.lockPolicy = p
		}
	}
}
