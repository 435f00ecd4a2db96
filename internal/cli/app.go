// Package cli assembles the configured channels into a running webhook server.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/courier"
	"github.com/aretw0/courier/internal/config"
	httpadapter "github.com/aretw0/courier/pkg/adapters/http"
	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/handler"
	"github.com/aretw0/courier/pkg/observability"
	"github.com/aretw0/courier/pkg/registry"
	"github.com/aretw0/courier/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/semaphore"
)

// Setup attaches handler logic to a freshly built bot.
type Setup func(*courier.Bot)

// App is a fully wired server: one bot per enabled channel behind a single HTTP handler.
type App struct {
	Handler  http.Handler
	Bots     []*courier.Bot
	Sessions *session.Manager

	cfg         *config.Config
	logger      *slog.Logger
	persistence *Persistence
}

// NewApp opens persistence, builds the channel registry and mounts every bot.
func NewApp(cfg *config.Config, logger *slog.Logger, setup Setup) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	reg, err := registry.Build(cfg.Channels)
	if err != nil {
		return nil, err
	}
	if reg.Len() == 0 {
		return nil, errors.New("no enabled channels configured")
	}

	p, err := OpenPersistence(cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	mgr := NewSessionManager(cfg.Session, p, logger)

	hooks := observability.LogHooks(logger)
	var emitter handler.Emitter
	var httpOpts []httpadapter.Option
	if cfg.Metrics.Enabled {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics := observability.NewMetrics(cfg.Metrics.Namespace)
		if err := metrics.Register(promReg); err != nil {
			return nil, errors.Join(fmt.Errorf("register metrics: %w", err), p.Close())
		}
		hooks = observability.Combine(hooks, metrics.Hooks())
		emitter = metrics.Emitter().WithLogger(logger)
		httpOpts = append(httpOpts, httpadapter.WithMetrics(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))
	}

	bots := BuildBots(cfg, reg, mgr, logger, hooks, emitter)
	if setup != nil {
		for _, b := range bots {
			setup(b)
		}
	}

	routes := make([]httpadapter.Route, 0, len(bots))
	for i, ch := range reg.Channels() {
		routes = append(routes, httpadapter.Route{Channel: ch.Name, Path: ch.Path, Delivery: bots[i]})
	}
	httpOpts = append(httpOpts,
		httpadapter.WithLogger(logger),
		httpadapter.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	)
	h, err := httpadapter.NewHandler(routes, httpOpts...)
	if err != nil {
		return nil, errors.Join(err, p.Close())
	}

	return &App{
		Handler:     h,
		Bots:        bots,
		Sessions:    mgr,
		cfg:         cfg,
		logger:      logger,
		persistence: p,
	}, nil
}

// BuildBots creates one bot per registered channel, in registry order.
// All bots share the session manager and a single concurrency bound.
func BuildBots(cfg *config.Config, reg *registry.Registry, mgr *session.Manager, logger *slog.Logger, hooks domain.LifecycleHooks, emitter handler.Emitter) []*courier.Bot {
	maxConcurrency := cfg.Dispatch.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = courier.DefaultMaxConcurrency
	}
	sem := semaphore.NewWeighted(maxConcurrency)

	channels := reg.Channels()
	bots := make([]*courier.Bot, 0, len(channels))
	for _, ch := range channels {
		opts := []courier.Option{
			courier.WithChannel(ch.Name),
			courier.WithSessionManager(mgr),
			courier.WithSync(ch.Sync),
			courier.WithInitialState(cfg.InitialState),
			courier.WithLifecycleHooks(hooks),
			courier.WithLogger(logger),
			courier.WithSemaphore(sem),
			courier.WithMaxHandoffs(cfg.Dispatch.MaxHandoffs),
			courier.WithLockTimeoutPolicy(courier.LockTimeoutPolicy(cfg.Session.OnLockTimeout)),
		}
		if emitter != nil {
			opts = append(opts, courier.WithEmitter(emitter))
		}
		bots = append(bots, courier.New(ch.Connector, opts...))
	}
	return bots
}

// Run serves until ctx is done, then shuts down and closes the session store.
func (a *App) Run(ctx context.Context) error {
	for _, b := range a.Bots {
		path := registry.DefaultPath(b.Channel())
		if ch, ok := a.cfg.Channels[b.Channel()]; ok && ch.Path != "" {
			path = ch.Path
		}
		a.logger.Info("Channel mounted", "channel", b.Channel(), "platform", b.Platform(), "path", path)
	}
	err := httpadapter.Serve(ctx, a.cfg.Server.Addr, a.Handler, a.cfg.Server.ShutdownTimeout, a.logger)
	return errors.Join(err, a.Close())
}

// Close releases the session store.
func (a *App) Close() error {
	return a.persistence.Close()
}
