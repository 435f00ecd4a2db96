package courier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/courier/internal/logging"
	"github.com/aretw0/courier/pkg/adapters/memory"
	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/handler"
	"github.com/aretw0/courier/pkg/ports"
	"github.com/aretw0/courier/pkg/session"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Bot dispatches the deliveries of one channel.
// It is safe for concurrent use once configured.
type Bot struct {
	channel      string
	connector    ports.Connector
	sessions     *session.Manager
	chain        handler.Chain
	sync         bool
	initialState map[string]any
	plugins      []Plugin
	onRequest    RequestObserver
	hooks        domain.LifecycleHooks
	emitter      handler.Emitter
	logger       *slog.Logger
	sem          *semaphore.Weighted
	lockPolicy   LockTimeoutPolicy
}

// New creates a Bot for connector. Without WithSessionManager, sessions live in memory.
func New(connector ports.Connector, opts ...Option) *Bot {
	b := &Bot{
		connector:  connector,
		logger:     logging.NewNop(),
		lockPolicy: LockTimeoutFail,
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.channel == "" {
		b.channel = connector.Platform().String()
	}
	if b.sessions == nil {
		b.sessions = session.NewManager(memory.NewStore(), session.WithLogger(b.logger))
	}
	if b.sem == nil {
		b.sem = semaphore.NewWeighted(DefaultMaxConcurrency)
	}
	b.logger = b.logger.With("channel", b.channel, "platform", connector.Platform())
	return b
}

// OnEvent sets the entry Action run for every event.
func (b *Bot) OnEvent(a handler.Action) *Bot {
	b.chain.Entry = a
	return b
}

// OnError sets the error chain run when the entry chain fails.
func (b *Bot) OnError(a handler.Action) *Bot {
	b.chain.OnError = a
	return b
}

// Channel returns the channel name.
func (b *Bot) Channel() string { return b.channel }

// Platform returns the platform served by the connector.
func (b *Bot) Platform() domain.Platform { return b.connector.Platform() }

// Connector returns the bot's connector.
func (b *Bot) Connector() ports.Connector { return b.connector }

// Sessions returns the session manager.
func (b *Bot) Sessions() *session.Manager { return b.sessions }

// Handle processes one delivery.
//
// A non-nil Response is returned on success. On failure the error carries the status
// the platform should see; see domain.ResponseFor.
func (b *Bot) Handle(ctx context.Context, req *domain.Request) (resp *domain.Response, err error) {
	start := time.Now()
	delivery := &domain.DeliveryEvent{Channel: b.channel, Platform: b.connector.Platform()}
	defer func() {
		delivery.Duration = time.Since(start)
		delivery.Err = err
		if err != nil {
			delivery.Status = domain.StatusFor(err)
		} else {
			delivery.Status = resp.Status
		}
		if b.hooks.OnDelivery != nil {
			b.hooks.OnDelivery(ctx, delivery)
		}
	}()

	if b.onRequest != nil {
		b.onRequest(ctx, req)
	}

	early, err := b.connector.Preprocess(ctx, req)
	if err != nil {
		b.logger.Debug("Delivery rejected", "err", err)
		return nil, err
	}
	if early != nil {
		return early, nil
	}

	events, err := b.connector.MapRequestToEvents(req.Body)
	if err != nil {
		b.logger.Error("Failed to map delivery", "err", err)
		return nil, err
	}
	delivery.Events = len(events)

	// Dispatch must finish and release sessions even if the client goes away.
	return b.dispatch(context.WithoutCancel(ctx), events)
}

type indexedEvent struct {
	index int
	event domain.Event
}

// group is the ordered run of events sharing one session key.
type group struct {
	key       string
	ephemeral bool
	events    []indexedEvent
}

// groupEvents partitions events by session key, preserving delivery order inside each
// group. Events without a key each form their own ephemeral group.
func (b *Bot) groupEvents(events []domain.Event) []*group {
	var groups []*group
	byKey := make(map[string]*group)
	for i, ev := range events {
		key, ok := b.connector.SessionKey(ev)
		if !ok {
			groups = append(groups, &group{ephemeral: true, events: []indexedEvent{{i, ev}}})
			continue
		}
		g, exists := byKey[key]
		if !exists {
			g = &group{key: key}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.events = append(g.events, indexedEvent{i, ev})
	}
	return groups
}

func (b *Bot) dispatch(ctx context.Context, events []domain.Event) (*domain.Response, error) {
	responses := make([]*domain.Response, len(events))
	errs := make([]error, len(events))

	var wg sync.WaitGroup
	for _, g := range b.groupEvents(events) {
		if err := b.sem.Acquire(ctx, 1); err != nil {
			for _, ie := range g.events {
				errs[ie.index] = err
			}
			continue
		}
		wg.Add(1)
		go func(g *group) {
			defer wg.Done()
			defer b.sem.Release(1)
			for _, ie := range g.events {
				responses[ie.index], errs[ie.index] = b.dispatchOne(ctx, ie.event, g.key, g.ephemeral)
			}
		}(g)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return b.respond(responses), nil
}

// respond assembles the sync reply: one body as is, several as a JSON array.
func (b *Bot) respond(responses []*domain.Response) *domain.Response {
	if !b.sync {
		return domain.OK()
	}
	var set []*domain.Response
	for _, r := range responses {
		if r != nil {
			set = append(set, r)
		}
	}
	switch len(set) {
	case 0:
		return domain.OK()
	case 1:
		return set[0]
	default:
		bodies := make([]any, len(set))
		for i, r := range set {
			bodies[i] = r.Body
		}
		return domain.NewResponse(http.StatusOK, bodies)
	}
}

func (b *Bot) dispatchOne(ctx context.Context, ev domain.Event, key string, ephemeral bool) (resp *domain.Response, err error) {
	start := time.Now()
	info := &domain.DispatchEvent{
		Channel:    b.channel,
		Platform:   ev.Platform(),
		Kind:       ev.Kind(),
		SessionKey: key,
		Ephemeral:  ephemeral,
	}
	if b.hooks.OnDispatchStart != nil {
		b.hooks.OnDispatchStart(ctx, info)
	}
	defer func() {
		info.Duration = time.Since(start)
		info.Err = err
		if b.hooks.OnDispatchFinish != nil {
			b.hooks.OnDispatchFinish(ctx, info)
		}
	}()

	logger := b.logger.With("event_kind", ev.Kind())

	if ephemeral {
		s := domain.NewSession("ephemeral:"+uuid.NewString(), ev.Platform(), b.initialState)
		return b.run(ctx, ev, s, true, logger)
	}

	logger = logger.With("session_key", key)
	lease, err := b.sessions.Acquire(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrLockTimeout) {
			if b.hooks.OnLockTimeout != nil {
				b.hooks.OnLockTimeout(ctx, info)
			}
			if b.lockPolicy == LockTimeoutSkip {
				logger.Warn("Session busy, event skipped", "err", err)
				return nil, nil
			}
		}
		return nil, err
	}
	defer lease.Release()
	info.LockWait = lease.Waited()

	s, created, err := b.sessions.LoadOrCreate(ctx, key, ev.Platform(), b.initialState)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Debug("Session created")
	}

	resp, runErr := b.run(ctx, ev, s, false, logger)

	// Persist even after a handler failure so identity updates and partial progress survive.
	if err := b.sessions.Save(ctx, key, s); err != nil {
		logger.Error("Failed to save session", "err", err)
		return resp, errors.Join(runErr, err)
	}
	return resp, runErr
}

// run applies the connector's session update and evaluates the action chain.
// A failed session update is a handler error and goes to the error chain.
func (b *Bot) run(ctx context.Context, ev domain.Event, s *domain.Session, ephemeral bool, logger *slog.Logger) (*domain.Response, error) {
	fail := func(err error) error {
		return &domain.HandlerError{SessionKey: s.ID, EventKind: ev.Kind(), Err: err}
	}

	c, err := b.connector.CreateContext(handler.ContextParams{
		Channel:   b.channel,
		Event:     ev,
		Session:   s,
		Ephemeral: ephemeral,
		Emitter:   b.emitter,
		Logger:    logger,
	})
	if err != nil {
		return nil, fail(fmt.Errorf("create context: %w", err))
	}

	s.Touch(time.Now())
	if err := b.connector.UpdateSession(s, ev); err != nil {
		if err := b.chain.HandleError(ctx, c, fmt.Errorf("update session: %w", err)); err != nil {
			logger.Error("Session update failed", "err", err)
			return c.Response(), fail(err)
		}
		return c.Response(), nil
	}

	for _, p := range b.plugins {
		p(ctx, c)
	}

	err = b.chain.Run(ctx, c)
	switch {
	case err == nil:
	case errors.Is(err, handler.ErrNoMatch):
		logger.Debug("Unhandled event")
	default:
		logger.Error("Handler failed", "err", err)
		return c.Response(), fail(err)
	}
	return c.Response(), nil
}
