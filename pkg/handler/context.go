package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/aretw0/courier/pkg/domain"
)

// ErrNoSender is returned by Context.SendText when the connector did not provide a TextSender.
var ErrNoSender = errors.New("context has no text sender")

// Emitter receives named events emitted by handler logic.
type Emitter interface {
	Emit(ctx context.Context, name string, payload any)
}

// TextSender replies to the conversation an event came from.
// Connectors implement it on top of their platform client.
type TextSender interface {
	SendText(ctx context.Context, c *Context, text string) error
}

// ContextParams are the values a Connector binds into a new Context.
type ContextParams struct {
	Channel   string
	Event     domain.Event
	Session   *domain.Session
	Ephemeral bool
	Emitter   Emitter
	Logger    *slog.Logger
}

// Context is the per-event handle passed into handler logic.
// It is bound to exactly one Event and one Session for its whole lifetime and is
// owned by the single chain execution built for it.
type Context struct {
	channel   string
	event     domain.Event
	session   *domain.Session
	ephemeral bool
	client    any
	emitter   Emitter
	sender    TextSender
	logger    *slog.Logger

	err      error
	response *domain.Response
}

// NewContext binds params with a platform client and sender. It performs no I/O.
func NewContext(p ContextParams, client any, sender TextSender) *Context {
	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Context{
		channel:   p.Channel,
		event:     p.Event,
		session:   p.Session,
		ephemeral: p.Ephemeral,
		client:    client,
		emitter:   p.Emitter,
		sender:    sender,
		logger:    logger,
	}
}

// Channel returns the name of the configured channel that received the event.
func (c *Context) Channel() string { return c.channel }

// Platform returns the platform tag of the bound event.
func (c *Context) Platform() domain.Platform {
	if c.event == nil {
		return ""
	}
	return c.event.Platform()
}

// Event returns the bound event.
func (c *Context) Event() domain.Event { return c.event }

// Facets is shorthand for Event().Facets().
func (c *Context) Facets() domain.Facets {
	if c.event == nil {
		return domain.Facets{}
	}
	return c.event.Facets()
}

// Session returns the bound session.
func (c *Context) Session() *domain.Session { return c.session }

// Ephemeral reports whether the session is a throwaway one that will not be persisted.
func (c *Context) Ephemeral() bool { return c.ephemeral }

// Client returns the platform client. Platform packages offer typed accessors.
func (c *Context) Client() any { return c.client }

// Logger returns a logger scoped to the event.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Err returns the error being handled. It is only set while the error chain runs.
func (c *Context) Err() error { return c.err }

// Emit forwards a named event to the configured emitter, if any.
func (c *Context) Emit(ctx context.Context, name string, payload any) {
	if c.emitter != nil {
		c.emitter.Emit(ctx, name, payload)
	}
}

// SendText replies with a plain text message on the event's platform.
func (c *Context) SendText(ctx context.Context, text string) error {
	if c.sender == nil {
		return ErrNoSender
	}
	return c.sender.SendText(ctx, c, text)
}

// SetResponse sets the synchronous reply for channels running in sync mode.
func (c *Context) SetResponse(status int, body any) {
	c.response = domain.NewResponse(status, body)
}

// Response returns the synchronous reply, or nil if none was set.
func (c *Context) Response() *domain.Response { return c.response }
