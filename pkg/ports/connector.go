package ports

import (
	"context"

	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/handler"
)

// Connector is the platform adapter contract.
// One instance is built per configured channel at startup and shared read-only by
// every dispatch for that channel.
type Connector interface {
	// Platform returns the platform tag.
	Platform() domain.Platform

	// Client returns the platform client handed to Contexts. The dispatcher never calls it.
	Client() any

	// Preprocess inspects a delivery before any event mapping.
	// (nil, nil) continues the pipeline; a non-nil Response is returned verbatim
	// (handshakes); a *domain.ValidationError rejects the delivery.
	Preprocess(ctx context.Context, req *domain.Request) (*domain.Response, error)

	// MapRequestToEvents is a pure function returning events in delivery order.
	// Empty batches yield an empty slice; schema violations yield a *domain.MappingError.
	MapRequestToEvents(body []byte) ([]domain.Event, error)

	// SessionKey derives the session key for ev. ok is false when the event carries
	// no resolvable identity; such events run against an ephemeral session.
	SessionKey(ev domain.Event) (key string, ok bool)

	// UpdateSession merges identity facts from ev into s. It must be idempotent.
	UpdateSession(s *domain.Session, ev domain.Event) error

	// CreateContext binds the platform client to a new Context. It must not perform I/O.
	CreateContext(params handler.ContextParams) (*handler.Context, error)
}
