package domain

// Platform identifies the messaging platform a delivery came from.
type Platform string

const (
	PlatformWhatsappBusiness Platform = "whatsapp-business"
	PlatformTelegram         Platform = "telegram"
	PlatformSlack            Platform = "slack"
)

// String implements fmt.Stringer.
func (p Platform) String() string {
	return string(p)
}

// EventKind discriminates the type of activity an Event carries (e.g. "messages", "statuses").
type EventKind string

// Facets are the boolean accessors of an Event.
// They are computed once when the Event is constructed and never change afterwards.
type Facets struct {
	IsMessage   bool
	IsStatus    bool
	IsText      bool
	IsMedia     bool
	IsReceived  bool
	IsSent      bool
	IsDelivered bool
	IsRead      bool
	IsCallback  bool
}

// Event is one normalized unit of activity derived from a webhook payload fragment.
// Implementations are immutable values; every platform package provides its own variant.
type Event interface {
	// Platform returns the platform tag of the event.
	Platform() Platform

	// Kind returns the event-kind discriminator.
	Kind() EventKind

	// Facets returns the precomputed boolean accessors.
	Facets() Facets

	// Text returns the text body for text events, or "".
	Text() string

	// Raw returns the platform payload the event was built from.
	Raw() any
}
