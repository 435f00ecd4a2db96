package slack

import (
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/courier/pkg/domain"
)

// Event is one event_callback inner event.
type Event struct {
	kind     domain.EventKind
	facets   domain.Facets
	envelope *Envelope
	inner    *InnerEvent
}

var _ domain.Event = (*Event)(nil)

func newEvent(env *Envelope, inner *InnerEvent) *Event {
	isMessage := inner.Type == "message" || inner.Type == "app_mention"
	return &Event{
		kind:     domain.EventKind(inner.Type),
		envelope: env,
		inner:    inner,
		facets: domain.Facets{
			IsMessage:  isMessage,
			IsReceived: isMessage,
			IsText:     isMessage && inner.Text != "",
			IsMedia:    isMessage && len(inner.Files) > 0,
		},
	}
}

func (e *Event) Platform() domain.Platform { return domain.PlatformSlack }

// Kind returns the inner event type (message, app_mention, ...).
func (e *Event) Kind() domain.EventKind { return e.kind }
func (e *Event) Facets() domain.Facets  { return e.facets }

func (e *Event) Text() string {
	if e.facets.IsText {
		return e.inner.Text
	}
	return ""
}

// Raw returns the *InnerEvent.
func (e *Event) Raw() any { return e.inner }

// Envelope returns the outer delivery envelope.
func (e *Event) Envelope() *Envelope { return e.envelope }

// Inner returns the inner event.
func (e *Event) Inner() *InnerEvent { return e.inner }

// TeamID returns the workspace id.
func (e *Event) TeamID() string {
	if e.envelope.TeamID != "" {
		return e.envelope.TeamID
	}
	return e.inner.Team
}

// ThreadTS returns the thread replies should go to, if the message is threaded.
func (e *Event) ThreadTS() string { return e.inner.ThreadTS }

// Timestamp parses the message ts ("1700000000.000100"), falling back to the envelope time.
func (e *Event) Timestamp() time.Time {
	if sec, frac, ok := strings.Cut(e.inner.TS, "."); ok || sec != "" {
		s, err := strconv.ParseInt(sec, 10, 64)
		if err == nil {
			var micros int64
			if frac != "" {
				micros, _ = strconv.ParseInt(frac, 10, 64)
			}
			return time.Unix(s, micros*int64(time.Microsecond)).UTC()
		}
	}
	if e.envelope.EventTime > 0 {
		return time.Unix(e.envelope.EventTime, 0).UTC()
	}
	return time.Time{}
}
