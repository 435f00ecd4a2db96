package whatsapp

import (
	"slices"
	"strconv"
	"time"

	"github.com/aretw0/courier/pkg/domain"
)

// Event kinds.
const (
	KindMessages domain.EventKind = "messages"
	KindStatuses domain.EventKind = "statuses"
)

// Event is one message or status from a WhatsApp Business change.
type Event struct {
	kind     domain.EventKind
	facets   domain.Facets
	entryID  string
	metadata Metadata
	message  *InboundMessage
	status   *Status
	contact  *Contact
}

var _ domain.Event = (*Event)(nil)

func newMessageEvent(entry Entry, value Value, m InboundMessage) *Event {
	msg := m.clone()
	ev := &Event{
		kind:     KindMessages,
		entryID:  entry.ID,
		metadata: value.Metadata,
		message:  &msg,
		contact:  findContact(value.Contacts, m.From),
	}
	ev.facets = domain.Facets{
		IsMessage:  true,
		IsReceived: true,
		IsText:     m.Type == "text",
		IsMedia:    mediaTypes[m.Type],
	}
	return ev
}

func newStatusEvent(entry Entry, value Value, s Status) *Event {
	st := s.clone()
	ev := &Event{
		kind:     KindStatuses,
		entryID:  entry.ID,
		metadata: value.Metadata,
		status:   &st,
		contact:  findContact(value.Contacts, s.RecipientID),
	}
	ev.facets = domain.Facets{
		IsStatus:    true,
		IsSent:      s.Status == StatusSent,
		IsDelivered: s.Status == StatusDelivered,
		IsRead:      s.Status == StatusRead,
	}
	return ev
}

func findContact(contacts []Contact, waID string) *Contact {
	for i := range contacts {
		if contacts[i].WaID == waID {
			c := contacts[i]
			return &c
		}
	}
	return nil
}

func (e *Event) Platform() domain.Platform { return domain.PlatformWhatsappBusiness }
func (e *Event) Kind() domain.EventKind    { return e.kind }
func (e *Event) Facets() domain.Facets     { return e.facets }

// Text returns the body of text messages.
func (e *Event) Text() string {
	if e.message != nil && e.message.Text != nil && e.facets.IsText {
		return e.message.Text.Body
	}
	return ""
}

// Raw returns a copy of the InboundMessage or Status the event was built from.
func (e *Event) Raw() any {
	if e.message != nil {
		return e.message.clone()
	}
	if e.status != nil {
		return e.status.clone()
	}
	return nil
}

// Message returns a copy of the inbound message. ok is false for status events.
func (e *Event) Message() (m InboundMessage, ok bool) {
	if e.message == nil {
		return InboundMessage{}, false
	}
	return e.message.clone(), true
}

// Status returns a copy of the status update. ok is false for message events.
func (e *Event) Status() (s Status, ok bool) {
	if e.status == nil {
		return Status{}, false
	}
	return e.status.clone(), true
}

// Metadata returns the receiving phone number metadata.
func (e *Event) Metadata() Metadata { return e.metadata }

// BusinessAccountID returns the WhatsApp Business account id of the entry.
func (e *Event) BusinessAccountID() string { return e.entryID }

// Contact returns the profile of the user the event refers to, if the change carried one.
func (e *Event) Contact() (Contact, bool) {
	if e.contact == nil {
		return Contact{}, false
	}
	return *e.contact, true
}

// WaID returns the WhatsApp id of the user: the sender of a message or the recipient of a status.
func (e *Event) WaID() string {
	switch {
	case e.message != nil:
		return e.message.From
	case e.status != nil:
		return e.status.RecipientID
	default:
		return ""
	}
}

// Timestamp returns the event time reported by the platform.
func (e *Event) Timestamp() time.Time {
	var raw string
	if e.message != nil {
		raw = e.message.Timestamp
	} else if e.status != nil {
		raw = e.status.Timestamp
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func (m InboundMessage) clone() InboundMessage {
	out := m
	out.Text = clonePtr(m.Text)
	out.Image = clonePtr(m.Image)
	out.Video = clonePtr(m.Video)
	out.Audio = clonePtr(m.Audio)
	out.Document = clonePtr(m.Document)
	out.Sticker = clonePtr(m.Sticker)
	out.Reaction = clonePtr(m.Reaction)
	out.Location = clonePtr(m.Location)
	out.Button = clonePtr(m.Button)
	out.Context = clonePtr(m.Context)
	out.Interactive = slices.Clone(m.Interactive)
	out.Errors = slices.Clone(m.Errors)
	return out
}

func (s Status) clone() Status {
	out := s
	out.Errors = slices.Clone(s.Errors)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
