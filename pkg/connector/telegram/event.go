package telegram

import (
	"time"

	"github.com/aretw0/courier/pkg/domain"
	"github.com/mymmrac/telego"
)

// Event kinds.
const (
	KindMessage       domain.EventKind = "message"
	KindEditedMessage domain.EventKind = "edited_message"
	KindCallbackQuery domain.EventKind = "callback_query"
)

// Event wraps one Telegram update.
type Event struct {
	kind    domain.EventKind
	facets  domain.Facets
	update  *telego.Update
	message *telego.Message
}

var _ domain.Event = (*Event)(nil)

// newEvent classifies u. It returns nil for update types the connector does not dispatch.
func newEvent(u *telego.Update) *Event {
	switch {
	case u.Message != nil:
		return &Event{kind: KindMessage, update: u, message: u.Message, facets: messageFacets(u.Message)}
	case u.EditedMessage != nil:
		return &Event{kind: KindEditedMessage, update: u, message: u.EditedMessage, facets: messageFacets(u.EditedMessage)}
	case u.CallbackQuery != nil:
		return &Event{kind: KindCallbackQuery, update: u, facets: domain.Facets{IsCallback: true, IsReceived: true}}
	default:
		return nil
	}
}

func messageFacets(m *telego.Message) domain.Facets {
	return domain.Facets{
		IsMessage:  true,
		IsReceived: true,
		IsText:     m.Text != "",
		IsMedia: len(m.Photo) > 0 || m.Video != nil || m.Audio != nil || m.Document != nil ||
			m.Sticker != nil || m.Voice != nil || m.Animation != nil,
	}
}

func (e *Event) Platform() domain.Platform { return domain.PlatformTelegram }
func (e *Event) Kind() domain.EventKind    { return e.kind }
func (e *Event) Facets() domain.Facets     { return e.facets }

// Text returns the text of text messages.
func (e *Event) Text() string {
	if e.message != nil {
		return e.message.Text
	}
	return ""
}

// Raw returns the *telego.Update.
func (e *Event) Raw() any { return e.update }

// Update returns the wrapped update.
func (e *Event) Update() *telego.Update { return e.update }

// Message returns the new or edited message, or nil for callback queries.
func (e *Event) Message() *telego.Message { return e.message }

// CallbackQuery returns the callback query, or nil.
func (e *Event) CallbackQuery() *telego.CallbackQuery { return e.update.CallbackQuery }

// CallbackData returns the data attached to the pressed inline button.
func (e *Event) CallbackData() string {
	if q := e.update.CallbackQuery; q != nil {
		return q.Data
	}
	return ""
}

// From returns the user that triggered the update.
func (e *Event) From() *telego.User {
	switch {
	case e.message != nil:
		return e.message.From
	case e.update.CallbackQuery != nil:
		u := e.update.CallbackQuery.From
		return &u
	default:
		return nil
	}
}

// ChatID returns the chat replies should go to: the message chat or, for callback
// queries, the private chat with the sender.
func (e *Event) ChatID() int64 {
	if e.message != nil {
		return e.message.Chat.ID
	}
	if u := e.From(); u != nil {
		return u.ID
	}
	return 0
}

// Timestamp returns the message date (edit date for edits). Callback queries carry none.
func (e *Event) Timestamp() time.Time {
	if e.message == nil {
		return time.Time{}
	}
	sec := e.message.Date
	if e.kind == KindEditedMessage && e.message.EditDate > 0 {
		sec = e.message.EditDate
	}
	return time.Unix(sec, 0).UTC()
}
