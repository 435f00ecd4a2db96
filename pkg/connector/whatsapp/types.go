package whatsapp

import "encoding/json"

// Webhook is the top-level body of a WhatsApp Business delivery.
type Webhook struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the changes of one WhatsApp Business account.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one webhook field update.
type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value carries the messages, statuses and contacts of a change.
type Value struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         Metadata         `json:"metadata"`
	Contacts         []Contact        `json:"contacts,omitempty"`
	Messages         []InboundMessage `json:"messages,omitempty"`
	Statuses         []Status         `json:"statuses,omitempty"`
}

// Metadata identifies the business phone number that received the change.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the profile of a WhatsApp user referenced by a change.
type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// InboundMessage is a user message. Only the field matching Type is set.
type InboundMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`

	Text        *TextBody       `json:"text,omitempty"`
	Image       *MediaObject    `json:"image,omitempty"`
	Video       *MediaObject    `json:"video,omitempty"`
	Audio       *MediaObject    `json:"audio,omitempty"`
	Document    *MediaObject    `json:"document,omitempty"`
	Sticker     *MediaObject    `json:"sticker,omitempty"`
	Reaction    *Reaction       `json:"reaction,omitempty"`
	Location    *Location       `json:"location,omitempty"`
	Button      *Button         `json:"button,omitempty"`
	Interactive json.RawMessage `json:"interactive,omitempty"`
	Context     *MessageContext `json:"context,omitempty"`
	Errors      []APIErrorItem  `json:"errors,omitempty"`
}

// TextBody is the body of a text message.
type TextBody struct {
	Body string `json:"body"`
}

// MediaObject describes an uploaded image, video, audio, document or sticker.
type MediaObject struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Reaction is an emoji reaction to an earlier message.
type Reaction struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// Location is a shared location pin.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// Button is a quick-reply button press.
type Button struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

// MessageContext references the message being replied to.
type MessageContext struct {
	From string `json:"from"`
	ID   string `json:"id"`
}

// Status reports the delivery state of an outbound message.
type Status struct {
	ID          string         `json:"id"`
	Status      string         `json:"status"`
	Timestamp   string         `json:"timestamp"`
	RecipientID string         `json:"recipient_id"`
	Errors      []APIErrorItem `json:"errors,omitempty"`
}

// APIErrorItem is an error entry attached to messages and statuses.
type APIErrorItem struct {
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Details string `json:"details,omitempty"`
}

// Status values.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

var mediaTypes = map[string]bool{
	"image":    true,
	"video":    true,
	"audio":    true,
	"document": true,
	"sticker":  true,
}
