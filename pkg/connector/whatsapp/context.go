package whatsapp

import (
	"context"
	"errors"

	"github.com/aretw0/courier/pkg/handler"
)

// ErrNotWhatsapp is returned by the helpers when the context belongs to another platform.
var ErrNotWhatsapp = errors.New("context is not a whatsapp-business context")

// EventOf returns the WhatsApp event bound to c.
func EventOf(c *handler.Context) (*Event, bool) {
	e, ok := c.Event().(*Event)
	return e, ok
}

// ClientOf returns the Graph API client bound to c.
func ClientOf(c *handler.Context) (*Client, bool) {
	cl, ok := c.Client().(*Client)
	return cl, ok
}

// RecipientID returns the WhatsApp id replies should go to.
func RecipientID(c *handler.Context) string {
	if e, ok := EventOf(c); ok {
		return e.WaID()
	}
	return ""
}

// SendMessage sends msg to the user of the bound event unless msg.To is already set.
func SendMessage(ctx context.Context, c *handler.Context, msg OutboundMessage) (*MessageResponse, error) {
	cl, ok := ClientOf(c)
	if !ok {
		return nil, ErrNotWhatsapp
	}
	if msg.To == "" {
		msg.To = RecipientID(c)
	}
	return cl.CreateMessage(ctx, msg)
}

// MarkAsRead marks the bound inbound message as read.
func MarkAsRead(ctx context.Context, c *handler.Context) error {
	e, ok := EventOf(c)
	if !ok {
		return ErrNotWhatsapp
	}
	cl, ok := ClientOf(c)
	if !ok {
		return ErrNotWhatsapp
	}
	if e.message == nil {
		return errors.New("whatsapp: only messages can be marked as read")
	}
	return cl.MarkAsRead(ctx, e.message.ID)
}

type sender struct{}

func (sender) SendText(ctx context.Context, c *handler.Context, text string) error {
	_, err := SendMessage(ctx, c, OutboundMessage{Type: "text", Text: &OutboundText{Body: text}})
	return err
}
