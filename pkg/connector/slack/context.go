package slack

import (
	"context"
	"errors"

	"github.com/aretw0/courier/pkg/handler"
)

// ErrNotSlack is returned by the helpers when the context belongs to another platform.
var ErrNotSlack = errors.New("context is not a slack context")

// EventOf returns the Slack event bound to c.
func EventOf(c *handler.Context) (*Event, bool) {
	e, ok := c.Event().(*Event)
	return e, ok
}

// ClientOf returns the Web API client bound to c.
func ClientOf(c *handler.Context) (*Client, bool) {
	cl, ok := c.Client().(*Client)
	return cl, ok
}

// PostMessage replies in the channel of the bound event, inside its thread if it has one.
func PostMessage(ctx context.Context, c *handler.Context, text string) (*PostMessageResponse, error) {
	e, ok := EventOf(c)
	if !ok {
		return nil, ErrNotSlack
	}
	cl, ok := ClientOf(c)
	if !ok {
		return nil, ErrNotSlack
	}
	return cl.PostMessage(ctx, PostMessageRequest{Channel: e.inner.Channel, Text: text, ThreadTS: e.ThreadTS()})
}

type sender struct{}

func (sender) SendText(ctx context.Context, c *handler.Context, text string) error {
	_, err := PostMessage(ctx, c, text)
	return err
}
