package telegram

import (
	"context"
	"errors"

	"github.com/aretw0/courier/pkg/handler"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// ErrNotTelegram is returned by the helpers when the context belongs to another platform.
var ErrNotTelegram = errors.New("context is not a telegram context")

// EventOf returns the Telegram event bound to c.
func EventOf(c *handler.Context) (*Event, bool) {
	e, ok := c.Event().(*Event)
	return e, ok
}

// BotOf returns the bot client bound to c.
func BotOf(c *handler.Context) (*telego.Bot, bool) {
	b, ok := c.Client().(*telego.Bot)
	return b, ok
}

// SendMessage sends text to the chat of the bound event.
func SendMessage(ctx context.Context, c *handler.Context, text string) (*telego.Message, error) {
	e, ok := EventOf(c)
	if !ok {
		return nil, ErrNotTelegram
	}
	bot, ok := BotOf(c)
	if !ok {
		return nil, ErrNotTelegram
	}
	return bot.SendMessage(ctx, tu.Message(tu.ID(e.ChatID()), text))
}

// AnswerCallbackQuery acknowledges the bound callback query.
func AnswerCallbackQuery(ctx context.Context, c *handler.Context, text string) error {
	e, ok := EventOf(c)
	if !ok || e.CallbackQuery() == nil {
		return ErrNotTelegram
	}
	bot, ok := BotOf(c)
	if !ok {
		return ErrNotTelegram
	}
	return bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: e.CallbackQuery().ID,
		Text:            text,
	})
}

type sender struct{}

func (sender) SendText(ctx context.Context, c *handler.Context, text string) error {
	_, err := SendMessage(ctx, c, text)
	return err
}
