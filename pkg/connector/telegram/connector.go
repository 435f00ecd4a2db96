// Package telegram implements the Telegram Bot API webhook connector on top of telego.
package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/handler"
	"github.com/aretw0/courier/pkg/ports"
	"github.com/mymmrac/telego"
)

// SecretTokenHeader carries the secret_token registered with setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

type config struct {
	bot         *telego.Bot
	secretToken string
	apiServer   string
}

// Option configures a Connector.
type Option func(*config)

// WithBot uses an existing bot client instead of building one from the token.
func WithBot(b *telego.Bot) Option {
	return func(c *config) { c.bot = b }
}

// WithSecretToken requires deliveries to carry the given secret token header.
func WithSecretToken(token string) Option {
	return func(c *config) { c.secretToken = token }
}

// WithAPIServer overrides the Bot API server URL.
func WithAPIServer(u string) Option {
	return func(c *config) { c.apiServer = u }
}

// Connector implements ports.Connector for Telegram.
type Connector struct {
	bot         *telego.Bot
	secretToken string
}

var _ ports.Connector = (*Connector)(nil)

// New creates a Connector for the bot identified by token.
func New(token string, opts ...Option) (*Connector, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	bot := cfg.bot
	if bot == nil {
		botOpts := []telego.BotOption{telego.WithDiscardLogger()}
		if cfg.apiServer != "" {
			botOpts = append(botOpts, telego.WithAPIServer(cfg.apiServer))
		}
		var err error
		bot, err = telego.NewBot(strings.TrimSpace(token), botOpts...)
		if err != nil {
			return nil, fmt.Errorf("initialize telegram bot: %w", err)
		}
	}
	return &Connector{bot: bot, secretToken: cfg.secretToken}, nil
}

func (c *Connector) Platform() domain.Platform { return domain.PlatformTelegram }

// Client returns the *telego.Bot.
func (c *Connector) Client() any { return c.bot }

// Preprocess accepts POST deliveries carrying the configured secret token.
func (c *Connector) Preprocess(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	if req.Method != http.MethodPost {
		return nil, domain.NewValidationError(http.StatusMethodNotAllowed, "Method Not Allowed", "telegram webhooks are POST only")
	}
	if c.secretToken != "" {
		got := req.Header.Get(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(c.secretToken)) != 1 {
			return nil, domain.NewValidationError(http.StatusUnauthorized, "Unauthorized", "secret token mismatch")
		}
	}
	return nil, nil
}

// MapRequestToEvents maps the single update of a delivery. Unsupported update types yield no events.
func (c *Connector) MapRequestToEvents(body []byte) ([]domain.Event, error) {
	var u telego.Update
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, &domain.MappingError{Platform: domain.PlatformTelegram, Err: err}
	}
	ev := newEvent(&u)
	if ev == nil {
		return []domain.Event{}, nil
	}
	return []domain.Event{ev}, nil
}

// SessionKey is telegram:<chat id>.
func (c *Connector) SessionKey(ev domain.Event) (string, bool) {
	e, ok := ev.(*Event)
	if !ok {
		return "", false
	}
	id := e.ChatID()
	if id == 0 {
		return "", false
	}
	return sessionKey(id), true
}

func sessionKey(chatID int64) string {
	return string(domain.PlatformTelegram) + ":" + strconv.FormatInt(chatID, 10)
}

// UpdateSession records the sender's identity. Older messages never overwrite a newer snapshot.
func (c *Connector) UpdateSession(s *domain.Session, ev domain.Event) error {
	e, ok := ev.(*Event)
	if !ok {
		return fmt.Errorf("telegram: unexpected event type %T", ev)
	}
	from := e.From()
	if from == nil {
		return nil
	}

	id := strconv.FormatInt(from.ID, 10)
	at := e.Timestamp()
	if prev := s.User(); prev != nil && prev.ID() == id {
		if at.IsZero() {
			at = prev.UpdatedAt()
		}
		if at.Before(prev.UpdatedAt()) {
			return nil
		}
	}

	name := strings.TrimSpace(from.FirstName + " " + from.LastName)
	attrs := map[string]string{}
	if from.Username != "" {
		attrs["username"] = from.Username
	}
	if from.LanguageCode != "" {
		attrs["language_code"] = from.LanguageCode
	}
	s.SetUser(domain.NewUser(id, name, at, attrs))
	return nil
}

// CreateContext binds the bot client.
func (c *Connector) CreateContext(p handler.ContextParams) (*handler.Context, error) {
	if _, ok := p.Event.(*Event); !ok {
		return nil, fmt.Errorf("telegram: unexpected event type %T", p.Event)
	}
	return handler.NewContext(p, c.bot, sender{}), nil
}
