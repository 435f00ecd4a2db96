// Package slack implements the Slack Events API connector and a minimal Web API client.
package slack

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/handler"
	"github.com/aretw0/courier/pkg/ports"
)

const (
	SignatureHeader = "X-Slack-Signature"
	TimestampHeader = "X-Slack-Request-Timestamp"

	// MaxClockSkew bounds the age of a signed request.
	MaxClockSkew = 5 * time.Minute
)

type config struct {
	client        *Client
	token         string
	signingSecret string
	apiBaseURL    string
	now           func() time.Time
}

// Option configures a Connector.
type Option func(*config)

// WithClient uses an existing Web API client.
func WithClient(c *Client) Option {
	return func(cfg *config) { cfg.client = c }
}

// WithToken builds a Web API client authenticated with a bot token.
func WithToken(token string) Option {
	return func(cfg *config) { cfg.token = token }
}

// WithSigningSecret enables request signature verification.
func WithSigningSecret(secret string) Option {
	return func(cfg *config) { cfg.signingSecret = secret }
}

// WithAPIBaseURL overrides the Web API root for clients built from a token.
func WithAPIBaseURL(u string) Option {
	return func(cfg *config) { cfg.apiBaseURL = u }
}

// WithClock overrides the clock used for the timestamp skew check.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) { cfg.now = now }
}

// Connector implements ports.Connector for Slack.
type Connector struct {
	client        *Client
	signingSecret string
	now           func() time.Time
}

var _ ports.Connector = (*Connector)(nil)

// New creates a Connector.
func New(opts ...Option) (*Connector, error) {
	cfg := config{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	client := cfg.client
	if client == nil {
		if cfg.token == "" {
			return nil, fmt.Errorf("slack: either WithClient or WithToken is required")
		}
		client = NewClient(cfg.token, WithBaseURL(cfg.apiBaseURL))
	}
	return &Connector{client: client, signingSecret: cfg.signingSecret, now: cfg.now}, nil
}

func (c *Connector) Platform() domain.Platform { return domain.PlatformSlack }

// Client returns the *Client.
func (c *Connector) Client() any { return c.client }

// Preprocess verifies the request signature and answers url_verification challenges.
func (c *Connector) Preprocess(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	if req.Method != http.MethodPost {
		return nil, domain.NewValidationError(http.StatusMethodNotAllowed, "Method Not Allowed", "slack events are POST only")
	}
	if c.signingSecret != "" {
		if err := c.verifySignature(req); err != nil {
			return nil, err
		}
	}

	var env Envelope
	if err := json.Unmarshal(req.Body, &env); err != nil {
		return nil, domain.NewValidationError(http.StatusBadRequest, "invalid JSON", err.Error())
	}
	if env.Type == TypeURLVerification {
		return domain.NewResponse(http.StatusOK, map[string]string{"challenge": env.Challenge}), nil
	}
	return nil, nil
}

func (c *Connector) verifySignature(req *domain.Request) error {
	reject := func(reason string) error {
		return domain.NewValidationError(http.StatusUnauthorized, "invalid signature", reason)
	}

	timestamp := req.Header.Get(TimestampHeader)
	signature := req.Header.Get(SignatureHeader)
	if timestamp == "" || signature == "" {
		return reject("missing signature headers")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return reject("malformed timestamp")
	}
	skew := c.now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxClockSkew {
		return reject("stale timestamp")
	}

	if !hmac.Equal([]byte(Sign(c.signingSecret, timestamp, req.Body)), []byte(signature)) {
		return reject("signature mismatch")
	}
	return nil
}

// Sign computes the v0 signature Slack sends for body at timestamp.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

// MapRequestToEvents maps an event_callback into one event. Bot messages and other
// envelope types yield no events.
func (c *Connector) MapRequestToEvents(body []byte) ([]domain.Event, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &domain.MappingError{Platform: domain.PlatformSlack, Err: err}
	}
	if env.Type != TypeEventCallback || len(env.Event) == 0 {
		return []domain.Event{}, nil
	}

	var inner InnerEvent
	if err := json.Unmarshal(env.Event, &inner); err != nil {
		return nil, &domain.MappingError{Platform: domain.PlatformSlack, Err: err}
	}
	// Skip bot messages, including our own replies, to avoid loops.
	if inner.BotID != "" || inner.Subtype == "bot_message" {
		return []domain.Event{}, nil
	}
	return []domain.Event{newEvent(&env, &inner)}, nil
}

// SessionKey is slack:<team>:<channel>.
func (c *Connector) SessionKey(ev domain.Event) (string, bool) {
	e, ok := ev.(*Event)
	if !ok || e.inner.Channel == "" {
		return "", false
	}
	return fmt.Sprintf("%s:%s:%s", domain.PlatformSlack, e.TeamID(), e.inner.Channel), true
}

// UpdateSession records the author of the latest message in the channel.
func (c *Connector) UpdateSession(s *domain.Session, ev domain.Event) error {
	e, ok := ev.(*Event)
	if !ok {
		return fmt.Errorf("slack: unexpected event type %T", ev)
	}
	if e.inner.User == "" {
		return nil
	}
	at := e.Timestamp()
	if prev := s.User(); prev != nil && at.Before(prev.UpdatedAt()) {
		return nil
	}
	s.SetUser(domain.NewUser(e.inner.User, "", at, map[string]string{"team_id": e.TeamID()}))
	return nil
}

// CreateContext binds the Web API client.
func (c *Connector) CreateContext(p handler.ContextParams) (*handler.Context, error) {
	if _, ok := p.Event.(*Event); !ok {
		return nil, fmt.Errorf("slack: unexpected event type %T", p.Event)
	}
	return handler.NewContext(p, c.client, sender{}), nil
}
