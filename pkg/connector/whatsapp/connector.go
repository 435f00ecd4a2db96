package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/handler"
	"github.com/aretw0/courier/pkg/ports"
)

// SignatureHeader carries the HMAC-SHA256 of the body keyed with the app secret.
const SignatureHeader = "X-Hub-Signature-256"

const (
	msgWrongToken = "Error, wrong validation token"
	msgWrongMode  = "Error, wrong mode"
)

var errNoClient = errors.New("whatsapp: either WithClient or WithCredentials is required")

// clientSource is the tagged variant of the two ways to obtain a Client.
type clientSource struct {
	client        *Client
	phoneNumberID string
	accessToken   string
	clientOpts    []ClientOption
}

func (s clientSource) resolve() (*Client, error) {
	switch {
	case s.client != nil:
		return s.client, nil
	case s.phoneNumberID != "" && s.accessToken != "":
		return NewClient(s.phoneNumberID, s.accessToken, s.clientOpts...), nil
	default:
		return nil, errNoClient
	}
}

type config struct {
	source      clientSource
	verifyToken string
	appSecret   string
}

// Option configures a Connector.
type Option func(*config)

// WithClient uses an existing Graph API client.
func WithClient(c *Client) Option {
	return func(cfg *config) {
		cfg.source = clientSource{client: c}
	}
}

// WithCredentials builds a Graph API client from a phone number id and access token.
func WithCredentials(phoneNumberID, accessToken string, opts ...ClientOption) Option {
	return func(cfg *config) {
		cfg.source = clientSource{phoneNumberID: phoneNumberID, accessToken: accessToken, clientOpts: opts}
	}
}

// WithVerifyToken sets the token expected in the hub.verify_token handshake.
func WithVerifyToken(token string) Option {
	return func(cfg *config) {
		cfg.verifyToken = token
	}
}

// WithAppSecret enables X-Hub-Signature-256 verification of POST deliveries.
func WithAppSecret(secret string) Option {
	return func(cfg *config) {
		cfg.appSecret = secret
	}
}

// Connector implements ports.Connector for WhatsApp Business.
type Connector struct {
	client      *Client
	verifyToken string
	appSecret   string
}

var _ ports.Connector = (*Connector)(nil)

// New creates a Connector. Exactly one client source must be given.
func New(opts ...Option) (*Connector, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	client, err := cfg.source.resolve()
	if err != nil {
		return nil, err
	}
	return &Connector{
		client:      client,
		verifyToken: cfg.verifyToken,
		appSecret:   cfg.appSecret,
	}, nil
}

func (c *Connector) Platform() domain.Platform { return domain.PlatformWhatsappBusiness }

// Client returns the *Client.
func (c *Connector) Client() any { return c.client }

// Preprocess answers the verification handshake and rejects unsigned or unsupported deliveries.
func (c *Connector) Preprocess(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	switch req.Method {
	case http.MethodGet:
		return c.verify(req)
	case http.MethodPost:
		if c.appSecret != "" && !validSignature(c.appSecret, req.Header.Get(SignatureHeader), req.Body) {
			return nil, domain.NewValidationError(http.StatusUnauthorized, "invalid signature", "x-hub-signature-256 mismatch")
		}
		var probe struct {
			Entry []json.RawMessage `json:"entry"`
		}
		if err := json.Unmarshal(req.Body, &probe); err == nil && len(probe.Entry) > 0 {
			return nil, nil
		}
	}
	return nil, domain.NewValidationError(http.StatusForbidden, "Unsupported method", "unsupported method or empty entry")
}

func (c *Connector) verify(req *domain.Request) (*domain.Response, error) {
	if req.Query.Get("hub.mode") != "subscribe" {
		return nil, domain.NewValidationError(http.StatusForbidden, jsonString(msgWrongMode), "wrong hub.mode")
	}
	if req.Query.Get("hub.verify_token") != c.verifyToken {
		return nil, domain.NewValidationError(http.StatusForbidden, jsonString(msgWrongToken), "wrong hub.verify_token")
	}
	return domain.NewResponse(http.StatusOK, req.Query.Get("hub.challenge")), nil
}

// jsonString encodes s as a JSON string literal, as the platform expects for error bodies.
func jsonString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func validSignature(secret, header string, body []byte) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}

// MapRequestToEvents yields, per entry and change, all messages and then all statuses.
func (c *Connector) MapRequestToEvents(body []byte) ([]domain.Event, error) {
	var wh Webhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, &domain.MappingError{Platform: domain.PlatformWhatsappBusiness, Err: err}
	}

	events := []domain.Event{}
	for _, entry := range wh.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				events = append(events, newMessageEvent(entry, change.Value, m))
			}
			for _, s := range change.Value.Statuses {
				events = append(events, newStatusEvent(entry, change.Value, s))
			}
		}
	}
	return events, nil
}

// SessionKey is whatsapp-business:<phone number id>:<wa id>.
func (c *Connector) SessionKey(ev domain.Event) (string, bool) {
	e, ok := ev.(*Event)
	if !ok {
		return "", false
	}
	waID := e.WaID()
	if waID == "" {
		return "", false
	}
	return fmt.Sprintf("%s:%s:%s", domain.PlatformWhatsappBusiness, e.metadata.PhoneNumberID, waID), true
}

// UpdateSession records the user's WhatsApp id and profile name.
// Older events never overwrite a newer snapshot.
func (c *Connector) UpdateSession(s *domain.Session, ev domain.Event) error {
	e, ok := ev.(*Event)
	if !ok {
		return fmt.Errorf("whatsapp: unexpected event type %T", ev)
	}
	waID := e.WaID()
	if waID == "" {
		return nil
	}

	at := e.Timestamp()
	name := ""
	if e.contact != nil {
		name = e.contact.Profile.Name
	}

	if prev := s.User(); prev != nil && prev.ID() == waID {
		if at.Before(prev.UpdatedAt()) {
			return nil
		}
		if name == "" {
			name = prev.Name()
		}
	}

	attrs := map[string]string{"phone_number_id": e.metadata.PhoneNumberID}
	s.SetUser(domain.NewUser(waID, name, at, attrs))
	return nil
}

// CreateContext binds the Graph API client.
func (c *Connector) CreateContext(p handler.ContextParams) (*handler.Context, error) {
	if _, ok := p.Event.(*Event); !ok {
		return nil, fmt.Errorf("whatsapp: unexpected event type %T", p.Event)
	}
	return handler.NewContext(p, c.client, sender{}), nil
}
