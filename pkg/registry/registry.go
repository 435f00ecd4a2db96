// Package registry builds the configured channels from the static connector table.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/courier/pkg/connector/slack"
	"github.com/aretw0/courier/pkg/connector/telegram"
	"github.com/aretw0/courier/pkg/connector/whatsapp"
	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/ports"
)

// ChannelConfig describes one configured webhook channel.
type ChannelConfig struct {
	Enabled       bool            `koanf:"enabled" yaml:"enabled"`
	Platform      domain.Platform `koanf:"platform" yaml:"platform"`
	Path          string          `koanf:"path" yaml:"path,omitempty"`
	Sync          bool            `koanf:"sync" yaml:"sync,omitempty"`
	AccessToken   string          `koanf:"access_token" yaml:"access_token,omitempty"`
	VerifyToken   string          `koanf:"verify_token" yaml:"verify_token,omitempty"`
	AppSecret     string          `koanf:"app_secret" yaml:"app_secret,omitempty"`
	PhoneNumberID string          `koanf:"phone_number_id" yaml:"phone_number_id,omitempty"`
	SecretToken   string          `koanf:"secret_token" yaml:"secret_token,omitempty"`
	SigningSecret string          `koanf:"signing_secret" yaml:"signing_secret,omitempty"`
	APIBaseURL    string          `koanf:"api_base_url" yaml:"api_base_url,omitempty"`
}

// Validate checks the fields the channel's platform requires.
func (c ChannelConfig) Validate() error {
	var missing []string
	require := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}

	switch c.Platform {
	case domain.PlatformWhatsappBusiness:
		require("access_token", c.AccessToken)
		require("phone_number_id", c.PhoneNumberID)
		require("verify_token", c.VerifyToken)
	case domain.PlatformTelegram, domain.PlatformSlack:
		require("access_token", c.AccessToken)
	default:
		return fmt.Errorf("unknown platform %q", c.Platform)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%s channel requires %s", c.Platform, strings.Join(missing, ", "))
	}
	return nil
}

// Factory builds a Connector from its channel configuration.
type Factory func(cfg ChannelConfig) (ports.Connector, error)

// Factories is the static connector table keyed by platform.
var Factories = map[domain.Platform]Factory{
	domain.PlatformWhatsappBusiness: func(cfg ChannelConfig) (ports.Connector, error) {
		var clientOpts []whatsapp.ClientOption
		if cfg.APIBaseURL != "" {
			clientOpts = append(clientOpts, whatsapp.WithBaseURL(cfg.APIBaseURL))
		}
		return whatsapp.New(
			whatsapp.WithCredentials(cfg.PhoneNumberID, cfg.AccessToken, clientOpts...),
			whatsapp.WithVerifyToken(cfg.VerifyToken),
			whatsapp.WithAppSecret(cfg.AppSecret),
		)
	},
	domain.PlatformTelegram: func(cfg ChannelConfig) (ports.Connector, error) {
		return telegram.New(cfg.AccessToken,
			telegram.WithSecretToken(cfg.SecretToken),
			telegram.WithAPIServer(cfg.APIBaseURL),
		)
	},
	domain.PlatformSlack: func(cfg ChannelConfig) (ports.Connector, error) {
		return slack.New(
			slack.WithToken(cfg.AccessToken),
			slack.WithSigningSecret(cfg.SigningSecret),
			slack.WithAPIBaseURL(cfg.APIBaseURL),
		)
	},
}

// Channel is a built, mountable channel.
type Channel struct {
	Name      string
	Path      string
	Sync      bool
	Connector ports.Connector
}

// DefaultPath returns the mount path used when a channel sets none.
func DefaultPath(name string) string {
	return "/webhooks/" + name
}

// Registry holds the channels built at startup. It is read-only once serving starts.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{channels: make(map[string]*Channel)}
}

// Register adds a channel. Names and paths must be unique.
func (r *Registry) Register(ch *Channel) error {
	if ch.Name == "" {
		return errors.New("channel name cannot be empty")
	}
	if ch.Connector == nil {
		return fmt.Errorf("channel %q has no connector", ch.Name)
	}
	if ch.Path == "" {
		ch.Path = DefaultPath(ch.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.channels[ch.Name]; exists {
		return fmt.Errorf("channel %q already registered", ch.Name)
	}
	for _, other := range r.channels {
		if other.Path == ch.Path {
			return fmt.Errorf("channel %q: path %s already used by %q", ch.Name, ch.Path, other.Name)
		}
	}
	r.channels[ch.Name] = ch
	return nil
}

// Get returns the channel registered under name.
func (r *Registry) Get(name string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[name]
	return ch, ok
}

// Channels returns every channel ordered by name.
func (r *Registry) Channels() []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// Build creates a registry holding every enabled channel in cfgs.
func Build(cfgs map[string]ChannelConfig) (*Registry, error) {
	r := New()
	names := make([]string, 0, len(cfgs))
	for name := range cfgs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cfg := cfgs[name]
		if !cfg.Enabled {
			continue
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("channel %q: %w", name, err)
		}
		factory, ok := Factories[cfg.Platform]
		if !ok {
			return nil, fmt.Errorf("channel %q: no connector for platform %q", name, cfg.Platform)
		}
		conn, err := factory(cfg)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", name, err)
		}
		if err := r.Register(&Channel{Name: name, Path: cfg.Path, Sync: cfg.Sync, Connector: conn}); err != nil {
			return nil, err
		}
	}
	return r, nil
}
