// Package config loads courier configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/courier"
	"github.com/aretw0/courier/internal/logging"
	"github.com/aretw0/courier/pkg/adapters/redis"
	"github.com/aretw0/courier/pkg/persistence/middleware"
	"github.com/aretw0/courier/pkg/registry"
	"github.com/aretw0/courier/pkg/session"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "courier.yaml"

// EnvPrefix marks environment overrides. A double underscore separates nesting
// levels: COURIER_SESSION__DRIVER sets session.driver.
const EnvPrefix = "COURIER_"

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: string(logging.FormatText),
		},
		Session: SessionConfig{
			Driver:        DriverMemory,
			LockTimeout:   session.DefaultLockTimeout,
			OnLockTimeout: string(courier.LockTimeoutFail),
			File:          FileConfig{Dir: filepath.Join(".courier", "sessions")},
			Redis: RedisConfig{
				Addr:    "localhost:6379",
				Prefix:  redis.DefaultPrefix,
				LockTTL: session.DefaultLockTTL,
			},
			SQLite: SQLiteConfig{Path: filepath.Join(".courier", "sessions.db")},
		},
		Dispatch: DispatchConfig{
			MaxConcurrency: courier.DefaultMaxConcurrency,
			MaxHandoffs:    100,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "courier",
		},
		Channels: map[string]registry.ChannelConfig{},
	}
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (COURIER_*). A missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validDrivers = map[Driver]bool{
	DriverMemory: true,
	DriverFile:   true,
	DriverRedis:  true,
	DriverSQLite: true,
}

// Validate checks that the configuration contains valid values.
// Every problem found is reported.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, fmt.Errorf("log.format: %w", err))
	}

	if !validDrivers[c.Session.Driver] {
		errs = append(errs, fmt.Errorf("invalid session.driver %q: must be one of memory, file, redis, sqlite", c.Session.Driver))
	}
	switch courier.LockTimeoutPolicy(c.Session.OnLockTimeout) {
	case courier.LockTimeoutFail, courier.LockTimeoutSkip:
	default:
		errs = append(errs, fmt.Errorf("invalid session.on_lock_timeout %q: must be fail or skip", c.Session.OnLockTimeout))
	}
	if c.Session.LockTimeout <= 0 {
		errs = append(errs, errors.New("session.lock_timeout must be positive"))
	}
	switch c.Session.Driver {
	case DriverFile:
		if c.Session.File.Dir == "" {
			errs = append(errs, errors.New("session.file.dir is required"))
		}
	case DriverRedis:
		if c.Session.Redis.Addr == "" {
			errs = append(errs, errors.New("session.redis.addr is required"))
		}
	case DriverSQLite:
		if c.Session.SQLite.Path == "" {
			errs = append(errs, errors.New("session.sqlite.path is required"))
		}
	}

	if c.Session.Encryption.Key != "" {
		keys, err := middleware.ParseKeys(c.Session.Encryption.Key, c.Session.Encryption.FallbackKeys...)
		if err == nil {
			_, err = middleware.NewEncryptionMiddleware(keys)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("session.encryption: %w", err))
		}
	}
	if _, err := middleware.NewPIIMiddleware(c.Session.MaskKeys); err != nil {
		errs = append(errs, fmt.Errorf("session.mask_keys: %w", err))
	}

	if c.Dispatch.MaxConcurrency < 0 {
		errs = append(errs, errors.New("dispatch.max_concurrency must be non-negative"))
	}
	if c.Dispatch.MaxHandoffs < 0 {
		errs = append(errs, errors.New("dispatch.max_handoffs must be non-negative"))
	}

	paths := make(map[string]string)
	for _, name := range c.ChannelNames() {
		ch := c.Channels[name]
		if !ch.Enabled {
			continue
		}
		if err := ch.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("channels.%s: %w", name, err))
		}
		path := ch.Path
		if path == "" {
			path = registry.DefaultPath(name)
		}
		if other, dup := paths[path]; dup {
			errs = append(errs, fmt.Errorf("channels.%s: path %s already used by %s", name, path, other))
		}
		paths[path] = name
	}

	return errors.Join(errs...)
}

// ChannelNames returns the configured channel names in sorted order.
func (c *Config) ChannelNames() []string {
	names := make([]string, 0, len(c.Channels))
	for name := range c.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewLogger builds the logger described by the log section.
func (c *Config) NewLogger() (*slog.Logger, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Log.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(level, format), nil
}

// EnabledChannels counts the channels that will be mounted.
func (c *Config) EnabledChannels() int {
	n := 0
	for _, ch := range c.Channels {
		if ch.Enabled {
			n++
		}
	}
	return n
}
