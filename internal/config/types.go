package config

import (
	"time"

	"github.com/aretw0/courier/pkg/registry"
)

// Driver selects the session store backend.
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverFile   Driver = "file"
	DriverRedis  Driver = "redis"
	DriverSQLite Driver = "sqlite"
)

// Config is the top-level courier configuration, corresponding to courier.yaml.
type Config struct {
	Server       ServerConfig                      `yaml:"server" koanf:"server"`
	Log          LogConfig                         `yaml:"log" koanf:"log"`
	Session      SessionConfig                     `yaml:"session" koanf:"session"`
	Dispatch     DispatchConfig                    `yaml:"dispatch" koanf:"dispatch"`
	Metrics      MetricsConfig                     `yaml:"metrics" koanf:"metrics"`
	InitialState map[string]any                    `yaml:"initial_state,omitempty" koanf:"initial_state"`
	Channels     map[string]registry.ChannelConfig `yaml:"channels" koanf:"channels"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr" koanf:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" koanf:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" koanf:"max_body_bytes"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}

// SessionConfig selects and configures the session store.
type SessionConfig struct {
	Driver        Driver        `yaml:"driver" koanf:"driver"`
	LockTimeout   time.Duration `yaml:"lock_timeout" koanf:"lock_timeout"`
	OnLockTimeout string        `yaml:"on_lock_timeout" koanf:"on_lock_timeout"`
	File          FileConfig    `yaml:"file" koanf:"file"`
	Redis         RedisConfig   `yaml:"redis" koanf:"redis"`
	SQLite        SQLiteConfig  `yaml:"sqlite" koanf:"sqlite"`

	// Encryption seals persisted sessions when Key is set.
	Encryption EncryptionConfig `yaml:"encryption,omitempty" koanf:"encryption"`

	// MaskKeys are regular expressions; matching state keys are masked before persisting.
	MaskKeys []string `yaml:"mask_keys,omitempty" koanf:"mask_keys"`
}

// EncryptionConfig holds base64 AES-256 keys.
type EncryptionConfig struct {
	Key          string   `yaml:"key,omitempty" koanf:"key"`
	FallbackKeys []string `yaml:"fallback_keys,omitempty" koanf:"fallback_keys"`
}

// FileConfig configures the file store.
type FileConfig struct {
	Dir string `yaml:"dir" koanf:"dir"`
}

// RedisConfig configures the redis store and the distributed lock.
type RedisConfig struct {
	Addr            string        `yaml:"addr" koanf:"addr"`
	Password        string        `yaml:"password,omitempty" koanf:"password"`
	DB              int           `yaml:"db" koanf:"db"`
	Prefix          string        `yaml:"prefix" koanf:"prefix"`
	TTL             time.Duration `yaml:"ttl" koanf:"ttl"`
	DistributedLock bool          `yaml:"distributed_lock" koanf:"distributed_lock"`
	LockTTL         time.Duration `yaml:"lock_ttl" koanf:"lock_ttl"`
}

// SQLiteConfig configures the sqlite store.
type SQLiteConfig struct {
	Path string `yaml:"path" koanf:"path"`
}

// DispatchConfig bounds dispatch work.
type DispatchConfig struct {
	MaxConcurrency int64 `yaml:"max_concurrency" koanf:"max_concurrency"`
	MaxHandoffs    int   `yaml:"max_handoffs" koanf:"max_handoffs"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" koanf:"enabled"`
	Namespace string `yaml:"namespace" koanf:"namespace"`
}
