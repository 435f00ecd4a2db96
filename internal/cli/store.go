package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/courier/internal/config"
	"github.com/aretw0/courier/pkg/adapters/file"
	"github.com/aretw0/courier/pkg/adapters/memory"
	"github.com/aretw0/courier/pkg/adapters/redis"
	"github.com/aretw0/courier/pkg/adapters/sqlite"
	"github.com/aretw0/courier/pkg/persistence/middleware"
	"github.com/aretw0/courier/pkg/ports"
	"github.com/aretw0/courier/pkg/session"
)

// Persistence is the opened session backend.
type Persistence struct {
	Store  ports.SessionStore
	Locker ports.DistributedLocker
	closer func() error
}

// Close releases the backend connection, if any.
func (p *Persistence) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

// OpenPersistence opens the store selected by cfg.Driver and applies the
// configured store middlewares.
func OpenPersistence(cfg config.SessionConfig) (*Persistence, error) {
	p := &Persistence{}

	switch cfg.Driver {
	case config.DriverMemory, "":
		p.Store = memory.NewStore()
	case config.DriverFile:
		p.Store = file.New(cfg.File.Dir)
	case config.DriverSQLite:
		st, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		p.Store, p.closer = st, st.Close
	case config.DriverRedis:
		st := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		)
		p.Store, p.closer = st, st.Close
		if cfg.Redis.DistributedLock {
			p.Locker = redis.NewLocker(st.Client(), st.Prefix())
		}
	default:
		return nil, fmt.Errorf("unknown session driver %q", cfg.Driver)
	}

	var mws []middleware.Middleware
	if len(cfg.MaskKeys) > 0 {
		mw, err := middleware.NewPIIMiddleware(cfg.MaskKeys)
		if err != nil {
			return nil, errors.Join(err, p.Close())
		}
		mws = append(mws, mw)
	}
	if cfg.Encryption.Key != "" {
		keys, err := middleware.ParseKeys(cfg.Encryption.Key, cfg.Encryption.FallbackKeys...)
		if err != nil {
			return nil, errors.Join(err, p.Close())
		}
		mw, err := middleware.NewEncryptionMiddleware(keys)
		if err != nil {
			return nil, errors.Join(err, p.Close())
		}
		mws = append(mws, mw)
	}
	p.Store = middleware.Chain(p.Store, mws...)
	return p, nil
}

// NewSessionManager builds the manager shared by every channel.
func NewSessionManager(cfg config.SessionConfig, p *Persistence, logger *slog.Logger) *session.Manager {
	opts := []session.Option{
		session.WithLockTimeout(cfg.LockTimeout),
		session.WithLogger(logger),
	}
	if p.Locker != nil {
		opts = append(opts, session.WithLocker(p.Locker), session.WithLockTTL(cfg.Redis.LockTTL))
	}
	return session.NewManager(p.Store, opts...)
}
