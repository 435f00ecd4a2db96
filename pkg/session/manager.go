package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/courier/internal/logging"
	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/ports"
)

const (
	// DefaultLockTimeout bounds how long Acquire waits for a busy session.
	DefaultLockTimeout = 10 * time.Second

	// DefaultLockTTL bounds how long a crashed replica can hold a distributed lock.
	DefaultLockTTL = 30 * time.Second

	unlockTimeout = 5 * time.Second
)

// lockEntry holds the per-key semaphore and the reference count.
type lockEntry struct {
	sem  chan struct{}
	refs int
}

// Manager orchestrates session access, ensuring at most one dispatch holds a key.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker      ports.DistributedLocker // Optional distributed locker
	lockTTL     time.Duration
	lockTimeout time.Duration
	logger      *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the TTL passed to the distributed locker.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLockTimeout bounds lock acquisition. Acquire fails with domain.ErrLockTimeout past it.
func WithLockTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.lockTimeout = timeout
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a new session Manager with the given persistence store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		locks:       make(map[string]*lockEntry),
		lockTTL:     DefaultLockTTL,
		lockTimeout: DefaultLockTimeout,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ref gets or creates a lock entry and increments its reference count.
func (m *Manager) ref(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// unref decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// Acquire checks out key exclusively. A second Acquire for the same key blocks until
// the first Lease is released, the lock timeout elapses (domain.ErrLockTimeout) or ctx is done.
func (m *Manager) Acquire(ctx context.Context, key string) (*Lease, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, m.lockTimeout)
	defer cancel()

	entry := m.ref(key)
	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		m.unref(key)
		return nil, m.acquireErr(ctx, key, "local")
	}

	lease := &Lease{manager: m, key: key, entry: entry}

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, m.lockTTL)
		if err != nil {
			lease.releaseLocal()
			if ctx.Err() != nil {
				return nil, m.acquireErr(ctx, key, "distributed")
			}
			return nil, fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		lease.unlock = unlock
	}

	lease.waited = time.Since(start)
	return lease, nil
}

func (m *Manager) acquireErr(ctx context.Context, key, scope string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		m.logger.Warn("Session lock timeout", "session_key", key, "scope", scope, "timeout", m.lockTimeout)
		return fmt.Errorf("%w: %q after %s", domain.ErrLockTimeout, key, m.lockTimeout)
	}
	return fmt.Errorf("acquire session lock %q: %w", key, ctx.Err())
}

// Load retrieves a session. The caller must hold the Lease for key.
func (m *Manager) Load(ctx context.Context, key string) (*domain.Session, error) {
	return m.store.Load(ctx, key)
}

// LoadOrCreate loads the session for key or creates an empty one seeded with initial.
// The caller must hold the Lease for key. created reports whether the session is new.
func (m *Manager) LoadOrCreate(ctx context.Context, key string, platform domain.Platform, initial map[string]any) (s *domain.Session, created bool, err error) {
	s, err = m.store.Load(ctx, key)
	if err == nil {
		return s, false, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, false, fmt.Errorf("failed to load session %s: %w", key, err)
	}
	return domain.NewSession(key, platform, initial), true, nil
}

// Save persists the session. The caller must hold the Lease for key.
func (m *Manager) Save(ctx context.Context, key string, s *domain.Session) error {
	if err := m.store.Save(ctx, key, s); err != nil {
		return fmt.Errorf("failed to save session %s: %w", key, err)
	}
	return nil
}

// Delete removes the session from the store, waiting for any in-flight dispatch.
func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		return m.store.Delete(ctx, key)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	lease, err := m.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer lease.Release()
	return fn(ctx)
}

// Lease is an exclusive checkout of one session key.
type Lease struct {
	manager *Manager
	key     string
	entry   *lockEntry
	unlock  ports.UnlockFunc
	waited  time.Duration
	once    sync.Once
}

// Key returns the checked-out session key.
func (l *Lease) Key() string { return l.key }

// Waited returns how long Acquire waited for the lock.
func (l *Lease) Waited() time.Duration { return l.waited }

// Release gives the key back. It is safe to call more than once.
// The distributed lock is released on a fresh context so cancelled dispatches never leak it.
func (l *Lease) Release() {
	l.once.Do(func() {
		if l.unlock != nil {
			ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
			if err := l.unlock(ctx); err != nil {
				l.manager.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_key", l.key,
					"err", err,
				)
			}
			cancel()
		}
		l.releaseLocal()
	})
}

func (l *Lease) releaseLocal() {
	<-l.entry.sem
	l.manager.unref(l.key)
}
