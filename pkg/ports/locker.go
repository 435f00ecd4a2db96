package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker defines the interface for distributed concurrency control.
// It allows the session manager to coordinate access across multiple instances (replicas).
type DistributedLocker interface {
	// Lock acquires a distributed lock for key (a session key).
	// It blocks until the lock is acquired or ctx is done; ttl bounds how long a crashed
	// holder can keep the lock.
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
