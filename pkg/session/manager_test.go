package session_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/courier/pkg/adapters/memory"
	redisadapter "github.com/aretw0/courier/pkg/adapters/redis"
	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/session"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.Store
}

func (s *SlowStore) Load(ctx context.Context, key string) (*domain.Session, error) {
	time.Sleep(2 * time.Millisecond) // Simulate IO
	return s.Store.Load(ctx, key)
}

func (s *SlowStore) Save(ctx context.Context, key string, sess *domain.Session) error {
	time.Sleep(2 * time.Millisecond) // Simulate IO
	return s.Store.Save(ctx, key, sess)
}

func TestManager_SerializesReadModifyWrite(t *testing.T) {
	mgr := session.NewManager(&SlowStore{Store: memory.NewStore()})
	ctx := context.Background()
	key := "telegram:42"

	var (
		wg      sync.WaitGroup
		active  atomic.Int32
		overlap atomic.Bool
	)
	const writers = 20

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := mgr.Acquire(ctx, key)
			require.NoError(t, err)
			defer lease.Release()

			if active.Add(1) > 1 {
				overlap.Store(true)
			}
			defer active.Add(-1)

			sess, _, err := mgr.LoadOrCreate(ctx, key, domain.PlatformTelegram, map[string]any{"count": 0})
			require.NoError(t, err)
			var n int
			switch v := sess.State["count"].(type) {
			case int:
				n = v
			case float64:
				n = int(v)
			}
			sess.Set("count", n+1)
			require.NoError(t, mgr.Save(ctx, key, sess))
		}()
	}
	wg.Wait()

	assert.False(t, overlap.Load(), "two leases for the same key were held at once")

	sess, err := mgr.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, writers, sess.State["count"], "no update should be lost")
}

func TestManager_DistinctKeysDoNotBlock(t *testing.T) {
	mgr := session.NewManager(memory.NewStore(), session.WithLockTimeout(50*time.Millisecond))
	ctx := context.Background()

	first, err := mgr.Acquire(ctx, "a")
	require.NoError(t, err)
	defer first.Release()

	second, err := mgr.Acquire(ctx, "b")
	require.NoError(t, err, "an unrelated key must be acquirable while another is held")
	second.Release()
}

func TestManager_LockTimeout(t *testing.T) {
	mgr := session.NewManager(memory.NewStore(), session.WithLockTimeout(30*time.Millisecond))
	ctx := context.Background()

	held, err := mgr.Acquire(ctx, "busy")
	require.NoError(t, err)

	start := time.Now()
	_, err = mgr.Acquire(ctx, "busy")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.True(t, domain.IsRetryable(err))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	held.Release()

	again, err := mgr.Acquire(ctx, "busy")
	require.NoError(t, err, "key must be usable after the holder releases")
	again.Release()
}

func TestManager_AcquireCancelled(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	held, err := mgr.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = mgr.Acquire(ctx, "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrLockTimeout)
}

func TestManager_ReleaseIsIdempotent(t *testing.T) {
	mgr := session.NewManager(memory.NewStore(), session.WithLockTimeout(50*time.Millisecond))
	ctx := context.Background()

	lease, err := mgr.Acquire(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "k", lease.Key())
	lease.Release()
	lease.Release()

	other, err := mgr.Acquire(ctx, "k")
	require.NoError(t, err)
	other.Release()
}

func TestManager_LoadOrCreate(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()
	initial := map[string]any{"step": "start", "nested": map[string]any{"n": 1}}

	sess, created, err := mgr.LoadOrCreate(ctx, "slack:T1:C1", domain.PlatformSlack, initial)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "start", sess.State["step"])

	// The seed must be copied, not aliased.
	sess.State["nested"].(map[string]any)["n"] = 2
	assert.Equal(t, 1, initial["nested"].(map[string]any)["n"])

	require.NoError(t, mgr.Save(ctx, "slack:T1:C1", sess))

	again, created, err := mgr.LoadOrCreate(ctx, "slack:T1:C1", domain.PlatformSlack, initial)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 2, again.State["nested"].(map[string]any)["n"])
}

func TestManager_DeleteWaitsForHolder(t *testing.T) {
	store := memory.NewStore()
	mgr := session.NewManager(store)
	ctx := context.Background()
	key := "whatsapp-business:1:2"
	require.NoError(t, store.Save(ctx, key, domain.NewSession(key, domain.PlatformWhatsappBusiness, nil)))

	lease, err := mgr.Acquire(ctx, key)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- mgr.Delete(ctx, key) }()

	select {
	case <-done:
		t.Fatal("Delete returned while the session was checked out")
	case <-time.After(20 * time.Millisecond):
	}

	lease.Release()
	require.NoError(t, <-done)

	_, err = store.Load(ctx, key)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_NoLockLeak(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("session-%d", i)
		require.NoError(t, mgr.WithLock(ctx, key, func(ctx context.Context) error {
			return mgr.Save(ctx, key, domain.NewSession(key, domain.PlatformTelegram, nil))
		}))
		require.NoError(t, mgr.Delete(ctx, key))
	}

	assert.Equal(t, 0, session.ActiveLocks(mgr), "lock entries must be collected once unreferenced")
}

func TestManager_DistributedLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	locker := redisadapter.NewLocker(client, "courier:test:")
	store := memory.NewStore()

	// Two managers model two replicas sharing one store and one Redis.
	replicaA := session.NewManager(store, session.WithLocker(locker), session.WithLockTimeout(200*time.Millisecond))
	replicaB := session.NewManager(store, session.WithLocker(locker), session.WithLockTimeout(200*time.Millisecond))
	ctx := context.Background()

	lease, err := replicaA.Acquire(ctx, "telegram:7")
	require.NoError(t, err)
	assert.True(t, mr.Exists("courier:test:lock:telegram:7"))

	_, err = replicaB.Acquire(ctx, "telegram:7")
	assert.ErrorIs(t, err, domain.ErrLockTimeout, "a second replica must not check out a held key")

	lease.Release()
	assert.False(t, mr.Exists("courier:test:lock:telegram:7"))

	leaseB, err := replicaB.Acquire(ctx, "telegram:7")
	require.NoError(t, err)
	leaseB.Release()
}
