package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/courier/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	key := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		session := domain.NewSession(key, domain.PlatformTelegram, nil)
		session.Set("foo", "bar")
		session.Set("count", 42)
		session.SetUser(domain.NewUser("u-1", "Ada", time.Unix(1700000000, 0), map[string]string{"lang": "en"}))
		session.Touch(time.Unix(1700000100, 0))

		err := store.Save(ctx, key, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, key, loaded.ID)
		assert.Equal(t, domain.PlatformTelegram, loaded.Platform)
		assert.Equal(t, "bar", loaded.State["foo"])
		// JSON-backed stores return numbers as float64; only existence is part of the contract.
		assert.NotNil(t, loaded.State["count"])
		require.NotNil(t, loaded.User())
		assert.True(t, session.User().Equal(*loaded.User()), "user snapshot should round-trip")
		assert.True(t, session.LastActivity.Equal(loaded.LastActivity))
	})

	t.Run("Load Isolation", func(t *testing.T) {
		session := domain.NewSession(key+"-iso", domain.PlatformSlack, nil)
		session.Set("v", "original")
		require.NoError(t, store.Save(ctx, key+"-iso", session))
		defer func() { _ = store.Delete(ctx, key+"-iso") }()

		// Mutating after Save must not leak into the store.
		session.Set("v", "mutated")

		loaded, err := store.Load(ctx, key+"-iso")
		require.NoError(t, err)
		assert.Equal(t, "original", loaded.State["v"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+key)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, key, domain.NewSession(key, domain.PlatformTelegram, nil))
		require.NoError(t, err)

		err = store.Delete(ctx, key)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := key + "-1"
		id2 := key + "-2"
		_ = store.Save(ctx, id1, domain.NewSession(id1, domain.PlatformTelegram, nil))
		_ = store.Save(ctx, id2, domain.NewSession(id2, domain.PlatformTelegram, nil))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
