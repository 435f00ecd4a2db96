package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/courier/pkg/adapters/memory"
	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{"password", "ssn"})
	require.NoError(t, err)
	secure := middleware.Chain(underlying, mw)

	s := domain.NewSession("pii", domain.PlatformWhatsappBusiness, nil)
	s.Set("username", "jdoe")
	s.Set("user_password", "secret123")
	s.Set("details", map[string]any{
		"address":    "123 St",
		"ssn_number": "999-99-9999",
	})

	require.NoError(t, secure.Save(ctx, "pii", s))
	assert.Equal(t, "secret123", s.State["user_password"], "in-flight session is not modified")

	stored, err := underlying.Load(ctx, "pii")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", stored.State["username"])
	assert.Equal(t, middleware.Mask, stored.State["user_password"])
	details := stored.State["details"].(map[string]any)
	assert.Equal(t, middleware.Mask, details["ssn_number"])
	assert.Equal(t, "123 St", details["address"])
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}
