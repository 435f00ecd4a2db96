package cli

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelOnSignal(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	ctx, cancel := cancelOnSignal(context.Background(), sigCh)
	defer cancel()

	assert.Nil(t, ShutdownSignal(ctx))
	sigCh <- syscall.SIGTERM

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled by the signal")
	}
	assert.Equal(t, syscall.SIGTERM, ShutdownSignal(ctx))
	assert.EqualError(t, context.Cause(ctx), "received terminated")
}

func TestCancelOnSignal_StopWithoutSignal(t *testing.T) {
	ctx, cancel := cancelOnSignal(context.Background(), make(chan os.Signal))
	cancel()

	require.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Nil(t, ShutdownSignal(ctx))
}

func TestShutdownContext_ParentCancel(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, stop := ShutdownContext(parent)
	defer stop()

	cancelParent()
	<-ctx.Done()
	assert.Nil(t, ShutdownSignal(ctx))
}
