package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownError is the cancel cause of a context stopped by a signal.
type ShutdownError struct {
	Signal os.Signal
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("received %s", e.Signal)
}

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM. stop releases the
// signal registration and cancels the context.
func ShutdownContext(parent context.Context) (ctx context.Context, stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := cancelOnSignal(parent, sigCh)
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

func cancelOnSignal(parent context.Context, sigCh <-chan os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	go func() {
		select {
		case sig := <-sigCh:
			cancel(&ShutdownError{Signal: sig})
		case <-ctx.Done():
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}

// ShutdownSignal returns the signal that stopped ctx, or nil.
func ShutdownSignal(ctx context.Context) os.Signal {
	var se *ShutdownError
	if errors.As(context.Cause(ctx), &se) {
		return se.Signal
	}
	return nil
}
