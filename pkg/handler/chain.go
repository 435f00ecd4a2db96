package handler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/aretw0/courier/pkg/domain"
)

// DefaultMaxHandoffs bounds the number of Next results a single chain may produce.
const DefaultMaxHandoffs = 100

// Chain is the entry Action plus the optional error chain for one bot.
type Chain struct {
	// Entry is evaluated first for every event.
	Entry Action

	// OnError receives failures of Entry. If nil, failures propagate.
	OnError Action

	// MaxHandoffs bounds handoffs per trampoline run. Zero means DefaultMaxHandoffs.
	MaxHandoffs int
}

// Run evaluates the chain against c.
//
// A failure of the entry chain is handed to HandleError. Handoff-limit violations and
// ErrNoMatch from the entry chain are never routed to OnError.
func (ch Chain) Run(ctx context.Context, c *Context) error {
	if ch.Entry == nil {
		return nil
	}

	err := Trampoline(ctx, c, ch.Entry, ch.MaxHandoffs)
	if err == nil || errors.Is(err, domain.ErrHandoffLimit) || errors.Is(err, ErrNoMatch) {
		return err
	}
	return ch.HandleError(ctx, c, err)
}

// HandleError runs OnError with c.Err() set to err.
// If OnError terminates normally the failure is considered handled. If it fails, or
// reports ErrNoMatch, err propagates (joined with the error chain's own error).
func (ch Chain) HandleError(ctx context.Context, c *Context, err error) error {
	if ch.OnError == nil {
		return err
	}

	c.err = err
	defer func() { c.err = nil }()

	errChainErr := Trampoline(ctx, c, ch.OnError, ch.MaxHandoffs)
	switch {
	case errChainErr == nil:
		c.logger.Debug("error handled by error chain", "err", err)
		return nil
	case errors.Is(errChainErr, ErrNoMatch):
		return err
	default:
		return errors.Join(err, fmt.Errorf("error chain failed: %w", errChainErr))
	}
}

// Trampoline evaluates entry and every Action it hands off to in an iterative loop.
// It returns the first failure, or an error wrapping domain.ErrHandoffLimit once more
// than maxHandoffs handoffs happened.
func Trampoline(ctx context.Context, c *Context, entry Action, maxHandoffs int) error {
	if maxHandoffs <= 0 {
		maxHandoffs = DefaultMaxHandoffs
	}

	handoffs := 0
	for action := entry; action != nil; {
		res := step(ctx, c, action)
		if res.err != nil {
			return res.err
		}
		if res.next == nil {
			return nil
		}
		handoffs++
		if handoffs > maxHandoffs {
			return fmt.Errorf("%w: more than %d handoffs", domain.ErrHandoffLimit, maxHandoffs)
		}
		action = res.next
	}
	return nil
}

// step evaluates a single Action, converting panics into failures.
func step(ctx context.Context, c *Context, action Action) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("action panicked", "panic", r, "stack", string(debug.Stack()))
			res = Fail(fmt.Errorf("action panicked: %v", r))
		}
	}()
	return action(ctx, c)
}
