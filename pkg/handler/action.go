package handler

import (
	"context"
	"errors"
)

// ErrNoMatch is returned by routing actions when no route matched and no fallback exists.
var ErrNoMatch = errors.New("no route matched")

// Action is a unit of handler logic.
type Action func(ctx context.Context, c *Context) Result

// Result is the outcome of one Action: terminate, hand off or fail.
type Result struct {
	next Action
	err  error
}

// Done terminates the chain.
func Done() Result { return Result{} }

// Next hands off to another Action evaluated with the same Context.
// A nil action is equivalent to Done.
func Next(a Action) Result { return Result{next: a} }

// Fail aborts the chain with err.
func Fail(err error) Result { return Result{err: err} }

// Err returns the failure, if any.
func (r Result) Err() error { return r.err }

// Continuation returns the Action to hand off to, if any.
func (r Result) Continuation() Action { return r.next }

// IsDone reports whether the result terminates the chain successfully.
func (r Result) IsDone() bool { return r.err == nil && r.next == nil }

// Func adapts a plain function into an Action that terminates on success and fails on error.
func Func(fn func(ctx context.Context, c *Context) error) Action {
	return func(ctx context.Context, c *Context) Result {
		if err := fn(ctx, c); err != nil {
			return Fail(err)
		}
		return Done()
	}
}

// Then returns an Action that runs first and, once first's own chain finishes
// successfully, hands off to second.
func Then(first, second Action) Action {
	return func(ctx context.Context, c *Context) Result {
		r := first(ctx, c)
		switch {
		case r.err != nil:
			return r
		case r.next != nil:
			return Next(Then(r.next, second))
		default:
			return Next(second)
		}
	}
}
