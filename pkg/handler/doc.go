/*
Package handler implements the handler execution model.

An Action receives the per-event Context and returns a Result: Done terminates the
chain, Next hands off to another Action, Fail aborts it. A Chain evaluates Results in
an iterative trampoline bounded by a maximum handoff count, and routes failures to an
optional error chain evaluated the same way.
*/
package handler
