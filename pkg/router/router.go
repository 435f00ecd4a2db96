// Package router selects which Action handles an event.
package router

import (
	"context"

	"github.com/aretw0/courier/pkg/handler"
)

// ErrNoMatch is returned when no route matched and no fallback is configured.
var ErrNoMatch = handler.ErrNoMatch

// Route pairs a predicate with the Action it selects.
type Route struct {
	Predicate Predicate
	Action    handler.Action
}

// New creates a Route.
func New(pred Predicate, action handler.Action) Route {
	return Route{Predicate: pred, Action: action}
}

// Router is an ordered set of routes plus an optional fallback.
// Register routes during setup; it is read-only (and safe to share) afterwards.
type Router struct {
	routes   []Route
	fallback handler.Action
}

// NewRouter creates a router with the given routes in registration order.
func NewRouter(routes ...Route) *Router {
	r := &Router{}
	for _, rt := range routes {
		r.Add(rt)
	}
	return r
}

// Route registers a predicate/action pair.
func (r *Router) Route(pred Predicate, action handler.Action) *Router {
	return r.Add(New(pred, action))
}

// Add registers a prebuilt Route, such as those offered by the platform packages.
func (r *Router) Add(rt Route) *Router {
	if rt.Predicate == nil {
		rt.Predicate = Any
	}
	r.routes = append(r.routes, rt)
	return r
}

// Fallback sets the Action run when no route matches.
func (r *Router) Fallback(action handler.Action) *Router {
	r.fallback = action
	return r
}

// Match returns the Action of the first route whose predicate holds for c,
// or the fallback. ok is false when neither exists.
func (r *Router) Match(c *handler.Context) (handler.Action, bool) {
	for _, rt := range r.routes {
		if rt.Predicate(c) {
			return rt.Action, true
		}
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}

// Action returns the router as the entry point of a chain.
func (r *Router) Action() handler.Action {
	return func(ctx context.Context, c *handler.Context) handler.Result {
		action, ok := r.Match(c)
		if !ok {
			return handler.Fail(ErrNoMatch)
		}
		return handler.Next(action)
	}
}

// Len returns the number of registered routes.
func (r *Router) Len() int {
	return len(r.routes)
}
