package router

import (
	"regexp"
	"strings"

	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/handler"
)

// Predicate is a pure, side-effect-free test over a Context's static facets.
type Predicate func(c *handler.Context) bool

// Any matches every context.
func Any(*handler.Context) bool { return true }

// Platform matches events from platform p.
func Platform(p domain.Platform) Predicate {
	return func(c *handler.Context) bool {
		return c.Platform() == p
	}
}

// Kind matches events of kind k.
func Kind(k domain.EventKind) Predicate {
	return func(c *handler.Context) bool {
		return c.Event() != nil && c.Event().Kind() == k
	}
}

// Facet matches events whose facets satisfy fn.
func Facet(fn func(domain.Facets) bool) Predicate {
	return func(c *handler.Context) bool {
		return fn(c.Facets())
	}
}

var (
	// Message matches message events.
	Message = Facet(func(f domain.Facets) bool { return f.IsMessage })
	// Text matches text messages.
	Text = Facet(func(f domain.Facets) bool { return f.IsText })
	// Media matches media messages.
	Media = Facet(func(f domain.Facets) bool { return f.IsMedia })
	// Received matches events received from the user.
	Received = Facet(func(f domain.Facets) bool { return f.IsReceived })
)

// TextEquals matches text messages equal to s, ignoring case and surrounding space.
func TextEquals(s string) Predicate {
	want := strings.TrimSpace(s)
	return func(c *handler.Context) bool {
		return c.Facets().IsText && strings.EqualFold(strings.TrimSpace(c.Event().Text()), want)
	}
}

// TextMatches matches text messages matching re.
func TextMatches(re *regexp.Regexp) Predicate {
	return func(c *handler.Context) bool {
		return c.Facets().IsText && re.MatchString(c.Event().Text())
	}
}

// And matches when every predicate matches, evaluated left to right with short-circuit.
func And(preds ...Predicate) Predicate {
	return func(c *handler.Context) bool {
		for _, p := range preds {
			if !p(c) {
				return false
			}
		}
		return true
	}
}

// Or matches when any predicate matches, evaluated left to right with short-circuit.
func Or(preds ...Predicate) Predicate {
	return func(c *handler.Context) bool {
		for _, p := range preds {
			if p(c) {
				return true
			}
		}
		return false
	}
}

// Not negates p.
func Not(p Predicate) Predicate {
	return func(c *handler.Context) bool {
		return !p(c)
	}
}

// PlatformFacet builds the platform-scoped predicate used by the platform route helpers.
func PlatformFacet(p domain.Platform, fn func(domain.Facets) bool) Predicate {
	return And(Platform(p), Facet(fn))
}
