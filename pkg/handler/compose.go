package handler

import (
	"context"
	"fmt"

	"github.com/aretw0/courier/pkg/domain"
)

// ForPlatform dispatches to the Action registered for the context's platform,
// or to fallback. With neither, the chain fails.
func ForPlatform(actions map[domain.Platform]Action, fallback Action) Action {
	return func(ctx context.Context, c *Context) Result {
		if a, ok := actions[c.Platform()]; ok && a != nil {
			return Next(a)
		}
		if fallback != nil {
			return Next(fallback)
		}
		return Fail(fmt.Errorf("no action found for platform %q", c.Platform()))
	}
}

// WhenPlatform runs a only for events of platform p and terminates otherwise.
func WhenPlatform(p domain.Platform, a Action) Action {
	return func(ctx context.Context, c *Context) Result {
		if c.Platform() != p {
			return Done()
		}
		return Next(a)
	}
}
