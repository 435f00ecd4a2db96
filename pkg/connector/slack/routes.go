package slack

import (
	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/handler"
	"github.com/aretw0/courier/pkg/router"
)

// Any routes every Slack event to a.
func Any(a handler.Action) router.Route {
	return router.New(router.Platform(domain.PlatformSlack), a)
}

// Message routes message and app_mention events.
func Message(a handler.Action) router.Route {
	return router.New(router.PlatformFacet(domain.PlatformSlack, func(f domain.Facets) bool { return f.IsMessage }), a)
}

// Mention routes app_mention events.
func Mention(a handler.Action) router.Route {
	return router.New(router.And(router.Platform(domain.PlatformSlack), router.Kind(KindAppMention)), a)
}

// KindAppMention is the kind of events mentioning the app.
const KindAppMention domain.EventKind = "app_mention"
