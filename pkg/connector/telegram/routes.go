package telegram

import (
	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/handler"
	"github.com/aretw0/courier/pkg/router"
)

// Any routes every Telegram event to a.
func Any(a handler.Action) router.Route {
	return router.New(router.Platform(domain.PlatformTelegram), a)
}

// Message routes new and edited messages.
func Message(a handler.Action) router.Route {
	return router.New(router.PlatformFacet(domain.PlatformTelegram, func(f domain.Facets) bool { return f.IsMessage }), a)
}

// Text routes text messages.
func Text(a handler.Action) router.Route {
	return router.New(router.PlatformFacet(domain.PlatformTelegram, func(f domain.Facets) bool { return f.IsText }), a)
}

// Media routes photo, video, audio, document, sticker, voice and animation messages.
func Media(a handler.Action) router.Route {
	return router.New(router.PlatformFacet(domain.PlatformTelegram, func(f domain.Facets) bool { return f.IsMedia }), a)
}

// Callback routes inline keyboard callback queries.
func Callback(a handler.Action) router.Route {
	return router.New(router.PlatformFacet(domain.PlatformTelegram, func(f domain.Facets) bool { return f.IsCallback }), a)
}
