package whatsapp

import (
	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/handler"
	"github.com/aretw0/courier/pkg/router"
)

func facetRoute(fn func(domain.Facets) bool, a handler.Action) router.Route {
	return router.New(router.PlatformFacet(domain.PlatformWhatsappBusiness, fn), a)
}

// Any routes every WhatsApp Business event to a.
func Any(a handler.Action) router.Route {
	return router.New(router.Platform(domain.PlatformWhatsappBusiness), a)
}

// Message routes inbound messages.
func Message(a handler.Action) router.Route {
	return facetRoute(func(f domain.Facets) bool { return f.IsMessage }, a)
}

// Text routes inbound text messages.
func Text(a handler.Action) router.Route {
	return facetRoute(func(f domain.Facets) bool { return f.IsText }, a)
}

// Media routes inbound media messages.
func Media(a handler.Action) router.Route {
	return facetRoute(func(f domain.Facets) bool { return f.IsMedia }, a)
}

// Received routes events received from users.
func Received(a handler.Action) router.Route {
	return facetRoute(func(f domain.Facets) bool { return f.IsReceived }, a)
}

// Sent routes "sent" status updates.
func Sent(a handler.Action) router.Route {
	return facetRoute(func(f domain.Facets) bool { return f.IsSent }, a)
}

// Delivered routes "delivered" status updates.
func Delivered(a handler.Action) router.Route {
	return facetRoute(func(f domain.Facets) bool { return f.IsDelivered }, a)
}

// Read routes "read" status updates.
func Read(a handler.Action) router.Route {
	return facetRoute(func(f domain.Facets) bool { return f.IsRead }, a)
}
