package domain

import (
	"context"
	"time"
)

// DeliveryEvent describes one inbound delivery.
type DeliveryEvent struct {
	Channel  string
	Platform Platform
	Events   int
	Status   int
	Duration time.Duration
	Err      error
}

// DispatchEvent describes the handling of a single Event.
type DispatchEvent struct {
	Channel    string
	Platform   Platform
	Kind       EventKind
	SessionKey string
	Ephemeral  bool
	LockWait   time.Duration
	Duration   time.Duration
	Err        error
}

// LifecycleHooks defines callbacks for dispatcher observability.
// Every field is optional.
type LifecycleHooks struct {
	OnDelivery       func(context.Context, *DeliveryEvent)
	OnDispatchStart  func(context.Context, *DispatchEvent)
	OnDispatchFinish func(context.Context, *DispatchEvent)
	OnLockTimeout    func(context.Context, *DispatchEvent)
}
