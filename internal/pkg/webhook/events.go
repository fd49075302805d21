package webhook

import (
	"context"
	"strings"
)

// EventKind is the closed set of notification types this consumer acts on.
// The provider's event catalog evolves independently, so every unrecognized
// type maps to EventUnknown and is acknowledged without error.
type EventKind string

const (
	EventSubscriptionCreated   EventKind = "subscription.created"
	EventSubscriptionActivated EventKind = "subscription.activated"
	EventSubscriptionUpdated   EventKind = "subscription.updated"
	EventSubscriptionCanceled  EventKind = "subscription.canceled"
	EventSubscriptionPastDue   EventKind = "subscription.past_due"
	EventTransactionCompleted  EventKind = "transaction.completed"
	EventTransactionFailed     EventKind = "transaction.payment_failed"
	EventUnknown               EventKind = ""
)

// ParseEventKind maps a provider event type string to a recognized kind.
func ParseEventKind(eventType string) EventKind {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case string(EventSubscriptionCreated):
		return EventSubscriptionCreated
	case string(EventSubscriptionActivated):
		return EventSubscriptionActivated
	case string(EventSubscriptionUpdated):
		return EventSubscriptionUpdated
	case string(EventSubscriptionCanceled):
		return EventSubscriptionCanceled
	case string(EventSubscriptionPastDue):
		return EventSubscriptionPastDue
	case string(EventTransactionCompleted):
		return EventTransactionCompleted
	case string(EventTransactionFailed):
		return EventTransactionFailed
	default:
		return EventUnknown
	}
}

// NeedsRetry reports whether handlers for this kind run under the retry
// executor. Only the tenant-creating subscription kinds do; all other side
// effects are additive or overwriting and safe to rely on redelivery for.
func (k EventKind) NeedsRetry() bool {
	return k == EventSubscriptionCreated || k == EventSubscriptionActivated
}

// Handler processes one parsed notification.
type Handler func(ctx context.Context, env *Envelope) error

// Router is a pure dispatch table from event kind to handler.
type Router struct {
	handlers map[EventKind]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[EventKind]Handler)}
}

// Register binds a handler to an event kind, replacing any previous binding.
func (r *Router) Register(kind EventKind, h Handler) {
	if kind == EventUnknown || h == nil {
		return
	}
	r.handlers[kind] = h
}

// Lookup returns the handler for kind, or ok=false when the kind is
// unrecognized or has no registered handler.
func (r *Router) Lookup(kind EventKind) (Handler, bool) {
	h, ok := r.handlers[kind]
	return h, ok
}
