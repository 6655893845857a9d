package entitlement

import (
	"time"

	"github.com/wick-sh/wick/internal/domain/shared/events"
)

// Event types emitted by the entitlement lifecycle.
const (
	EventEntitlementCreated = "entitlement.created"
	EventEntitlementChanged = "entitlement.changed"
	EventEntitlementDeleted = "entitlement.deleted"
)

// EntitlementEvent carries the entitlement snapshot fields audit
// subscribers care about.
type EntitlementEvent struct {
	events.BaseEvent
	PoolID     string `json:"pool_id"`
	ConsumerID string `json:"consumer_id"`
	Quantity   int64  `json:"quantity"`
}

func newEntitlementEvent(eventType string, e *Entitlement) EntitlementEvent {
	return EntitlementEvent{
		BaseEvent: events.BaseEvent{
			AggregateID: e.ID(),
			EventType:   eventType,
			OccurredAt:  time.Now().UTC(),
		},
		PoolID:     e.PoolID(),
		ConsumerID: e.ConsumerID(),
		Quantity:   e.Quantity(),
	}
}

// NewEntitlementCreatedEvent builds the event for a fresh grant.
func NewEntitlementCreatedEvent(e *Entitlement) EntitlementEvent {
	return newEntitlementEvent(EventEntitlementCreated, e)
}

// NewEntitlementChangedEvent builds the event for a regenerated grant.
func NewEntitlementChangedEvent(e *Entitlement) EntitlementEvent {
	return newEntitlementEvent(EventEntitlementChanged, e)
}

// NewEntitlementDeletedEvent builds the event for a revoked grant.
func NewEntitlementDeletedEvent(e *Entitlement) EntitlementEvent {
	return newEntitlementEvent(EventEntitlementDeleted, e)
}
