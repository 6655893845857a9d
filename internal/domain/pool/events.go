package pool

import (
	"time"

	"github.com/wick-sh/wick/internal/domain/shared/events"
)

// Event types emitted by the pool lifecycle.
const (
	EventPoolCreated = "pool.created"
	EventPoolChanged = "pool.changed"
	EventPoolDeleted = "pool.deleted"
)

// PoolEvent carries the pool snapshot fields audit subscribers care about.
type PoolEvent struct {
	events.BaseEvent
	OwnerKey  string `json:"owner_key"`
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

func newPoolEvent(eventType string, p *Pool) PoolEvent {
	return PoolEvent{
		BaseEvent: events.BaseEvent{
			AggregateID: p.ID(),
			EventType:   eventType,
			OccurredAt:  time.Now().UTC(),
		},
		OwnerKey:  p.OwnerKey(),
		ProductID: p.ProductID(),
		Quantity:  p.Quantity(),
	}
}

// NewPoolCreatedEvent builds the event for a freshly created pool.
func NewPoolCreatedEvent(p *Pool) PoolEvent { return newPoolEvent(EventPoolCreated, p) }

// NewPoolChangedEvent builds the event for an updated pool.
func NewPoolChangedEvent(p *Pool) PoolEvent { return newPoolEvent(EventPoolChanged, p) }

// NewPoolDeletedEvent builds the event for a deleted pool.
func NewPoolDeletedEvent(p *Pool) PoolEvent { return newPoolEvent(EventPoolDeleted, p) }
