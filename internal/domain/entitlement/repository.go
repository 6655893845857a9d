package entitlement

import (
	"context"
	"errors"
)

// ErrEntitlementNotFound indicates the requested entitlement does not exist.
var ErrEntitlementNotFound = errors.New("entitlement not found")

// Repository defines persistence operations for entitlements.
type Repository interface {
	// Create persists a new entitlement.
	Create(ctx context.Context, e *Entitlement) error

	// FindByID retrieves an entitlement by its ID.
	FindByID(ctx context.Context, id string) (*Entitlement, error)

	// Update persists changes to an existing entitlement.
	Update(ctx context.Context, e *Entitlement) error

	// Delete removes an entitlement.
	Delete(ctx context.Context, id string) error

	// ListByConsumer retrieves all entitlements held by a consumer.
	ListByConsumer(ctx context.Context, consumerID string) ([]*Entitlement, error)

	// ListByPool retrieves the entitlements granted from a pool, ordered by
	// grant time. With lifo set the newest grants come first, which is the
	// order excess entitlements are revoked in when a pool shrinks.
	ListByPool(ctx context.Context, poolID string, lifo bool) ([]*Entitlement, error)

	// CountByPool returns the number of entitlement rows against a pool.
	CountByPool(ctx context.Context, poolID string) (int64, error)
}
