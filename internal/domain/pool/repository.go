package pool

import "context"

// Repository defines persistence operations for pools.
type Repository interface {
	// Create persists a new pool.
	Create(ctx context.Context, p *Pool) error

	// FindByID retrieves a pool by its ID.
	FindByID(ctx context.Context, id string) (*Pool, error)

	// LockAndLoad re-reads a pool under a pessimistic row lock. Callers must
	// run inside a transaction; capacity checks and consumed adjustments made
	// against the returned snapshot hold until the transaction commits.
	LockAndLoad(ctx context.Context, id string) (*Pool, error)

	// Update persists changes to an existing pool.
	Update(ctx context.Context, p *Pool) error

	// Delete removes a pool.
	Delete(ctx context.Context, id string) error

	// ListByOwner retrieves all pools scoped to an owner.
	ListByOwner(ctx context.Context, ownerKey string) ([]*Pool, error)

	// ListBySubscription retrieves the pools created from a subscription.
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*Pool, error)

	// ListBySourceEntitlement retrieves derived pools whose existence hangs
	// off the given entitlement.
	ListBySourceEntitlement(ctx context.Context, entitlementID string) ([]*Pool, error)

	// AdjustConsumed atomically adds delta (which may be negative) to the
	// pool's consumed counter.
	AdjustConsumed(ctx context.Context, id string, delta int64) error
}
