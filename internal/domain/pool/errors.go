package pool

import "errors"

var (
	// ErrPoolNotFound indicates the requested pool does not exist.
	ErrPoolNotFound = errors.New("pool not found")

	// ErrNoEntitlementsAvailable indicates a pool has no remaining capacity
	// for the requested quantity.
	ErrNoEntitlementsAvailable = errors.New("no entitlements are available")
)
