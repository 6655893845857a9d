package subscription

import "context"

// Service is the upstream subscription system of record.
type Service interface {
	// GetSubscriptions returns all subscriptions for the given owner.
	GetSubscriptions(ctx context.Context, ownerKey string) ([]Subscription, error)

	// GetSubscription returns a single subscription by ID, or a not-found
	// error when the upstream no longer knows it.
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
}

// ProductService resolves product definitions from the upstream catalog.
type ProductService interface {
	// GetProductByID returns the product with the given ID, or a not-found
	// error.
	GetProductByID(ctx context.Context, id string) (*Product, error)
}
