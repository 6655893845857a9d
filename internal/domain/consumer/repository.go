package consumer

import (
	"context"
	"errors"
)

// ErrConsumerNotFound indicates the requested consumer does not exist.
var ErrConsumerNotFound = errors.New("consumer not found")

// Repository defines persistence operations for consumers.
type Repository interface {
	// Create persists a new consumer.
	Create(ctx context.Context, c *Consumer) error

	// FindByID retrieves a consumer by its internal ID.
	FindByID(ctx context.Context, id string) (*Consumer, error)

	// FindByUUID retrieves a consumer by its external UUID.
	FindByUUID(ctx context.Context, uuid string) (*Consumer, error)

	// Update persists changes to an existing consumer.
	Update(ctx context.Context, c *Consumer) error

	// Delete removes a consumer.
	Delete(ctx context.Context, id string) error

	// ListByOwner retrieves all consumers registered under an owner.
	ListByOwner(ctx context.Context, ownerKey string) ([]*Consumer, error)
}
