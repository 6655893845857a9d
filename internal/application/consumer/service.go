// Package consumer implements consumer registration and lifecycle.
package consumer

import (
	"context"

	"github.com/wick-sh/wick/internal/domain/auth"
	"github.com/wick-sh/wick/internal/domain/consumer"
	"github.com/wick-sh/wick/internal/shared/logger"
)

// EntitlementRevoker removes all entitlements held by a consumer before the
// consumer record is deleted. Satisfied by the pool Manager.
type EntitlementRevoker interface {
	RevokeAllEntitlements(ctx context.Context, principal *auth.Principal, consumerID string) error
}

// Service handles consumer registration, lookup and removal.
type Service struct {
	repo    consumer.Repository
	revoker EntitlementRevoker
	logger  logger.Interface
}

// NewService creates a new consumer Service.
func NewService(repo consumer.Repository, revoker EntitlementRevoker, logger logger.Interface) *Service {
	return &Service{
		repo:    repo,
		revoker: revoker,
		logger:  logger,
	}
}

// RegisterInput carries the fields for a new consumer registration.
type RegisterInput struct {
	Name      string
	TypeLabel string
	OwnerKey  string
	Username  string
	Facts     map[string]string
}

// Register creates a new consumer. The generated UUID becomes the identity
// the consumer presents in its certificates and API tokens.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*consumer.Consumer, error) {
	c, err := consumer.NewConsumer(input.Name, input.TypeLabel, input.OwnerKey, input.Username)
	if err != nil {
		return nil, err
	}
	if len(input.Facts) > 0 {
		c.ReplaceFacts(input.Facts)
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Infow("consumer registered",
		"consumer_id", c.ID(), "uuid", c.UUID(), "owner", c.OwnerKey(), "type", c.TypeLabel())
	return c, nil
}

// Get returns a consumer by ID.
func (s *Service) Get(ctx context.Context, id string) (*consumer.Consumer, error) {
	return s.repo.FindByID(ctx, id)
}

// GetByUUID returns a consumer by its identity UUID.
func (s *Service) GetByUUID(ctx context.Context, uuid string) (*consumer.Consumer, error) {
	return s.repo.FindByUUID(ctx, uuid)
}

// ListByOwner returns all consumers registered under an owner.
func (s *Service) ListByOwner(ctx context.Context, ownerKey string) ([]*consumer.Consumer, error) {
	return s.repo.ListByOwner(ctx, ownerKey)
}

// UpdateFacts replaces the consumer's fact set.
func (s *Service) UpdateFacts(ctx context.Context, id string, facts map[string]string) (*consumer.Consumer, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.ReplaceFacts(facts)
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Unregister revokes all of the consumer's entitlements, then removes the
// consumer record.
func (s *Service) Unregister(ctx context.Context, principal *auth.Principal, id string) error {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.revoker.RevokeAllEntitlements(ctx, principal, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Infow("consumer unregistered",
		"consumer_id", c.ID(), "uuid", c.UUID(), "owner", c.OwnerKey())
	return nil
}
