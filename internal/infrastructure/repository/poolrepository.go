// Package repository contains the GORM-backed implementations of the
// domain repository interfaces. All methods honor a transaction carried in
// the context, falling back to the shared connection otherwise.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wick-sh/wick/internal/domain/pool"
	"github.com/wick-sh/wick/internal/infrastructure/persistence/models"
	"github.com/wick-sh/wick/internal/shared/db"
	"github.com/wick-sh/wick/internal/shared/errors"
	"github.com/wick-sh/wick/internal/shared/logger"
)

// PoolRepositoryImpl implements the pool.Repository interface
type PoolRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewPoolRepository creates a new pool repository instance
func NewPoolRepository(gdb *gorm.DB, logger logger.Interface) pool.Repository {
	return &PoolRepositoryImpl{
		db:     gdb,
		logger: logger,
	}
}

func poolToModel(p *pool.Pool) (*models.PoolModel, error) {
	attrs, err := json.Marshal(p.Attributes())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pool attributes: %w", err)
	}
	provided := make([]models.PoolProvidedProductModel, 0, len(p.ProvidedProducts()))
	for _, pp := range p.ProvidedProducts() {
		provided = append(provided, models.PoolProvidedProductModel{
			PoolID:      p.ID(),
			ProductID:   pp.ProductID,
			ProductName: pp.ProductName,
		})
	}
	return &models.PoolModel{
		ID:                  p.ID(),
		OwnerKey:            p.OwnerKey(),
		ProductID:           p.ProductID(),
		ProductName:         p.ProductName(),
		Quantity:            p.Quantity(),
		Consumed:            p.Consumed(),
		StartDate:           p.StartDate(),
		EndDate:             p.EndDate(),
		SubscriptionID:      p.SubscriptionID(),
		SourceEntitlementID: p.SourceEntitlementID(),
		Attributes:          attrs,
		ContractNumber:      p.ContractNumber(),
		AccountNumber:       p.AccountNumber(),
		CreatedAt:           p.CreatedAt(),
		UpdatedAt:           p.UpdatedAt(),
		Version:             p.Version(),
		ProvidedProducts:    provided,
	}, nil
}

func poolToDomain(m *models.PoolModel) (*pool.Pool, error) {
	var attrs map[string]string
	if len(m.Attributes) > 0 {
		if err := json.Unmarshal(m.Attributes, &attrs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pool attributes: %w", err)
		}
	}
	provided := make([]pool.ProvidedProduct, 0, len(m.ProvidedProducts))
	for _, pp := range m.ProvidedProducts {
		provided = append(provided, pool.ProvidedProduct{
			ProductID:   pp.ProductID,
			ProductName: pp.ProductName,
		})
	}
	return pool.Reconstruct(pool.ReconstructParams{
		ID:                  m.ID,
		OwnerKey:            m.OwnerKey,
		ProductID:           m.ProductID,
		ProductName:         m.ProductName,
		ProvidedProducts:    provided,
		Quantity:            m.Quantity,
		Consumed:            m.Consumed,
		StartDate:           m.StartDate,
		EndDate:             m.EndDate,
		SubscriptionID:      m.SubscriptionID,
		SourceEntitlementID: m.SourceEntitlementID,
		Attributes:          attrs,
		ContractNumber:      m.ContractNumber,
		AccountNumber:       m.AccountNumber,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
		Version:             m.Version,
	})
}

func poolsToDomain(ms []models.PoolModel) ([]*pool.Pool, error) {
	out := make([]*pool.Pool, 0, len(ms))
	for i := range ms {
		p, err := poolToDomain(&ms[i])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Create creates a new pool
func (r *PoolRepositoryImpl) Create(ctx context.Context, p *pool.Pool) error {
	model, err := poolToModel(p)
	if err != nil {
		return err
	}
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("pool already exists")
		}
		r.logger.Errorw("failed to create pool", "pool_id", p.ID(), "error", err)
		return fmt.Errorf("failed to create pool: %w", err)
	}

	r.logger.Infow("pool created",
		"pool_id", p.ID(),
		"owner", p.OwnerKey(),
		"product_id", p.ProductID(),
		"quantity", p.Quantity())
	return nil
}

// FindByID retrieves a pool by its ID
func (r *PoolRepositoryImpl) FindByID(ctx context.Context, id string) (*pool.Pool, error) {
	var model models.PoolModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Preload("ProvidedProducts").First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pool.ErrPoolNotFound
		}
		r.logger.Errorw("failed to find pool", "pool_id", id, "error", err)
		return nil, fmt.Errorf("failed to find pool: %w", err)
	}
	return poolToDomain(&model)
}

// LockAndLoad re-reads a pool under a pessimistic row lock. Must run inside
// a transaction carried in the context.
func (r *PoolRepositoryImpl) LockAndLoad(ctx context.Context, id string) (*pool.Pool, error) {
	var model models.PoolModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("ProvidedProducts").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pool.ErrPoolNotFound
		}
		r.logger.Errorw("failed to lock pool", "pool_id", id, "error", err)
		return nil, fmt.Errorf("failed to lock pool: %w", err)
	}
	return poolToDomain(&model)
}

// Update persists changes to an existing pool
func (r *PoolRepositoryImpl) Update(ctx context.Context, p *pool.Pool) error {
	model, err := poolToModel(p)
	if err != nil {
		return err
	}
	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Model(&models.PoolModel{}).Where("id = ?", p.ID()).
		Select("*").Omit("id", "created_at").Updates(model)
	if result.Error != nil {
		r.logger.Errorw("failed to update pool", "pool_id", p.ID(), "error", result.Error)
		return fmt.Errorf("failed to update pool: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return pool.ErrPoolNotFound
	}

	// Replace the provided product set wholesale.
	if err := tx.Where("pool_id = ?", p.ID()).
		Delete(&models.PoolProvidedProductModel{}).Error; err != nil {
		return fmt.Errorf("failed to replace provided products: %w", err)
	}
	if len(model.ProvidedProducts) > 0 {
		if err := tx.Create(&model.ProvidedProducts).Error; err != nil {
			return fmt.Errorf("failed to replace provided products: %w", err)
		}
	}
	return nil
}

// Delete removes a pool and its provided product rows
func (r *PoolRepositoryImpl) Delete(ctx context.Context, id string) error {
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Where("pool_id = ?", id).
		Delete(&models.PoolProvidedProductModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete provided products: %w", err)
	}
	result := tx.Delete(&models.PoolModel{}, "id = ?", id)
	if result.Error != nil {
		r.logger.Errorw("failed to delete pool", "pool_id", id, "error", result.Error)
		return fmt.Errorf("failed to delete pool: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return pool.ErrPoolNotFound
	}

	r.logger.Infow("pool deleted", "pool_id", id)
	return nil
}

// ListByOwner retrieves all pools scoped to an owner
func (r *PoolRepositoryImpl) ListByOwner(ctx context.Context, ownerKey string) ([]*pool.Pool, error) {
	var ms []models.PoolModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Preload("ProvidedProducts").
		Where("owner_key = ?", ownerKey).
		Order("created_at").
		Find(&ms).Error; err != nil {
		r.logger.Errorw("failed to list pools", "owner", ownerKey, "error", err)
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}
	return poolsToDomain(ms)
}

// ListBySubscription retrieves the pools created from a subscription
func (r *PoolRepositoryImpl) ListBySubscription(ctx context.Context, subscriptionID string) ([]*pool.Pool, error) {
	var ms []models.PoolModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Preload("ProvidedProducts").
		Where("subscription_id = ?", subscriptionID).
		Find(&ms).Error; err != nil {
		r.logger.Errorw("failed to list pools by subscription",
			"subscription_id", subscriptionID, "error", err)
		return nil, fmt.Errorf("failed to list pools by subscription: %w", err)
	}
	return poolsToDomain(ms)
}

// ListBySourceEntitlement retrieves derived pools hanging off an entitlement
func (r *PoolRepositoryImpl) ListBySourceEntitlement(ctx context.Context, entitlementID string) ([]*pool.Pool, error) {
	var ms []models.PoolModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Preload("ProvidedProducts").
		Where("source_entitlement_id = ?", entitlementID).
		Find(&ms).Error; err != nil {
		r.logger.Errorw("failed to list derived pools",
			"entitlement_id", entitlementID, "error", err)
		return nil, fmt.Errorf("failed to list derived pools: %w", err)
	}
	return poolsToDomain(ms)
}

// AdjustConsumed atomically adds delta to the pool's consumed counter
func (r *PoolRepositoryImpl) AdjustConsumed(ctx context.Context, id string, delta int64) error {
	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Model(&models.PoolModel{}).Where("id = ?", id).
		UpdateColumn("consumed", gorm.Expr("consumed + ?", delta))
	if result.Error != nil {
		r.logger.Errorw("failed to adjust consumed",
			"pool_id", id, "delta", delta, "error", result.Error)
		return fmt.Errorf("failed to adjust consumed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return pool.ErrPoolNotFound
	}
	return nil
}
