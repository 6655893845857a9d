package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/wick-sh/wick/internal/domain/entitlement"
	"github.com/wick-sh/wick/internal/infrastructure/persistence/models"
	"github.com/wick-sh/wick/internal/shared/db"
	"github.com/wick-sh/wick/internal/shared/errors"
	"github.com/wick-sh/wick/internal/shared/logger"
)

// EntitlementRepositoryImpl implements the entitlement.Repository interface
type EntitlementRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewEntitlementRepository creates a new entitlement repository instance
func NewEntitlementRepository(gdb *gorm.DB, logger logger.Interface) entitlement.Repository {
	return &EntitlementRepositoryImpl{
		db:     gdb,
		logger: logger,
	}
}

func entitlementToModel(e *entitlement.Entitlement) *models.EntitlementModel {
	return &models.EntitlementModel{
		ID:             e.ID(),
		PoolID:         e.PoolID(),
		ConsumerID:     e.ConsumerID(),
		OwnerKey:       e.OwnerKey(),
		Quantity:       e.Quantity(),
		StartDate:      e.StartDate(),
		EndDate:        e.EndDate(),
		IsFree:         e.IsFree(),
		ContractNumber: e.ContractNumber(),
		AccountNumber:  e.AccountNumber(),
		CreatedAt:      e.CreatedAt(),
		UpdatedAt:      e.UpdatedAt(),
	}
}

func entitlementToDomain(m *models.EntitlementModel) (*entitlement.Entitlement, error) {
	return entitlement.Reconstruct(entitlement.ReconstructParams{
		ID:             m.ID,
		PoolID:         m.PoolID,
		ConsumerID:     m.ConsumerID,
		OwnerKey:       m.OwnerKey,
		Quantity:       m.Quantity,
		StartDate:      m.StartDate,
		EndDate:        m.EndDate,
		IsFree:         m.IsFree,
		ContractNumber: m.ContractNumber,
		AccountNumber:  m.AccountNumber,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	})
}

func entitlementsToDomain(ms []models.EntitlementModel) ([]*entitlement.Entitlement, error) {
	out := make([]*entitlement.Entitlement, 0, len(ms))
	for i := range ms {
		e, err := entitlementToDomain(&ms[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Create creates a new entitlement
func (r *EntitlementRepositoryImpl) Create(ctx context.Context, e *entitlement.Entitlement) error {
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Create(entitlementToModel(e)).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("entitlement already exists")
		}
		r.logger.Errorw("failed to create entitlement",
			"entitlement_id", e.ID(), "pool_id", e.PoolID(), "error", err)
		return fmt.Errorf("failed to create entitlement: %w", err)
	}

	r.logger.Infow("entitlement created",
		"entitlement_id", e.ID(),
		"pool_id", e.PoolID(),
		"consumer_id", e.ConsumerID(),
		"quantity", e.Quantity())
	return nil
}

// FindByID retrieves an entitlement by its ID
func (r *EntitlementRepositoryImpl) FindByID(ctx context.Context, id string) (*entitlement.Entitlement, error) {
	var model models.EntitlementModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entitlement.ErrEntitlementNotFound
		}
		r.logger.Errorw("failed to find entitlement", "entitlement_id", id, "error", err)
		return nil, fmt.Errorf("failed to find entitlement: %w", err)
	}
	return entitlementToDomain(&model)
}

// Update persists changes to an existing entitlement
func (r *EntitlementRepositoryImpl) Update(ctx context.Context, e *entitlement.Entitlement) error {
	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Model(&models.EntitlementModel{}).Where("id = ?", e.ID()).
		Select("*").Omit("id", "created_at").Updates(entitlementToModel(e))
	if result.Error != nil {
		r.logger.Errorw("failed to update entitlement", "entitlement_id", e.ID(), "error", result.Error)
		return fmt.Errorf("failed to update entitlement: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return entitlement.ErrEntitlementNotFound
	}
	return nil
}

// Delete removes an entitlement
func (r *EntitlementRepositoryImpl) Delete(ctx context.Context, id string) error {
	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Delete(&models.EntitlementModel{}, "id = ?", id)
	if result.Error != nil {
		r.logger.Errorw("failed to delete entitlement", "entitlement_id", id, "error", result.Error)
		return fmt.Errorf("failed to delete entitlement: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return entitlement.ErrEntitlementNotFound
	}

	r.logger.Infow("entitlement deleted", "entitlement_id", id)
	return nil
}

// ListByConsumer retrieves all entitlements held by a consumer
func (r *EntitlementRepositoryImpl) ListByConsumer(ctx context.Context, consumerID string) ([]*entitlement.Entitlement, error) {
	var ms []models.EntitlementModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Where("consumer_id = ?", consumerID).
		Order("created_at").
		Find(&ms).Error; err != nil {
		r.logger.Errorw("failed to list entitlements", "consumer_id", consumerID, "error", err)
		return nil, fmt.Errorf("failed to list entitlements: %w", err)
	}
	return entitlementsToDomain(ms)
}

// ListByPool retrieves the entitlements granted from a pool in grant order,
// newest first when lifo is set
func (r *EntitlementRepositoryImpl) ListByPool(ctx context.Context, poolID string, lifo bool) ([]*entitlement.Entitlement, error) {
	order := "created_at ASC"
	if lifo {
		order = "created_at DESC"
	}
	var ms []models.EntitlementModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Where("pool_id = ?", poolID).
		Order(order).
		Find(&ms).Error; err != nil {
		r.logger.Errorw("failed to list pool entitlements", "pool_id", poolID, "error", err)
		return nil, fmt.Errorf("failed to list pool entitlements: %w", err)
	}
	return entitlementsToDomain(ms)
}

// CountByPool returns the number of entitlement rows against a pool
func (r *EntitlementRepositoryImpl) CountByPool(ctx context.Context, poolID string) (int64, error) {
	var count int64
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Model(&models.EntitlementModel{}).
		Where("pool_id = ?", poolID).
		Count(&count).Error; err != nil {
		r.logger.Errorw("failed to count pool entitlements", "pool_id", poolID, "error", err)
		return 0, fmt.Errorf("failed to count pool entitlements: %w", err)
	}
	return count, nil
}
