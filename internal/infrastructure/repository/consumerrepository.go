package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/wick-sh/wick/internal/domain/consumer"
	"github.com/wick-sh/wick/internal/infrastructure/persistence/models"
	"github.com/wick-sh/wick/internal/shared/db"
	"github.com/wick-sh/wick/internal/shared/errors"
	"github.com/wick-sh/wick/internal/shared/logger"
)

// ConsumerRepositoryImpl implements the consumer.Repository interface
type ConsumerRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewConsumerRepository creates a new consumer repository instance
func NewConsumerRepository(gdb *gorm.DB, logger logger.Interface) consumer.Repository {
	return &ConsumerRepositoryImpl{
		db:     gdb,
		logger: logger,
	}
}

func consumerToModel(c *consumer.Consumer) (*models.ConsumerModel, error) {
	facts, err := json.Marshal(c.Facts())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal consumer facts: %w", err)
	}
	return &models.ConsumerModel{
		ID:        c.ID(),
		UUID:      c.UUID(),
		Name:      c.Name(),
		TypeLabel: c.TypeLabel(),
		OwnerKey:  c.OwnerKey(),
		Username:  c.Username(),
		Facts:     facts,
		CreatedAt: c.CreatedAt(),
		UpdatedAt: c.UpdatedAt(),
	}, nil
}

func consumerToDomain(m *models.ConsumerModel) (*consumer.Consumer, error) {
	var facts map[string]string
	if len(m.Facts) > 0 {
		if err := json.Unmarshal(m.Facts, &facts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal consumer facts: %w", err)
		}
	}
	return consumer.Reconstruct(consumer.ReconstructParams{
		ID:        m.ID,
		UUID:      m.UUID,
		Name:      m.Name,
		TypeLabel: m.TypeLabel,
		OwnerKey:  m.OwnerKey,
		Username:  m.Username,
		Facts:     facts,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	})
}

// Create creates a new consumer
func (r *ConsumerRepositoryImpl) Create(ctx context.Context, c *consumer.Consumer) error {
	model, err := consumerToModel(c)
	if err != nil {
		return err
	}
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("consumer already exists")
		}
		r.logger.Errorw("failed to create consumer", "consumer_id", c.ID(), "error", err)
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	r.logger.Infow("consumer created",
		"consumer_id", c.ID(),
		"uuid", c.UUID(),
		"owner", c.OwnerKey(),
		"type", c.TypeLabel())
	return nil
}

// FindByID retrieves a consumer by its internal ID
func (r *ConsumerRepositoryImpl) FindByID(ctx context.Context, id string) (*consumer.Consumer, error) {
	var model models.ConsumerModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, consumer.ErrConsumerNotFound
		}
		r.logger.Errorw("failed to find consumer", "consumer_id", id, "error", err)
		return nil, fmt.Errorf("failed to find consumer: %w", err)
	}
	return consumerToDomain(&model)
}

// FindByUUID retrieves a consumer by its external UUID
func (r *ConsumerRepositoryImpl) FindByUUID(ctx context.Context, uuid string) (*consumer.Consumer, error) {
	var model models.ConsumerModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.First(&model, "uuid = ?", uuid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, consumer.ErrConsumerNotFound
		}
		r.logger.Errorw("failed to find consumer by uuid", "uuid", uuid, "error", err)
		return nil, fmt.Errorf("failed to find consumer: %w", err)
	}
	return consumerToDomain(&model)
}

// Update persists changes to an existing consumer
func (r *ConsumerRepositoryImpl) Update(ctx context.Context, c *consumer.Consumer) error {
	model, err := consumerToModel(c)
	if err != nil {
		return err
	}
	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Model(&models.ConsumerModel{}).Where("id = ?", c.ID()).
		Select("*").Omit("id", "uuid", "created_at").Updates(model)
	if result.Error != nil {
		r.logger.Errorw("failed to update consumer", "consumer_id", c.ID(), "error", result.Error)
		return fmt.Errorf("failed to update consumer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return consumer.ErrConsumerNotFound
	}
	return nil
}

// Delete removes a consumer
func (r *ConsumerRepositoryImpl) Delete(ctx context.Context, id string) error {
	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Delete(&models.ConsumerModel{}, "id = ?", id)
	if result.Error != nil {
		r.logger.Errorw("failed to delete consumer", "consumer_id", id, "error", result.Error)
		return fmt.Errorf("failed to delete consumer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return consumer.ErrConsumerNotFound
	}

	r.logger.Infow("consumer deleted", "consumer_id", id)
	return nil
}

// ListByOwner retrieves all consumers registered under an owner
func (r *ConsumerRepositoryImpl) ListByOwner(ctx context.Context, ownerKey string) ([]*consumer.Consumer, error) {
	var ms []models.ConsumerModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Where("owner_key = ?", ownerKey).
		Order("created_at").
		Find(&ms).Error; err != nil {
		r.logger.Errorw("failed to list consumers", "owner", ownerKey, "error", err)
		return nil, fmt.Errorf("failed to list consumers: %w", err)
	}
	out := make([]*consumer.Consumer, 0, len(ms))
	for i := range ms {
		c, err := consumerToDomain(&ms[i])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
