package migration

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/wick-sh/wick/internal/infrastructure/persistence/models"
	"github.com/wick-sh/wick/internal/shared/logger"
)

// GormAutoMigrateStrategy migrates the schema straight from the model
// structs. Development only; production uses versioned SQL scripts.
type GormAutoMigrateStrategy struct {
	logger logger.Interface
}

// NewGormAutoMigrateStrategy creates a new GORM AutoMigrate strategy
func NewGormAutoMigrateStrategy() Strategy {
	return &GormAutoMigrateStrategy{
		logger: logger.NewLogger().With("component", "migration.automigrate"),
	}
}

// Migrate runs GORM AutoMigrate for the given models
func (s *GormAutoMigrateStrategy) Migrate(db *gorm.DB, models ...interface{}) error {
	s.logger.Infow("starting gorm auto-migration", "models_count", len(models))

	if err := db.AutoMigrate(models...); err != nil {
		s.logger.Errorw("auto-migration failed", "error", err)
		return fmt.Errorf("failed to auto-migrate models: %w", err)
	}

	s.logger.Infow("auto-migration completed successfully")
	return nil
}

// GetName returns the strategy name
func (s *GormAutoMigrateStrategy) GetName() string {
	return "gorm_auto_migrate"
}

// AutoMigrateModels returns the full model set for schema migration.
func AutoMigrateModels() []interface{} {
	return []interface{}{
		&models.PoolModel{},
		&models.PoolProvidedProductModel{},
		&models.EntitlementModel{},
		&models.ConsumerModel{},
		&models.CertificateSerialModel{},
		&models.EntitlementCertificateModel{},
	}
}
