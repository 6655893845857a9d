package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/wick-sh/wick/internal/domain/certificate"
	"github.com/wick-sh/wick/internal/infrastructure/persistence/models"
	"github.com/wick-sh/wick/internal/shared/db"
	"github.com/wick-sh/wick/internal/shared/errors"
	"github.com/wick-sh/wick/internal/shared/id"
	"github.com/wick-sh/wick/internal/shared/logger"
)

// CertificateSerialRepositoryImpl implements certificate.SerialRepository
type CertificateSerialRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewCertificateSerialRepository creates a new serial ledger repository
func NewCertificateSerialRepository(gdb *gorm.DB, logger logger.Interface) certificate.SerialRepository {
	return &CertificateSerialRepositoryImpl{
		db:     gdb,
		logger: logger,
	}
}

func serialToModel(s *certificate.CertificateSerial) *models.CertificateSerialModel {
	m := &models.CertificateSerialModel{
		Serial:     s.Serial(),
		Expiration: s.Expiration(),
		Revoked:    s.IsRevoked(),
		Collected:  s.IsCollected(),
		CreatedAt:  s.CreatedAt(),
	}
	if !s.RevokedAt().IsZero() {
		revokedAt := s.RevokedAt()
		m.RevokedAt = &revokedAt
	}
	return m
}

func serialToDomain(m *models.CertificateSerialModel) (*certificate.CertificateSerial, error) {
	var revokedAt time.Time
	if m.RevokedAt != nil {
		revokedAt = *m.RevokedAt
	}
	return certificate.ReconstructSerial(m.Serial, m.Expiration, m.Revoked, m.Collected,
		revokedAt, m.CreatedAt)
}

func serialsToDomain(ms []models.CertificateSerialModel) ([]*certificate.CertificateSerial, error) {
	out := make([]*certificate.CertificateSerial, 0, len(ms))
	for i := range ms {
		s, err := serialToDomain(&ms[i])
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Create persists a new ledger entry
func (r *CertificateSerialRepositoryImpl) Create(ctx context.Context, s *certificate.CertificateSerial) error {
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Create(serialToModel(s)).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("certificate serial already exists")
		}
		r.logger.Errorw("failed to create serial", "serial", s.Serial(), "error", err)
		return fmt.Errorf("failed to create serial: %w", err)
	}
	return nil
}

// FindBySerial retrieves a ledger entry
func (r *CertificateSerialRepositoryImpl) FindBySerial(ctx context.Context, serial int64) (*certificate.CertificateSerial, error) {
	var model models.CertificateSerialModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.First(&model, "serial = ?", serial).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, certificate.ErrSerialNotFound
		}
		r.logger.Errorw("failed to find serial", "serial", serial, "error", err)
		return nil, fmt.Errorf("failed to find serial: %w", err)
	}
	return serialToDomain(&model)
}

// Update persists changes to a ledger entry
func (r *CertificateSerialRepositoryImpl) Update(ctx context.Context, s *certificate.CertificateSerial) error {
	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Model(&models.CertificateSerialModel{}).Where("serial = ?", s.Serial()).
		Select("*").Omit("serial", "created_at").Updates(serialToModel(s))
	if result.Error != nil {
		r.logger.Errorw("failed to update serial", "serial", s.Serial(), "error", result.Error)
		return fmt.Errorf("failed to update serial: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return certificate.ErrSerialNotFound
	}
	return nil
}

// ListRevoked retrieves every revoked entry
func (r *CertificateSerialRepositoryImpl) ListRevoked(ctx context.Context) ([]*certificate.CertificateSerial, error) {
	var ms []models.CertificateSerialModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Where("revoked = ?", true).Find(&ms).Error; err != nil {
		r.logger.Errorw("failed to list revoked serials", "error", err)
		return nil, fmt.Errorf("failed to list revoked serials: %w", err)
	}
	return serialsToDomain(ms)
}

// ListRevokedUncollected retrieves revoked entries no CRL run has published
func (r *CertificateSerialRepositoryImpl) ListRevokedUncollected(ctx context.Context) ([]*certificate.CertificateSerial, error) {
	var ms []models.CertificateSerialModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Where("revoked = ? AND collected = ?", true, false).Find(&ms).Error; err != nil {
		r.logger.Errorw("failed to list uncollected serials", "error", err)
		return nil, fmt.Errorf("failed to list uncollected serials: %w", err)
	}
	return serialsToDomain(ms)
}

// ListExpired retrieves entries whose certificates have expired
func (r *CertificateSerialRepositoryImpl) ListExpired(ctx context.Context) ([]*certificate.CertificateSerial, error) {
	var ms []models.CertificateSerialModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Where("expiration < ?", time.Now().UTC()).Find(&ms).Error; err != nil {
		r.logger.Errorw("failed to list expired serials", "error", err)
		return nil, fmt.Errorf("failed to list expired serials: %w", err)
	}
	return serialsToDomain(ms)
}

// MarkCollected flags the given serials as published by a CRL run
func (r *CertificateSerialRepositoryImpl) MarkCollected(ctx context.Context, serials []int64) error {
	if len(serials) == 0 {
		return nil
	}
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Model(&models.CertificateSerialModel{}).
		Where("serial IN ?", serials).
		UpdateColumn("collected", true).Error; err != nil {
		r.logger.Errorw("failed to mark serials collected", "count", len(serials), "error", err)
		return fmt.Errorf("failed to mark serials collected: %w", err)
	}
	return nil
}

// PurgeCollectedExpired drops revoked, collected, expired entries
func (r *CertificateSerialRepositoryImpl) PurgeCollectedExpired(ctx context.Context) (int64, error) {
	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Where("revoked = ? AND collected = ? AND expiration < ?",
		true, true, time.Now().UTC()).
		Delete(&models.CertificateSerialModel{})
	if result.Error != nil {
		r.logger.Errorw("failed to purge serials", "error", result.Error)
		return 0, fmt.Errorf("failed to purge serials: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// EntitlementCertRepositoryImpl implements certificate.EntitlementCertRepository
type EntitlementCertRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewEntitlementCertRepository creates a new entitlement certificate repository
func NewEntitlementCertRepository(gdb *gorm.DB, logger logger.Interface) certificate.EntitlementCertRepository {
	return &EntitlementCertRepositoryImpl{
		db:     gdb,
		logger: logger,
	}
}

// Create persists an issued certificate
func (r *EntitlementCertRepositoryImpl) Create(ctx context.Context, c *certificate.EntitlementCertificate) error {
	model := &models.EntitlementCertificateModel{
		ID:            c.ID(),
		EntitlementID: c.EntitlementID(),
		Serial:        c.Serial(),
		CertPEM:       c.CertPEM(),
		KeyPEM:        c.KeyPEM(),
		CreatedAt:     c.CreatedAt(),
	}
	if model.ID == "" {
		model.ID = id.MustGenerate(id.DefaultLength)
		c.SetID(model.ID)
	}
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("certificate already exists")
		}
		r.logger.Errorw("failed to create certificate",
			"entitlement_id", c.EntitlementID(), "serial", c.Serial(), "error", err)
		return fmt.Errorf("failed to create certificate: %w", err)
	}

	r.logger.Infow("certificate stored",
		"entitlement_id", c.EntitlementID(),
		"serial", c.Serial())
	return nil
}

// FindByEntitlement retrieves the certificates issued to an entitlement
func (r *EntitlementCertRepositoryImpl) FindByEntitlement(ctx context.Context, entitlementID string) ([]*certificate.EntitlementCertificate, error) {
	var ms []models.EntitlementCertificateModel
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Where("entitlement_id = ?", entitlementID).Find(&ms).Error; err != nil {
		r.logger.Errorw("failed to find certificates",
			"entitlement_id", entitlementID, "error", err)
		return nil, fmt.Errorf("failed to find certificates: %w", err)
	}
	out := make([]*certificate.EntitlementCertificate, 0, len(ms))
	for _, m := range ms {
		c, err := certificate.ReconstructEntitlementCertificate(
			m.ID, m.EntitlementID, m.Serial, m.CertPEM, m.KeyPEM, m.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// DeleteByEntitlement removes all certificates for an entitlement
func (r *EntitlementCertRepositoryImpl) DeleteByEntitlement(ctx context.Context, entitlementID string) error {
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Where("entitlement_id = ?", entitlementID).
		Delete(&models.EntitlementCertificateModel{}).Error; err != nil {
		r.logger.Errorw("failed to delete certificates",
			"entitlement_id", entitlementID, "error", err)
		return fmt.Errorf("failed to delete certificates: %w", err)
	}
	return nil
}
