package certificate

import (
	"context"
	"errors"
)

var (
	// ErrSerialNotFound indicates the requested ledger entry does not exist.
	ErrSerialNotFound = errors.New("certificate serial not found")

	// ErrCertificateNotFound indicates no certificate exists for the query.
	ErrCertificateNotFound = errors.New("certificate not found")
)

// SerialRepository defines persistence operations for the serial ledger.
type SerialRepository interface {
	// Create persists a new ledger entry.
	Create(ctx context.Context, s *CertificateSerial) error

	// FindBySerial retrieves a ledger entry.
	FindBySerial(ctx context.Context, serial int64) (*CertificateSerial, error)

	// Update persists changes to a ledger entry.
	Update(ctx context.Context, s *CertificateSerial) error

	// ListRevoked retrieves every revoked entry, collected or not.
	ListRevoked(ctx context.Context) ([]*CertificateSerial, error)

	// ListRevokedUncollected retrieves revoked entries no CRL run has
	// published yet.
	ListRevokedUncollected(ctx context.Context) ([]*CertificateSerial, error)

	// ListExpired retrieves entries whose certificates have expired. Expired
	// serials drop off the CRL regardless of revocation state.
	ListExpired(ctx context.Context) ([]*CertificateSerial, error)

	// MarkCollected flags the given serials as published by a CRL run.
	MarkCollected(ctx context.Context, serials []int64) error

	// PurgeCollectedExpired drops revoked, collected entries whose
	// certificates have expired. Returns the number of rows removed.
	PurgeCollectedExpired(ctx context.Context) (int64, error)
}

// EntitlementCertRepository defines persistence for entitlement certificates.
type EntitlementCertRepository interface {
	// Create persists an issued certificate.
	Create(ctx context.Context, c *EntitlementCertificate) error

	// FindByEntitlement retrieves the certificates issued to an entitlement.
	FindByEntitlement(ctx context.Context, entitlementID string) ([]*EntitlementCertificate, error)

	// DeleteByEntitlement removes all certificates for an entitlement.
	DeleteByEntitlement(ctx context.Context, entitlementID string) error
}
