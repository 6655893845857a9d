// Package certificate contains the certificate serial ledger and the
// entitlement certificate aggregate. Every issued certificate gets a ledger
// row; revocation flips the row and the CRL job later collects it.
package certificate

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// maxSerial bounds generated serials to positive signed 64-bit values so
// they survive round trips through SQL integer columns.
var maxSerial = new(big.Int).Lsh(big.NewInt(1), 62)

// CertificateSerial is a ledger entry for an issued certificate. Lifecycle:
// active, then revoked, then collected once a CRL run has published the
// revocation, then purged once the certificate has also expired.
type CertificateSerial struct {
	serial     int64
	expiration time.Time
	revoked    bool
	collected  bool
	revokedAt  time.Time
	createdAt  time.Time
}

// NewCertificateSerial allocates a fresh serial expiring at the given time.
func NewCertificateSerial(expiration time.Time) (*CertificateSerial, error) {
	n, err := rand.Int(rand.Reader, maxSerial)
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial: %w", err)
	}
	return &CertificateSerial{
		serial:     n.Int64() + 1,
		expiration: expiration,
		createdAt:  time.Now().UTC(),
	}, nil
}

// ReconstructSerial rebuilds a ledger entry from persistence.
func ReconstructSerial(serial int64, expiration time.Time, revoked, collected bool,
	revokedAt, createdAt time.Time) (*CertificateSerial, error) {

	if serial <= 0 {
		return nil, fmt.Errorf("invalid serial: %d", serial)
	}
	return &CertificateSerial{
		serial:     serial,
		expiration: expiration,
		revoked:    revoked,
		collected:  collected,
		revokedAt:  revokedAt,
		createdAt:  createdAt,
	}, nil
}

func (s *CertificateSerial) Serial() int64         { return s.serial }
func (s *CertificateSerial) Expiration() time.Time { return s.expiration }
func (s *CertificateSerial) IsRevoked() bool       { return s.revoked }
func (s *CertificateSerial) IsCollected() bool     { return s.collected }
func (s *CertificateSerial) RevokedAt() time.Time  { return s.revokedAt }
func (s *CertificateSerial) CreatedAt() time.Time  { return s.createdAt }

// IsExpired reports whether the certificate behind this serial has expired.
func (s *CertificateSerial) IsExpired(at time.Time) bool {
	return at.After(s.expiration)
}

// Revoke marks the serial revoked. Revoking twice is a no-op so the first
// revocation time is preserved.
func (s *CertificateSerial) Revoke() {
	if s.revoked {
		return
	}
	s.revoked = true
	s.revokedAt = time.Now().UTC()
}

// MarkCollected records that a CRL run has published this revocation.
func (s *CertificateSerial) MarkCollected() error {
	if !s.revoked {
		return fmt.Errorf("serial %d is not revoked", s.serial)
	}
	s.collected = true
	return nil
}

// CanPurge reports whether the row can be dropped: the revocation has been
// published and the certificate itself has expired, so no relying party
// needs the serial on a CRL anymore.
func (s *CertificateSerial) CanPurge(at time.Time) bool {
	return s.revoked && s.collected && s.IsExpired(at)
}
