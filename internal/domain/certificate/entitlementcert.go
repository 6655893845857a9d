package certificate

import (
	"fmt"
	"time"
)

// EntitlementCertificate is the X.509 certificate plus private key issued
// for an entitlement. The PEM blobs are stored as issued; regeneration
// replaces the whole record under a fresh serial.
type EntitlementCertificate struct {
	id            string
	entitlementID string
	serial        int64
	certPEM       []byte
	keyPEM        []byte
	createdAt     time.Time
}

// NewEntitlementCertificate records an issued certificate for an entitlement.
func NewEntitlementCertificate(entitlementID string, serial int64,
	certPEM, keyPEM []byte) (*EntitlementCertificate, error) {

	if entitlementID == "" {
		return nil, fmt.Errorf("entitlement ID is required")
	}
	if serial <= 0 {
		return nil, fmt.Errorf("invalid serial: %d", serial)
	}
	if len(certPEM) == 0 {
		return nil, fmt.Errorf("certificate PEM is required")
	}
	return &EntitlementCertificate{
		entitlementID: entitlementID,
		serial:        serial,
		certPEM:       certPEM,
		keyPEM:        keyPEM,
		createdAt:     time.Now().UTC(),
	}, nil
}

// ReconstructEntitlementCertificate rebuilds a record from persistence.
func ReconstructEntitlementCertificate(id, entitlementID string, serial int64,
	certPEM, keyPEM []byte, createdAt time.Time) (*EntitlementCertificate, error) {

	if id == "" {
		return nil, fmt.Errorf("certificate ID cannot be empty")
	}
	if entitlementID == "" {
		return nil, fmt.Errorf("entitlement ID is required")
	}
	return &EntitlementCertificate{
		id:            id,
		entitlementID: entitlementID,
		serial:        serial,
		certPEM:       certPEM,
		keyPEM:        keyPEM,
		createdAt:     createdAt,
	}, nil
}

func (c *EntitlementCertificate) ID() string            { return c.id }
func (c *EntitlementCertificate) EntitlementID() string { return c.entitlementID }
func (c *EntitlementCertificate) Serial() int64         { return c.serial }
func (c *EntitlementCertificate) CertPEM() []byte       { return c.certPEM }
func (c *EntitlementCertificate) KeyPEM() []byte        { return c.keyPEM }
func (c *EntitlementCertificate) CreatedAt() time.Time  { return c.createdAt }

// SetID assigns the persistence identifier after the first save.
func (c *EntitlementCertificate) SetID(id string) {
	c.id = id
}
