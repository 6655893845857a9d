// Package certificate issues, revokes, and regenerates entitlement
// certificates, keeping the serial ledger in step with every operation.
package certificate

import (
	"context"
	"fmt"

	"github.com/wick-sh/wick/internal/domain/certificate"
	"github.com/wick-sh/wick/internal/domain/consumer"
	"github.com/wick-sh/wick/internal/domain/entitlement"
	"github.com/wick-sh/wick/internal/domain/pool"
	"github.com/wick-sh/wick/internal/infrastructure/pki"
	"github.com/wick-sh/wick/internal/shared/logger"
)

// Red Hat content namespace OIDs carried as certificate extensions, keyed
// off the entitled product.
const (
	oidProductName = "1.3.6.1.4.1.2312.9.4.1"
	oidOrderNumber = "1.3.6.1.4.1.2312.9.4.2"
	oidQuantity    = "1.3.6.1.4.1.2312.9.4.11"
	oidProductIDs  = "1.3.6.1.4.1.2312.9.4.13"
)

// ServiceImpl mints X.509 certificates for entitlements and maintains the
// serial ledger.
type ServiceImpl struct {
	pki        *pki.PKI
	serialRepo certificate.SerialRepository
	certRepo   certificate.EntitlementCertRepository
	logger     logger.Interface
}

// NewService creates a new entitlement certificate service
func NewService(
	p *pki.PKI,
	serialRepo certificate.SerialRepository,
	certRepo certificate.EntitlementCertRepository,
	logger logger.Interface,
) *ServiceImpl {
	return &ServiceImpl{
		pki:        p,
		serialRepo: serialRepo,
		certRepo:   certRepo,
		logger:     logger,
	}
}

// GenerateForEntitlement issues a fresh certificate for an entitlement.
// The subject CN is the entitlement ID; the consumer UUID rides in the SAN
// so clients can present the certificate for identity as well.
func (s *ServiceImpl) GenerateForEntitlement(ctx context.Context, c *consumer.Consumer,
	p *pool.Pool, e *entitlement.Entitlement) (*certificate.EntitlementCertificate, error) {

	serial, err := certificate.NewCertificateSerial(e.EndDate())
	if err != nil {
		return nil, err
	}
	if err := s.serialRepo.Create(ctx, serial); err != nil {
		return nil, err
	}

	holderKey, err := s.pki.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	extensions := []pki.ExtensionWrapper{
		{OID: oidProductName, Value: p.ProductName()},
		{OID: oidOrderNumber, Value: e.ContractNumber()},
		{OID: oidQuantity, Value: fmt.Sprintf("%d", e.Quantity())},
	}
	var productIDs []byte
	for _, pid := range p.ProductIDs() {
		if len(productIDs) > 0 {
			productIDs = append(productIDs, ',')
		}
		productIDs = append(productIDs, pid...)
	}
	byteExtensions := []pki.ByteExtensionWrapper{
		{OID: oidProductIDs, Value: productIDs},
	}

	dn := fmt.Sprintf("CN=%s, O=%s", e.ID(), c.OwnerKey())
	_, der, err := s.pki.CreateX509Certificate(dn, serial.Serial(),
		e.StartDate(), e.EndDate(), holderKey, c.UUID(), extensions, byteExtensions)
	if err != nil {
		return nil, err
	}

	keyPEM, err := pki.WritePrivateKeyPEM(holderKey, nil, "")
	if err != nil {
		return nil, err
	}

	cert, err := certificate.NewEntitlementCertificate(e.ID(), serial.Serial(),
		pki.EncodeCertificatePEM(der), keyPEM)
	if err != nil {
		return nil, err
	}
	if err := s.certRepo.Create(ctx, cert); err != nil {
		return nil, err
	}

	s.logger.Infow("entitlement certificate issued",
		"entitlement_id", e.ID(),
		"consumer_id", c.ID(),
		"serial", serial.Serial())
	return cert, nil
}

// RevokeForEntitlement revokes every certificate issued for an entitlement
// and removes the stored blobs. The ledger rows stay behind for the CRL.
func (s *ServiceImpl) RevokeForEntitlement(ctx context.Context, entitlementID string) error {
	certs, err := s.certRepo.FindByEntitlement(ctx, entitlementID)
	if err != nil {
		return err
	}
	for _, cert := range certs {
		serial, err := s.serialRepo.FindBySerial(ctx, cert.Serial())
		if err != nil {
			return err
		}
		serial.Revoke()
		if err := s.serialRepo.Update(ctx, serial); err != nil {
			return err
		}
	}
	if err := s.certRepo.DeleteByEntitlement(ctx, entitlementID); err != nil {
		return err
	}

	if len(certs) > 0 {
		s.logger.Infow("entitlement certificates revoked",
			"entitlement_id", entitlementID,
			"count", len(certs))
	}
	return nil
}

// RegenerateForEntitlement revokes existing certificates and issues a new
// one under a fresh serial.
func (s *ServiceImpl) RegenerateForEntitlement(ctx context.Context, c *consumer.Consumer,
	p *pool.Pool, e *entitlement.Entitlement) error {

	if err := s.RevokeForEntitlement(ctx, e.ID()); err != nil {
		return err
	}
	_, err := s.GenerateForEntitlement(ctx, c, p, e)
	return err
}
