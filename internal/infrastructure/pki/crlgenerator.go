package pki

import (
	"context"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/wick-sh/wick/internal/domain/certificate"
	"github.com/wick-sh/wick/internal/shared/logger"
)

// CRLGenerator rolls the certificate revocation list forward: each run
// takes the previous CRL, drops serials whose certificates have expired,
// adds every newly revoked serial from the ledger, bumps the CRL number,
// and re-signs with the CA.
type CRLGenerator struct {
	reader   *CertificateReader
	serials  certificate.SerialRepository
	validity time.Duration
	log      logger.Interface
}

// NewCRLGenerator builds a generator over the serial ledger. validity is
// how long each issued CRL advertises itself as current.
func NewCRLGenerator(reader *CertificateReader, serials certificate.SerialRepository,
	validity time.Duration, log logger.Interface) *CRLGenerator {
	return &CRLGenerator{reader: reader, serials: serials, validity: validity, log: log}
}

// Generate produces the next CRL in PEM form together with the serials it
// publishes for the first time. prevPEM may be nil on first run, in which
// case the CRL number starts at one and all revoked serials in the ledger
// are published. The ledger is not touched; callers persist the CRL and
// then call Commit with the returned serials.
func (g *CRLGenerator) Generate(ctx context.Context, prevPEM []byte) ([]byte, []int64, error) {
	caCert, err := g.reader.CACert()
	if err != nil {
		return nil, nil, err
	}
	caKey, err := g.reader.CAKey()
	if err != nil {
		return nil, nil, err
	}

	prevNumber := big.NewInt(0)
	carried := make(map[int64]x509.RevocationListEntry)
	if len(prevPEM) > 0 {
		prev, err := parseCRLPEM(prevPEM)
		if err != nil {
			return nil, nil, err
		}
		if prev.Number != nil {
			prevNumber = prev.Number
		}
		for _, entry := range prev.RevokedCertificateEntries {
			carried[entry.SerialNumber.Int64()] = entry
		}
	}

	// Expired certificates no longer need their revocation advertised.
	expired, err := g.serials.ListExpired(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list expired serials: %w", err)
	}
	for _, s := range expired {
		delete(carried, s.Serial())
	}

	// Newly revoked serials the ledger has not published yet.
	fresh, err := g.serials.ListRevokedUncollected(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list uncollected serials: %w", err)
	}
	now := time.Now().UTC()
	collected := make([]int64, 0, len(fresh))
	for _, s := range fresh {
		if s.IsExpired(now) {
			continue
		}
		revokedAt := s.RevokedAt()
		if revokedAt.IsZero() {
			revokedAt = now
		}
		carried[s.Serial()] = x509.RevocationListEntry{
			SerialNumber:   big.NewInt(s.Serial()),
			RevocationTime: revokedAt,
		}
		collected = append(collected, s.Serial())
	}

	entries := make([]x509.RevocationListEntry, 0, len(carried))
	for _, entry := range carried {
		entries = append(entries, entry)
	}

	tmpl := &x509.RevocationList{
		Number:                    new(big.Int).Add(prevNumber, big.NewInt(1)),
		ThisUpdate:                now,
		NextUpdate:                now.Add(g.validity),
		RevokedCertificateEntries: entries,
		SignatureAlgorithm:        x509.SHA256WithRSA,
	}
	der, err := x509.CreateRevocationList(rand.Reader, tmpl, caCert, caKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign CRL: %w", err)
	}

	g.log.Infow("generated CRL",
		"number", tmpl.Number.Int64(),
		"entries", len(entries),
		"newly_collected", len(collected),
	)
	return EncodeCRLPEM(der), collected, nil
}

// Commit records that the given serials have been published in a durably
// written CRL and purges ledger rows whose certificates have since expired.
// Serials stay uncollected until this runs, so a failed write leaves them
// queued for the next CRL instead of silently dropped.
func (g *CRLGenerator) Commit(ctx context.Context, collected []int64) error {
	if len(collected) > 0 {
		if err := g.serials.MarkCollected(ctx, collected); err != nil {
			return fmt.Errorf("failed to mark serials collected: %w", err)
		}
	}
	purged, err := g.serials.PurgeCollectedExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge serial ledger: %w", err)
	}
	if purged > 0 {
		g.log.Infow("purged serial ledger", "purged", purged)
	}
	return nil
}

// UpdateFile rolls the CRL stored at path forward in place. A missing file
// starts a fresh CRL sequence. The new CRL is written to a temporary file
// and renamed over the old one before the serial ledger is committed.
func (g *CRLGenerator) UpdateFile(ctx context.Context, path string) error {
	prev, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read CRL file %s: %w", path, err)
		}
		prev = nil
	}
	next, collected, err := g.Generate(ctx, prev)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, next, 0o644); err != nil {
		return fmt.Errorf("failed to write CRL file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace CRL file %s: %w", path, err)
	}
	return g.Commit(ctx, collected)
}

func parseCRLPEM(data []byte) (*x509.RevocationList, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrNotPEM
	}
	crl, err := x509.ParseRevocationList(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CRL: %w", err)
	}
	return crl, nil
}
