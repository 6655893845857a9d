package pki

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"os"
	"sync"

	"github.com/wick-sh/wick/internal/shared/config"
)

// CertificateReader loads the CA certificate, CA private key, and any
// upstream CA certificates from disk once and memoizes them. The files do
// not change while the server runs, so every caller shares one parse.
type CertificateReader struct {
	cfg config.PKIConfig

	once     sync.Once
	loadErr  error
	caCert   *x509.Certificate
	caKey    *rsa.PrivateKey
	upstream []*x509.Certificate
}

// NewCertificateReader builds a reader over the configured CA material.
func NewCertificateReader(cfg config.PKIConfig) *CertificateReader {
	return &CertificateReader{cfg: cfg}
}

func (r *CertificateReader) load() {
	certPEM, err := os.ReadFile(r.cfg.CACert)
	if err != nil {
		r.loadErr = fmt.Errorf("failed to read CA certificate %s: %w", r.cfg.CACert, err)
		return
	}
	r.caCert, err = ReadCertificatePEM(certPEM)
	if err != nil {
		r.loadErr = fmt.Errorf("failed to parse CA certificate %s: %w", r.cfg.CACert, err)
		return
	}

	keyPEM, err := os.ReadFile(r.cfg.CAKey)
	if err != nil {
		r.loadErr = fmt.Errorf("failed to read CA key %s: %w", r.cfg.CAKey, err)
		return
	}
	var passphrase []byte
	if r.cfg.KeyPassword != "" {
		passphrase = []byte(r.cfg.KeyPassword)
	}
	r.caKey, err = ReadPrivateKeyPEM(keyPEM, passphrase)
	if err != nil {
		r.loadErr = fmt.Errorf("failed to read CA key %s: %w", r.cfg.CAKey, err)
		return
	}

	for _, path := range r.cfg.UpstreamCACerts {
		data, err := os.ReadFile(path)
		if err != nil {
			r.loadErr = fmt.Errorf("failed to read upstream CA certificate %s: %w", path, err)
			return
		}
		certs, err := ReadCertificatesPEM(data)
		if err != nil {
			r.loadErr = fmt.Errorf("failed to parse upstream CA certificate %s: %w", path, err)
			return
		}
		r.upstream = append(r.upstream, certs...)
	}
}

// CACert returns the parsed CA certificate.
func (r *CertificateReader) CACert() (*x509.Certificate, error) {
	r.once.Do(r.load)
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.caCert, nil
}

// CAKey returns the parsed CA private key, decrypted if necessary.
func (r *CertificateReader) CAKey() (*rsa.PrivateKey, error) {
	r.once.Do(r.load)
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.caKey, nil
}

// UpstreamCACerts returns any configured upstream CA certificates. Payloads
// signed upstream rather than by the local CA verify against these.
func (r *CertificateReader) UpstreamCACerts() ([]*x509.Certificate, error) {
	r.once.Do(r.load)
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.upstream, nil
}
