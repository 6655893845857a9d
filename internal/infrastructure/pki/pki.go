package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// RSAKeyBits is the key size for generated consumer and entitlement keys.
const RSAKeyBits = 2048

// oidNetscapeCertType is the legacy Netscape certificate type extension.
var oidNetscapeCertType = asn1.ObjectIdentifier{2, 16, 840, 1, 113730, 1, 1}

// Netscape cert type bits, MSB first.
const (
	netscapeCertTypeSSLClient = 0x80
	netscapeCertTypeSMIME     = 0x20
)

// ExtensionWrapper is a caller-supplied X.509 extension whose value is
// wrapped as an ASN.1 UTF8String.
type ExtensionWrapper struct {
	OID      string
	Critical bool
	Value    string
}

// ByteExtensionWrapper is a caller-supplied X.509 extension whose value is
// wrapped as an ASN.1 OCTET STRING.
type ByteExtensionWrapper struct {
	OID      string
	Critical bool
	Value    []byte
}

// PKI issues certificates and signs payloads with the configured CA.
type PKI struct {
	reader *CertificateReader
}

// New builds the PKI utility over a certificate reader.
func New(reader *CertificateReader) *PKI {
	return &PKI{reader: reader}
}

// GenerateKeyPair creates a fresh RSA key for a certificate holder.
func (p *PKI) GenerateKeyPair() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, RSAKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	return key, nil
}

// CreateX509Certificate issues a client certificate signed by the CA. The
// subject DN is given in OpenSSL "CN=x, O=y" form; altName, when set, is
// added to the SAN alongside the subject CN.
func (p *PKI) CreateX509Certificate(dn string, serial int64, startDate, endDate time.Time,
	holderKey *rsa.PrivateKey, altName string,
	extensions []ExtensionWrapper, byteExtensions []ByteExtensionWrapper) (*x509.Certificate, []byte, error) {

	caCert, err := p.reader.CACert()
	if err != nil {
		return nil, nil, err
	}
	caKey, err := p.reader.CAKey()
	if err != nil {
		return nil, nil, err
	}
	subject, err := ParseDN(dn)
	if err != nil {
		return nil, nil, err
	}

	extra, err := buildExtraExtensions(extensions, byteExtensions)
	if err != nil {
		return nil, nil, err
	}
	netscape, err := netscapeCertTypeExtension(netscapeCertTypeSSLClient | netscapeCertTypeSMIME)
	if err != nil {
		return nil, nil, err
	}
	extra = append(extra, netscape)

	ski, err := subjectKeyIdentifier(&holderKey.PublicKey)
	if err != nil {
		return nil, nil, err
	}

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(serial),
		Subject:               subject,
		NotBefore:             startDate,
		NotAfter:              endDate,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageDataEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  false,
		SubjectKeyId:          ski,
		SignatureAlgorithm:    x509.SHA256WithRSA,
		ExtraExtensions:       extra,
	}
	if altName != "" {
		// An altName implies a SAN; the subject CN rides along so name
		// verifiers that only look at the SAN still match it.
		tmpl.DNSNames = []string{subject.CommonName, altName}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, caCert, &holderKey.PublicKey, caKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to re-parse issued certificate: %w", err)
	}
	return cert, der, nil
}

// SignSHA256 signs a payload with the CA key using SHA256-RSA.
func (p *PKI) SignSHA256(payload []byte) ([]byte, error) {
	caKey, err := p.reader.CAKey()
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, caKey, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}
	return sig, nil
}

// VerifySHA256Signature checks a payload signature against the local CA
// certificate first and falls back to the configured upstream CA
// certificates, so payloads signed by the upstream hierarchy still verify.
func (p *PKI) VerifySHA256Signature(payload, signature []byte) (bool, error) {
	caCert, err := p.reader.CACert()
	if err != nil {
		return false, err
	}
	digest := sha256.Sum256(payload)

	candidates := []*x509.Certificate{caCert}
	upstream, err := p.reader.UpstreamCACerts()
	if err != nil {
		return false, err
	}
	candidates = append(candidates, upstream...)

	for _, cert := range candidates {
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			continue
		}
		if rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature) == nil {
			return true, nil
		}
	}
	return false, nil
}

func buildExtraExtensions(extensions []ExtensionWrapper, byteExtensions []ByteExtensionWrapper) ([]pkix.Extension, error) {
	out := make([]pkix.Extension, 0, len(extensions)+len(byteExtensions)+1)
	for _, e := range extensions {
		oid, err := parseOID(e.OID)
		if err != nil {
			return nil, err
		}
		value, err := asn1.MarshalWithParams(e.Value, "utf8")
		if err != nil {
			return nil, fmt.Errorf("failed to encode extension %s: %w", e.OID, err)
		}
		out = append(out, pkix.Extension{Id: oid, Critical: e.Critical, Value: value})
	}
	for _, e := range byteExtensions {
		oid, err := parseOID(e.OID)
		if err != nil {
			return nil, err
		}
		value, err := asn1.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode extension %s: %w", e.OID, err)
		}
		out = append(out, pkix.Extension{Id: oid, Critical: e.Critical, Value: value})
	}
	return out, nil
}

func netscapeCertTypeExtension(bits byte) (pkix.Extension, error) {
	bitLength := 8
	for bitLength > 0 && bits&(1<<(8-bitLength)) == 0 {
		bitLength--
	}
	value, err := asn1.Marshal(asn1.BitString{Bytes: []byte{bits}, BitLength: bitLength})
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("failed to encode Netscape cert type: %w", err)
	}
	return pkix.Extension{Id: oidNetscapeCertType, Value: value}, nil
}

// subjectKeyIdentifier is the SHA-1 digest of the subjectPublicKey BIT
// STRING contents, per RFC 5280 method one.
func subjectKeyIdentifier(pub *rsa.PublicKey) ([]byte, error) {
	spki, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	var wrapper struct {
		Algorithm pkix.AlgorithmIdentifier
		BitString asn1.BitString
	}
	if _, err := asn1.Unmarshal(spki, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to unwrap public key: %w", err)
	}
	sum := sha1.Sum(wrapper.BitString.Bytes)
	return sum[:], nil
}

func parseOID(s string) (asn1.ObjectIdentifier, error) {
	parts := strings.Split(s, ".")
	oid := make(asn1.ObjectIdentifier, 0, len(parts))
	for _, part := range parts {
		var n int
		if _, err := fmt.Sscanf(part, "%d", &n); err != nil {
			return nil, fmt.Errorf("malformed OID %q", s)
		}
		oid = append(oid, n)
	}
	if len(oid) < 2 {
		return nil, fmt.Errorf("malformed OID %q", s)
	}
	return oid, nil
}

// ParseDN parses an OpenSSL-style distinguished name such as
// "CN=host, O=Acme, OU=Ops" into a pkix.Name.
func ParseDN(dn string) (pkix.Name, error) {
	var name pkix.Name
	if strings.TrimSpace(dn) == "" {
		return name, errors.New("empty distinguished name")
	}
	for _, part := range strings.Split(dn, ",") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			return name, fmt.Errorf("malformed DN component %q", part)
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "CN":
			name.CommonName = value
		case "O":
			name.Organization = append(name.Organization, value)
		case "OU":
			name.OrganizationalUnit = append(name.OrganizationalUnit, value)
		case "C":
			name.Country = append(name.Country, value)
		case "L":
			name.Locality = append(name.Locality, value)
		case "ST":
			name.Province = append(name.Province, value)
		default:
			return name, fmt.Errorf("unsupported DN component %q", key)
		}
	}
	return name, nil
}
