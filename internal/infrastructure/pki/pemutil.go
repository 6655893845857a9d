// Package pki issues and verifies X.509 certificates, reads CA material in
// the legacy OpenSSL PEM formats, and generates certificate revocation
// lists. Everything here is deliberately bit-compatible with what the
// openssl CLI produces and consumes.
package pki

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

const (
	pemTypeRSAPrivateKey = "RSA PRIVATE KEY"
	pemTypeCertificate   = "CERTIFICATE"
	pemTypeCRL           = "X509 CRL"
)

// PEMCipher names an OpenSSL legacy PEM encryption algorithm.
type PEMCipher string

const (
	CipherDES3   PEMCipher = "DES-EDE3-CBC"
	CipherAES128 PEMCipher = "AES-128-CBC"
	CipherAES192 PEMCipher = "AES-192-CBC"
	CipherAES256 PEMCipher = "AES-256-CBC"
)

var (
	// ErrNotPEM indicates the input held no usable PEM block.
	ErrNotPEM = errors.New("no PEM block found")

	// ErrPassphraseRequired indicates an encrypted key was read without a
	// passphrase.
	ErrPassphraseRequired = errors.New("private key is encrypted and no passphrase was given")

	// ErrWrongPassphrase indicates decryption produced garbage, which with
	// CBC padding almost always means a bad passphrase.
	ErrWrongPassphrase = errors.New("could not decrypt private key, likely wrong passphrase")

	// ErrMultiPrimeKey indicates a multi-prime RSA key, which the
	// traditional nine-field PKCS#1 layout does not cover.
	ErrMultiPrimeKey = errors.New("multi-prime RSA keys are not supported")
)

func cipherParams(c PEMCipher) (keyLen int, newBlock func(key []byte) (cipher.Block, error), err error) {
	switch c {
	case CipherDES3:
		return 24, des.NewTripleDESCipher, nil
	case CipherAES128:
		return 16, aes.NewCipher, nil
	case CipherAES192:
		return 24, aes.NewCipher, nil
	case CipherAES256:
		return 32, aes.NewCipher, nil
	default:
		return 0, nil, fmt.Errorf("unsupported PEM cipher %q", c)
	}
}

// opensslKDF derives a cipher key from a passphrase and the first eight IV
// bytes the way EVP_BytesToKey does with MD5 and one iteration: repeated
// D_i = MD5(D_{i-1} || passphrase || salt) until enough key material exists.
func opensslKDF(passphrase, salt []byte, keyLen int) []byte {
	var key []byte
	var prev []byte
	for len(key) < keyLen {
		h := md5.New()
		h.Write(prev)
		h.Write(passphrase)
		h.Write(salt)
		prev = h.Sum(nil)
		key = append(key, prev...)
	}
	return key[:keyLen]
}

func parsePKCS1(der []byte) (*rsa.PrivateKey, error) {
	// Peek at the version field: the traditional nine-field layout is
	// version zero, multi-prime keys use version one.
	var seq asn1.RawValue
	if _, err := asn1.Unmarshal(der, &seq); err == nil {
		var version int
		if _, err := asn1.Unmarshal(seq.Bytes, &version); err == nil && version != 0 {
			return nil, ErrMultiPrimeKey
		}
	}
	key, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PKCS#1 private key: %w", err)
	}
	return key, nil
}

// ReadPrivateKeyPEM parses an RSA private key in the traditional PKCS#1 PEM
// format, decrypting the legacy OpenSSL encrypted variant when the block
// carries Proc-Type/DEK-Info headers. passphrase may be nil for plain keys.
func ReadPrivateKeyPEM(data, passphrase []byte) (*rsa.PrivateKey, error) {
	var block *pem.Block
	rest := data
	for {
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, ErrNotPEM
		}
		if block.Type == pemTypeRSAPrivateKey {
			break
		}
	}

	der := block.Bytes
	if procType, ok := block.Headers["Proc-Type"]; ok && strings.Contains(procType, "ENCRYPTED") {
		if len(passphrase) == 0 {
			return nil, ErrPassphraseRequired
		}
		decrypted, err := decryptPEMBlock(block, passphrase)
		if err != nil {
			return nil, err
		}
		der = decrypted
	}
	return parsePKCS1(der)
}

func decryptPEMBlock(block *pem.Block, passphrase []byte) ([]byte, error) {
	dekInfo, ok := block.Headers["DEK-Info"]
	if !ok {
		return nil, errors.New("encrypted PEM block has no DEK-Info header")
	}
	algo, ivHex, found := strings.Cut(dekInfo, ",")
	if !found {
		return nil, fmt.Errorf("malformed DEK-Info header %q", dekInfo)
	}
	iv, err := hex.DecodeString(strings.TrimSpace(ivHex))
	if err != nil {
		return nil, fmt.Errorf("malformed DEK-Info IV: %w", err)
	}

	keyLen, newBlock, err := cipherParams(PEMCipher(strings.TrimSpace(algo)))
	if err != nil {
		return nil, err
	}
	if len(iv) < 8 {
		return nil, fmt.Errorf("DEK-Info IV too short: %d bytes", len(iv))
	}
	// OpenSSL salts the KDF with the first eight IV bytes.
	key := opensslKDF(passphrase, iv[:8], keyLen)

	c, err := newBlock(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != c.BlockSize() {
		return nil, fmt.Errorf("DEK-Info IV length %d does not match cipher block size %d", len(iv), c.BlockSize())
	}
	if len(block.Bytes) == 0 || len(block.Bytes)%c.BlockSize() != 0 {
		return nil, errors.New("encrypted PEM data is not a whole number of blocks")
	}

	plain := make([]byte, len(block.Bytes))
	cipher.NewCBCDecrypter(c, iv).CryptBlocks(plain, block.Bytes)

	return stripPKCS7Padding(plain, c.BlockSize())
}

func stripPKCS7Padding(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrWrongPassphrase
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrWrongPassphrase
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrWrongPassphrase
		}
	}
	return data[:len(data)-n], nil
}

// WritePrivateKeyPEM encodes an RSA key in the traditional PKCS#1 PEM
// format. With a nil passphrase the key is written in the clear; otherwise
// it is encrypted with the given cipher under a fresh random IV, matching
// what "openssl rsa -aes256" and friends emit.
func WritePrivateKeyPEM(key *rsa.PrivateKey, passphrase []byte, c PEMCipher) ([]byte, error) {
	der := x509.MarshalPKCS1PrivateKey(key)
	if len(passphrase) == 0 {
		return pem.EncodeToMemory(&pem.Block{Type: pemTypeRSAPrivateKey, Bytes: der}), nil
	}

	keyLen, newBlock, err := cipherParams(c)
	if err != nil {
		return nil, err
	}
	probe, err := newBlock(make([]byte, keyLen))
	if err != nil {
		return nil, err
	}
	iv := make([]byte, probe.BlockSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	enc, err := newBlock(opensslKDF(passphrase, iv[:8], keyLen))
	if err != nil {
		return nil, err
	}

	padded := padPKCS7(der, enc.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(enc, iv).CryptBlocks(out, padded)

	return pem.EncodeToMemory(&pem.Block{
		Type: pemTypeRSAPrivateKey,
		Headers: map[string]string{
			"Proc-Type": "4,ENCRYPTED",
			"DEK-Info":  fmt.Sprintf("%s,%s", c, strings.ToUpper(hex.EncodeToString(iv))),
		},
		Bytes: out,
	}), nil
}

func padPKCS7(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

// ReadCertificatePEM parses the first certificate block in data.
func ReadCertificatePEM(data []byte) (*x509.Certificate, error) {
	var block *pem.Block
	rest := data
	for {
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, ErrNotPEM
		}
		if block.Type == pemTypeCertificate {
			break
		}
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}

// ReadCertificatesPEM parses every certificate block in data.
func ReadCertificatesPEM(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != pemTypeCertificate {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, ErrNotPEM
	}
	return certs, nil
}

// EncodeCertificatePEM renders a DER certificate as PEM.
func EncodeCertificatePEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: pemTypeCertificate, Bytes: der})
}

// EncodeCRLPEM renders a DER CRL as PEM.
func EncodeCRLPEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: pemTypeCRL, Bytes: der})
}
