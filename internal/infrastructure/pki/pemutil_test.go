package pki

import (
	"encoding/hex"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testdata keys were produced with the openssl CLI; every encrypted
// variant holds the same RSA key as plain.pem under passphrase secret123.
const testPassphrase = "secret123"

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

// fixtureModulus is the key's modulus as printed by "openssl rsa -modulus".
func fixtureModulus(t *testing.T) string {
	t.Helper()
	line := strings.TrimSpace(string(fixture(t, "modulus.txt")))
	return strings.TrimPrefix(line, "Modulus=")
}

func TestReadPrivateKeyPEMPlain(t *testing.T) {
	key, err := ReadPrivateKeyPEM(fixture(t, "plain.pem"), nil)
	require.NoError(t, err)

	modulus := strings.ToUpper(hex.EncodeToString(key.N.Bytes()))
	assert.Equal(t, fixtureModulus(t), modulus)
	assert.NoError(t, key.Validate())
}

func TestReadPrivateKeyPEMEncrypted(t *testing.T) {
	want := fixtureModulus(t)
	for _, name := range []string{"des3.pem", "aes128.pem", "aes192.pem", "aes256.pem"} {
		t.Run(name, func(t *testing.T) {
			key, err := ReadPrivateKeyPEM(fixture(t, name), []byte(testPassphrase))
			require.NoError(t, err)
			assert.Equal(t, want, strings.ToUpper(hex.EncodeToString(key.N.Bytes())))
		})
	}
}

func TestReadPrivateKeyPEMNoPassphrase(t *testing.T) {
	_, err := ReadPrivateKeyPEM(fixture(t, "aes256.pem"), nil)
	assert.ErrorIs(t, err, ErrPassphraseRequired)
}

func TestReadPrivateKeyPEMWrongPassphrase(t *testing.T) {
	_, err := ReadPrivateKeyPEM(fixture(t, "aes256.pem"), []byte("wrong"))
	assert.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestReadPrivateKeyPEMNotPEM(t *testing.T) {
	_, err := ReadPrivateKeyPEM([]byte("garbage"), nil)
	assert.ErrorIs(t, err, ErrNotPEM)
}

func TestReadPrivateKeyPEMMultiPrime(t *testing.T) {
	// A minimal RSAPrivateKey with version one, the multi-prime marker.
	der := []byte{0x30, 0x03, 0x02, 0x01, 0x01}
	data := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})
	_, err := ReadPrivateKeyPEM(data, nil)
	assert.ErrorIs(t, err, ErrMultiPrimeKey)
}

func TestWritePrivateKeyPEMPlain(t *testing.T) {
	key, err := ReadPrivateKeyPEM(fixture(t, "plain.pem"), nil)
	require.NoError(t, err)

	out, err := WritePrivateKeyPEM(key, nil, "")
	require.NoError(t, err)
	assert.Contains(t, string(out), "BEGIN RSA PRIVATE KEY")
	assert.NotContains(t, string(out), "DEK-Info")

	again, err := ReadPrivateKeyPEM(out, nil)
	require.NoError(t, err)
	assert.Equal(t, key.N, again.N)
}

func TestWritePrivateKeyPEMEncrypted(t *testing.T) {
	key, err := ReadPrivateKeyPEM(fixture(t, "plain.pem"), nil)
	require.NoError(t, err)

	for _, c := range []PEMCipher{CipherDES3, CipherAES128, CipherAES192, CipherAES256} {
		t.Run(string(c), func(t *testing.T) {
			out, err := WritePrivateKeyPEM(key, []byte(testPassphrase), c)
			require.NoError(t, err)
			assert.Contains(t, string(out), "Proc-Type: 4,ENCRYPTED")
			assert.Contains(t, string(out), "DEK-Info: "+string(c))

			again, err := ReadPrivateKeyPEM(out, []byte(testPassphrase))
			require.NoError(t, err)
			assert.Equal(t, key.N, again.N)

			_, err = ReadPrivateKeyPEM(out, []byte("wrong"))
			assert.ErrorIs(t, err, ErrWrongPassphrase)
		})
	}
}

func TestWritePrivateKeyPEMUnknownCipher(t *testing.T) {
	key, err := ReadPrivateKeyPEM(fixture(t, "plain.pem"), nil)
	require.NoError(t, err)

	_, err = WritePrivateKeyPEM(key, []byte(testPassphrase), "RC4")
	assert.Error(t, err)
}

func TestOpensslKDF(t *testing.T) {
	// EVP_BytesToKey with MD5, one round: first block is
	// MD5(pass || salt), continuation blocks chain the previous digest.
	salt := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	k16 := opensslKDF([]byte("pass"), salt, 16)
	k32 := opensslKDF([]byte("pass"), salt, 32)
	assert.Len(t, k16, 16)
	assert.Len(t, k32, 32)
	assert.Equal(t, k16, k32[:16])
	assert.NotEqual(t, k32[:16], k32[16:])
}

func TestReadCertificatePEM(t *testing.T) {
	cert, err := ReadCertificatePEM(fixture(t, "ca.pem"))
	require.NoError(t, err)
	assert.Equal(t, "Wick CA", cert.Subject.CommonName)
	assert.True(t, cert.IsCA)

	_, err = ReadCertificatePEM([]byte("nope"))
	assert.ErrorIs(t, err, ErrNotPEM)
}
