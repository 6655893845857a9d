package certificate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCertificateSerial(t *testing.T) {
	exp := time.Now().AddDate(1, 0, 0)
	s, err := NewCertificateSerial(exp)
	require.NoError(t, err)

	assert.Positive(t, s.Serial())
	assert.False(t, s.IsRevoked())
	assert.False(t, s.IsCollected())

	s2, err := NewCertificateSerial(exp)
	require.NoError(t, err)
	assert.NotEqual(t, s.Serial(), s2.Serial())
}

func TestSerialLifecycle(t *testing.T) {
	exp := time.Now().AddDate(1, 0, 0)
	s, err := NewCertificateSerial(exp)
	require.NoError(t, err)

	// Collecting before revoking is a state error.
	assert.Error(t, s.MarkCollected())

	s.Revoke()
	assert.True(t, s.IsRevoked())
	firstRevokedAt := s.RevokedAt()

	// Revoking again keeps the original timestamp.
	s.Revoke()
	assert.Equal(t, firstRevokedAt, s.RevokedAt())

	require.NoError(t, s.MarkCollected())
	assert.True(t, s.IsCollected())
}

func TestSerialPurge(t *testing.T) {
	now := time.Now()
	s, err := NewCertificateSerial(now.AddDate(1, 0, 0))
	require.NoError(t, err)

	assert.False(t, s.CanPurge(now))

	s.Revoke()
	require.NoError(t, s.MarkCollected())
	// Still within validity: the serial must stay on future CRLs.
	assert.False(t, s.CanPurge(now))
	// Past expiration it can go.
	assert.True(t, s.CanPurge(now.AddDate(1, 0, 1)))
}

func TestReconstructSerial(t *testing.T) {
	now := time.Now().UTC()
	s, err := ReconstructSerial(42, now.AddDate(1, 0, 0), true, false, now, now)
	require.NoError(t, err)
	assert.Equal(t, int64(42), s.Serial())
	assert.True(t, s.IsRevoked())

	_, err = ReconstructSerial(0, now, false, false, time.Time{}, now)
	assert.Error(t, err)
}

func TestNewEntitlementCertificate(t *testing.T) {
	c, err := NewEntitlementCertificate("ent_a", 42, []byte("CERT"), []byte("KEY"))
	require.NoError(t, err)
	assert.Equal(t, "ent_a", c.EntitlementID())
	assert.Equal(t, int64(42), c.Serial())

	_, err = NewEntitlementCertificate("", 42, []byte("CERT"), nil)
	assert.Error(t, err)

	_, err = NewEntitlementCertificate("ent_a", 0, []byte("CERT"), nil)
	assert.Error(t, err)

	_, err = NewEntitlementCertificate("ent_a", 42, nil, nil)
	assert.Error(t, err)
}
