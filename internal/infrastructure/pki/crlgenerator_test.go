package pki

import (
	"context"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wick-sh/wick/internal/domain/certificate"
	"github.com/wick-sh/wick/internal/shared/logger"
)

type memorySerialRepo struct {
	serials map[int64]*certificate.CertificateSerial
}

func newMemorySerialRepo() *memorySerialRepo {
	return &memorySerialRepo{serials: make(map[int64]*certificate.CertificateSerial)}
}

func (r *memorySerialRepo) Create(_ context.Context, s *certificate.CertificateSerial) error {
	r.serials[s.Serial()] = s
	return nil
}

func (r *memorySerialRepo) FindBySerial(_ context.Context, serial int64) (*certificate.CertificateSerial, error) {
	s, ok := r.serials[serial]
	if !ok {
		return nil, certificate.ErrSerialNotFound
	}
	return s, nil
}

func (r *memorySerialRepo) Update(_ context.Context, s *certificate.CertificateSerial) error {
	r.serials[s.Serial()] = s
	return nil
}

func (r *memorySerialRepo) ListRevoked(_ context.Context) ([]*certificate.CertificateSerial, error) {
	var out []*certificate.CertificateSerial
	for _, s := range r.serials {
		if s.IsRevoked() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memorySerialRepo) ListRevokedUncollected(_ context.Context) ([]*certificate.CertificateSerial, error) {
	var out []*certificate.CertificateSerial
	for _, s := range r.serials {
		if s.IsRevoked() && !s.IsCollected() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memorySerialRepo) ListExpired(_ context.Context) ([]*certificate.CertificateSerial, error) {
	var out []*certificate.CertificateSerial
	now := time.Now()
	for _, s := range r.serials {
		if s.IsExpired(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memorySerialRepo) MarkCollected(_ context.Context, serials []int64) error {
	for _, n := range serials {
		if s, ok := r.serials[n]; ok {
			if err := s.MarkCollected(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *memorySerialRepo) PurgeCollectedExpired(_ context.Context) (int64, error) {
	var purged int64
	now := time.Now()
	for n, s := range r.serials {
		if s.CanPurge(now) {
			delete(r.serials, n)
			purged++
		}
	}
	return purged, nil
}

func addSerial(t *testing.T, repo *memorySerialRepo, serial int64, expiration time.Time, revoked bool) {
	t.Helper()
	s, err := certificate.ReconstructSerial(serial, expiration, revoked, false,
		time.Now().Add(-time.Hour), time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	repo.serials[serial] = s
}

func crlSerials(t *testing.T, pemData []byte) []int64 {
	t.Helper()
	crl, err := parseCRLPEM(pemData)
	require.NoError(t, err)
	var out []int64
	for _, e := range crl.RevokedCertificateEntries {
		out = append(out, e.SerialNumber.Int64())
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestCRLGeneratorFirstRun(t *testing.T) {
	repo := newMemorySerialRepo()
	future := time.Now().AddDate(1, 0, 0)
	addSerial(t, repo, 100, future, true)
	addSerial(t, repo, 101, future, false)

	g := NewCRLGenerator(testReader(t, false), repo, 4*time.Hour, logger.NewLogger())
	out, collected, err := g.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, collected)

	crl, err := parseCRLPEM(out)
	require.NoError(t, err)
	assert.Equal(t, int64(1), crl.Number.Int64())
	assert.Equal(t, []int64{100}, crlSerials(t, out))
	assert.WithinDuration(t, time.Now().Add(4*time.Hour), crl.NextUpdate, time.Minute)

	caCert, err := testReader(t, false).CACert()
	require.NoError(t, err)
	assert.NoError(t, crl.CheckSignatureFrom(caCert))

	// The serial stays uncollected until the caller commits.
	s, err := repo.FindBySerial(context.Background(), 100)
	require.NoError(t, err)
	assert.False(t, s.IsCollected())

	require.NoError(t, g.Commit(context.Background(), collected))
	s, err = repo.FindBySerial(context.Background(), 100)
	require.NoError(t, err)
	assert.True(t, s.IsCollected())
}

func TestCRLNumberMonotonic(t *testing.T) {
	repo := newMemorySerialRepo()
	g := NewCRLGenerator(testReader(t, false), repo, 4*time.Hour, logger.NewLogger())

	ctx := context.Background()
	first, _, err := g.Generate(ctx, nil)
	require.NoError(t, err)

	second, _, err := g.Generate(ctx, first)
	require.NoError(t, err)
	third, _, err := g.Generate(ctx, second)
	require.NoError(t, err)

	for i, pemData := range [][]byte{first, second, third} {
		crl, err := parseCRLPEM(pemData)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), crl.Number.Int64())
	}
}

func TestCRLCarriesAndDropsEntries(t *testing.T) {
	repo := newMemorySerialRepo()
	future := time.Now().AddDate(1, 0, 0)
	addSerial(t, repo, 200, future, true)

	g := NewCRLGenerator(testReader(t, false), repo, 4*time.Hour, logger.NewLogger())
	ctx := context.Background()

	first, collected, err := g.Generate(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{200}, crlSerials(t, first))
	require.NoError(t, g.Commit(ctx, collected))

	// A serial revoked between runs joins the carried entry.
	addSerial(t, repo, 201, future, true)
	second, collected, err := g.Generate(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, []int64{200, 201}, crlSerials(t, second))
	require.NoError(t, g.Commit(ctx, collected))

	// Once 200's certificate expires it falls off the list and, being
	// collected, gets purged from the ledger.
	expired, err := certificate.ReconstructSerial(200, time.Now().Add(-time.Minute),
		true, true, time.Now().Add(-time.Hour), time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	repo.serials[200] = expired

	third, collected, err := g.Generate(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, []int64{201}, crlSerials(t, third))
	require.NoError(t, g.Commit(ctx, collected))

	_, err = repo.FindBySerial(ctx, 200)
	assert.ErrorIs(t, err, certificate.ErrSerialNotFound)
}

func TestCRLSkipsExpiredUncollected(t *testing.T) {
	repo := newMemorySerialRepo()
	// Revoked but already expired: never worth publishing.
	addSerial(t, repo, 300, time.Now().Add(-time.Minute), true)

	g := NewCRLGenerator(testReader(t, false), repo, 4*time.Hour, logger.NewLogger())
	out, collected, err := g.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, crlSerials(t, out))
	assert.Empty(t, collected)
}

func TestCRLUpdateFile(t *testing.T) {
	repo := newMemorySerialRepo()
	addSerial(t, repo, 400, time.Now().AddDate(1, 0, 0), true)

	g := NewCRLGenerator(testReader(t, false), repo, 4*time.Hour, logger.NewLogger())
	path := t.TempDir() + "/wick.crl"
	ctx := context.Background()

	require.NoError(t, g.UpdateFile(ctx, path))
	require.NoError(t, g.UpdateFile(ctx, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	crl, err := parseCRLPEM(data)
	require.NoError(t, err)
	assert.Equal(t, int64(2), crl.Number.Int64())
	assert.Equal(t, []int64{400}, crlSerials(t, data))

	s, err := repo.FindBySerial(ctx, 400)
	require.NoError(t, err)
	assert.True(t, s.IsCollected())
}

func TestCRLUpdateFileFailureKeepsSerialsQueued(t *testing.T) {
	repo := newMemorySerialRepo()
	addSerial(t, repo, 500, time.Now().AddDate(1, 0, 0), true)

	g := NewCRLGenerator(testReader(t, false), repo, 4*time.Hour, logger.NewLogger())
	ctx := context.Background()

	// A write to a directory that does not exist fails after generation;
	// the serial must remain uncollected.
	badPath := t.TempDir() + "/missing/wick.crl"
	require.Error(t, g.UpdateFile(ctx, badPath))

	s, err := repo.FindBySerial(ctx, 500)
	require.NoError(t, err)
	assert.False(t, s.IsCollected())

	// The next successful run still publishes it.
	path := t.TempDir() + "/wick.crl"
	require.NoError(t, g.UpdateFile(ctx, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []int64{500}, crlSerials(t, data))

	s, err = repo.FindBySerial(ctx, 500)
	require.NoError(t, err)
	assert.True(t, s.IsCollected())
}
