package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEntitlement(t *testing.T) *Entitlement {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e, err := NewEntitlement("pool_a", "cons_b", "acme", 2, start, start.AddDate(1, 0, 0))
	require.NoError(t, err)
	return e
}

func TestNewEntitlement(t *testing.T) {
	e := newTestEntitlement(t)

	assert.NotEmpty(t, e.ID())
	assert.Equal(t, "pool_a", e.PoolID())
	assert.Equal(t, "cons_b", e.ConsumerID())
	assert.Equal(t, "acme", e.OwnerKey())
	assert.Equal(t, int64(2), e.Quantity())
	assert.False(t, e.IsFree())
}

func TestNewEntitlementValidation(t *testing.T) {
	start := time.Now()
	end := start.AddDate(1, 0, 0)

	_, err := NewEntitlement("", "cons_b", "acme", 1, start, end)
	assert.Error(t, err)

	_, err = NewEntitlement("pool_a", "", "acme", 1, start, end)
	assert.Error(t, err)

	_, err = NewEntitlement("pool_a", "cons_b", "acme", 0, start, end)
	assert.Error(t, err)
}

func TestEntitlementValidity(t *testing.T) {
	e := newTestEntitlement(t)

	assert.True(t, e.IsValidAt(e.StartDate()))
	assert.True(t, e.IsValidAt(e.EndDate()))
	assert.False(t, e.IsValidAt(e.StartDate().Add(-time.Second)))
	assert.False(t, e.IsValidAt(e.EndDate().Add(time.Second)))
}

func TestEntitlementMutators(t *testing.T) {
	e := newTestEntitlement(t)

	e.MarkFree()
	assert.True(t, e.IsFree())

	e.SetContract("C-17", "A-99")
	assert.Equal(t, "C-17", e.ContractNumber())
	assert.Equal(t, "A-99", e.AccountNumber())
}

func TestReconstruct(t *testing.T) {
	now := time.Now().UTC()
	e, err := Reconstruct(ReconstructParams{
		ID:         "ent_z9",
		PoolID:     "pool_a",
		ConsumerID: "cons_b",
		Quantity:   4,
		StartDate:  now,
		EndDate:    now.AddDate(1, 0, 0),
		IsFree:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, "ent_z9", e.ID())
	assert.True(t, e.IsFree())

	_, err = Reconstruct(ReconstructParams{PoolID: "pool_a", ConsumerID: "cons_b"})
	assert.Error(t, err)
}
