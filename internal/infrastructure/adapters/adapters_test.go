package adapters

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wick-sh/wick/internal/shared/errors"
	"github.com/wick-sh/wick/internal/shared/logger"
)

const subscriptionsYAML = `
subscriptions:
  - id: sub-1
    owner: acme
    product:
      id: prod-os
      name: Wick OS
      attributes:
        sockets: "2"
    provided_products:
      - id: prod-tools
        name: Wick Tools
    quantity: 100
    start_date: 2026-01-01T00:00:00Z
    end_date: 2027-01-01T00:00:00Z
    contract_number: C-1
    account_number: A-1
  - id: sub-2
    owner: globex
    product:
      id: prod-virt
      name: Wick Virt Host
    quantity: 10
    start_date: 2026-01-01T00:00:00Z
    end_date: 2027-01-01T00:00:00Z
`

const productsYAML = `
products:
  - id: prod-os
    name: Wick OS
    multiplier: 2
    attributes:
      sockets: "2"
  - id: prod-virt
    name: Wick Virt Host
    attributes:
      virtualization_host: "true"
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestYAMLSubscriptionService(t *testing.T) {
	svc, err := NewYAMLSubscriptionService(
		writeTemp(t, "subs.yaml", subscriptionsYAML), logger.NewLogger())
	require.NoError(t, err)

	ctx := context.Background()
	subs, err := svc.GetSubscriptions(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "sub-1", subs[0].ID)
	assert.Equal(t, int64(100), subs[0].Quantity)
	assert.Equal(t, "prod-os", subs[0].Product.ID)
	assert.ElementsMatch(t, []string{"prod-os", "prod-tools"}, subs[0].ProductIDs())

	sub, err := svc.GetSubscription(ctx, "sub-2")
	require.NoError(t, err)
	assert.Equal(t, "globex", sub.OwnerKey)

	_, err = svc.GetSubscription(ctx, "sub-missing")
	assert.True(t, errors.IsNotFoundError(err))

	subs, err = svc.GetSubscriptions(ctx, "unknown-owner")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestYAMLSubscriptionServiceBadCatalog(t *testing.T) {
	_, err := NewYAMLSubscriptionService(
		writeTemp(t, "subs.yaml", ":\nnot yaml at all ["), logger.NewLogger())
	assert.Error(t, err)

	_, err = NewYAMLSubscriptionService(
		writeTemp(t, "subs.yaml", "subscriptions:\n  - owner: acme\n"), logger.NewLogger())
	assert.Error(t, err, "entries without an id are rejected")

	_, err = NewYAMLSubscriptionService(filepath.Join(t.TempDir(), "missing.yaml"), logger.NewLogger())
	assert.Error(t, err)
}

func TestYAMLProductService(t *testing.T) {
	svc, err := NewYAMLProductService(
		writeTemp(t, "products.yaml", productsYAML), logger.NewLogger())
	require.NoError(t, err)

	ctx := context.Background()
	p, err := svc.GetProductByID(ctx, "prod-os")
	require.NoError(t, err)
	assert.Equal(t, "Wick OS", p.Name)
	assert.Equal(t, int64(2), p.EffectiveMultiplier())

	v, ok := p.Attribute("sockets")
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	_, err = svc.GetProductByID(ctx, "prod-missing")
	assert.True(t, errors.IsNotFoundError(err))
}
