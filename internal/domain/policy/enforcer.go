package policy

import (
	"context"

	"github.com/wick-sh/wick/internal/domain/consumer"
	"github.com/wick-sh/wick/internal/domain/entitlement"
	"github.com/wick-sh/wick/internal/domain/pool"
)

// PreEntitlementResult is the outcome of the pre-entitlement rule phase.
type PreEntitlementResult struct {
	*ValidationResult

	// GrantFree is set when a rule decided the entitlement should not count
	// against the pool's consumed quantity.
	GrantFree bool
}

// DerivedPoolSpec describes a sub-pool that post-entitlement rules asked to
// create, keyed to the entitlement that triggered it.
type DerivedPoolSpec struct {
	ProductID        string
	ProductName      string
	ProvidedProducts []pool.ProvidedProduct
	Quantity         int64
	Attributes       map[string]string
}

// PostActions collects the side effects requested by the post-entitlement
// rule phase. The caller applies them inside the bind transaction.
type PostActions struct {
	DerivedPools []DerivedPoolSpec
}

// Enforcer runs the scripted entitlement rules.
type Enforcer interface {
	// PreEntitlement runs the pre rules for a prospective bind. A result
	// with errors means the bind is refused; a nil error with a clean result
	// means the bind may proceed.
	PreEntitlement(ctx context.Context, c *consumer.Consumer, p *pool.Pool, quantity int64) (*PreEntitlementResult, error)

	// PostEntitlement runs the post rules after an entitlement was created
	// and returns the side effects to apply.
	PostEntitlement(ctx context.Context, c *consumer.Consumer, p *pool.Pool, e *entitlement.Entitlement) (*PostActions, error)

	// SelectBestPools ranks candidate pools for an autobind request. Given a
	// non-empty candidate list, an empty selection is a rule failure.
	SelectBestPools(ctx context.Context, c *consumer.Consumer, productIDs []string, candidates []*pool.Pool) ([]*pool.Pool, error)
}
