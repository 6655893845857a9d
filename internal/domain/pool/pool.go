// Package pool contains the pool aggregate: a quantity-bounded grant of
// entitlement rights to a product, scoped to an owner. Pools are created
// from upstream subscriptions during refresh, or programmatically by
// post-entitlement rules as derived sub-pools.
package pool

import (
	"fmt"
	"time"

	"github.com/wick-sh/wick/internal/shared/id"
)

// UnlimitedQuantity marks a pool with no capacity bound.
const UnlimitedQuantity int64 = -1

// ProvidedProduct is a product bundled with a pool beyond its marketed
// product.
type ProvidedProduct struct {
	ProductID   string
	ProductName string
}

// Pool is the aggregate root for entitlement capacity.
type Pool struct {
	id                  string
	ownerKey            string
	productID           string
	productName         string
	providedProducts    []ProvidedProduct
	quantity            int64
	consumed            int64
	startDate           time.Time
	endDate             time.Time
	subscriptionID      string
	sourceEntitlementID string
	attributes          map[string]string
	contractNumber      string
	accountNumber       string
	createdAt           time.Time
	updatedAt           time.Time
	version             int
}

// NewPool creates a new pool for an owner and product.
func NewPool(ownerKey, productID, productName string, provided []ProvidedProduct,
	quantity int64, startDate, endDate time.Time) (*Pool, error) {

	if ownerKey == "" {
		return nil, fmt.Errorf("owner key is required")
	}
	if productID == "" {
		return nil, fmt.Errorf("product ID is required")
	}
	if quantity < UnlimitedQuantity {
		return nil, fmt.Errorf("invalid quantity: %d", quantity)
	}
	if endDate.Before(startDate) {
		return nil, fmt.Errorf("end date %s precedes start date %s", endDate, startDate)
	}

	now := time.Now().UTC()
	return &Pool{
		id:               id.MustGenerateWithPrefix(id.PrefixPool, id.DefaultLength),
		ownerKey:         ownerKey,
		productID:        productID,
		productName:      productName,
		providedProducts: append([]ProvidedProduct(nil), provided...),
		quantity:         quantity,
		startDate:        startDate,
		endDate:          endDate,
		attributes:       make(map[string]string),
		createdAt:        now,
		updatedAt:        now,
		version:          1,
	}, nil
}

// ReconstructParams carries every persisted pool field.
type ReconstructParams struct {
	ID                  string
	OwnerKey            string
	ProductID           string
	ProductName         string
	ProvidedProducts    []ProvidedProduct
	Quantity            int64
	Consumed            int64
	StartDate           time.Time
	EndDate             time.Time
	SubscriptionID      string
	SourceEntitlementID string
	Attributes          map[string]string
	ContractNumber      string
	AccountNumber       string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Version             int
}

// Reconstruct rebuilds a pool from persistence.
func Reconstruct(p ReconstructParams) (*Pool, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("pool ID cannot be empty")
	}
	if p.OwnerKey == "" {
		return nil, fmt.Errorf("owner key is required")
	}
	if p.ProductID == "" {
		return nil, fmt.Errorf("product ID is required")
	}
	attrs := p.Attributes
	if attrs == nil {
		attrs = make(map[string]string)
	}
	return &Pool{
		id:                  p.ID,
		ownerKey:            p.OwnerKey,
		productID:           p.ProductID,
		productName:         p.ProductName,
		providedProducts:    append([]ProvidedProduct(nil), p.ProvidedProducts...),
		quantity:            p.Quantity,
		consumed:            p.Consumed,
		startDate:           p.StartDate,
		endDate:             p.EndDate,
		subscriptionID:      p.SubscriptionID,
		sourceEntitlementID: p.SourceEntitlementID,
		attributes:          attrs,
		contractNumber:      p.ContractNumber,
		accountNumber:       p.AccountNumber,
		createdAt:           p.CreatedAt,
		updatedAt:           p.UpdatedAt,
		version:             p.Version,
	}, nil
}

func (p *Pool) ID() string                          { return p.id }
func (p *Pool) OwnerKey() string                    { return p.ownerKey }
func (p *Pool) ProductID() string                   { return p.productID }
func (p *Pool) ProductName() string                 { return p.productName }
func (p *Pool) ProvidedProducts() []ProvidedProduct { return p.providedProducts }
func (p *Pool) Quantity() int64                     { return p.quantity }
func (p *Pool) Consumed() int64                     { return p.consumed }
func (p *Pool) StartDate() time.Time                { return p.startDate }
func (p *Pool) EndDate() time.Time                  { return p.endDate }
func (p *Pool) SubscriptionID() string              { return p.subscriptionID }
func (p *Pool) SourceEntitlementID() string         { return p.sourceEntitlementID }
func (p *Pool) ContractNumber() string              { return p.contractNumber }
func (p *Pool) AccountNumber() string               { return p.accountNumber }
func (p *Pool) CreatedAt() time.Time                { return p.createdAt }
func (p *Pool) UpdatedAt() time.Time                { return p.updatedAt }
func (p *Pool) Version() int                        { return p.version }

// Attributes returns a copy of the pool attribute map.
func (p *Pool) Attributes() map[string]string {
	out := make(map[string]string, len(p.attributes))
	for k, v := range p.attributes {
		out[k] = v
	}
	return out
}

// Attribute returns the named pool attribute and whether it is set.
func (p *Pool) Attribute(name string) (string, bool) {
	v, ok := p.attributes[name]
	return v, ok
}

// SetAttribute sets a pool attribute.
func (p *Pool) SetAttribute(name, value string) {
	p.attributes[name] = value
	p.touch()
}

// Provides reports whether the pool grants access to the given product,
// either as its marketed product or as a provided product.
func (p *Pool) Provides(productID string) bool {
	if p.productID == productID {
		return true
	}
	for _, pp := range p.providedProducts {
		if pp.ProductID == productID {
			return true
		}
	}
	return false
}

// ProductIDs returns the marketed product ID plus all provided product IDs.
func (p *Pool) ProductIDs() []string {
	ids := make([]string, 0, len(p.providedProducts)+1)
	ids = append(ids, p.productID)
	for _, pp := range p.providedProducts {
		ids = append(ids, pp.ProductID)
	}
	return ids
}

// IsUnlimited reports whether the pool has no capacity bound.
func (p *Pool) IsUnlimited() bool {
	return p.quantity == UnlimitedQuantity
}

// IsExpired reports whether the pool's validity window has passed.
func (p *Pool) IsExpired(at time.Time) bool {
	return at.After(p.endDate)
}

// IsOverflowing reports whether more capacity is consumed than the pool
// currently allows. This happens transiently when a subscription shrinks and
// excess entitlements are being drained.
func (p *Pool) IsOverflowing() bool {
	if p.IsUnlimited() {
		return false
	}
	return p.consumed > p.quantity
}

// Available returns the remaining uncommitted quantity, or UnlimitedQuantity
// for unlimited pools.
func (p *Pool) Available() int64 {
	if p.IsUnlimited() {
		return UnlimitedQuantity
	}
	remaining := p.quantity - p.consumed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HasCapacityFor reports whether the pool can absorb the requested quantity.
func (p *Pool) HasCapacityFor(quantity int64) bool {
	if p.IsUnlimited() {
		return true
	}
	return p.consumed+quantity <= p.quantity
}

// IsDerived reports whether this pool was created by rules as a side effect
// of another entitlement, rather than from an upstream subscription.
func (p *Pool) IsDerived() bool {
	return p.sourceEntitlementID != ""
}

// SetQuantity updates the pool capacity.
func (p *Pool) SetQuantity(quantity int64) error {
	if quantity < UnlimitedQuantity {
		return fmt.Errorf("invalid quantity: %d", quantity)
	}
	p.quantity = quantity
	p.touch()
	return nil
}

// SetDates updates the validity window.
func (p *Pool) SetDates(start, end time.Time) error {
	if end.Before(start) {
		return fmt.Errorf("end date %s precedes start date %s", end, start)
	}
	p.startDate = start
	p.endDate = end
	p.touch()
	return nil
}

// SetProduct replaces the marketed product and the provided product set.
func (p *Pool) SetProduct(productID, productName string, provided []ProvidedProduct) {
	p.productID = productID
	p.productName = productName
	p.providedProducts = append([]ProvidedProduct(nil), provided...)
	p.touch()
}

// SetSubscriptionID links this pool to its originating subscription.
func (p *Pool) SetSubscriptionID(subscriptionID string) {
	p.subscriptionID = subscriptionID
	p.touch()
}

// SetContract records the contract and account numbers from the backing
// subscription.
func (p *Pool) SetContract(contractNumber, accountNumber string) {
	p.contractNumber = contractNumber
	p.accountNumber = accountNumber
	p.touch()
}

// SetSourceEntitlement marks this pool as derived from an entitlement.
func (p *Pool) SetSourceEntitlement(entitlementID string) {
	p.sourceEntitlementID = entitlementID
	p.touch()
}

// SetConsumed overrides the consumed counter. Only the persistence layer
// should call this; the counter's source of truth is adjusted transactionally
// alongside entitlement rows.
func (p *Pool) SetConsumed(consumed int64) {
	p.consumed = consumed
}

func (p *Pool) touch() {
	p.updatedAt = time.Now().UTC()
	p.version++
}
