// Package subscription models the upstream system-of-record inputs that
// drive pool reconciliation. Subscriptions and products are owned by an
// external service and consumed read-only through the adapter interfaces
// defined in this package.
package subscription

import (
	"time"
)

// Subscription is an external record of a purchased entitlement right to a
// product, with a quantity and validity window. Pools are derived from
// subscriptions during refresh; this system never mutates them.
type Subscription struct {
	ID               string    `json:"id" yaml:"id"`
	OwnerKey         string    `json:"owner" yaml:"owner"`
	Product          Product   `json:"product" yaml:"product"`
	ProvidedProducts []Product `json:"provided_products" yaml:"provided_products"`
	Quantity         int64     `json:"quantity" yaml:"quantity"`
	StartDate        time.Time `json:"start_date" yaml:"start_date"`
	EndDate          time.Time `json:"end_date" yaml:"end_date"`
	ContractNumber   string    `json:"contract_number" yaml:"contract_number"`
	AccountNumber    string    `json:"account_number" yaml:"account_number"`
}

// ProductIDs returns the marketed product ID plus all provided product IDs.
func (s Subscription) ProductIDs() []string {
	ids := make([]string, 0, len(s.ProvidedProducts)+1)
	ids = append(ids, s.Product.ID)
	for _, p := range s.ProvidedProducts {
		ids = append(ids, p.ID)
	}
	return ids
}

// IsActiveAt reports whether the subscription validity window covers the
// given instant.
func (s Subscription) IsActiveAt(at time.Time) bool {
	return !at.Before(s.StartDate) && !at.After(s.EndDate)
}
