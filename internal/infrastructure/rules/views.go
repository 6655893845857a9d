// Package rules runs the scripted entitlement policy with an embedded
// JavaScript engine. The rules source is compiled once at startup into an
// immutable program; every evaluation gets its own throwaway runtime, so
// concurrent evaluations never share script state.
package rules

import (
	"time"

	"github.com/wick-sh/wick/internal/domain/consumer"
	"github.com/wick-sh/wick/internal/domain/entitlement"
	"github.com/wick-sh/wick/internal/domain/pool"
)

// ConsumerView is the read-only consumer projection handed to scripts.
type ConsumerView struct {
	ID       string            `json:"id"`
	UUID     string            `json:"uuid"`
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	OwnerKey string            `json:"ownerKey"`
	Facts    map[string]string `json:"facts"`
}

func newConsumerView(c *consumer.Consumer) ConsumerView {
	return ConsumerView{
		ID:       c.ID(),
		UUID:     c.UUID(),
		Name:     c.Name(),
		Type:     c.TypeLabel(),
		OwnerKey: c.OwnerKey(),
		Facts:    c.Facts(),
	}
}

// PoolView is the read-only pool projection handed to scripts.
type PoolView struct {
	ID               string            `json:"id"`
	OwnerKey         string            `json:"ownerKey"`
	ProductID        string            `json:"productId"`
	ProductName      string            `json:"productName"`
	ProvidedProducts []string          `json:"providedProducts"`
	Quantity         int64             `json:"quantity"`
	Consumed         int64             `json:"consumed"`
	Unlimited        bool              `json:"unlimited"`
	StartDate        time.Time         `json:"startDate"`
	EndDate          time.Time         `json:"endDate"`
	Attributes       map[string]string `json:"attributes"`
	Derived          bool              `json:"derived"`
}

func newPoolView(p *pool.Pool) PoolView {
	provided := make([]string, 0, len(p.ProvidedProducts()))
	for _, pp := range p.ProvidedProducts() {
		provided = append(provided, pp.ProductID)
	}
	return PoolView{
		ID:               p.ID(),
		OwnerKey:         p.OwnerKey(),
		ProductID:        p.ProductID(),
		ProductName:      p.ProductName(),
		ProvidedProducts: provided,
		Quantity:         p.Quantity(),
		Consumed:         p.Consumed(),
		Unlimited:        p.IsUnlimited(),
		StartDate:        p.StartDate(),
		EndDate:          p.EndDate(),
		Attributes:       p.Attributes(),
		Derived:          p.IsDerived(),
	}
}

func newPoolViews(pools []*pool.Pool) []PoolView {
	out := make([]PoolView, 0, len(pools))
	for _, p := range pools {
		out = append(out, newPoolView(p))
	}
	return out
}

// EntitlementView is the read-only entitlement projection handed to scripts.
type EntitlementView struct {
	ID         string    `json:"id"`
	PoolID     string    `json:"poolId"`
	ConsumerID string    `json:"consumerId"`
	Quantity   int64     `json:"quantity"`
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `json:"endDate"`
}

func newEntitlementView(e *entitlement.Entitlement) EntitlementView {
	return EntitlementView{
		ID:         e.ID(),
		PoolID:     e.PoolID(),
		ConsumerID: e.ConsumerID(),
		Quantity:   e.Quantity(),
		StartDate:  e.StartDate(),
		EndDate:    e.EndDate(),
	}
}
