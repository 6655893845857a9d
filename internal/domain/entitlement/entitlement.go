// Package entitlement contains the entitlement aggregate: a consumer's
// claim on a slice of a pool's capacity, backed by an identity certificate
// for the entitled content.
package entitlement

import (
	"fmt"
	"time"

	"github.com/wick-sh/wick/internal/shared/id"
)

// Entitlement is the aggregate root for a granted pool consumption.
type Entitlement struct {
	id             string
	poolID         string
	consumerID     string
	ownerKey       string
	quantity       int64
	startDate      time.Time
	endDate        time.Time
	isFree         bool
	contractNumber string
	accountNumber  string
	createdAt      time.Time
	updatedAt      time.Time
}

// NewEntitlement creates a new entitlement binding a consumer to a pool.
// The validity window and contract fields are copied from the pool at grant
// time so the entitlement stays stable if the pool later changes.
func NewEntitlement(poolID, consumerID, ownerKey string, quantity int64,
	startDate, endDate time.Time) (*Entitlement, error) {

	if poolID == "" {
		return nil, fmt.Errorf("pool ID is required")
	}
	if consumerID == "" {
		return nil, fmt.Errorf("consumer ID is required")
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	now := time.Now().UTC()
	return &Entitlement{
		id:         id.MustGenerateWithPrefix(id.PrefixEntitlement, id.DefaultLength),
		poolID:     poolID,
		consumerID: consumerID,
		ownerKey:   ownerKey,
		quantity:   quantity,
		startDate:  startDate,
		endDate:    endDate,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// ReconstructParams carries every persisted entitlement field.
type ReconstructParams struct {
	ID             string
	PoolID         string
	ConsumerID     string
	OwnerKey       string
	Quantity       int64
	StartDate      time.Time
	EndDate        time.Time
	IsFree         bool
	ContractNumber string
	AccountNumber  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Reconstruct rebuilds an entitlement from persistence.
func Reconstruct(p ReconstructParams) (*Entitlement, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("entitlement ID cannot be empty")
	}
	if p.PoolID == "" {
		return nil, fmt.Errorf("pool ID is required")
	}
	if p.ConsumerID == "" {
		return nil, fmt.Errorf("consumer ID is required")
	}
	return &Entitlement{
		id:             p.ID,
		poolID:         p.PoolID,
		consumerID:     p.ConsumerID,
		ownerKey:       p.OwnerKey,
		quantity:       p.Quantity,
		startDate:      p.StartDate,
		endDate:        p.EndDate,
		isFree:         p.IsFree,
		contractNumber: p.ContractNumber,
		accountNumber:  p.AccountNumber,
		createdAt:      p.CreatedAt,
		updatedAt:      p.UpdatedAt,
	}, nil
}

func (e *Entitlement) ID() string             { return e.id }
func (e *Entitlement) PoolID() string         { return e.poolID }
func (e *Entitlement) ConsumerID() string     { return e.consumerID }
func (e *Entitlement) OwnerKey() string       { return e.ownerKey }
func (e *Entitlement) Quantity() int64        { return e.quantity }
func (e *Entitlement) StartDate() time.Time   { return e.startDate }
func (e *Entitlement) EndDate() time.Time     { return e.endDate }
func (e *Entitlement) IsFree() bool           { return e.isFree }
func (e *Entitlement) ContractNumber() string { return e.contractNumber }
func (e *Entitlement) AccountNumber() string  { return e.accountNumber }
func (e *Entitlement) CreatedAt() time.Time   { return e.createdAt }
func (e *Entitlement) UpdatedAt() time.Time   { return e.updatedAt }

// IsValidAt reports whether the entitlement's validity window covers t.
func (e *Entitlement) IsValidAt(t time.Time) bool {
	return !t.Before(e.startDate) && !t.After(e.endDate)
}

// MarkFree flags the entitlement as granted outside normal pool accounting,
// typically by a post-entitlement rule.
func (e *Entitlement) MarkFree() {
	e.isFree = true
	e.touch()
}

// SetContract records the contract and account numbers copied from the pool.
func (e *Entitlement) SetContract(contractNumber, accountNumber string) {
	e.contractNumber = contractNumber
	e.accountNumber = accountNumber
	e.touch()
}

func (e *Entitlement) touch() {
	e.updatedAt = time.Now().UTC()
}
