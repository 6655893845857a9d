package models

import "time"

// EntitlementModel represents the database persistence model for
// entitlements: a consumer's claim on a slice of a pool.
type EntitlementModel struct {
	ID             string `gorm:"primarykey;size:64"`
	PoolID         string `gorm:"not null;size:64;index:idx_entitlement_pool"`
	ConsumerID     string `gorm:"not null;size:64;index:idx_entitlement_consumer"`
	OwnerKey       string `gorm:"not null;size:255;index:idx_entitlement_owner"`
	Quantity       int64  `gorm:"not null"`
	StartDate      time.Time
	EndDate        time.Time
	IsFree         bool   `gorm:"not null;default:false"`
	ContractNumber string `gorm:"size:255"`
	AccountNumber  string `gorm:"size:255"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName specifies the table name for GORM
func (EntitlementModel) TableName() string {
	return "entitlements"
}
