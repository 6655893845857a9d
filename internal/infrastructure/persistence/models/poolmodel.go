package models

import (
	"time"

	"gorm.io/datatypes"
)

// PoolModel represents the database persistence model for entitlement pools.
// This is the anti-corruption layer between domain and database.
type PoolModel struct {
	ID                  string `gorm:"primarykey;size:64"`
	OwnerKey            string `gorm:"not null;size:255;index:idx_pool_owner"`
	ProductID           string `gorm:"not null;size:255;index:idx_pool_product"`
	ProductName         string `gorm:"size:255"`
	Quantity            int64  `gorm:"not null"`
	Consumed            int64  `gorm:"not null;default:0"`
	StartDate           time.Time
	EndDate             time.Time
	SubscriptionID      string `gorm:"size:255;index:idx_pool_subscription"`
	SourceEntitlementID string `gorm:"size:64;index:idx_pool_source_entitlement"`
	Attributes          datatypes.JSON
	ContractNumber      string `gorm:"size:255"`
	AccountNumber       string `gorm:"size:255"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Version             int `gorm:"not null;default:1"`

	ProvidedProducts []PoolProvidedProductModel `gorm:"foreignKey:PoolID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for GORM
func (PoolModel) TableName() string {
	return "pools"
}

// PoolProvidedProductModel stores the products bundled with a pool beyond
// its marketed product.
type PoolProvidedProductModel struct {
	ID          uint   `gorm:"primarykey"`
	PoolID      string `gorm:"not null;size:64;uniqueIndex:idx_pool_provided,priority:1"`
	ProductID   string `gorm:"not null;size:255;uniqueIndex:idx_pool_provided,priority:2"`
	ProductName string `gorm:"size:255"`
}

// TableName specifies the table name for GORM
func (PoolProvidedProductModel) TableName() string {
	return "pool_provided_products"
}
