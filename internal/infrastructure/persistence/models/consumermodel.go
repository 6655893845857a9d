package models

import (
	"time"

	"gorm.io/datatypes"
)

// ConsumerModel represents the database persistence model for registered
// consumers.
type ConsumerModel struct {
	ID        string `gorm:"primarykey;size:64"`
	UUID      string `gorm:"not null;size:36;uniqueIndex:idx_consumer_uuid"`
	Name      string `gorm:"not null;size:255"`
	TypeLabel string `gorm:"not null;size:32"`
	OwnerKey  string `gorm:"not null;size:255;index:idx_consumer_owner"`
	Username  string `gorm:"size:255"`
	Facts     datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (ConsumerModel) TableName() string {
	return "consumers"
}
