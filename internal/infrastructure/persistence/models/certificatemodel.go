package models

import "time"

// CertificateSerialModel is the ledger row for every issued certificate
// serial. Revocation and CRL collection flip flags rather than deleting;
// rows are purged only once revoked, collected, and expired.
type CertificateSerialModel struct {
	Serial     int64 `gorm:"primarykey;autoIncrement:false"`
	Expiration time.Time
	Revoked    bool `gorm:"not null;default:false;index:idx_serial_revoked,priority:1"`
	Collected  bool `gorm:"not null;default:false;index:idx_serial_revoked,priority:2"`
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

// TableName specifies the table name for GORM
func (CertificateSerialModel) TableName() string {
	return "certificate_serials"
}

// EntitlementCertificateModel stores the PEM blobs issued for an
// entitlement, keyed to its ledger serial.
type EntitlementCertificateModel struct {
	ID            string `gorm:"primarykey;size:64"`
	EntitlementID string `gorm:"not null;size:64;index:idx_cert_entitlement"`
	Serial        int64  `gorm:"not null;uniqueIndex:idx_cert_serial"`
	CertPEM       []byte `gorm:"type:blob"`
	KeyPEM        []byte `gorm:"type:blob"`
	CreatedAt     time.Time
}

// TableName specifies the table name for GORM
func (EntitlementCertificateModel) TableName() string {
	return "entitlement_certificates"
}
