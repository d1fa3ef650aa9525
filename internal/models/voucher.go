package models

import "time"

// Voucher is a redeemable credential granting bounded network access.
// A voucher is logically dead once ExpiresAt has passed or IsActive is
// false, even while the row is still persisted.
type Voucher struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Code string `gorm:"type:varchar(16);not null;uniqueIndex"` // Unique redemption code.

	PlanID uint64 `gorm:"not null;index"`    // Source plan ID.
	Plan   Plan   `gorm:"foreignKey:PlanID"` // Source plan record.

	PhoneNumber string `gorm:"type:varchar(20)"` // Binds redemption to this phone when set.

	PaymentRequestID *uint64 `gorm:"index"` // Payment request that produced this voucher, if any.

	DataLimitMB      int64 `gorm:"not null;default:0"` // Data quota in MB, 0 = unlimited.
	DataUsedMB       int64 `gorm:"not null;default:0"` // Cumulative data consumed in MB.
	TimeLimitMinutes int   `gorm:"not null;default:0"` // Time quota in minutes.
	TimeUsedMinutes  int   `gorm:"not null;default:0"` // Cumulative minutes consumed.

	ConcurrentDevices int `gorm:"not null;default:1"` // Max simultaneous sessions.

	ExpiresAt time.Time `gorm:"not null;index"`        // Hard expiry timestamp.
	IsActive  bool      `gorm:"not null;default:true"` // Whether the voucher is redeemable.

	LastUsedAt *time.Time // Last successful redemption.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
