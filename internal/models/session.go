package models

import "time"

// SessionStatus represents the lifecycle state of a session.
type SessionStatus string

// SessionStatus constants define session lifecycle states. Terminated and
// expired are terminal.
const (
	// SessionStatusActive marks a device currently online.
	SessionStatusActive SessionStatus = "active"
	// SessionStatusTerminated marks a session ended by admin or user action.
	SessionStatusTerminated SessionStatus = "terminated"
	// SessionStatusExpired marks a session ended by time or usage limits.
	SessionStatusExpired SessionStatus = "expired"
)

// Session records one device's active connectivity grant tied to a voucher.
type Session struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	VoucherID uint64  `gorm:"not null;index"`       // Redeemed voucher ID.
	Voucher   Voucher `gorm:"foreignKey:VoucherID"` // Redeemed voucher record.

	MACAddress string `gorm:"type:varchar(32);not null"` // Device MAC address.
	IPAddress  string `gorm:"type:varchar(64);not null"` // Device IP address.

	StartTime time.Time  `gorm:"not null"` // Session start.
	EndTime   *time.Time // Session end, nil while active.

	DataUsedMB      int64 `gorm:"not null;default:0"` // Data consumed in MB.
	TimeUsedMinutes int   `gorm:"not null;default:0"` // Minutes consumed.

	Status SessionStatus `gorm:"type:varchar(16);not null;index"` // Current lifecycle state.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
