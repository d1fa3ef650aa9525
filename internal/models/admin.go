package models

import "time"

// Admin roles. Admin can do everything including account management,
// manager can operate plans, vouchers, sessions and payments, viewer has
// read-only access.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleViewer  = "viewer"
)

// ValidRole reports whether the value is a known role.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleManager || role == RoleViewer
}

// Admin represents a dashboard operator account.
type Admin struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Name     string `gorm:"type:text"`                      // Display name.
	Email    string `gorm:"type:text"`                      // Contact email.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Role string `gorm:"type:varchar(16);not null;default:viewer"` // Authorization role.

	Active bool `gorm:"not null;default:true"` // Whether the account can sign in.

	TOTPSecret string `gorm:"type:text"` // TOTP secret, empty when MFA is off.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
