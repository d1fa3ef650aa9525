package models

import (
	"time"

	"gorm.io/datatypes"
)

// PlanType classifies a plan's validity window.
type PlanType string

// PlanType constants define the supported validity windows.
const (
	// PlanTypeHourly covers short hourly bundles.
	PlanTypeHourly PlanType = "hourly"
	// PlanTypeDaily covers 24-hour bundles.
	PlanTypeDaily PlanType = "daily"
	// PlanTypeWeekly covers 7-day bundles.
	PlanTypeWeekly PlanType = "weekly"
	// PlanTypeMonthly covers 30-day bundles.
	PlanTypeMonthly PlanType = "monthly"
	// PlanTypeCustom covers admin-defined windows.
	PlanTypeCustom PlanType = "custom"
)

// ValidPlanType reports whether the value is a known plan type.
func ValidPlanType(t PlanType) bool {
	switch t {
	case PlanTypeHourly, PlanTypeDaily, PlanTypeWeekly, PlanTypeMonthly, PlanTypeCustom:
		return true
	}
	return false
}

// Plan represents a priced hotspot access tier.
type Plan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string   `gorm:"type:varchar(255);not null"`            // Plan name.
	Description string   `gorm:"type:text"`                             // Plan description.
	Type        PlanType `gorm:"type:varchar(16);not null"`             // Validity window class.
	Price       float64  `gorm:"type:decimal(10,2);not null;default:0"` // Price in Currency units.
	Currency    string   `gorm:"type:varchar(8);not null;default:KES"`  // ISO currency code.

	DataLimitMB      int64 `gorm:"not null;default:0"` // Data quota in MB, 0 = unlimited.
	TimeLimitMinutes int   `gorm:"not null;default:0"` // Time quota in minutes.
	BandwidthKbps    int   `gorm:"not null;default:0"` // Bandwidth cap in Kbps, 0 = unlimited.

	ConcurrentDevices int `gorm:"not null;default:1"` // Max simultaneous devices per voucher.

	Features datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Marketing feature list.

	IsActive     bool `gorm:"not null;default:true"` // Whether the plan is purchasable.
	DisplayOrder int  `gorm:"not null;default:0"`    // Display ordering weight.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
