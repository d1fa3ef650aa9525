package db

import (
	"fmt"

	"github.com/mtandao-wifi/hotspot-portal/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.Admin{},
		&models.Plan{},
		&models.Voucher{},
		&models.PaymentRequest{},
		&models.Session{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	// The correlation-ID pair is the idempotency key for gateway callbacks;
	// the partial unique index keeps unset pairs out of the constraint.
	if errCorrelation := conn.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_requests_correlation_pair
		ON payment_requests (merchant_request_id, checkout_request_id)
		WHERE checkout_request_id <> ''
	`).Error; errCorrelation != nil {
		return fmt.Errorf("db: create correlation index: %w", errCorrelation)
	}

	if errSeed := seedDefaultPlans(conn); errSeed != nil {
		return errSeed
	}
	return nil
}

// seedDefaultPlans inserts the starter catalog when no plans exist yet.
func seedDefaultPlans(conn *gorm.DB) error {
	var count int64
	if errCount := conn.Model(&models.Plan{}).Count(&count).Error; errCount != nil {
		return fmt.Errorf("db: count plans: %w", errCount)
	}
	if count > 0 {
		return nil
	}

	plans := []models.Plan{
		{
			Name:              "Hourly Basic",
			Description:       "Basic internet access for 1 hour",
			Type:              models.PlanTypeHourly,
			Price:             20,
			Currency:          "KES",
			DataLimitMB:       100,
			TimeLimitMinutes:  60,
			BandwidthKbps:     1024,
			ConcurrentDevices: 1,
			Features:          []byte(`["Basic browsing","Email access"]`),
			IsActive:          true,
			DisplayOrder:      1,
		},
		{
			Name:              "Daily Standard",
			Description:       "Standard internet access for 24 hours",
			Type:              models.PlanTypeDaily,
			Price:             50,
			Currency:          "KES",
			DataLimitMB:       500,
			TimeLimitMinutes:  1440,
			BandwidthKbps:     2048,
			ConcurrentDevices: 1,
			Features:          []byte(`["Video streaming","Social media","Email access"]`),
			IsActive:          true,
			DisplayOrder:      2,
		},
		{
			Name:              "Weekly Premium",
			Description:       "Premium internet access for 7 days",
			Type:              models.PlanTypeWeekly,
			Price:             250,
			Currency:          "KES",
			DataLimitMB:       5000,
			TimeLimitMinutes:  10080,
			BandwidthKbps:     5120,
			ConcurrentDevices: 2,
			Features:          []byte(`["HD video streaming","Fast downloads","Multiple devices"]`),
			IsActive:          true,
			DisplayOrder:      3,
		},
		{
			Name:              "Monthly Unlimited",
			Description:       "Unlimited internet access for 30 days",
			Type:              models.PlanTypeMonthly,
			Price:             1000,
			Currency:          "KES",
			DataLimitMB:       50000,
			TimeLimitMinutes:  43200,
			BandwidthKbps:     10240,
			ConcurrentDevices: 3,
			Features:          []byte(`["Unlimited browsing","4K video streaming","Gaming","Multiple devices"]`),
			IsActive:          true,
			DisplayOrder:      4,
		},
	}

	if errCreate := conn.Create(&plans).Error; errCreate != nil {
		return fmt.Errorf("db: seed plans: %w", errCreate)
	}
	return nil
}
