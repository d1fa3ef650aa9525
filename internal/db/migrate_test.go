package db

import (
	"fmt"
	"strings"
	"testing"

	"github.com/mtandao-wifi/hotspot-portal/internal/models"
)

func TestOpenAndMigrateSQLite(t *testing.T) {
	dsn := fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("sql db: %v", errDB)
	}
	sqlDB.SetMaxOpenConns(1)

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	// Migrations are idempotent.
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("second migrate: %v", errMigrate)
	}

	if !IsSQLite(conn) {
		t.Fatalf("dialect = %q, want sqlite", DialectName(conn))
	}

	var plans int64
	if errCount := conn.Model(&models.Plan{}).Count(&plans).Error; errCount != nil {
		t.Fatalf("count plans: %v", errCount)
	}
	if plans != 4 {
		t.Fatalf("expected 4 seeded plans, got %d", plans)
	}
}

func TestCorrelationPairUniqueness(t *testing.T) {
	dsn := fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("sql db: %v", errDB)
	}
	sqlDB.SetMaxOpenConns(1)
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	var plan models.Plan
	if errFind := conn.First(&plan).Error; errFind != nil {
		t.Fatalf("find seeded plan: %v", errFind)
	}

	first := models.PaymentRequest{
		Reference:         "ref-1",
		PlanID:            plan.ID,
		PhoneNumber:       "254712345678",
		Status:            models.PaymentStatusPending,
		MerchantRequestID: "m-1",
		CheckoutRequestID: "c-1",
	}
	if errCreate := conn.Create(&first).Error; errCreate != nil {
		t.Fatalf("create first: %v", errCreate)
	}

	duplicate := models.PaymentRequest{
		Reference:         "ref-2",
		PlanID:            plan.ID,
		PhoneNumber:       "254712345678",
		Status:            models.PaymentStatusPending,
		MerchantRequestID: "m-1",
		CheckoutRequestID: "c-1",
	}
	if errCreate := conn.Create(&duplicate).Error; errCreate == nil {
		t.Fatal("expected the correlation pair to be unique")
	}

	// Requests with an unset pair stay out of the constraint.
	for i := 0; i < 2; i++ {
		blank := models.PaymentRequest{
			Reference:   fmt.Sprintf("ref-blank-%d", i),
			PlanID:      plan.ID,
			PhoneNumber: "254712345678",
			Status:      models.PaymentStatusPending,
		}
		if errCreate := conn.Create(&blank).Error; errCreate != nil {
			t.Fatalf("create blank pair %d: %v", i, errCreate)
		}
	}
}
