package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mtandao-wifi/hotspot-portal/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB opens an isolated in-memory database for one test.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("sql db: %v", errDB)
	}
	sqlDB.SetMaxOpenConns(1)
	if errMigrate := conn.AutoMigrate(&models.Plan{}, &models.Voucher{}, &models.Session{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

// seedVoucher inserts a plan and a voucher over it.
func seedVoucher(t *testing.T, conn *gorm.DB, mutate func(*models.Voucher)) models.Voucher {
	t.Helper()
	plan := models.Plan{
		Name:              "Daily Standard",
		Type:              models.PlanTypeDaily,
		Price:             50,
		Currency:          "KES",
		ConcurrentDevices: 1,
		IsActive:          true,
	}
	if errCreate := conn.Create(&plan).Error; errCreate != nil {
		t.Fatalf("seed plan: %v", errCreate)
	}

	now := time.Now().UTC()
	v := models.Voucher{
		Code:              "KAP-239",
		PlanID:            plan.ID,
		DataLimitMB:       500,
		TimeLimitMinutes:  1440,
		ConcurrentDevices: 1,
		ExpiresAt:         now.Add(24 * time.Hour),
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if mutate != nil {
		mutate(&v)
	}
	// GORM omits zero-value fields on insert and then writes the column's
	// default:true back into the struct, so a seeded IsActive=false must be
	// remembered before Create and persisted explicitly afterwards.
	wantActive := v.IsActive
	if errCreate := conn.Create(&v).Error; errCreate != nil {
		t.Fatalf("seed voucher: %v", errCreate)
	}
	if !wantActive {
		if errUpdate := conn.Model(&models.Voucher{}).Where("id = ?", v.ID).
			Update("is_active", false).Error; errUpdate != nil {
			t.Fatalf("seed voucher inactive: %v", errUpdate)
		}
		v.IsActive = false
	}
	return v
}

func TestRedeemOpensSession(t *testing.T) {
	conn := openTestDB(t)
	seedVoucher(t, conn, nil)
	guard := NewGuard(conn)

	result, errRedeem := guard.Redeem(context.Background(), "kap-239", "", "AA:BB:CC:DD:EE:FF", "10.0.0.5")
	if errRedeem != nil {
		t.Fatalf("redeem: %v", errRedeem)
	}
	if result.PlanName != "Daily Standard" {
		t.Fatalf("plan name = %q", result.PlanName)
	}
	if result.DataUsedMB != 0 || result.TimeUsedMinutes != 0 {
		t.Fatal("fresh voucher must report zero usage")
	}
	if result.Session == nil || result.Session.Status != models.SessionStatusActive {
		t.Fatalf("expected an active session, got %+v", result.Session)
	}

	var stored models.Voucher
	if errFind := conn.Where("code = ?", "KAP-239").First(&stored).Error; errFind != nil {
		t.Fatalf("reload voucher: %v", errFind)
	}
	if stored.LastUsedAt == nil {
		t.Fatal("last_used_at not touched")
	}
}

func TestRedeemNotFound(t *testing.T) {
	conn := openTestDB(t)
	guard := NewGuard(conn)
	if _, errRedeem := guard.Redeem(context.Background(), "ZZZ-000", "", "mac", "ip"); !errors.Is(errRedeem, ErrVoucherNotFound) {
		t.Fatalf("expected ErrVoucherNotFound, got %v", errRedeem)
	}
}

func TestRedeemExpired(t *testing.T) {
	conn := openTestDB(t)
	seedVoucher(t, conn, func(v *models.Voucher) {
		v.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	})
	guard := NewGuard(conn)
	if _, errRedeem := guard.Redeem(context.Background(), "KAP-239", "", "mac", "ip"); !errors.Is(errRedeem, ErrVoucherExpired) {
		t.Fatalf("expected ErrVoucherExpired, got %v", errRedeem)
	}
}

func TestRedeemExpiredWinsOverInactive(t *testing.T) {
	conn := openTestDB(t)
	seedVoucher(t, conn, func(v *models.Voucher) {
		v.ExpiresAt = time.Now().UTC().Add(-time.Hour)
		v.IsActive = false
	})
	guard := NewGuard(conn)
	// An expired voucher reports expiry no matter what the active flag says.
	if _, errRedeem := guard.Redeem(context.Background(), "KAP-239", "", "mac", "ip"); !errors.Is(errRedeem, ErrVoucherExpired) {
		t.Fatalf("expected ErrVoucherExpired, got %v", errRedeem)
	}
}

func TestRedeemInactive(t *testing.T) {
	conn := openTestDB(t)
	seedVoucher(t, conn, func(v *models.Voucher) {
		v.IsActive = false
	})
	guard := NewGuard(conn)
	if _, errRedeem := guard.Redeem(context.Background(), "KAP-239", "", "mac", "ip"); !errors.Is(errRedeem, ErrVoucherInactive) {
		t.Fatalf("expected ErrVoucherInactive, got %v", errRedeem)
	}
}

func TestRedeemPhoneMismatch(t *testing.T) {
	conn := openTestDB(t)
	seedVoucher(t, conn, func(v *models.Voucher) {
		v.PhoneNumber = "254712345678"
	})
	guard := NewGuard(conn)

	if _, errRedeem := guard.Redeem(context.Background(), "KAP-239", "254700000000", "mac", "ip"); !errors.Is(errRedeem, ErrPhoneMismatch) {
		t.Fatalf("expected ErrPhoneMismatch, got %v", errRedeem)
	}
	if _, errRedeem := guard.Redeem(context.Background(), "KAP-239", "254712345678", "mac", "ip"); errRedeem != nil {
		t.Fatalf("matching phone must redeem: %v", errRedeem)
	}
}

func TestRedeemDeviceLimitUnderConcurrency(t *testing.T) {
	conn := openTestDB(t)
	seedVoucher(t, conn, func(v *models.Voucher) {
		v.ConcurrentDevices = 2
	})
	guard := NewGuard(conn)

	const callers = 5
	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, limited int
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			mac := fmt.Sprintf("AA:BB:CC:00:00:%02d", n)
			_, errRedeem := guard.Redeem(context.Background(), "KAP-239", "", mac, "10.0.0.5")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errRedeem == nil:
				ok++
			case errors.Is(errRedeem, ErrDeviceLimitReached):
				limited++
			default:
				t.Errorf("unexpected redeem error: %v", errRedeem)
			}
		}(i)
	}
	wg.Wait()

	if ok != 2 || limited != 3 {
		t.Fatalf("ok=%d limited=%d, want exactly 2 admitted and 3 rejected", ok, limited)
	}

	var active int64
	if errCount := conn.Model(&models.Session{}).
		Where("status = ?", models.SessionStatusActive).
		Count(&active).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if active != 2 {
		t.Fatalf("active sessions = %d, want 2", active)
	}
}

func TestTerminateIsFinal(t *testing.T) {
	conn := openTestDB(t)
	seedVoucher(t, conn, nil)
	guard := NewGuard(conn)

	result, errRedeem := guard.Redeem(context.Background(), "KAP-239", "", "mac", "ip")
	if errRedeem != nil {
		t.Fatalf("redeem: %v", errRedeem)
	}

	if errTerminate := guard.Terminate(context.Background(), result.Session.ID); errTerminate != nil {
		t.Fatalf("terminate: %v", errTerminate)
	}

	var stored models.Session
	if errFind := conn.First(&stored, result.Session.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if stored.Status != models.SessionStatusTerminated {
		t.Fatalf("status = %q", stored.Status)
	}
	if stored.EndTime == nil {
		t.Fatal("end_time not set")
	}

	if errAgain := guard.Terminate(context.Background(), result.Session.ID); !errors.Is(errAgain, ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive on second terminate, got %v", errAgain)
	}
	if errMissing := guard.Terminate(context.Background(), 9999); !errors.Is(errMissing, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", errMissing)
	}
}

func TestSweepExpiresSessionsAndVouchers(t *testing.T) {
	conn := openTestDB(t)
	v := seedVoucher(t, conn, nil)
	guard := NewGuard(conn)

	result, errRedeem := guard.Redeem(context.Background(), "KAP-239", "", "mac", "ip")
	if errRedeem != nil {
		t.Fatalf("redeem: %v", errRedeem)
	}

	// Push the voucher past its expiry, then sweep.
	past := time.Now().UTC().Add(-time.Minute)
	if errUpdate := conn.Model(&models.Voucher{}).Where("id = ?", v.ID).
		Update("expires_at", past).Error; errUpdate != nil {
		t.Fatalf("backdate voucher: %v", errUpdate)
	}

	guard.sweep(context.Background())

	var session models.Session
	if errFind := conn.First(&session, result.Session.ID).Error; errFind != nil {
		t.Fatalf("reload session: %v", errFind)
	}
	if session.Status != models.SessionStatusExpired {
		t.Fatalf("session status = %q, want expired", session.Status)
	}
	if session.EndTime == nil {
		t.Fatal("session end_time not set by sweep")
	}

	var stored models.Voucher
	if errFind := conn.First(&stored, v.ID).Error; errFind != nil {
		t.Fatalf("reload voucher: %v", errFind)
	}
	if stored.IsActive {
		t.Fatal("expired voucher must be deactivated by sweep")
	}
}
