package app

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mtandao-wifi/hotspot-portal/internal/models"
	"github.com/mtandao-wifi/hotspot-portal/internal/security"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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
	if errMigrate := conn.AutoMigrate(&models.Admin{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestEnsureAdminAccountFromEnv(t *testing.T) {
	t.Setenv("ADMIN_USERNAME", "root")
	t.Setenv("ADMIN_PASSWORD", "correct horse")

	conn := openTestDB(t)
	if errEnsure := EnsureAdminAccount(conn); errEnsure != nil {
		t.Fatalf("ensure: %v", errEnsure)
	}

	var admin models.Admin
	if errFind := conn.Where("username = ?", "root").First(&admin).Error; errFind != nil {
		t.Fatalf("find admin: %v", errFind)
	}
	if admin.Role != models.RoleAdmin {
		t.Fatalf("role = %q, want admin", admin.Role)
	}
	if !admin.Active {
		t.Fatal("bootstrap admin must be active")
	}
	if !security.CheckPassword(admin.Password, "correct horse") {
		t.Fatal("stored password hash does not verify")
	}
}

func TestEnsureAdminAccountSkipsWhenAccountsExist(t *testing.T) {
	t.Setenv("ADMIN_USERNAME", "root")
	t.Setenv("ADMIN_PASSWORD", "correct horse")

	conn := openTestDB(t)
	if errCreate := CreateAdminAccount(conn, "existing", "some password"); errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if errEnsure := EnsureAdminAccount(conn); errEnsure != nil {
		t.Fatalf("ensure: %v", errEnsure)
	}

	var count int64
	if errCount := conn.Model(&models.Admin{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected 1 account, got %d", count)
	}
}

func TestEnsureAdminAccountNoCredentials(t *testing.T) {
	t.Setenv("ADMIN_USERNAME", "")
	t.Setenv("ADMIN_PASSWORD", "")

	conn := openTestDB(t)
	if errEnsure := EnsureAdminAccount(conn); errEnsure != nil {
		t.Fatalf("ensure without credentials must not fail: %v", errEnsure)
	}

	var count int64
	if errCount := conn.Model(&models.Admin{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("expected no accounts, got %d", count)
	}
}
