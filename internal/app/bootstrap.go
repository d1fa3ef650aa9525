package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mtandao-wifi/hotspot-portal/internal/config"
	"github.com/mtandao-wifi/hotspot-portal/internal/models"
	"github.com/mtandao-wifi/hotspot-portal/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// EnsureAdminAccount seeds the first operator account from the environment
// when the admins table is empty. With no credentials configured the portal
// still serves the front API; the admin API stays unusable until an
// account exists.
func EnsureAdminAccount(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("bootstrap admin: nil connection")
	}

	var count int64
	if errCount := conn.Model(&models.Admin{}).Count(&count).Error; errCount != nil {
		return fmt.Errorf("bootstrap admin: count: %w", errCount)
	}
	if count > 0 {
		return nil
	}

	username := strings.TrimSpace(os.Getenv(config.EnvAdminUsername))
	password := os.Getenv(config.EnvAdminPassword)
	if username == "" || password == "" {
		log.Warn("no admin accounts and no bootstrap credentials configured")
		return nil
	}

	return CreateAdminAccount(conn, username, password)
}

// CreateAdminAccount inserts an operator account with the admin role.
func CreateAdminAccount(conn *gorm.DB, username, password string) error {
	hashedPassword, errHash := security.HashPassword(password)
	if errHash != nil {
		return fmt.Errorf("hash password: %w", errHash)
	}

	now := time.Now().UTC()
	admin := models.Admin{
		Username:  username,
		Password:  hashedPassword,
		Role:      models.RoleAdmin,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := conn.Create(&admin).Error; errCreate != nil {
		return fmt.Errorf("create admin: %w", errCreate)
	}

	log.WithField("username", username).Info("bootstrap admin account created")
	return nil
}
