package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mtandao-wifi/hotspot-portal/internal/config"
	"github.com/mtandao-wifi/hotspot-portal/internal/models"
	"github.com/mtandao-wifi/hotspot-portal/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuthHandler manages admin authentication and self-service endpoints.
type AuthHandler struct {
	db     *gorm.DB         // Database handle for admin records.
	jwtCfg config.JWTConfig // Token signing settings.
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg}
}

// loginRequest captures the login payload. TOTPCode is required only when
// the account has MFA enabled.
type loginRequest struct {
	Username string `json:"username"`  // Login name.
	Password string `json:"password"`  // Plaintext password.
	TOTPCode string `json:"totp_code"` // One-time code when MFA is on.
}

// Login verifies credentials and issues a JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	username := strings.TrimSpace(body.Username)
	if username == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	var admin models.Admin
	errFind := h.db.WithContext(c.Request.Context()).Where("username = ?", username).First(&admin).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if !security.CheckPassword(admin.Password, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !admin.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "account disabled"})
		return
	}
	if admin.TOTPSecret != "" {
		if strings.TrimSpace(body.TOTPCode) == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "totp code required", "totp_required": true})
			return
		}
		if !security.ValidateTOTP(admin.TOTPSecret, body.TOTPCode) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp code"})
			return
		}
	}

	token, errSign := security.NewAdminToken(h.jwtCfg.Secret, h.jwtCfg.Expiry, &admin)
	if errSign != nil {
		log.WithError(errSign).Error("sign admin token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": time.Now().UTC().Add(h.jwtCfg.Expiry),
		"admin":      formatAdmin(&admin),
	})
}

// Me returns the authenticated admin's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, formatAdmin(admin))
}

// changePasswordRequest captures the self-service password change payload.
type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"` // Current plaintext password.
	NewPassword     string `json:"new_password"`     // Replacement plaintext password.
}

// ChangePassword rotates the authenticated admin's own password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}

	var body changePasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body.NewPassword) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "new password must be at least 8 characters"})
		return
	}
	if !security.CheckPassword(admin.Password, body.CurrentPassword) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "current password is incorrect"})
		return
	}

	hashed, errHash := security.HashPassword(body.NewPassword)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("id = ?", admin.ID).
		Updates(map[string]any{"password": hashed, "updated_at": time.Now().UTC()}).Error
	if errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// PrepareTOTP generates a new TOTP secret and returns the provisioning URL.
// The secret is not stored until confirmed.
func (h *AuthHandler) PrepareTOTP(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	if admin.TOTPSecret != "" {
		c.JSON(http.StatusConflict, gin.H{"error": "totp already enabled"})
		return
	}

	secret, url, errGenerate := security.GenerateTOTPSecret(admin.Username)
	if errGenerate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate totp secret failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": secret, "url": url})
}

// confirmTOTPRequest captures the TOTP enrollment confirmation payload.
type confirmTOTPRequest struct {
	Secret string `json:"secret"` // Secret returned by prepare.
	Code   string `json:"code"`   // Current one-time code.
}

// ConfirmTOTP verifies a code against the prepared secret and enables MFA.
func (h *AuthHandler) ConfirmTOTP(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}

	var body confirmTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	secret := strings.TrimSpace(body.Secret)
	if secret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "secret is required"})
		return
	}
	if !security.ValidateTOTP(secret, body.Code) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp code"})
		return
	}

	errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("id = ?", admin.ID).
		Updates(map[string]any{"totp_secret": secret, "updated_at": time.Now().UTC()}).Error
	if errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// disableTOTPRequest captures the MFA disable payload.
type disableTOTPRequest struct {
	Code string `json:"code"` // Current one-time code.
}

// DisableTOTP turns off MFA after verifying a current code.
func (h *AuthHandler) DisableTOTP(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	if admin.TOTPSecret == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "totp not enabled"})
		return
	}

	var body disableTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !security.ValidateTOTP(admin.TOTPSecret, body.Code) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp code"})
		return
	}

	errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("id = ?", admin.ID).
		Updates(map[string]any{"totp_secret": "", "updated_at": time.Now().UTC()}).Error
	if errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// currentAdmin loads the authenticated admin from the request context.
func (h *AuthHandler) currentAdmin(c *gin.Context) (*models.Admin, bool) {
	adminID := c.GetUint64("adminID")
	if adminID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return nil, false
	}
	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).First(&admin, adminID).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
		return nil, false
	}
	return &admin, true
}

// formatAdmin converts an admin model into a response payload. The password
// hash and TOTP secret never leave the server.
func formatAdmin(a *models.Admin) gin.H {
	return gin.H{
		"id":           a.ID,
		"username":     a.Username,
		"name":         a.Name,
		"email":        a.Email,
		"role":         a.Role,
		"active":       a.Active,
		"totp_enabled": a.TOTPSecret != "",
		"created_at":   a.CreatedAt,
		"updated_at":   a.UpdatedAt,
	}
}
