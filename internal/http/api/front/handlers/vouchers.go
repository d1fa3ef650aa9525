package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mtandao-wifi/hotspot-portal/internal/session"
)

// VoucherFrontHandler serves the public voucher redemption endpoint.
type VoucherFrontHandler struct {
	guard *session.Guard
}

// NewVoucherFrontHandler constructs a VoucherFrontHandler.
func NewVoucherFrontHandler(guard *session.Guard) *VoucherFrontHandler {
	return &VoucherFrontHandler{guard: guard}
}

// redeemRequest captures the redemption payload from the captive portal.
type redeemRequest struct {
	Code        string `json:"code"`         // Voucher code.
	PhoneNumber string `json:"phone_number"` // Phone for bound vouchers.
	MACAddress  string `json:"mac_address"`  // Device MAC address.
	IPAddress   string `json:"ip_address"`   // Device IP address.
}

// Redeem validates a voucher and opens a session. Each failure kind maps
// to its own status and message so the portal can tell the user exactly
// what went wrong.
func (h *VoucherFrontHandler) Redeem(c *gin.Context) {
	var body redeemRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ip := body.IPAddress
	if ip == "" {
		ip = c.ClientIP()
	}

	result, errRedeem := h.guard.Redeem(c.Request.Context(), body.Code, body.PhoneNumber, body.MACAddress, ip)
	switch {
	case errRedeem == nil:
		c.JSON(http.StatusOK, gin.H{
			"session_id":         result.Session.ID,
			"plan_name":          result.PlanName,
			"code":               result.Code,
			"data_limit_mb":      result.DataLimitMB,
			"data_used_mb":       result.DataUsedMB,
			"time_limit_minutes": result.TimeLimitMinutes,
			"time_used_minutes":  result.TimeUsedMinutes,
			"expires_at":         result.ExpiresAt,
		})
	case errors.Is(errRedeem, session.ErrVoucherNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "voucher not found"})
	case errors.Is(errRedeem, session.ErrVoucherExpired):
		c.JSON(http.StatusGone, gin.H{"error": "voucher expired"})
	case errors.Is(errRedeem, session.ErrVoucherInactive):
		c.JSON(http.StatusConflict, gin.H{"error": "voucher is deactivated"})
	case errors.Is(errRedeem, session.ErrPhoneMismatch):
		c.JSON(http.StatusForbidden, gin.H{"error": "voucher is bound to another phone number"})
	case errors.Is(errRedeem, session.ErrDeviceLimitReached):
		c.JSON(http.StatusConflict, gin.H{"error": "device limit reached"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "redeem failed"})
	}
}
