package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mtandao-wifi/hotspot-portal/internal/models"
	"gorm.io/gorm"
)

// DashboardHandler serves aggregate counters for the admin dashboard.
type DashboardHandler struct {
	db *gorm.DB // Database handle for aggregate queries.
}

// NewDashboardHandler constructs a dashboard handler.
func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

// Stats returns headline counts for the dashboard landing view.
func (h *DashboardHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now().UTC()

	var plans, vouchersLive, sessionsActive, paymentsPending, paymentsCompleted int64
	var revenue float64

	if errCount := h.db.WithContext(ctx).Model(&models.Plan{}).
		Where("is_active = ?", true).Count(&plans).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if errCount := h.db.WithContext(ctx).Model(&models.Voucher{}).
		Where("is_active = ? AND expires_at > ?", true, now).
		Count(&vouchersLive).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if errCount := h.db.WithContext(ctx).Model(&models.Session{}).
		Where("status = ?", models.SessionStatusActive).
		Count(&sessionsActive).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if errCount := h.db.WithContext(ctx).Model(&models.PaymentRequest{}).
		Where("status = ?", models.PaymentStatusPending).
		Count(&paymentsPending).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if errCount := h.db.WithContext(ctx).Model(&models.PaymentRequest{}).
		Where("status = ?", models.PaymentStatusCompleted).
		Count(&paymentsCompleted).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	row := h.db.WithContext(ctx).Model(&models.PaymentRequest{}).
		Where("status = ?", models.PaymentStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Row()
	if errScan := row.Scan(&revenue); errScan != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"active_plans":       plans,
		"live_vouchers":      vouchersLive,
		"active_sessions":    sessionsActive,
		"pending_payments":   paymentsPending,
		"completed_payments": paymentsCompleted,
		"total_revenue":      revenue,
	})
}
