package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mtandao-wifi/hotspot-portal/internal/models"
	"gorm.io/gorm"
)

// PlanFrontHandler serves the public plan catalog.
type PlanFrontHandler struct {
	db *gorm.DB
}

// NewPlanFrontHandler constructs a PlanFrontHandler.
func NewPlanFrontHandler(db *gorm.DB) *PlanFrontHandler {
	return &PlanFrontHandler{db: db}
}

// List returns purchasable plans for the portal landing page. Disabled
// plans never appear here.
func (h *PlanFrontHandler) List(c *gin.Context) {
	var plans []models.Plan
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("is_active = ?", true).
		Order("display_order ASC, created_at DESC").
		Find(&plans).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list plans failed"})
		return
	}

	out := make([]gin.H, 0, len(plans))
	for _, plan := range plans {
		out = append(out, gin.H{
			"id":                 plan.ID,
			"name":               plan.Name,
			"description":        plan.Description,
			"type":               plan.Type,
			"price":              plan.Price,
			"currency":           plan.Currency,
			"data_limit_mb":      plan.DataLimitMB,
			"time_limit_minutes": plan.TimeLimitMinutes,
			"bandwidth_kbps":     plan.BandwidthKbps,
			"concurrent_devices": plan.ConcurrentDevices,
			"features":           plan.Features,
			"display_order":      plan.DisplayOrder,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"items": out,
		"pagination": gin.H{
			"page":        1,
			"limit":       len(out),
			"total":       int64(len(out)),
			"total_pages": int64(1),
		},
	})
}
