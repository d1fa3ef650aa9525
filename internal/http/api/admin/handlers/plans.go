package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mtandao-wifi/hotspot-portal/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlanHandler manages admin CRUD endpoints for plans.
type PlanHandler struct {
	db *gorm.DB // Database handle for plan records.
}

// NewPlanHandler constructs a plan handler.
func NewPlanHandler(db *gorm.DB) *PlanHandler {
	return &PlanHandler{db: db}
}

// normalizePlanFeatures validates and normalizes the features JSON payload,
// a flat list of marketing strings.
func normalizePlanFeatures(raw json.RawMessage) (datatypes.JSON, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return datatypes.JSON([]byte("[]")), nil
	}

	var features []string
	if errUnmarshal := json.Unmarshal(raw, &features); errUnmarshal != nil {
		return nil, errors.New("invalid features")
	}
	cleaned := make([]string, 0, len(features))
	for _, feature := range features {
		trimmed := strings.TrimSpace(feature)
		if trimmed == "" {
			continue
		}
		cleaned = append(cleaned, trimmed)
	}
	rawFeatures, errMarshal := json.Marshal(cleaned)
	if errMarshal != nil {
		return nil, errMarshal
	}
	return datatypes.JSON(rawFeatures), nil
}

// createPlanRequest captures the payload for creating a plan.
type createPlanRequest struct {
	Name              string          `json:"name"`               // Plan name.
	Description       string          `json:"description"`        // Plan description.
	Type              string          `json:"type"`               // Validity window class.
	Price             float64         `json:"price"`              // Price in currency units.
	Currency          string          `json:"currency"`           // ISO currency code.
	DataLimitMB       int64           `json:"data_limit_mb"`      // Data quota in MB.
	TimeLimitMinutes  int             `json:"time_limit_minutes"` // Time quota in minutes.
	BandwidthKbps     int             `json:"bandwidth_kbps"`     // Bandwidth cap in Kbps.
	ConcurrentDevices int             `json:"concurrent_devices"` // Max simultaneous devices.
	Features          json.RawMessage `json:"features"`           // Marketing feature list.
	DisplayOrder      int             `json:"display_order"`      // Display ordering weight.
	IsActive          *bool           `json:"is_active"`          // Optional active flag.
}

// Create validates input and inserts a new plan.
func (h *PlanHandler) Create(c *gin.Context) {
	var body createPlanRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if strings.TrimSpace(body.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	planType := models.PlanType(strings.TrimSpace(body.Type))
	if !models.ValidPlanType(planType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid type"})
		return
	}
	if body.Price < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price cannot be negative"})
		return
	}

	isActive := true
	if body.IsActive != nil {
		isActive = *body.IsActive
	}
	currency := strings.ToUpper(strings.TrimSpace(body.Currency))
	if currency == "" {
		currency = "KES"
	}
	concurrentDevices := body.ConcurrentDevices
	if concurrentDevices < 1 {
		concurrentDevices = 1
	}

	features, errFeatures := normalizePlanFeatures(body.Features)
	if errFeatures != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid features"})
		return
	}

	now := time.Now().UTC()
	plan := models.Plan{
		Name:              strings.TrimSpace(body.Name),
		Description:       body.Description,
		Type:              planType,
		Price:             body.Price,
		Currency:          currency,
		DataLimitMB:       body.DataLimitMB,
		TimeLimitMinutes:  body.TimeLimitMinutes,
		BandwidthKbps:     body.BandwidthKbps,
		ConcurrentDevices: concurrentDevices,
		Features:          features,
		IsActive:          isActive,
		DisplayOrder:      body.DisplayOrder,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if errCreate := h.db.WithContext(c.Request.Context()).Create(&plan).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create plan failed"})
		return
	}
	c.JSON(http.StatusCreated, h.formatPlan(&plan))
}

// List returns all plans, optionally filtered by active flag and type.
func (h *PlanHandler) List(c *gin.Context) {
	activeQ := strings.TrimSpace(c.Query("is_active"))
	typeQ := strings.TrimSpace(c.Query("type"))

	q := h.db.WithContext(c.Request.Context()).Model(&models.Plan{})
	if activeQ != "" {
		if activeQ == "true" || activeQ == "1" {
			q = q.Where("is_active = ?", true)
		} else if activeQ == "false" || activeQ == "0" {
			q = q.Where("is_active = ?", false)
		}
	}
	if typeQ != "" {
		q = q.Where("type = ?", typeQ)
	}

	var rows []models.Plan
	if errFind := q.Order("display_order ASC, created_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list plans failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.formatPlan(&row))
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

// Get fetches a plan by ID.
func (h *PlanHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var plan models.Plan
	if errFind := h.db.WithContext(c.Request.Context()).First(&plan, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.formatPlan(&plan))
}

// updatePlanRequest captures optional fields for plan updates.
type updatePlanRequest struct {
	Name              *string          `json:"name"`               // Optional name update.
	Description       *string          `json:"description"`        // Optional description.
	Type              *string          `json:"type"`               // Optional validity window class.
	Price             *float64         `json:"price"`              // Optional price.
	Currency          *string          `json:"currency"`           // Optional currency code.
	DataLimitMB       *int64           `json:"data_limit_mb"`      // Optional data quota.
	TimeLimitMinutes  *int             `json:"time_limit_minutes"` // Optional time quota.
	BandwidthKbps     *int             `json:"bandwidth_kbps"`     // Optional bandwidth cap.
	ConcurrentDevices *int             `json:"concurrent_devices"` // Optional device limit.
	Features          *json.RawMessage `json:"features"`           // Optional feature list.
	DisplayOrder      *int             `json:"display_order"`      // Optional display order.
	IsActive          *bool            `json:"is_active"`          // Optional active flag.
}

// Update validates and applies plan field updates. Changes do not retouch
// already issued vouchers; quotas are copied at issuance time.
func (h *PlanHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updatePlanRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var existing models.Plan
	if errFind := h.db.WithContext(c.Request.Context()).First(&existing, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	updates := map[string]any{
		"updated_at": time.Now().UTC(),
	}

	if body.Name != nil {
		n := strings.TrimSpace(*body.Name)
		if n == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}
		updates["name"] = n
	}
	if body.Description != nil {
		updates["description"] = *body.Description
	}
	if body.Type != nil {
		planType := models.PlanType(strings.TrimSpace(*body.Type))
		if !models.ValidPlanType(planType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid type"})
			return
		}
		updates["type"] = planType
	}
	if body.Price != nil {
		if *body.Price < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price cannot be negative"})
			return
		}
		updates["price"] = *body.Price
	}
	if body.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*body.Currency))
		if currency == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "currency cannot be empty"})
			return
		}
		updates["currency"] = currency
	}
	if body.DataLimitMB != nil {
		updates["data_limit_mb"] = *body.DataLimitMB
	}
	if body.TimeLimitMinutes != nil {
		updates["time_limit_minutes"] = *body.TimeLimitMinutes
	}
	if body.BandwidthKbps != nil {
		updates["bandwidth_kbps"] = *body.BandwidthKbps
	}
	if body.ConcurrentDevices != nil {
		if *body.ConcurrentDevices < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "concurrent_devices must be at least 1"})
			return
		}
		updates["concurrent_devices"] = *body.ConcurrentDevices
	}
	if body.Features != nil {
		features, errFeatures := normalizePlanFeatures(*body.Features)
		if errFeatures != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid features"})
			return
		}
		updates["features"] = features
	}
	if body.DisplayOrder != nil {
		updates["display_order"] = *body.DisplayOrder
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Plan{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a plan by ID. A plan still referenced by a live voucher
// cannot be deleted; disable it instead.
func (h *PlanHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	ctx := c.Request.Context()
	now := time.Now().UTC()

	var inUse int64
	if errCount := h.db.WithContext(ctx).Model(&models.Voucher{}).
		Where("plan_id = ? AND is_active = ? AND expires_at > ?", id, true, now).
		Count(&inUse).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if inUse > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "plan has active vouchers"})
		return
	}

	res := h.db.WithContext(ctx).Delete(&models.Plan{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Enable marks a plan as purchasable.
func (h *PlanHandler) Enable(c *gin.Context) {
	h.setActive(c, true)
}

// Disable marks a plan as not purchasable. Existing vouchers are unaffected.
func (h *PlanHandler) Disable(c *gin.Context) {
	h.setActive(c, false)
}

// setActive toggles the active state for a plan.
func (h *PlanHandler) setActive(c *gin.Context, active bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	now := time.Now().UTC()
	res := h.db.WithContext(c.Request.Context()).Model(&models.Plan{}).Where("id = ?", id).
		Updates(map[string]any{"is_active": active, "updated_at": now})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// formatPlan converts a plan model into a response payload.
func (h *PlanHandler) formatPlan(p *models.Plan) gin.H {
	return gin.H{
		"id":                 p.ID,
		"name":               p.Name,
		"description":        p.Description,
		"type":               p.Type,
		"price":              p.Price,
		"currency":           p.Currency,
		"data_limit_mb":      p.DataLimitMB,
		"time_limit_minutes": p.TimeLimitMinutes,
		"bandwidth_kbps":     p.BandwidthKbps,
		"concurrent_devices": p.ConcurrentDevices,
		"features":           p.Features,
		"is_active":          p.IsActive,
		"display_order":      p.DisplayOrder,
		"created_at":         p.CreatedAt,
		"updated_at":         p.UpdatedAt,
	}
}
