package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	dbutil "github.com/mtandao-wifi/hotspot-portal/internal/db"
	"github.com/mtandao-wifi/hotspot-portal/internal/models"
	"github.com/mtandao-wifi/hotspot-portal/internal/voucher"
	qrcode "github.com/skip2/go-qrcode"
	"gorm.io/gorm"
)

// VoucherHandler manages admin voucher endpoints.
type VoucherHandler struct {
	db     *gorm.DB        // Database handle for voucher records.
	issuer *voucher.Issuer // Issues vouchers with unique codes.
}

// NewVoucherHandler constructs a voucher handler.
func NewVoucherHandler(db *gorm.DB, issuer *voucher.Issuer) *VoucherHandler {
	return &VoucherHandler{db: db, issuer: issuer}
}

// createVoucherRequest captures the payload for manual voucher issuance,
// the complimentary path that bypasses payment.
type createVoucherRequest struct {
	PlanID      uint64     `json:"plan_id"`      // Plan to issue against.
	PhoneNumber string     `json:"phone_number"` // Optional phone binding.
	ExpiresAt   *time.Time `json:"expires_at"`   // Optional expiry override.
}

// Create issues a voucher directly without a payment request.
func (h *VoucherHandler) Create(c *gin.Context) {
	var body createVoucherRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.PlanID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id is required"})
		return
	}
	if body.ExpiresAt != nil && !body.ExpiresAt.After(time.Now().UTC()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expires_at must be in the future"})
		return
	}

	issued, errIssue := h.issuer.Issue(c.Request.Context(), voucher.IssueParams{
		PlanID:      body.PlanID,
		PhoneNumber: body.PhoneNumber,
		ExpiresAt:   body.ExpiresAt,
	})
	if errIssue != nil {
		if errors.Is(errIssue, voucher.ErrPlanNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue voucher failed"})
		return
	}
	c.JSON(http.StatusCreated, h.formatVoucher(issued))
}

// voucherListQuery defines filters for the voucher list view.
type voucherListQuery struct {
	pageQuery
	Code     string `form:"code"`      // Code substring filter.
	Phone    string `form:"phone"`     // Phone substring filter.
	PlanID   uint64 `form:"plan_id"`   // Plan filter.
	IsActive string `form:"is_active"` // Active flag filter.
	Expired  string `form:"expired"`   // Expiry filter, "true" or "false".
}

// List returns vouchers with paging and filters.
func (h *VoucherHandler) List(c *gin.Context) {
	var q voucherListQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	q.normalize()

	ctx := c.Request.Context()
	base := h.db.WithContext(ctx).Model(&models.Voucher{})

	if codeQ := strings.TrimSpace(q.Code); codeQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+codeQ+"%")
		base = base.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "code"), pattern)
	}
	if phoneQ := strings.TrimSpace(q.Phone); phoneQ != "" {
		base = base.Where("phone_number LIKE ?", "%"+phoneQ+"%")
	}
	if q.PlanID > 0 {
		base = base.Where("plan_id = ?", q.PlanID)
	}
	if activeQ := strings.TrimSpace(q.IsActive); activeQ != "" {
		base = base.Where("is_active = ?", activeQ == "true" || activeQ == "1")
	}
	if expiredQ := strings.TrimSpace(q.Expired); expiredQ != "" {
		now := time.Now().UTC()
		if expiredQ == "true" || expiredQ == "1" {
			base = base.Where("expires_at <= ?", now)
		} else {
			base = base.Where("expires_at > ?", now)
		}
	}

	var total int64
	if errCount := base.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count vouchers failed"})
		return
	}

	var rows []models.Voucher
	if errFind := base.
		Preload("Plan").
		Order("created_at DESC").
		Offset(q.offset()).
		Limit(q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list vouchers failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.formatVoucher(&row))
	}
	c.JSON(http.StatusOK, gin.H{
		"items":      out,
		"pagination": paginationMeta(&q.pageQuery, total),
	})
}

// Get fetches a voucher by ID.
func (h *VoucherHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var v models.Voucher
	if errFind := h.db.WithContext(c.Request.Context()).Preload("Plan").First(&v, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.formatVoucher(&v))
}

// qrCodeSize is the rendered QR image edge length in pixels.
const qrCodeSize = 256

// QRCode renders the voucher code as a QR PNG for printed handouts.
func (h *VoucherHandler) QRCode(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var v models.Voucher
	if errFind := h.db.WithContext(c.Request.Context()).First(&v, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	png, errEncode := qrcode.Encode(v.Code, qrcode.Medium, qrCodeSize)
	if errEncode != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode qr failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// Deactivate revokes a voucher. Deactivation is permanent from the
// redemption path's point of view; there is no re-enable endpoint.
func (h *VoucherHandler) Deactivate(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	now := time.Now().UTC()
	res := h.db.WithContext(c.Request.Context()).Model(&models.Voucher{}).Where("id = ?", id).
		Updates(map[string]any{"is_active": false, "updated_at": now})
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

// Delete removes a voucher row. Payment requests keep their voucher_id as a
// dangling reference; history endpoints tolerate the missing row.
func (h *VoucherHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.Voucher{}, id)
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

// formatVoucher converts a voucher model into a response payload.
func (h *VoucherHandler) formatVoucher(v *models.Voucher) gin.H {
	planName := ""
	if v.Plan.ID != 0 {
		planName = v.Plan.Name
	}
	return gin.H{
		"id":                 v.ID,
		"code":               v.Code,
		"plan_id":            v.PlanID,
		"plan_name":          planName,
		"phone_number":       v.PhoneNumber,
		"payment_request_id": v.PaymentRequestID,
		"data_limit_mb":      v.DataLimitMB,
		"data_used_mb":       v.DataUsedMB,
		"time_limit_minutes": v.TimeLimitMinutes,
		"time_used_minutes":  v.TimeUsedMinutes,
		"concurrent_devices": v.ConcurrentDevices,
		"expires_at":         v.ExpiresAt,
		"is_active":          v.IsActive,
		"last_used_at":       v.LastUsedAt,
		"created_at":         v.CreatedAt,
		"updated_at":         v.UpdatedAt,
	}
}
