package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	dbutil "github.com/mtandao-wifi/hotspot-portal/internal/db"
	"github.com/mtandao-wifi/hotspot-portal/internal/models"
	"gorm.io/gorm"
)

// PaymentHandler serves the admin payment history views.
type PaymentHandler struct {
	db *gorm.DB // Database handle for payment records.
}

// NewPaymentHandler constructs a payment handler.
func NewPaymentHandler(db *gorm.DB) *PaymentHandler {
	return &PaymentHandler{db: db}
}

// paymentListQuery defines filters for the payment list view.
type paymentListQuery struct {
	pageQuery
	Status string `form:"status"`  // Lifecycle state filter.
	Phone  string `form:"phone"`   // Phone substring filter.
	Search string `form:"search"`  // Reference or receipt substring filter.
	PlanID uint64 `form:"plan_id"` // Plan filter.
}

// List returns payment requests with paging and filters.
func (h *PaymentHandler) List(c *gin.Context) {
	var q paymentListQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	q.normalize()

	ctx := c.Request.Context()
	base := h.db.WithContext(ctx).Model(&models.PaymentRequest{})

	if statusQ := strings.TrimSpace(q.Status); statusQ != "" {
		base = base.Where("status = ?", statusQ)
	}
	if phoneQ := strings.TrimSpace(q.Phone); phoneQ != "" {
		base = base.Where("phone_number LIKE ?", "%"+phoneQ+"%")
	}
	if q.PlanID > 0 {
		base = base.Where("plan_id = ?", q.PlanID)
	}
	if searchQ := strings.TrimSpace(q.Search); searchQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+searchQ+"%")
		base = base.Where(
			h.db.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "reference"), pattern).
				Or(dbutil.CaseInsensitiveLikeExpr(h.db, "receipt_number"), pattern),
		)
	}

	var total int64
	if errCount := base.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count payments failed"})
		return
	}

	var rows []models.PaymentRequest
	if errFind := base.
		Preload("Plan").
		Preload("Voucher").
		Order("created_at DESC").
		Offset(q.offset()).
		Limit(q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list payments failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.formatPayment(&row))
	}
	c.JSON(http.StatusOK, gin.H{
		"items":      out,
		"pagination": paginationMeta(&q.pageQuery, total),
	})
}

// Get fetches a payment request by ID.
func (h *PaymentHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var request models.PaymentRequest
	errFind := h.db.WithContext(c.Request.Context()).
		Preload("Plan").
		Preload("Voucher").
		First(&request, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.formatPayment(&request))
}

// formatPayment converts a payment request into a response payload.
func (h *PaymentHandler) formatPayment(p *models.PaymentRequest) gin.H {
	planName := ""
	if p.Plan.ID != 0 {
		planName = p.Plan.Name
	}
	voucherCode := ""
	if p.Voucher != nil {
		voucherCode = p.Voucher.Code
	}
	return gin.H{
		"id":                  p.ID,
		"reference":           p.Reference,
		"plan_id":             p.PlanID,
		"plan_name":           planName,
		"phone_number":        p.PhoneNumber,
		"amount":              p.Amount,
		"currency":            p.Currency,
		"status":              p.Status,
		"merchant_request_id": p.MerchantRequestID,
		"checkout_request_id": p.CheckoutRequestID,
		"receipt_number":      p.ReceiptNumber,
		"note":                p.Note,
		"voucher_id":          p.VoucherID,
		"voucher_code":        voucherCode,
		"created_at":          p.CreatedAt,
		"updated_at":          p.UpdatedAt,
	}
}
