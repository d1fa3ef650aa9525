package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mtandao-wifi/hotspot-portal/internal/models"
	"github.com/mtandao-wifi/hotspot-portal/internal/session"
	"gorm.io/gorm"
)

// SessionHandler manages admin session endpoints.
type SessionHandler struct {
	db    *gorm.DB       // Database handle for session records.
	guard *session.Guard // Owns session lifecycle transitions.
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(db *gorm.DB, guard *session.Guard) *SessionHandler {
	return &SessionHandler{db: db, guard: guard}
}

// sessionListQuery defines filters for the session list view.
type sessionListQuery struct {
	pageQuery
	Status    string `form:"status"`     // Lifecycle state filter.
	VoucherID uint64 `form:"voucher_id"` // Voucher filter.
	MAC       string `form:"mac"`        // MAC substring filter.
}

// List returns sessions with paging and filters.
func (h *SessionHandler) List(c *gin.Context) {
	var q sessionListQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	q.normalize()

	ctx := c.Request.Context()
	base := h.db.WithContext(ctx).Model(&models.Session{})

	if statusQ := strings.TrimSpace(q.Status); statusQ != "" {
		base = base.Where("status = ?", statusQ)
	}
	if q.VoucherID > 0 {
		base = base.Where("voucher_id = ?", q.VoucherID)
	}
	if macQ := strings.TrimSpace(q.MAC); macQ != "" {
		base = base.Where("mac_address LIKE ?", "%"+macQ+"%")
	}

	var total int64
	if errCount := base.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count sessions failed"})
		return
	}

	var rows []models.Session
	if errFind := base.
		Preload("Voucher").
		Order("start_time DESC").
		Offset(q.offset()).
		Limit(q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list sessions failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.formatSession(&row))
	}
	c.JSON(http.StatusOK, gin.H{
		"items":      out,
		"pagination": paginationMeta(&q.pageQuery, total),
	})
}

// Terminate ends an active session.
func (h *SessionHandler) Terminate(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	errTerminate := h.guard.Terminate(c.Request.Context(), id)
	switch {
	case errTerminate == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case errors.Is(errTerminate, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(errTerminate, session.ErrSessionNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": "session is not active"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "terminate failed"})
	}
}

// formatSession converts a session model into a response payload.
func (h *SessionHandler) formatSession(s *models.Session) gin.H {
	voucherCode := ""
	if s.Voucher.ID != 0 {
		voucherCode = s.Voucher.Code
	}
	return gin.H{
		"id":                s.ID,
		"voucher_id":        s.VoucherID,
		"voucher_code":      voucherCode,
		"mac_address":       s.MACAddress,
		"ip_address":        s.IPAddress,
		"start_time":        s.StartTime,
		"end_time":          s.EndTime,
		"data_used_mb":      s.DataUsedMB,
		"time_used_minutes": s.TimeUsedMinutes,
		"status":            s.Status,
		"created_at":        s.CreatedAt,
		"updated_at":        s.UpdatedAt,
	}
}
