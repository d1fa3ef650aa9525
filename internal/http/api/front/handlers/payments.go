package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mtandao-wifi/hotspot-portal/internal/models"
	"github.com/mtandao-wifi/hotspot-portal/internal/mpesa"
	"github.com/mtandao-wifi/hotspot-portal/internal/payment"
	log "github.com/sirupsen/logrus"
)

// PaymentFrontHandler serves the public payment endpoints.
type PaymentFrontHandler struct {
	payments *payment.Service
	tracker  *payment.Tracker
}

// NewPaymentFrontHandler constructs a PaymentFrontHandler.
func NewPaymentFrontHandler(payments *payment.Service, tracker *payment.Tracker) *PaymentFrontHandler {
	return &PaymentFrontHandler{payments: payments, tracker: tracker}
}

// initiatePaymentRequest captures the payment initiation payload.
type initiatePaymentRequest struct {
	PlanID      uint64 `json:"plan_id"`      // Plan to purchase.
	PhoneNumber string `json:"phone_number"` // Payer phone number.
}

// Initiate starts a push payment for a plan. On success the client polls
// the returned reference until the callback settles the request.
func (h *PaymentFrontHandler) Initiate(c *gin.Context) {
	var body initiatePaymentRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.PlanID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id is required"})
		return
	}

	request, errInitiate := h.payments.Initiate(c.Request.Context(), body.PlanID, body.PhoneNumber)
	switch {
	case errInitiate == nil:
		c.JSON(http.StatusAccepted, gin.H{
			"reference": request.Reference,
			"status":    request.Status,
			"amount":    request.Amount,
			"currency":  request.Currency,
		})
	case errors.Is(errInitiate, mpesa.ErrInvalidPhoneNumber):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phone number"})
	case errors.Is(errInitiate, payment.ErrPlanNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
	case errors.Is(errInitiate, payment.ErrPlanInactive):
		c.JSON(http.StatusConflict, gin.H{"error": "plan is not available"})
	case errors.Is(errInitiate, payment.ErrGatewayInitiationFailed):
		// The request is already marked failed; surface the reference so
		// the client can show the failure detail.
		out := gin.H{"error": "payment initiation failed"}
		if request != nil {
			out["reference"] = request.Reference
			out["status"] = request.Status
		}
		c.JSON(http.StatusBadGateway, out)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "initiate payment failed"})
	}
}

// Status returns the current state of a payment request by reference. The
// voucher code appears once the payment completes.
func (h *PaymentFrontHandler) Status(c *gin.Context) {
	request, errFind := h.tracker.ByReference(c.Request.Context(), c.Param("reference"))
	if errFind != nil {
		if errors.Is(errFind, payment.ErrRequestNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := gin.H{
		"reference": request.Reference,
		"status":    request.Status,
		"amount":    request.Amount,
		"currency":  request.Currency,
	}
	if request.Status == models.PaymentStatusFailed && request.Note != "" {
		out["note"] = request.Note
	}
	if request.Status == models.PaymentStatusCompleted && request.Voucher != nil {
		out["voucher"] = gin.H{
			"code":               request.Voucher.Code,
			"expires_at":         request.Voucher.ExpiresAt,
			"data_limit_mb":      request.Voucher.DataLimitMB,
			"time_limit_minutes": request.Voucher.TimeLimitMinutes,
		}
	}
	c.JSON(http.StatusOK, out)
}

// callbackAck is the acknowledgement body the gateway expects. Anything
// other than a zero ResultCode makes the gateway retry delivery.
var callbackAck = gin.H{"ResultCode": 0, "ResultDesc": "Accepted"}

// MpesaCallback receives the gateway settlement callback. Unknown or
// replayed callbacks are acknowledged anyway so the gateway stops
// retrying; only a malformed body is rejected.
func (h *PaymentFrontHandler) MpesaCallback(c *gin.Context) {
	var envelope mpesa.CallbackEnvelope
	if errBind := c.ShouldBindJSON(&envelope); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	cb := envelope.Body.STKCallback
	if cb == nil {
		log.Warn("mpesa callback without stkCallback body")
		c.JSON(http.StatusOK, callbackAck)
		return
	}

	if _, errReconcile := h.tracker.ReconcileCallback(c.Request.Context(), cb); errReconcile != nil {
		log.WithError(errReconcile).WithFields(log.Fields{
			"merchant_request_id": cb.MerchantRequestID,
			"checkout_request_id": cb.CheckoutRequestID,
		}).Warn("mpesa callback reconcile failed")
	}
	c.JSON(http.StatusOK, callbackAck)
}
