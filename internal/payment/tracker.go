package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mtandao-wifi/hotspot-portal/internal/metrics"
	"github.com/mtandao-wifi/hotspot-portal/internal/models"
	"github.com/mtandao-wifi/hotspot-portal/internal/mpesa"
	"github.com/mtandao-wifi/hotspot-portal/internal/voucher"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Tracker errors.
var (
	// ErrPlanNotFound indicates the purchased plan does not exist.
	ErrPlanNotFound = errors.New("payment: plan not found")
	// ErrPlanInactive indicates the plan is disabled for purchase.
	ErrPlanInactive = errors.New("payment: plan inactive")
	// ErrRequestNotFound indicates no payment request matches the lookup.
	ErrRequestNotFound = errors.New("payment: request not found")
)

// errAlreadyTerminal aborts a reconcile transaction when the compare-and-set
// on status=pending loses to a concurrent delivery.
var errAlreadyTerminal = errors.New("payment: request already terminal")

// Tracker records payment attempts and reconciles gateway callbacks. A
// request transitions from pending to exactly one terminal state; the
// transition plus any voucher binding happens as a single conditional
// update so duplicate callback deliveries cannot double-issue.
type Tracker struct {
	db     *gorm.DB
	issuer *voucher.Issuer
}

// NewTracker constructs a Tracker.
func NewTracker(db *gorm.DB, issuer *voucher.Issuer) *Tracker {
	return &Tracker{db: db, issuer: issuer}
}

// CreatePending records a new payment attempt against an active plan. The
// amount is captured from the plan price at this instant and never re-read.
func (t *Tracker) CreatePending(ctx context.Context, planID uint64, phoneNumber string) (*models.PaymentRequest, error) {
	var plan models.Plan
	if errFind := t.db.WithContext(ctx).First(&plan, planID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("payment: load plan: %w", errFind)
	}
	if !plan.IsActive {
		return nil, ErrPlanInactive
	}

	now := time.Now().UTC()
	record := models.PaymentRequest{
		Reference:   uuid.NewString(),
		PlanID:      plan.ID,
		PhoneNumber: strings.TrimSpace(phoneNumber),
		Amount:      plan.Price,
		Currency:    plan.Currency,
		Status:      models.PaymentStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errCreate := t.db.WithContext(ctx).Create(&record).Error; errCreate != nil {
		return nil, fmt.Errorf("payment: create request: %w", errCreate)
	}
	return &record, nil
}

// RecordGatewayAccepted attaches the gateway correlation IDs after a
// successful initiation. The request stays pending until the callback.
func (t *Tracker) RecordGatewayAccepted(ctx context.Context, request *models.PaymentRequest, merchantRequestID, checkoutRequestID string) error {
	updates := map[string]any{
		"merchant_request_id": merchantRequestID,
		"checkout_request_id": checkoutRequestID,
		"updated_at":          time.Now().UTC(),
	}
	if errUpdate := t.db.WithContext(ctx).Model(&models.PaymentRequest{}).
		Where("id = ?", request.ID).Updates(updates).Error; errUpdate != nil {
		return fmt.Errorf("payment: record gateway accepted: %w", errUpdate)
	}
	request.MerchantRequestID = merchantRequestID
	request.CheckoutRequestID = checkoutRequestID
	return nil
}

// MarkInitiationFailed transitions a request to failed when initiation is
// known to have failed. A request is never left pending on a known
// initiation failure.
func (t *Tracker) MarkInitiationFailed(ctx context.Context, request *models.PaymentRequest, note string) error {
	res := t.db.WithContext(ctx).Model(&models.PaymentRequest{}).
		Where("id = ? AND status = ?", request.ID, models.PaymentStatusPending).
		Updates(map[string]any{
			"status":     models.PaymentStatusFailed,
			"note":       note,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("payment: mark initiation failed: %w", res.Error)
	}
	request.Status = models.PaymentStatusFailed
	request.Note = note
	return nil
}

// ReconcileCallback applies one gateway callback. The request is looked up
// by its correlation-ID pair; a request already in a terminal state is
// returned unchanged so redelivered callbacks are absorbed as no-ops. On
// success the voucher is issued and bound inside the same transaction as
// the status transition.
func (t *Tracker) ReconcileCallback(ctx context.Context, cb *mpesa.STKCallback) (*models.PaymentRequest, error) {
	if cb == nil || strings.TrimSpace(cb.CheckoutRequestID) == "" {
		return nil, ErrRequestNotFound
	}

	var result models.PaymentRequest
	errTx := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var request models.PaymentRequest
		errFind := tx.Where("merchant_request_id = ? AND checkout_request_id = ?",
			cb.MerchantRequestID, cb.CheckoutRequestID).First(&request).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return fmt.Errorf("payment: lookup by correlation pair: %w", errFind)
		}

		if request.Status.Terminal() {
			result = request
			return errAlreadyTerminal
		}

		now := time.Now().UTC()
		if !cb.Succeeded() {
			res := tx.Model(&models.PaymentRequest{}).
				Where("id = ? AND status = ?", request.ID, models.PaymentStatusPending).
				Updates(map[string]any{
					"status":     models.PaymentStatusFailed,
					"note":       cb.ResultDesc,
					"updated_at": now,
				})
			if res.Error != nil {
				return fmt.Errorf("payment: mark failed: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				result = request
				return errAlreadyTerminal
			}
			request.Status = models.PaymentStatusFailed
			request.Note = cb.ResultDesc
			result = request
			return nil
		}

		receipt := cb.CallbackMetadata.ReceiptNumber()
		res := tx.Model(&models.PaymentRequest{}).
			Where("id = ? AND status = ?", request.ID, models.PaymentStatusPending).
			Updates(map[string]any{
				"status":         models.PaymentStatusCompleted,
				"receipt_number": receipt,
				"note":           cb.ResultDesc,
				"updated_at":     now,
			})
		if res.Error != nil {
			return fmt.Errorf("payment: mark completed: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			result = request
			return errAlreadyTerminal
		}

		issued, errIssue := t.issuer.IssueTx(tx, voucher.IssueParams{
			PlanID:           request.PlanID,
			PhoneNumber:      request.PhoneNumber,
			PaymentRequestID: &request.ID,
		})
		if errIssue != nil {
			return errIssue
		}
		if errBind := tx.Model(&models.PaymentRequest{}).
			Where("id = ?", request.ID).
			Update("voucher_id", issued.ID).Error; errBind != nil {
			return fmt.Errorf("payment: bind voucher: %w", errBind)
		}

		request.Status = models.PaymentStatusCompleted
		request.ReceiptNumber = receipt
		request.Note = cb.ResultDesc
		request.VoucherID = &issued.ID
		request.Voucher = issued
		result = request
		return nil
	})

	switch {
	case errTx == nil:
		metrics.PaymentsReconciled.WithLabelValues(string(result.Status)).Inc()
		log.WithFields(log.Fields{
			"reference": result.Reference,
			"status":    result.Status,
		}).Info("payment reconciled")
		return &result, nil
	case errors.Is(errTx, errAlreadyTerminal):
		// Redelivered callback: acknowledge without changing anything.
		metrics.PaymentsReconciled.WithLabelValues("replay").Inc()
		return t.reload(ctx, result.ID)
	default:
		return nil, errTx
	}
}

// ByReference returns a payment request with its voucher preloaded.
func (t *Tracker) ByReference(ctx context.Context, reference string) (*models.PaymentRequest, error) {
	var request models.PaymentRequest
	errFind := t.db.WithContext(ctx).
		Preload("Voucher").
		Where("reference = ?", strings.TrimSpace(reference)).
		First(&request).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("payment: lookup by reference: %w", errFind)
	}
	return &request, nil
}

// reload fetches the stored record outside the aborted transaction.
func (t *Tracker) reload(ctx context.Context, id uint64) (*models.PaymentRequest, error) {
	var request models.PaymentRequest
	if errFind := t.db.WithContext(ctx).Preload("Voucher").First(&request, id).Error; errFind != nil {
		return nil, fmt.Errorf("payment: reload request: %w", errFind)
	}
	return &request, nil
}
