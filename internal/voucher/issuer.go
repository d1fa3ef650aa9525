package voucher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mtandao-wifi/hotspot-portal/internal/metrics"
	"github.com/mtandao-wifi/hotspot-portal/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Issuer errors.
var (
	// ErrPlanNotFound indicates the referenced plan does not exist.
	ErrPlanNotFound = errors.New("voucher: plan not found")
	// ErrCodeSpaceExhausted indicates code generation kept colliding past
	// the attempt budget. This signals a near-full code space or a
	// generator defect and is not retried further.
	ErrCodeSpaceExhausted = errors.New("voucher: code space exhausted")
)

// maxCodeAttempts bounds collision retries per issuance.
const maxCodeAttempts = 10

// IssueParams describes one voucher issuance. Zero-value optional fields
// fall back to the plan's quotas and the issuer's expiry rule.
type IssueParams struct {
	PlanID           uint64     // Plan to issue against (required).
	PhoneNumber      string     // Binds redemption to this phone when set.
	PaymentRequestID *uint64    // Producing payment request, if any.
	ExpiresAt        *time.Time // Explicit expiry override.
}

// Issuer creates vouchers with unique redemption codes. The database unique
// index on the code column is the uniqueness guarantee; the retry loop only
// resolves the occasional collision.
type Issuer struct {
	db              *gorm.DB
	defaultValidity time.Duration
	generate        func() string
}

// NewIssuer constructs an Issuer. defaultValidity applies when neither the
// caller nor the plan supplies a validity window.
func NewIssuer(db *gorm.DB, defaultValidity time.Duration) *Issuer {
	if defaultValidity <= 0 {
		defaultValidity = 30 * 24 * time.Hour
	}
	return &Issuer{db: db, defaultValidity: defaultValidity, generate: GenerateCode}
}

// Issue creates a voucher in its own transaction.
func (i *Issuer) Issue(ctx context.Context, params IssueParams) (*models.Voucher, error) {
	var issued *models.Voucher
	errTx := i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, errIssue := i.IssueTx(tx, params)
		if errIssue != nil {
			return errIssue
		}
		issued = v
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return issued, nil
}

// IssueTx creates a voucher inside the caller's transaction so the voucher
// insert and any surrounding state change commit as one unit of work.
func (i *Issuer) IssueTx(tx *gorm.DB, params IssueParams) (*models.Voucher, error) {
	var plan models.Plan
	if errFind := tx.First(&plan, params.PlanID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("voucher: load plan: %w", errFind)
	}

	now := time.Now().UTC()
	expiresAt := i.expiry(now, &plan, params.ExpiresAt)

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		record := models.Voucher{
			Code:              i.generate(),
			PlanID:            plan.ID,
			PhoneNumber:       strings.TrimSpace(params.PhoneNumber),
			PaymentRequestID:  params.PaymentRequestID,
			DataLimitMB:       plan.DataLimitMB,
			TimeLimitMinutes:  plan.TimeLimitMinutes,
			ConcurrentDevices: plan.ConcurrentDevices,
			ExpiresAt:         expiresAt,
			IsActive:          true,
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		savepoint := fmt.Sprintf("issue_attempt_%d", attempt)
		if errSave := tx.SavePoint(savepoint).Error; errSave != nil {
			return nil, fmt.Errorf("voucher: savepoint: %w", errSave)
		}

		errCreate := tx.Create(&record).Error
		if errCreate == nil {
			metrics.VouchersIssued.Inc()
			return &record, nil
		}
		if !isDuplicateErr(errCreate) {
			return nil, fmt.Errorf("voucher: create: %w", errCreate)
		}
		if errRollback := tx.RollbackTo(savepoint).Error; errRollback != nil {
			return nil, fmt.Errorf("voucher: rollback savepoint: %w", errRollback)
		}
		log.WithField("attempt", attempt).Debug("voucher code collision, regenerating")
	}

	log.WithField("plan_id", plan.ID).Error("voucher code space exhausted")
	return nil, ErrCodeSpaceExhausted
}

// expiry resolves the voucher expiry: explicit override, then the plan's
// time quota, then the configured default validity window.
func (i *Issuer) expiry(now time.Time, plan *models.Plan, override *time.Time) time.Time {
	if override != nil && !override.IsZero() {
		return override.UTC()
	}
	if plan.TimeLimitMinutes > 0 {
		return now.Add(time.Duration(plan.TimeLimitMinutes) * time.Minute)
	}
	return now.Add(i.defaultValidity)
}

// isDuplicateErr reports whether the error is a unique-constraint violation.
func isDuplicateErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
