package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mtandao-wifi/hotspot-portal/internal/metrics"
	"github.com/mtandao-wifi/hotspot-portal/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Guard errors. Each redemption failure maps to one distinct kind so the
// portal can render a specific remediation message.
var (
	// ErrVoucherNotFound indicates no voucher matches the code.
	ErrVoucherNotFound = errors.New("session: voucher not found")
	// ErrVoucherExpired indicates the voucher's expiry has passed.
	ErrVoucherExpired = errors.New("session: voucher expired")
	// ErrVoucherInactive indicates the voucher was deactivated.
	ErrVoucherInactive = errors.New("session: voucher inactive")
	// ErrPhoneMismatch indicates the voucher is bound to another phone.
	ErrPhoneMismatch = errors.New("session: phone number mismatch")
	// ErrDeviceLimitReached indicates the voucher's device limit is in use.
	ErrDeviceLimitReached = errors.New("session: device limit reached")
	// ErrSessionNotFound indicates no session matches the ID.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionNotActive indicates the session is already terminal.
	ErrSessionNotActive = errors.New("session: not active")
)

// RedeemResult summarizes the voucher after a successful redemption so the
// client can render remaining quota.
type RedeemResult struct {
	PlanName         string
	Code             string
	DataLimitMB      int64
	DataUsedMB       int64
	TimeLimitMinutes int
	TimeUsedMinutes  int
	ExpiresAt        time.Time
	Session          *models.Session
}

// Guard validates vouchers at login time and opens sessions. Admission is
// serialized per voucher: the active-session count check and the session
// insert run under a per-voucher lock inside one transaction, so concurrent
// redemptions cannot overshoot the device limit.
type Guard struct {
	db *gorm.DB

	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

// NewGuard constructs a Guard.
func NewGuard(db *gorm.DB) *Guard {
	return &Guard{db: db, locks: make(map[uint64]*sync.Mutex)}
}

// voucherLock returns the mutex serializing admission for one voucher.
func (g *Guard) voucherLock(voucherID uint64) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	lock, ok := g.locks[voucherID]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[voucherID] = lock
	}
	return lock
}

// Redeem validates the voucher and opens a session. Validation order:
// existence, expiry, active flag, phone binding, device limit. Expiry is
// checked before the active flag so an expired voucher always reports
// ErrVoucherExpired regardless of its active state.
func (g *Guard) Redeem(ctx context.Context, code, phoneNumber, macAddress, ipAddress string) (*RedeemResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrVoucherNotFound
	}

	var v models.Voucher
	errFind := g.db.WithContext(ctx).Preload("Plan").Where("code = ?", code).First(&v).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			metrics.Redemptions.WithLabelValues("not_found").Inc()
			return nil, ErrVoucherNotFound
		}
		return nil, fmt.Errorf("session: lookup voucher: %w", errFind)
	}

	now := time.Now().UTC()
	if !v.ExpiresAt.After(now) {
		metrics.Redemptions.WithLabelValues("expired").Inc()
		return nil, ErrVoucherExpired
	}
	if !v.IsActive {
		metrics.Redemptions.WithLabelValues("inactive").Inc()
		return nil, ErrVoucherInactive
	}
	if v.PhoneNumber != "" && v.PhoneNumber != strings.TrimSpace(phoneNumber) {
		metrics.Redemptions.WithLabelValues("phone_mismatch").Inc()
		return nil, ErrPhoneMismatch
	}

	lock := g.voucherLock(v.ID)
	lock.Lock()
	defer lock.Unlock()

	var created models.Session
	errTx := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active int64
		if errCount := tx.Model(&models.Session{}).
			Where("voucher_id = ? AND status = ?", v.ID, models.SessionStatusActive).
			Count(&active).Error; errCount != nil {
			return fmt.Errorf("session: count active: %w", errCount)
		}
		if active >= int64(v.ConcurrentDevices) {
			return ErrDeviceLimitReached
		}

		created = models.Session{
			VoucherID:  v.ID,
			MACAddress: strings.TrimSpace(macAddress),
			IPAddress:  strings.TrimSpace(ipAddress),
			StartTime:  now,
			Status:     models.SessionStatusActive,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if errCreate := tx.Create(&created).Error; errCreate != nil {
			return fmt.Errorf("session: create: %w", errCreate)
		}

		if errTouch := tx.Model(&models.Voucher{}).Where("id = ?", v.ID).
			Updates(map[string]any{"last_used_at": now, "updated_at": now}).Error; errTouch != nil {
			return fmt.Errorf("session: touch voucher: %w", errTouch)
		}
		return nil
	})
	if errTx != nil {
		if errors.Is(errTx, ErrDeviceLimitReached) {
			metrics.Redemptions.WithLabelValues("device_limit").Inc()
		}
		return nil, errTx
	}

	metrics.Redemptions.WithLabelValues("ok").Inc()
	log.WithFields(log.Fields{
		"voucher_id": v.ID,
		"session_id": created.ID,
	}).Info("voucher redeemed")

	return &RedeemResult{
		PlanName:         v.Plan.Name,
		Code:             v.Code,
		DataLimitMB:      v.DataLimitMB,
		DataUsedMB:       v.DataUsedMB,
		TimeLimitMinutes: v.TimeLimitMinutes,
		TimeUsedMinutes:  v.TimeUsedMinutes,
		ExpiresAt:        v.ExpiresAt,
		Session:          &created,
	}, nil
}

// Terminate ends an active session by admin action. Terminal sessions stay
// terminal: terminating an already ended session fails with
// ErrSessionNotActive.
func (g *Guard) Terminate(ctx context.Context, sessionID uint64) error {
	var s models.Session
	if errFind := g.db.WithContext(ctx).First(&s, sessionID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("session: lookup: %w", errFind)
	}

	now := time.Now().UTC()
	res := g.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND status = ?", sessionID, models.SessionStatusActive).
		Updates(map[string]any{
			"status":     models.SessionStatusTerminated,
			"end_time":   now,
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("session: terminate: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotActive
	}
	return nil
}
