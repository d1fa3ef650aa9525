package session

import (
	"context"
	"time"

	"github.com/mtandao-wifi/hotspot-portal/internal/models"
	log "github.com/sirupsen/logrus"
)

// StartSweeper launches a background loop that expires sessions whose
// voucher has lapsed and deactivates expired vouchers. It stops when the
// context is cancelled.
func (g *Guard) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.sweep(ctx)
			}
		}
	}()
}

// sweep applies the passive expiry transitions.
func (g *Guard) sweep(ctx context.Context) {
	now := time.Now().UTC()

	expired := g.db.WithContext(ctx).Model(&models.Session{}).
		Where("status = ? AND voucher_id IN (?)",
			models.SessionStatusActive,
			g.db.Model(&models.Voucher{}).Select("id").Where("expires_at <= ?", now),
		).
		Updates(map[string]any{
			"status":     models.SessionStatusExpired,
			"end_time":   now,
			"updated_at": now,
		})
	if expired.Error != nil {
		log.WithError(expired.Error).Error("sweep expired sessions")
		return
	}

	deactivated := g.db.WithContext(ctx).Model(&models.Voucher{}).
		Where("is_active = ? AND expires_at <= ?", true, now).
		Updates(map[string]any{"is_active": false, "updated_at": now})
	if deactivated.Error != nil {
		log.WithError(deactivated.Error).Error("sweep expired vouchers")
		return
	}

	if expired.RowsAffected > 0 || deactivated.RowsAffected > 0 {
		log.WithFields(log.Fields{
			"sessions_expired":     expired.RowsAffected,
			"vouchers_deactivated": deactivated.RowsAffected,
		}).Info("expiry sweep applied")
	}
}
