package models

import "time"

// PaymentStatus represents the lifecycle state of a payment request.
type PaymentStatus string

// PaymentStatus constants define payment lifecycle states.
const (
	// PaymentStatusPending marks a request awaiting the gateway callback.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCompleted marks a successfully settled request.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed marks a rejected or errored request.
	PaymentStatusFailed PaymentStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// PaymentRequest tracks one push-payment attempt from initiation to settlement.
// Amount is captured from the plan price at creation time and never re-read.
type PaymentRequest struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Reference string `gorm:"type:varchar(64);not null;uniqueIndex"` // Externally shareable payment reference.

	PlanID uint64 `gorm:"not null;index"`    // Purchased plan ID.
	Plan   Plan   `gorm:"foreignKey:PlanID"` // Purchased plan record.

	PhoneNumber string        `gorm:"type:varchar(20);not null"`             // Payer phone in canonical form.
	Amount      float64       `gorm:"type:decimal(10,2);not null;default:0"` // Amount charged, captured at creation.
	Currency    string        `gorm:"type:varchar(8);not null;default:KES"`  // ISO currency code.
	Status      PaymentStatus `gorm:"type:varchar(16);not null;index"`       // Current lifecycle state.

	MerchantRequestID string `gorm:"type:varchar(64);index:idx_payment_requests_correlation"` // Gateway merchant request ID.
	CheckoutRequestID string `gorm:"type:varchar(64);index:idx_payment_requests_correlation"` // Gateway checkout request ID.

	ReceiptNumber string `gorm:"type:varchar(64)"` // Provider receipt, "N/A" when absent.
	Note          string `gorm:"type:text"`        // Free-text outcome description.

	VoucherID *uint64  `gorm:"index"`                // Voucher produced on completion.
	Voucher   *Voucher `gorm:"foreignKey:VoucherID"` // Voucher record.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
