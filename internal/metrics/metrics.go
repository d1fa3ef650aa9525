// Package metrics exposes Prometheus instrumentation for the portal's
// payment and voucher flows.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// PaymentsInitiated counts payment initiation attempts by outcome
	// (accepted, rejected, error).
	PaymentsInitiated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_payments_initiated_total",
			Help: "Payment initiation attempts by outcome",
		},
		[]string{"outcome"},
	)

	// PaymentsReconciled counts gateway callbacks applied by resulting
	// status (completed, failed, replay).
	PaymentsReconciled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_payments_reconciled_total",
			Help: "Gateway callbacks reconciled by resulting status",
		},
		[]string{"status"},
	)

	// VouchersIssued counts vouchers created.
	VouchersIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_vouchers_issued_total",
			Help: "Vouchers issued",
		},
	)

	// Redemptions counts voucher redemption attempts by result.
	Redemptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_voucher_redemptions_total",
			Help: "Voucher redemption attempts by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		PaymentsInitiated,
		PaymentsReconciled,
		VouchersIssued,
		Redemptions,
	)
}
