package front

import (
	"github.com/gin-gonic/gin"
	"github.com/mtandao-wifi/hotspot-portal/internal/http/api/front/handlers"
	"github.com/mtandao-wifi/hotspot-portal/internal/payment"
	"github.com/mtandao-wifi/hotspot-portal/internal/session"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers the unauthenticated captive-portal routes.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, payments *payment.Service, tracker *payment.Tracker, guard *session.Guard) {
	if r == nil || db == nil {
		return
	}

	frontGroup := r.Group("/v0")

	planHandler := handlers.NewPlanFrontHandler(db)
	frontGroup.GET("/plans", planHandler.List)

	paymentHandler := handlers.NewPaymentFrontHandler(payments, tracker)
	frontGroup.POST("/payments/initiate", paymentHandler.Initiate)
	frontGroup.GET("/payments/:reference", paymentHandler.Status)
	frontGroup.POST("/payments/mpesa/callback", paymentHandler.MpesaCallback)

	voucherHandler := handlers.NewVoucherFrontHandler(guard)
	frontGroup.POST("/vouchers/redeem", voucherHandler.Redeem)
}
