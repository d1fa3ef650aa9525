package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mtandao-wifi/hotspot-portal/internal/config"
	"github.com/mtandao-wifi/hotspot-portal/internal/http/api/admin/handlers"
	"github.com/mtandao-wifi/hotspot-portal/internal/models"
	"github.com/mtandao-wifi/hotspot-portal/internal/security"
	"github.com/mtandao-wifi/hotspot-portal/internal/session"
	"github.com/mtandao-wifi/hotspot-portal/internal/voucher"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers admin routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, issuer *voucher.Issuer, guard *session.Guard) {
	if r == nil || db == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	versionHandler := handlers.NewVersionHandler()
	r.GET("/v0/version", versionHandler.GetVersion)

	adminGroup := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	adminGroup.POST("/login", authHandler.Login)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	authed.GET("/me", authHandler.Me)
	authed.PUT("/me/password", authHandler.ChangePassword)
	authed.POST("/me/totp/prepare", authHandler.PrepareTOTP)
	authed.POST("/me/totp/confirm", authHandler.ConfirmTOTP)
	authed.POST("/me/totp/disable", authHandler.DisableTOTP)

	// Viewers get read-only access; mutations need admin or manager.
	readers := authed.Group("")
	readers.Use(requireRole(models.RoleAdmin, models.RoleManager, models.RoleViewer))
	managers := authed.Group("")
	managers.Use(requireRole(models.RoleAdmin, models.RoleManager))

	planHandler := handlers.NewPlanHandler(db)
	managers.POST("/plans", planHandler.Create)
	readers.GET("/plans", planHandler.List)
	readers.GET("/plans/:id", planHandler.Get)
	managers.PUT("/plans/:id", planHandler.Update)
	managers.DELETE("/plans/:id", planHandler.Delete)
	managers.POST("/plans/:id/enable", planHandler.Enable)
	managers.POST("/plans/:id/disable", planHandler.Disable)

	voucherHandler := handlers.NewVoucherHandler(db, issuer)
	managers.POST("/vouchers", voucherHandler.Create)
	readers.GET("/vouchers", voucherHandler.List)
	readers.GET("/vouchers/:id", voucherHandler.Get)
	readers.GET("/vouchers/:id/qr", voucherHandler.QRCode)
	managers.POST("/vouchers/:id/deactivate", voucherHandler.Deactivate)
	managers.DELETE("/vouchers/:id", voucherHandler.Delete)

	sessionHandler := handlers.NewSessionHandler(db, guard)
	readers.GET("/sessions", sessionHandler.List)
	managers.POST("/sessions/:id/terminate", sessionHandler.Terminate)

	paymentHandler := handlers.NewPaymentHandler(db)
	readers.GET("/payments", paymentHandler.List)
	readers.GET("/payments/:id", paymentHandler.Get)

	dashboardHandler := handlers.NewDashboardHandler(db)
	readers.GET("/dashboard", dashboardHandler.Stats)

	// Account management is admin-only.
	adminsOnly := authed.Group("")
	adminsOnly.Use(requireRole(models.RoleAdmin))

	adminHandler := handlers.NewAdminHandler(db)
	adminsOnly.POST("/admins", adminHandler.Create)
	adminsOnly.GET("/admins", adminHandler.List)
	adminsOnly.GET("/admins/:id", adminHandler.Get)
	adminsOnly.PUT("/admins/:id", adminHandler.Update)
	adminsOnly.DELETE("/admins/:id", adminHandler.Delete)
	adminsOnly.POST("/admins/:id/enable", adminHandler.Enable)
	adminsOnly.POST("/admins/:id/disable", adminHandler.Disable)
	adminsOnly.PUT("/admins/:id/password", adminHandler.ChangePassword)
}

// adminAuthMiddleware validates admin JWTs and loads admin context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Set("adminUsername", admin.Username)
		c.Set("adminRole", admin.Role)
		c.Next()
	}
}

// requireRole rejects requests whose authenticated role is not in the
// allowed set.
func requireRole(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("adminRole")
		for _, candidate := range allowed {
			if role == candidate {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	}
}
