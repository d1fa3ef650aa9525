package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mtandao-wifi/hotspot-portal/internal/config"
	"github.com/mtandao-wifi/hotspot-portal/internal/db"
	adminapi "github.com/mtandao-wifi/hotspot-portal/internal/http/api/admin"
	"github.com/mtandao-wifi/hotspot-portal/internal/http/api/front"
	"github.com/mtandao-wifi/hotspot-portal/internal/mpesa"
	"github.com/mtandao-wifi/hotspot-portal/internal/payment"
	"github.com/mtandao-wifi/hotspot-portal/internal/session"
	"github.com/mtandao-wifi/hotspot-portal/internal/voucher"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the portal with database-backed components and blocks
// until the context is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	if errBootstrap := EnsureAdminAccount(conn); errBootstrap != nil {
		return errBootstrap
	}

	jwtConfig, _ := config.LoadJWTConfig(configPath)
	voucherConfig, _ := config.LoadVoucherConfig(configPath)
	mpesaConfig, _ := config.LoadMpesaConfig(configPath)

	gateway := mpesa.NewClient(mpesaConfig)
	issuer := voucher.NewIssuer(conn, voucherConfig.DefaultValidity)
	tracker := payment.NewTracker(conn, issuer)
	payments := payment.NewService(tracker, gateway)
	guard := session.NewGuard(conn)
	guard.StartSweeper(ctx, voucherConfig.SweepInterval)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	adminapi.RegisterAdminRoutes(engine, conn, jwtConfig, issuer, guard)
	front.RegisterFrontRoutes(engine, conn, payments, tracker, guard)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()
	log.WithField("port", port).Info("portal server started")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// requestLogger logs one structured line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		}).Info("request")
	}
}
