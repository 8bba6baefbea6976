// Package main is the entry point for the order API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/app"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/config"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/auth"
	v1 "github.com/SagorIslamOfficial/crm-order-sub001/internal/infrastructure/http/v1"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/infrastructure/http/v1/middleware"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/infrastructure/storage/postgres"
	"github.com/SagorIslamOfficial/crm-order-sub001/pkg/logger"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	log.Infow("starting order server", "env", cfg.App.Env, "version", cfg.App.Version)

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to initialize", "error", err)
	}
	defer a.Close()
	log.Info("database connection established")

	routerCfg := v1.RouterConfig{
		Logger:      log,
		DB:          a.Pool,
		Version:     cfg.App.Version,
		Orders:      a.Orders,
		Shops:       a.Shops,
		CORSOrigins: cfg.CORS.AllowedOrigins,
	}
	if cfg.App.Development() {
		routerCfg.Mode = gin.DebugMode
	}

	if cfg.JWT.Enabled {
		jwtCfg := auth.DefaultJWTConfig(cfg.JWT.Secret)
		jwtCfg.Issuer = cfg.JWT.Issuer
		jwtCfg.AccessTokenTTL = cfg.JWT.TTL
		routerCfg.JWTValidator = auth.NewJWTService(jwtCfg)
	} else {
		log.Warn("authentication disabled; every request is anonymous")
	}

	if cfg.Idempotency.Enabled {
		routerCfg.Idempotency = postgres.NewIdempotencyStore(a.TxManager, cfg.Idempotency.TTL)
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.RPS > 0 {
		rlCfg := middleware.DefaultRateLimiterConfig()
		rlCfg.RequestsPerSecond = cfg.RateLimit.RPS
		rlCfg.Burst = cfg.RateLimit.Burst
		limiter = middleware.NewRateLimiter(rlCfg)
		routerCfg.RateLimiter = limiter
		go sweepRateLimiter(ctx, limiter, log)
	}

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      v1.NewRouter(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	log.Info("server stopped")
}

// sweepRateLimiter drops idle client buckets every minute.
func sweepRateLimiter(ctx context.Context, rl *middleware.RateLimiter, log *logger.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Debugw("rate limiter sweep", "clients", rl.Cleanup())
		}
	}
}
