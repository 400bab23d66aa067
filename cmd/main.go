package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sharath018/tenant-access-backend/config"
	"github.com/sharath018/tenant-access-backend/database"
	"github.com/sharath018/tenant-access-backend/internal/auth"
	"github.com/sharath018/tenant-access-backend/internal/schema"
	"github.com/sharath018/tenant-access-backend/logger"
	"github.com/sharath018/tenant-access-backend/metrics"
	"github.com/sharath018/tenant-access-backend/routes"
	"github.com/sharath018/tenant-access-backend/utils"
)

const denylistPurgeInterval = time.Hour

func main() {
	cfg := config.Load()

	log, err := logger.Init(cfg.LogLevel, cfg.Env, "tenant-access-backend")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	metrics.InitMetrics(cfg.MetricsPrefix)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.MigratePublic(ctx, db); err != nil {
		log.Fatal("public migration failed", zap.Error(err))
	}

	cache, err := utils.NewRedis(ctx, cfg)
	if err != nil {
		log.Warn("continuing without redis", zap.Error(err))
	}

	events := utils.NewKafkaPublisher(utils.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), log)
	defer func() { _ = events.Close() }()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	svc := routes.Setup(router, cfg, routes.Infra{DB: db, Cache: cache, Events: events})

	// Requests that resolve to no tenant run in public, so it carries the
	// tenant tables and default roles too.
	if err := svc.Provisioner.PrepareSchema(ctx, schema.PublicSchema); err != nil {
		log.Fatal("public schema provisioning failed", zap.Error(err))
	}

	go purgeDenylist(ctx, svc.Denylist, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.Bool("tenant_dev_fallback", cfg.Tenancy.DevFallback))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	if cache != nil {
		_ = cache.Close()
	}
}

// purgeDenylist drops revoked token ids whose tokens have expired anyway.
func purgeDenylist(ctx context.Context, denylist auth.Denylist, log *zap.Logger) {
	ticker := time.NewTicker(denylistPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := denylist.Purge(ctx, now)
			if err != nil {
				log.Warn("denylist purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("denylist purged", zap.Int64("rows", n))
			}
		}
	}
}
