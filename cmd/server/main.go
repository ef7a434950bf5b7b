package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"amc-booking/internal/api/routes"
	"amc-booking/internal/config"
	"amc-booking/internal/events"
	"amc-booking/internal/logging"
	"amc-booking/internal/models"
	"amc-booking/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionPurgeInterval = time.Hour

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Initialize database
	db, err := models.InitDB(cfg)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	svc, err := services.New(cfg, db, logger)
	if err != nil {
		logger.Fatal("failed to initialize services", zap.Error(err))
	}

	if len(cfg.Audit.KafkaBrokers) > 0 {
		publisher, err := events.NewKafkaPublisher(cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic)
		if err != nil {
			logger.Fatal("failed to initialize audit publisher", zap.Error(err))
		}
		defer publisher.Close()
		svc.Audit.SetPublisher(publisher)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create default users and facilities if database is empty
	if err := svc.Auth.CreateDefaultUsers(ctx, cfg.DefaultUsers); err != nil {
		logger.Warn("failed to create default users", zap.Error(err))
	}
	if err := svc.Facilities.SeedDefaults(ctx); err != nil {
		logger.Warn("failed to seed facilities", zap.Error(err))
	}

	go purgeSessions(ctx, svc.Sessions, logger)

	// Set Gin mode
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	routes.SetupRoutes(r, cfg, db, svc, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting facility booking server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	svc.Audit.Wait()
}

func purgeSessions(ctx context.Context, sessions *services.SessionManager, logger *zap.Logger) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.PurgeExpired(ctx)
			if err != nil {
				logger.Error("session purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("purged expired sessions", zap.Int64("count", n))
			}
		}
	}
}
