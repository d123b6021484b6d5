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

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"vehicle-inspection-backend/config"
	"vehicle-inspection-backend/internal/api"
	"vehicle-inspection-backend/internal/db"
	"vehicle-inspection-backend/internal/files"
	"vehicle-inspection-backend/internal/inspection"
	"vehicle-inspection-backend/internal/janitor"
	"vehicle-inspection-backend/internal/ledger"
	"vehicle-inspection-backend/internal/logger"
	"vehicle-inspection-backend/internal/mw"
	"vehicle-inspection-backend/internal/report"
	"vehicle-inspection-backend/internal/store"
)

func main() {
	// Environment overrides for local development; a missing .env is fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("failed to read .env: %v", err)
	}

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		logrus.Fatalf("failed to set up logging: %v", err)
	}
	log.WithField("path", configPath).Info("configuration loaded")

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, log)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	log.WithField("driver", cfg.Database.Driver).Info("database initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recordStore := store.NewGormStore(gormDB, store.WithTrendWindow(cfg.Query.TrendWindowDays))

	disk, err := files.NewDisk(cfg.Storage.UploadDir)
	if err != nil {
		log.Fatalf("failed to prepare upload directory: %v", err)
	}
	policy := files.NewPolicy(cfg.Storage.AllowedExtensions, cfg.Storage.MaxFileSizeBytes())
	attachments := ledger.New(recordStore, disk, policy, log)

	exporter, err := report.NewExporter(recordStore, cfg.Report, log)
	if err != nil {
		log.Fatalf("failed to initialize exporter: %v", err)
	}

	svc := inspection.NewService(recordStore, attachments, exporter, cfg.Query, log,
		inspection.WithBackupDir(cfg.Maintenance.BackupDir))

	limiter := mw.NewIPRateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst, 10*time.Minute)

	// Background maintenance
	janitorSvc := janitor.NewService(cfg.Maintenance, janitor.Targets(cfg), log, janitor.WithSweeper(limiter))
	go janitorSvc.Run(ctx)

	// Initialize router
	router := api.NewRouter(cfg.Server, svc, disk, limiter, log)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		log.Infof("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	log.Info("Shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("HTTP server Shutdown: %v", err)
	}

	if sqlDB, err := gormDB.DB(); err == nil {
		sqlDB.Close()
	}

	log.Info("Server gracefully stopped")
}
