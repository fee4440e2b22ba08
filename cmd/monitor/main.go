package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/astrafabric/monitor/internal/alerting"
	"github.com/astrafabric/monitor/internal/bus"
	"github.com/astrafabric/monitor/internal/collector"
	"github.com/astrafabric/monitor/internal/config"
	"github.com/astrafabric/monitor/internal/database"
	"github.com/astrafabric/monitor/internal/events"
	"github.com/astrafabric/monitor/internal/handlers"
	"github.com/astrafabric/monitor/internal/jobs"
	"github.com/astrafabric/monitor/internal/middleware"
	"github.com/astrafabric/monitor/internal/notifier"
	"github.com/astrafabric/monitor/internal/realtime"
	"github.com/astrafabric/monitor/internal/scheduler"
	"github.com/astrafabric/monitor/internal/services"
	"github.com/astrafabric/monitor/internal/telemetry"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting monitoring engine...")

	// Initialize database connection
	db, err := database.Connect(cfg.DatabaseURL, logger.Warn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}
	store := database.NewStore(db)

	metrics := telemetry.New()

	// Notification transports
	alertNotifier := notifier.NewFromConfig(cfg.NotifierConfig())
	alertNotifier.SetMetrics(metrics)

	// Live update fan-out: dashboard websocket clients plus the optional event bus
	hub := realtime.NewHub(cfg.CORSAllowedOrigins)
	hub.SetMetrics(metrics)
	broadcasters := events.Fanout{hub}

	if cfg.NATSURL != "" {
		publisher, err := bus.NewPublisher(cfg.NATSURL)
		if err != nil {
			log.Printf("Warning: event bus disabled: %v", err)
		} else {
			defer publisher.Close()
			broadcasters = append(broadcasters, publisher)
			log.Printf("Publishing monitoring events to %s", cfg.NATSURL)
		}
	}

	tracker := alerting.NewTracker(store)

	sched := scheduler.New(scheduler.Deps{
		Store:          store,
		Collector:      collector.NewDefaultRegistry(collector.Options{Timeout: cfg.CollectTimeout}),
		Tracker:        tracker,
		Notifier:       alertNotifier,
		Broadcaster:    broadcasters,
		Metrics:        metrics,
		CollectTimeout: cfg.CollectTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitorService := services.NewMonitorService(store, sched, tracker, alertNotifier)
	monitorService.SetDefaultPollInterval(cfg.DefaultPollIntervalMs)

	// Resume monitoring of every persisted resource
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	log.Printf("Scheduler resumed %d monitors", sched.MonitorCount())

	if cfg.SeedFile != "" {
		seed, err := config.LoadSeed(cfg.SeedFile)
		if err != nil {
			log.Fatalf("Failed to load seed file: %v", err)
		}
		created, err := monitorService.ApplySeed(ctx, seed)
		if err != nil {
			log.Fatalf("Failed to apply seed file: %v", err)
		}
		log.Printf("Seed applied: %d resources created", created)
	}

	stopRetention := make(chan struct{})
	go jobs.NewRetentionJob(store, metrics).Start(cfg.RetentionInterval, stopRetention)

	// Set up HTTP server routes
	mux := http.NewServeMux()
	handlers.NewHTTPHandler(sched, metrics.Handler()).SetupRoutes(mux)
	handlers.NewAPIHandler(monitorService).SetupRoutes(mux)
	hub.SetupRoutes(mux)

	jwtAuth := middleware.NewJWTAuthMiddleware(middleware.JWTAuthConfig{
		Secret: cfg.JWTSecret,
		SkipPaths: []string{
			"/health",
			"/metrics",
		},
	})
	if jwtAuth.Enabled() {
		log.Printf("Customer token verification enabled")
	} else {
		log.Printf("Customer token verification disabled (JWT_SECRET not set)")
	}

	// Request ID first so every later layer can log it
	var handler http.Handler = mux
	handler = jwtAuth.Wrap(handler)
	handler = middleware.NewCORSMiddleware(cfg.CORSAllowedOrigins...).Wrap(handler)
	handler = middleware.AccessLogMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	log.Printf("API base URL: http://localhost:%d/api", cfg.HTTPPort)
	log.Printf("Dashboard websocket: ws://localhost:%d/ws/dashboard", cfg.HTTPPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("Received shutdown signal, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	close(stopRetention)
	sched.Stop()
	hub.Close()
	cancel()

	if err := database.Close(db); err != nil {
		log.Printf("Error closing database: %v", err)
	}
	log.Println("Shutdown complete")
}
