package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rag2504/box-host/config"
	"github.com/rag2504/box-host/internal/api"
	"github.com/rag2504/box-host/internal/booking"
	"github.com/rag2504/box-host/internal/catalog"
	"github.com/rag2504/box-host/internal/db"
	"github.com/rag2504/box-host/internal/events"
	"github.com/rag2504/box-host/internal/pricing"
	"github.com/rag2504/box-host/internal/store"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "groundd ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}

	loc, err := cfg.Booking.Location()
	if err != nil {
		logger.Fatalf("invalid booking configuration: %v", err)
	}

	externalGrounds, err := catalog.EntriesFromConfig(cfg.Catalog.External, cfg.Booking.Currency)
	if err != nil {
		logger.Fatalf("invalid external catalog: %v", err)
	}
	logger.Printf("%d external grounds loaded", len(externalGrounds))

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	isolation, err := store.ParseIsolation(cfg.Database.Isolation)
	if err != nil {
		logger.Fatalf("invalid database configuration: %v", err)
	}
	if gormDB.Dialector.Name() == "sqlite" {
		// SQLite transactions are already serializable and reject explicit levels.
		isolation = sql.LevelDefault
	}

	durable := store.NewGormStore(gormDB, isolation)
	external := store.NewMemoryStore()
	logger.Println("data stores initialized")

	var publisher events.Publisher = events.Nop{}
	if cfg.Events.URL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.Events.URL, cfg.Events.Exchange)
		if err != nil {
			logger.Fatalf("failed to connect event publisher: %v", err)
		}
		publisher = amqpPublisher
		logger.Printf("publishing reservation events to exchange %q", cfg.Events.Exchange)
	}
	defer publisher.Close()

	controller := booking.NewController(booking.Options{
		Catalog:        catalog.New(gormDB, externalGrounds),
		Durable:        durable,
		External:       external,
		Resolver:       pricing.NewResolver(pricing.Money(cfg.Booking.FallbackRate), cfg.Booking.FeeBasisPoints),
		Publisher:      publisher,
		Location:       loc,
		StorageTimeout: cfg.Booking.StorageTimeout,
		PublishTimeout: time.Duration(cfg.Events.PublishTimeoutSeconds) * time.Second,
		CellWidth:      time.Duration(cfg.Booking.CellMinutes) * time.Minute,
		Currency:       cfg.Booking.Currency,
	})

	// Initialize router
	router := api.NewRouter(controller, api.Options{
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		CacheTTL:        time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
		Ping:            db.Ping(gormDB),
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	// In-flight admissions finish their transactions before the deadline.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Booking.StorageTimeout+5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
