package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/klimakarte/station-map/internal/api/http"
	"github.com/klimakarte/station-map/internal/config"
	"github.com/klimakarte/station-map/internal/directory"
	"github.com/klimakarte/station-map/internal/scheduler"
	"github.com/klimakarte/station-map/internal/selection"
	"github.com/klimakarte/station-map/internal/stations"
	"github.com/klimakarte/station-map/internal/stations/source"
)

func main() {
	// Load configuration (reads .env if present).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound data fetches.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Core state: the station directory and the selection coordinator
	// reading from it.
	dir := directory.New()
	coord := selection.New(dir, cfg.DefaultStationName)

	// Transport with resilience (backoff + circuit breaker).
	client := source.NewClient(httpClient, cfg.DataBaseURL)

	// Snapshot resolver on the real clock; tests inject their own.
	resolver := stations.NewSnapshotResolver(cfg.Mode, cfg.DebugSnapshotPath, nil)

	// Load service orchestrating fetch, parse, replace, and notify.
	service := stations.NewService(client, resolver, dir, coord, cfg.CitiesMetadataPath)

	// Initial loads. City metadata is static and fatal when missing; the
	// snapshot may legitimately not exist yet (UTC day boundary), so a
	// failure is surfaced through the status endpoint instead.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := service.LoadCities(startupCtx); err != nil {
		startupCancel()
		log.Fatalf("failed to load city metadata: %v", err)
	}
	if err := service.LoadSnapshot(startupCtx); err != nil {
		log.Printf("initial snapshot load failed: %v", err)
	}
	startupCancel()

	// Scheduler that periodically reloads the snapshot.
	sched := scheduler.New(service, cfg.RefreshInterval)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "station-map",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "station-map",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service, dir, coord)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
