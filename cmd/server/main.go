// Package main is the entry point for the viva scheduling server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/viva-scheduler/backend/internal/api"
	"github.com/viva-scheduler/backend/internal/calendar"
	"github.com/viva-scheduler/backend/internal/config"
	"github.com/viva-scheduler/backend/internal/release"
	"github.com/viva-scheduler/backend/internal/schedule"
	"github.com/viva-scheduler/backend/internal/storage"
	"github.com/viva-scheduler/backend/internal/storage/models"
	"github.com/viva-scheduler/backend/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	addr := flag.String("addr", config.DefaultAddr, "HTTP server address")
	dataDir := flag.String("data", config.DefaultDataDir, "Data directory for SQLite database")
	staticDir := flag.String("static", "", "Directory for static frontend files")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(*addr); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Explicit flags win over the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "data":
			cfg.DataDir = *dataDir
		case "static":
			cfg.StaticDir = *staticDir
		}
	})

	level, err := cfg.Level()
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	log.SetLevel(level)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid timezone: %v", err)
	}

	// Allow overriding version via environment (e.g., injected by container build/runtime)
	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}

	log.WithFields(log.Fields{
		"version":  version,
		"timezone": loc.String(),
	}).Info("Starting viva scheduler")

	// Initialize database
	db, err := storage.NewDB(filepath.Join(cfg.DataDir, "viva-scheduler.db"))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := storage.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Info("Database migrations complete")

	// Initialize repositories
	eventRepo := storage.NewEventRepository(db)
	releaseRepo := storage.NewReleaseRepository(db)
	lecturerRepo := storage.NewLecturerRepository(db)

	if err := seedLecturers(context.Background(), lecturerRepo, cfg.Lecturers); err != nil {
		log.Fatalf("Failed to seed staff directory: %v", err)
	}

	// Initialize WebSocket hub
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub()
	go hub.Run(ctx)
	broadcaster := websocket.NewEventBroadcaster(hub)

	// Initialize services
	eventService := schedule.NewService(eventRepo, broadcaster, loc, cfg.MaxAttempts)
	releaseService := release.NewService(releaseRepo, eventRepo, lecturerRepo, broadcaster, loc, cfg.MaxAttempts)
	importer := calendar.NewImporter(eventService, broadcaster, loc)

	// Start schedulers
	sweeper := release.NewDraftSweeper(releaseService, cfg.SweepSchedule)
	if err := sweeper.Start(); err != nil {
		log.WithError(err).Warn("Failed to start draft sweeper")
	}

	// Initialize HTTP router with services
	router := api.NewRouter(api.Services{
		DB:             db,
		Hub:            hub,
		Events:         eventService,
		Releases:       releaseService,
		Importer:       importer,
		MaxImportBytes: cfg.MaxImportBytes,
		StaticDir:      cfg.StaticDir,
		Version:        version,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.WithField("addr", cfg.Addr).Info("Server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Stop schedulers
	sweeper.Stop()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	// Close WebSocket clients
	cancel()

	log.Info("Server stopped")
}

// seedLecturers writes the configured staff directory. Lecturers missing
// from the file are left untouched.
func seedLecturers(ctx context.Context, repo *storage.LecturerRepository, entries []config.LecturerConfig) error {
	if len(entries) == 0 {
		log.Warn("No lecturers configured, the staff directory is unchanged")
		return nil
	}

	lecturers := make([]models.Lecturer, 0, len(entries))
	for _, e := range entries {
		lecturers = append(lecturers, models.Lecturer{
			ID:       e.ID,
			FullName: e.FullName,
			Email:    e.Email,
			Active:   e.IsActive(),
		})
	}
	if err := repo.Upsert(ctx, lecturers); err != nil {
		return err
	}

	log.WithField("count", len(lecturers)).Info("Staff directory seeded")
	return nil
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://localhost" + addr + "/api/health"
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
