// ClinicDesk - appointment desk conversation server
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/clinicdesk/clinicdesk/internal/api"
	"github.com/clinicdesk/clinicdesk/internal/config"
	"github.com/clinicdesk/clinicdesk/internal/handlers"
	"github.com/clinicdesk/clinicdesk/internal/identity"
	"github.com/clinicdesk/clinicdesk/internal/middleware"
	"github.com/clinicdesk/clinicdesk/internal/oracle"
	"github.com/clinicdesk/clinicdesk/internal/routing"
	"github.com/clinicdesk/clinicdesk/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close store", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	if cfg.SeedSchedule {
		dates := upcomingDates(time.Now(), cfg.SeedDays)
		if err := repo.Seed(context.Background(), dates); err != nil {
			slog.Error("Failed to seed schedule", "error", err)
			os.Exit(1)
		}
		slog.Info("Schedule seeded", "days", cfg.SeedDays)
	}

	decider := oracle.NewChatOracle(oracle.ChatOracleConfig{
		BaseURL:        cfg.Oracle.BaseURL,
		APIKey:         cfg.Oracle.APIKey,
		Model:          cfg.Oracle.Model,
		RequestTimeout: cfg.Oracle.RequestTimeout,
	}, logger)

	coordinator, err := routing.NewCoordinator(decider, []routing.Handler{
		handlers.NewInformationHandler(repo, logger),
		handlers.NewBookingHandler(repo, logger),
	}, routing.Config{
		MaxTurns: cfg.Routing.MaxTurns,
		MaxSteps: cfg.Routing.MaxSteps,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize coordinator", "error", err)
		os.Exit(1)
	}

	// Initialize handlers.
	apiHandler := api.NewHandler(coordinator, repo, logger)
	wsHandler := api.NewChatSocketHandler(coordinator, repo, cfg.AllowedOrigins, logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(identity.Middleware())

	apiHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming chat sessions stay open
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// upcomingDates returns n consecutive dates starting today, in the DD-MM-YYYY
// format used throughout the schedule.
func upcomingDates(from time.Time, n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		d := from.AddDate(0, 0, i)
		out = append(out, fmt.Sprintf("%02d-%02d-%04d", d.Day(), int(d.Month()), d.Year()))
	}
	return out
}
