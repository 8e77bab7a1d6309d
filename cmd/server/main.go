package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arcadenet/netplay/internal/api"
	"github.com/arcadenet/netplay/internal/config"
	"github.com/arcadenet/netplay/internal/log"
	"github.com/arcadenet/netplay/internal/repository/postgres"
	"github.com/arcadenet/netplay/internal/service"
	"github.com/arcadenet/netplay/internal/signaling"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := log.New(cfg.Environment)

	// Initialize database
	db, err := postgres.NewConnection(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Initialize repositories
	repos := postgres.NewRepositories(db)

	// Signaling is optional; without credentials the service runs local-only.
	var signalingClient service.SignalingClient
	if cfg.SignalingConfigured() {
		signalingClient = signaling.NewClient(cfg.SignalingBaseURL, cfg.SignalingAPIKey, cfg.SignalingTimeout)
		logger.Info().Str("base_url", cfg.SignalingBaseURL).Msg("signaling API enabled")
	} else {
		logger.Info().Msg("signaling API not configured, running local-only")
	}

	// Initialize services
	services := service.NewServices(repos, signalingClient, cfg, logger)

	// Initialize router
	router := api.NewRouter(services)

	// Create server
	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Background expiry sweeper; POST /api/v1/sessions/expire covers
	// externally scheduled sweeps.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if _, err := services.Session.ExpireStaleSessions(sweepCtx, time.Time{}); err != nil {
					logger.Error().Err(err).Msg("expiry sweep failed")
				}
			}
		}
	}()

	// Start server in goroutine
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stopSweep()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
