package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"email-dispatcher/internal/common/logging"
	"email-dispatcher/internal/config"
	"email-dispatcher/internal/server"
)

// Run is the main entry point for the application
func Run() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logging
	logging.InitGlobalLogger()
	defer logging.MustSync()

	logging.Info("Starting email dispatcher")

	// Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	ctx := context.Background()

	application, err := New(ctx, cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}

	if err := application.Start(ctx); err != nil {
		logging.Error("Failed to start pipeline", err)
		return err
	}

	srv := server.New(application.Routes(), cfg.Port)
	if err := srv.Start(); err != nil {
		logging.Error("Server failed to start", err)
		return err
	}

	logging.Info("Email dispatcher listening",
		logging.String("port", cfg.Port),
		logging.Int("workers", cfg.DispatchWorkers),
		logging.Duration("refresh_interval", cfg.RuleRefreshInterval),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logging.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server forced to shutdown", err)
	}

	if err := application.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Error during shutdown", logging.Err(err))
	}

	logging.Info("Email dispatcher exited")
	return nil
}
