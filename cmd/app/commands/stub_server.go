package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/allisson/protect/internal/config"
	"github.com/allisson/protect/internal/metrics"
	"github.com/allisson/protect/internal/stub/domain"
	stubhttp "github.com/allisson/protect/internal/stub/http"
	"github.com/allisson/protect/internal/stub/service"
)

// shutdownTimeout bounds graceful shutdown of the stub server.
const shutdownTimeout = 30 * time.Second

// RunStubServer starts the in-memory protection stub server with graceful
// shutdown support. Loads configuration, seeds the vault with the default
// policies, and starts the Gin HTTP server. Blocks until receiving
// SIGINT/SIGTERM or encountering a fatal error.
func RunStubServer(ctx context.Context, version string) error {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode based on log level
	gin.SetMode(cfg.GetGinMode())

	logger := NewLogger(cfg.LogLevel)
	logger.Info("starting stub server", slog.String("version", version))

	// Seed the vault with the default protection policies
	vault, err := service.NewVault(domain.DefaultPolicies())
	if err != nil {
		return fmt.Errorf("failed to initialize vault: %w", err)
	}

	routerCfg := stubhttp.RouterConfig{
		Logger: logger,
	}

	// Wire metrics when enabled
	var provider *metrics.Provider
	if cfg.MetricsEnabled {
		provider, err = metrics.NewProvider()
		if err != nil {
			return fmt.Errorf("failed to initialize metrics provider: %w", err)
		}
		routerCfg.MeterProvider = provider.MeterProvider()
		routerCfg.MetricsNamespace = cfg.MetricsNamespace
		routerCfg.MetricsHandler = provider.Handler()
	}

	if cfg.CORSEnabled {
		routerCfg.CORSAllowOrigins = cfg.CORSAllowOrigins
	}

	handler := stubhttp.NewHandler(vault, logger)
	router := stubhttp.NewRouter(handler, routerCfg)
	server := stubhttp.NewServer(cfg.StubAddr(), router, logger)

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErr <- fmt.Errorf("stub server error: %w", err)
		}
	}()

	// Wait for shutdown signal or server error
	var shutdownErrors []error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error, initiating shutdown", slog.Any("error", err))
		shutdownErrors = append(shutdownErrors, err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		shutdownErrors = append(shutdownErrors, fmt.Errorf("stub server shutdown: %w", err))
	}

	if provider != nil {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	return errors.Join(shutdownErrors...)
}
