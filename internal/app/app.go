package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wisbric/keymaster/internal/auth"
	"github.com/wisbric/keymaster/internal/config"
	"github.com/wisbric/keymaster/internal/httpserver"
	"github.com/wisbric/keymaster/internal/platform"
	"github.com/wisbric/keymaster/internal/telemetry"
	"github.com/wisbric/keymaster/pkg/keymaster"
)

// Run is the application entry point: it loads infrastructure, wires the
// credential lifecycle engine to HTTP, and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting keymaster", "listen", cfg.ListenAddr())

	validatorRDB, err := platform.NewRedisClient(ctx, cfg.ValidatorRedisURL())
	if err != nil {
		return fmt.Errorf("connecting to redis (validator): %w", err)
	}
	defer func() {
		if err := validatorRDB.Close(); err != nil {
			logger.Error("closing validator redis", "error", err)
		}
	}()

	managerRDB, err := platform.NewRedisClient(ctx, cfg.ManagerRedisURL())
	if err != nil {
		return fmt.Errorf("connecting to redis (manager): %w", err)
	}
	defer func() {
		if err := managerRDB.Close(); err != nil {
			logger.Error("closing manager redis", "error", err)
		}
	}()

	metricsReg := telemetry.NewMetricsRegistry()

	validatorStore := keymaster.NewStore(validatorRDB)
	managerStore := keymaster.NewStore(managerRDB)

	engine := keymaster.NewEngine(validatorStore, logger, cfg.RateLimitPerMinute)
	service := keymaster.NewService(managerStore, logger)
	handler := keymaster.NewHandler(engine, service, logger)

	if cfg.AdminSecret == "" {
		logger.Info("admin endpoints disabled (ADMIN_SECRET not set)")
	}

	srv := httpserver.NewServer(cfg, logger, validatorRDB, managerRDB, metricsReg, auth.Gate(cfg.AdminSecret))
	handler.Mount(srv.Router, srv.AdminGate)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("keymaster listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down keymaster")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
