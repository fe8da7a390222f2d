package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"billremind/internal/cli"
	"billremind/internal/holiday"
	apphttp "billremind/internal/http"
	applog "billremind/internal/log"
	"billremind/internal/services"
)

func main() {
	cli.LoadEnvFile()
	appLogger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentHTTP)
	logger := appLogger.Logger

	cfg := cli.LoadAndValidateConfig(logger)

	_, _, store := cli.InitStore(context.Background(), logger, cfg)

	rules, err := cfg.HolidayRules()
	if err != nil {
		logger.Error("Invalid holiday rules", "error", err)
		os.Exit(1)
	}
	calendar := holiday.New(rules)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Store:    store.Store,
		Calendar: calendar,
		Payments: services.NewStatusResolver(store.Store, cfg.DelinquencyToleranceDays, nil),
		Logger:   appLogger,
	})

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", "error", err)
		}
		if err := store.Cleanup(); err != nil {
			logger.Error("Store cleanup failed", "error", err)
		}
	})

	go func() {
		logger.Info("Starting billing-ops server", "addr", srv.Addr, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
