package main

import (
	"context"
	"flag"
	"os"
	"time"

	"billremind/internal/cache"
	"billremind/internal/cli"
	"billremind/internal/core"
	"billremind/internal/holiday"
	applog "billremind/internal/log"
	"billremind/internal/services"
	"billremind/internal/worker"
)

func main() {
	once := flag.Bool("once", false, "run a single billing run and exit")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp).Logger

	logger.Info("Starting billing-worker", "once", *once)

	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()

	factory, backendCfg, store := cli.InitStore(ctx, logger, cfg)
	defer store.Cleanup()

	// Holidays
	rules, err := cfg.HolidayRules()
	if err != nil {
		logger.Error("Invalid holiday rules", "error", err)
		os.Exit(1)
	}
	calendar := holiday.New(rules)
	thisYear := time.Now().Year()
	years := make([]int, 0, cfg.HolidayPreloadYears+1)
	for y := thisYear; y <= thisYear+cfg.HolidayPreloadYears; y++ {
		years = append(years, y)
	}
	if err := calendar.Preload(years...); err != nil {
		logger.Warn("Holiday preload failed", "error", err)
	}

	// Templates
	seeded, err := services.EnsureTemplates(ctx, store.Store)
	if err != nil {
		logger.Error("Failed to seed message templates", "error", err)
		os.Exit(1)
	}
	if seeded > 0 {
		logger.Info("Seeded default message templates", "count", seeded)
	}

	sender, err := factory.CreateSender(backendCfg)
	if err != nil {
		logger.Error("Failed to initialize messaging provider", "error", err)
		os.Exit(1)
	}

	publisher, closePublisher, err := factory.CreateLedgerPublisher(backendCfg)
	if err != nil {
		logger.Error("Failed to initialize ledger publisher", "error", err)
		os.Exit(1)
	}
	if closePublisher != nil {
		defer closePublisher()
	}

	templateCache := cache.NewLRUCache[core.MessageTemplate](cfg.TemplateCacheSize, cfg.TemplateCacheTTL)
	janitor := cache.NewJanitor()
	janitor.Register("templates", templateCache)

	scheduler := services.NewBillingScheduler(store.Store, calendar, nil)
	statuses := services.NewStatusResolver(store.Store, cfg.DelinquencyToleranceDays, nil)
	renderer := services.NewTemplateRenderer(store.Store, templateCache, cfg.CompanyName, nil)
	processor := services.NewReminderProcessor(scheduler, statuses, renderer, sender, store.Store, publisher,
		services.ReminderProcessorConfig{Workers: cfg.BillingWorkers, RefreshStatuses: true})

	billingCron, err := worker.NewBillingCron(cfg.BillingCron, processor, logger)
	if err != nil {
		logger.Error("Failed to schedule billing runs", "error", err)
		os.Exit(1)
	}

	if *once {
		summary, err := billingCron.RunNow(ctx)
		if err != nil {
			store.Cleanup()
			os.Exit(1)
		}
		logger.Info("Single run finished", "run_id", summary.RunID, "sent", summary.Sent, "failed", summary.Failed)
		return
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		// Waits for an in-flight run to reach an account boundary
		<-billingCron.Stop().Done()
	})

	go janitor.Run(shutdownCtx, cfg.CacheCleanupInterval)

	billingCron.Start(shutdownCtx)
	logger.Info("Billing worker running",
		"cron", cfg.BillingCron,
		"workers", cfg.BillingWorkers,
		"backend", backendCfg.Type,
		"messaging", backendCfg.Messaging.Provider,
		"ledger_export", publisher != nil)

	cli.WaitForShutdown(shutdownCtx, done)
}
