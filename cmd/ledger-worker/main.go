package main

import (
	"context"
	"os"
	"time"

	"billremind/internal/amqp"
	"billremind/internal/cache"
	"billremind/internal/cli"
	applog "billremind/internal/log"
	ports "billremind/internal/sheets"
	gsheet "billremind/internal/sheets/google"
	"billremind/internal/sheets/memory"
	"billremind/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentLedger).Logger

	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the ledger worker")
		os.Exit(1)
	}

	// Google Sheets is the real ledger; without a spreadsheet the rows are
	// kept in memory, which is only useful for local runs.
	var ledger ports.LedgerWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleLedgerSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		ledger = client
		logger.Info("Google Sheets ledger initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		ledger = memory.New()
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, ledger rows are kept in memory")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	ledgerWorker := worker.NewLedgerWorker(ledger)
	janitor := cache.NewJanitor()
	janitor.Register("ledger_seen", ledgerWorker.Seen())

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		amqpClient.Close()
	})

	go janitor.Run(ctx, cfg.CacheCleanupInterval)

	go func() {
		if err := amqpClient.ConsumeReminderSent(ctx, ledgerWorker.HandleReminderSent); err != nil && ctx.Err() == nil {
			logger.Error("AMQP consumer stopped", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("Ledger worker running",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)

	cli.WaitForShutdown(ctx, done)
}
