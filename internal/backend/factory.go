package backend

import (
	"context"
	"fmt"
	"log/slog"

	"billremind/internal/amqp"
	"billremind/internal/messaging"
	"billremind/internal/messaging/digisac"
	"billremind/internal/messaging/twilio"
	"billremind/internal/services"
	"billremind/internal/storage"
	"billremind/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With("component", "storage"),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return &BackendResult{Store: repo, Cleanup: repo.Close}, nil

	case PostgresBackend:
		repo, err := storage.NewPostgresRepository(config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized postgres backend")
		return &BackendResult{Store: repo, Cleanup: repo.Close}, nil

	case MemoryBackend:
		f.logger.WarnContext(ctx, "Using memory backend, nothing survives a restart")
		store := memory.New()
		return &BackendResult{Store: store, Cleanup: store.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// CreateSender implements Factory.CreateSender
func (f *DefaultFactory) CreateSender(config Config) (messaging.Sender, error) {
	m := config.Messaging
	switch m.Provider {
	case "digisac":
		f.logger.Info("Using Digisac messaging", "api_url", m.DigisacAPIURL)
		return digisac.New(m.DigisacAPIURL, m.DigisacAPIToken), nil
	case "twilio":
		f.logger.Info("Using Twilio messaging", "whatsapp", m.TwilioWhatsAppNumber != "")
		return twilio.New(m.TwilioAccountSID, m.TwilioAuthToken, m.TwilioFromNumber, m.TwilioWhatsAppNumber), nil
	case "log", "":
		f.logger.Warn("Using log messaging, reminders are not delivered")
		return messaging.LogSender{}, nil
	default:
		return nil, fmt.Errorf("unsupported messaging provider: %s", m.Provider)
	}
}

// CreateLedgerPublisher implements Factory.CreateLedgerPublisher. A broker
// that cannot be reached is logged and skipped so reminders still go out.
func (f *DefaultFactory) CreateLedgerPublisher(config Config) (services.LedgerPublisher, CleanupFunc, error) {
	if config.AMQPURL == "" {
		f.logger.Info("AMQP not configured, ledger export disabled")
		return nil, nil, nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without ledger export", "error", err)
		return nil, nil, nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client, client.Close, nil
}
