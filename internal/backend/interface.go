package backend

import (
	"context"

	"billremind/internal/core"
	"billremind/internal/messaging"
	"billremind/internal/services"
)

// Store is everything the billing services need from persistence, plus the
// administrative writes used for seeding and the ops API.
type Store interface {
	services.ScheduleStore
	services.StatusStore
	services.TemplateSeeder
	services.HistoryStore

	CreateClient(ctx context.Context, c core.Client) (int64, error)
	CreateAccount(ctx context.Context, a core.BillingAccount) (int64, error)
	UpsertScheduleConfig(ctx context.Context, cfg core.ScheduleConfig) error
	SetAccountActive(ctx context.Context, accountID int64, active bool) error

	Ping(ctx context.Context) error
	Close() error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store and optional cleanup function
type BackendResult struct {
	Store   Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a store based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateSender creates the messaging provider named in config
	CreateSender(config Config) (messaging.Sender, error)
	// CreateLedgerPublisher returns nil when AMQP is not configured
	CreateLedgerPublisher(config Config) (services.LedgerPublisher, CleanupFunc, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	Messaging MessagingConfig
}

// MessagingConfig selects and configures the outbound messaging provider.
type MessagingConfig struct {
	Provider             string
	DigisacAPIURL        string
	DigisacAPIToken      string
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioFromNumber     string
	TwilioWhatsAppNumber string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
