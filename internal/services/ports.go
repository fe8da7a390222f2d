package services

import (
	"context"

	"billremind/internal/core"
)

// ScheduleStore is the persistence the scheduler works against.
type ScheduleStore interface {
	LoadActiveAccountsMissingSchedule(ctx context.Context) ([]core.BillingAccount, error)
	// LoadScheduleConfig returns nil, nil when the account has no config.
	LoadScheduleConfig(ctx context.Context, accountID int64) (*core.ScheduleConfig, error)
	LoadAccount(ctx context.Context, accountID int64) (core.BillingAccount, error)
	// SaveNextBillingDate creates a default config when none exists.
	SaveNextBillingDate(ctx context.Context, accountID int64, date core.Date) error
	LoadAccountsDueOn(ctx context.Context, day core.Date) ([]core.DueAccount, error)
	// AdvanceSchedule loads account and config, calls fn and saves its
	// result, all in one transaction.
	AdvanceSchedule(ctx context.Context, accountID int64, fn core.AdvanceFunc) (core.ScheduleConfig, error)
}

// StatusStore reads and writes client payment standing.
type StatusStore interface {
	LoadClientStatus(ctx context.Context, clientID int64) (*core.ClientStatus, error)
	SaveClientStatus(ctx context.Context, status core.ClientStatus) error
	LastPaymentDate(ctx context.Context, clientID int64) (*core.Date, error)
	SavePayment(ctx context.Context, p core.Payment) error
	ListClientIDs(ctx context.Context) ([]int64, error)
}

// TemplateStore looks up active message templates by name.
type TemplateStore interface {
	LoadActiveTemplate(ctx context.Context, name string) (*core.MessageTemplate, error)
}

// HistoryStore records every reminder attempt.
type HistoryStore interface {
	SaveReminder(ctx context.Context, r core.ReminderRecord) error
}

// LedgerPublisher hands sent reminders to the ledger pipeline.
type LedgerPublisher interface {
	PublishReminderSent(ctx context.Context, runID string, entry core.LedgerEntry) error
}
