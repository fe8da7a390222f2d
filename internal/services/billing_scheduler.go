package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"billremind/internal/core"
	"billremind/internal/holiday"
)

// BillingScheduler combines the date calculator with the holiday calendar
// and keeps each account's next billing date up to date.
type BillingScheduler struct {
	store    ScheduleStore
	calendar *holiday.Calendar
	now      func() time.Time
}

// NewBillingScheduler creates a scheduler. A nil now uses time.Now.
func NewBillingScheduler(store ScheduleStore, calendar *holiday.Calendar, now func() time.Time) *BillingScheduler {
	if now == nil {
		now = time.Now
	}
	return &BillingScheduler{
		store:    store,
		calendar: calendar,
		now:      now,
	}
}

// Today returns the scheduler's current calendar day.
func (s *BillingScheduler) Today() core.Date {
	return core.DateOf(s.now())
}

// ComputeNext returns the next billing date for cfg, shifted to a business
// day when the config asks for it.
func (s *BillingScheduler) ComputeNext(cfg core.ScheduleConfig, dueDay int, asOf core.Date) (core.Date, error) {
	next, err := NextCandidate(cfg.Frequency, dueDay, cfg.NextBillingDate, asOf)
	if err != nil {
		return core.Date{}, err
	}
	if !cfg.AdjustForHolidays {
		return next, nil
	}
	return s.calendar.AdjustToBusinessDay(next)
}

// InitializePending computes and stores a next billing date for every
// active account that has none. Accounts that fail are logged and skipped.
func (s *BillingScheduler) InitializePending(ctx context.Context) (int, error) {
	accounts, err := s.store.LoadActiveAccountsMissingSchedule(ctx)
	if err != nil {
		return 0, fmt.Errorf("load accounts missing schedule: %w", err)
	}

	today := s.Today()
	initialized := 0
	for _, account := range accounts {
		next, err := s.initializeAccount(ctx, account, today)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to initialize schedule",
				"component", "scheduler",
				"account_id", account.ID,
				"error", err)
			continue
		}
		initialized++
		slog.DebugContext(ctx, "Schedule initialized",
			"component", "scheduler",
			"account_id", account.ID,
			"next_billing_date", next.String())
	}

	if len(accounts) > 0 {
		slog.InfoContext(ctx, "Pending schedules initialized",
			"component", "scheduler",
			"initialized", initialized,
			"pending", len(accounts))
	}
	return initialized, nil
}

func (s *BillingScheduler) initializeAccount(ctx context.Context, account core.BillingAccount, today core.Date) (core.Date, error) {
	cfg, err := s.store.LoadScheduleConfig(ctx, account.ID)
	if err != nil {
		return core.Date{}, fmt.Errorf("load schedule config: %w", err)
	}
	if cfg == nil {
		def := core.DefaultScheduleConfig(account.ID)
		cfg = &def
	}
	// Only reached for accounts without a date, but a concurrent writer
	// may have filled it in since the listing.
	if cfg.NextBillingDate != nil {
		return *cfg.NextBillingDate, nil
	}

	next, err := s.ComputeNext(*cfg, account.DueDayOfMonth, today)
	if err != nil {
		return core.Date{}, err
	}
	if err := s.store.SaveNextBillingDate(ctx, account.ID, next); err != nil {
		return core.Date{}, fmt.Errorf("save next billing date: %w", err)
	}
	return next, nil
}

// DueToday lists the active accounts to bill on today: those whose next
// date is today, and uninitialized ones whose due day is today's day.
func (s *BillingScheduler) DueToday(ctx context.Context, today core.Date) ([]core.DueAccount, error) {
	due, err := s.store.LoadAccountsDueOn(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("load accounts due on %s: %w", today, err)
	}
	slog.InfoContext(ctx, "Accounts due",
		"component", "scheduler",
		"date", today.String(),
		"count", len(due))
	return due, nil
}

// Advance moves an account to its next billing date after a successful
// send, counting from today. A missing config is created with defaults.
// The stored date never moves backwards.
func (s *BillingScheduler) Advance(ctx context.Context, accountID int64) (core.Date, error) {
	today := s.Today()

	updated, err := s.store.AdvanceSchedule(ctx, accountID, func(account core.BillingAccount, cfg *core.ScheduleConfig) (core.ScheduleConfig, error) {
		var next core.ScheduleConfig
		if cfg == nil {
			slog.WarnContext(ctx, "Schedule config missing, creating default",
				"component", "scheduler",
				"account_id", accountID)
			next = core.DefaultScheduleConfig(accountID)
		} else {
			next = *cfg
		}
		// An account billed through the due-day fallback has no date yet;
		// treat today as the cycle just billed so the next one moves forward.
		if next.NextBillingDate == nil {
			next.NextBillingDate = today.Ptr()
		}

		date, err := s.ComputeNext(next, account.DueDayOfMonth, today)
		if err != nil {
			return core.ScheduleConfig{}, err
		}
		if cfg != nil && cfg.NextBillingDate != nil && date.Before(*cfg.NextBillingDate) {
			slog.WarnContext(ctx, "Computed date earlier than stored, keeping stored",
				"component", "scheduler",
				"account_id", accountID,
				"computed", date.String(),
				"stored", cfg.NextBillingDate.String())
			date = *cfg.NextBillingDate
		}
		next.NextBillingDate = date.Ptr()
		return next, nil
	})
	if err != nil {
		return core.Date{}, fmt.Errorf("advance account %d: %w", accountID, err)
	}

	slog.InfoContext(ctx, "Schedule advanced",
		"component", "scheduler",
		"account_id", accountID,
		"next_billing_date", updated.NextBillingDate.String())
	return *updated.NextBillingDate, nil
}
