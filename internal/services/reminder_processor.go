package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"billremind/internal/core"
	applog "billremind/internal/log"
	"billremind/internal/messaging"
)

// ReminderProcessorConfig holds configuration for the daily billing run.
type ReminderProcessorConfig struct {
	// Workers is how many accounts are processed concurrently (default: 1)
	Workers int

	// RefreshStatuses recomputes client standing before sending
	RefreshStatuses bool
}

func DefaultReminderProcessorConfig() ReminderProcessorConfig {
	return ReminderProcessorConfig{Workers: 1, RefreshStatuses: true}
}

// RunSummary reports what one billing run did.
type RunSummary struct {
	RunID       string
	Date        core.Date
	Initialized int
	Due         int
	Sent        int
	Failed      int
	// AdvanceFailed counts sends whose schedule could not be advanced.
	AdvanceFailed int
}

// ReminderProcessor drives the daily run: initialize pending schedules,
// send a reminder to every due account, then advance its schedule.
type ReminderProcessor struct {
	scheduler *BillingScheduler
	statuses  *StatusResolver
	renderer  *TemplateRenderer
	sender    messaging.Sender
	history   HistoryStore
	ledger    LedgerPublisher
	config    ReminderProcessorConfig
	logger    *applog.Logger
}

// NewReminderProcessor wires a processor. ledger may be nil.
func NewReminderProcessor(
	scheduler *BillingScheduler,
	statuses *StatusResolver,
	renderer *TemplateRenderer,
	sender messaging.Sender,
	history HistoryStore,
	ledger LedgerPublisher,
	config ReminderProcessorConfig,
) *ReminderProcessor {
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &ReminderProcessor{
		scheduler: scheduler,
		statuses:  statuses,
		renderer:  renderer,
		sender:    sender,
		history:   history,
		ledger:    ledger,
		config:    config,
		logger:    applog.Wrap(nil, applog.ComponentScheduler),
	}
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeSentNotAdvanced
	outcomeFailed
)

// Run performs one billing run. Failures of individual accounts are
// recorded and logged; only failures to list work abort the run.
func (p *ReminderProcessor) Run(ctx context.Context) (RunSummary, error) {
	summary := RunSummary{RunID: uuid.NewString(), Date: p.scheduler.Today()}
	logger := p.logger.With(applog.FieldRunID, summary.RunID)
	start := time.Now()

	logger.InfoContext(ctx, "Billing run started", "date", summary.Date.String())

	if p.config.RefreshStatuses && p.statuses != nil {
		if _, err := p.statuses.RefreshStatuses(ctx); err != nil {
			logger.WarnContext(ctx, "Client status refresh failed, continuing", applog.FieldError, err)
		}
	}

	initialized, err := p.scheduler.InitializePending(ctx)
	if err != nil {
		return summary, fmt.Errorf("initialize pending schedules: %w", err)
	}
	summary.Initialized = initialized

	due, err := p.scheduler.DueToday(ctx, summary.Date)
	if err != nil {
		return summary, err
	}
	summary.Due = len(due)

	var sent, failed, notAdvanced atomic.Int64
	var g errgroup.Group
	g.SetLimit(p.config.Workers)
	for _, account := range due {
		g.Go(func() error {
			if ctx.Err() != nil {
				failed.Add(1)
				return nil
			}
			switch p.process(ctx, logger, summary, account) {
			case outcomeSent:
				sent.Add(1)
			case outcomeSentNotAdvanced:
				sent.Add(1)
				notAdvanced.Add(1)
			case outcomeFailed:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary.Sent = int(sent.Load())
	summary.Failed = int(failed.Load())
	summary.AdvanceFailed = int(notAdvanced.Load())

	logger.InfoContext(ctx, "Billing run complete",
		"initialized", summary.Initialized,
		"due", summary.Due,
		"sent", summary.Sent,
		"failed", summary.Failed,
		"advance_failed", summary.AdvanceFailed,
		applog.FieldDuration, time.Since(start).Milliseconds())

	return summary, ctx.Err()
}

// process handles one account from template choice to schedule advance.
func (p *ReminderProcessor) process(ctx context.Context, logger *applog.Logger, run RunSummary, account core.DueAccount) outcome {
	logger = logger.With(applog.FieldAccountID, account.AccountID, applog.FieldClientID, account.ClientID)

	templateName, err := p.statuses.TemplateFor(ctx, account.ClientID)
	if err != nil {
		p.recordFailure(ctx, logger, account, "", fmt.Errorf("resolve client status: %w", err))
		return outcomeFailed
	}

	message, err := p.renderer.Render(ctx, templateName, RenderContext{
		ClientName:  account.ClientName,
		Description: account.Description,
		Amount:      account.Amount,
		DueDay:      account.DueDayOfMonth,
	})
	if err != nil {
		if core.IsNotFound(err) {
			p.recordFailure(ctx, logger, account,
				fmt.Sprintf("Template %s not found", templateName),
				fmt.Errorf("template %q not found", templateName))
		} else {
			p.recordFailure(ctx, logger, account, "", fmt.Errorf("render template %q: %w", templateName, err))
		}
		return outcomeFailed
	}

	receipt, err := p.sender.Send(ctx, messaging.Recipient{
		Name:       account.ClientName,
		ContactRef: account.ContactRef,
		Phone:      account.Phone,
	}, message)
	if err != nil {
		p.recordFailure(ctx, logger, account, message, fmt.Errorf("send: %w", err))
		return outcomeFailed
	}

	sentAt := time.Now()
	if err := p.history.SaveReminder(ctx, core.ReminderRecord{
		ClientID:  account.ClientID,
		AccountID: account.AccountID,
		Message:   message,
		Status:    core.ReminderSent,
		Attempts:  1,
		SentAt:    sentAt,
	}); err != nil {
		// The message is out; losing the history row must not stop the advance.
		logger.ErrorContext(ctx, "Failed to record sent reminder", applog.FieldError, err)
	}

	next, err := p.scheduler.Advance(ctx, account.AccountID)
	if err != nil {
		logger.ErrorContext(ctx, "Reminder sent but schedule not advanced",
			applog.FieldOperation, applog.OpAdvance,
			applog.FieldError, err)
		return outcomeSentNotAdvanced
	}

	logger.InfoContext(ctx, "Reminder sent",
		applog.FieldTemplate, templateName,
		applog.FieldChannel, receipt.Channel,
		applog.FieldMessageID, receipt.MessageID,
		applog.FieldNextDate, next.String())

	p.publish(ctx, logger, run, account, receipt, next, sentAt)
	return outcomeSent
}

func (p *ReminderProcessor) publish(ctx context.Context, logger *applog.Logger, run RunSummary, account core.DueAccount, receipt messaging.Receipt, next core.Date, sentAt time.Time) {
	if p.ledger == nil {
		return
	}
	entry := core.LedgerEntry{
		AccountID:   account.AccountID,
		ClientID:    account.ClientID,
		ClientName:  account.ClientName,
		Description: account.Description,
		Amount:      account.Amount,
		BilledOn:    run.Date,
		NextBilling: next.Ptr(),
		Channel:     receipt.Channel,
		SentAt:      sentAt,
	}
	if err := p.ledger.PublishReminderSent(ctx, run.RunID, entry); err != nil {
		logger.WarnContext(ctx, "Failed to publish ledger entry",
			applog.FieldOperation, applog.OpPublish,
			applog.FieldError, err)
	}
}

func (p *ReminderProcessor) recordFailure(ctx context.Context, logger *applog.Logger, account core.DueAccount, message string, cause error) {
	logger.ErrorContext(ctx, "Reminder not sent", applog.FieldError, cause)
	if message == "" {
		message = cause.Error()
	}
	err := p.history.SaveReminder(ctx, core.ReminderRecord{
		ClientID:    account.ClientID,
		AccountID:   account.AccountID,
		Message:     message,
		Status:      core.ReminderError,
		ErrorDetail: cause.Error(),
		Attempts:    1,
		SentAt:      time.Now(),
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to record reminder error", applog.FieldError, err)
	}
}
