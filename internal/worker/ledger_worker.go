package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"billremind/internal/amqp"
	"billremind/internal/cache"
	"billremind/internal/sheets"
)

const (
	seenCacheSize = 10000
	seenCacheTTL  = 48 * time.Hour
)

// LedgerWorker copies reminder-sent events into the ledger sheet.
type LedgerWorker struct {
	ledger sheets.LedgerWriter
	// seen maps message ids to the row they produced, so a redelivered
	// message is not appended twice.
	seen *cache.LRUCache[string]
}

func NewLedgerWorker(ledger sheets.LedgerWriter) *LedgerWorker {
	return &LedgerWorker{
		ledger: ledger,
		seen:   cache.NewLRUCache[string](seenCacheSize, seenCacheTTL),
	}
}

// Seen exposes the dedup cache for janitor registration.
func (w *LedgerWorker) Seen() *cache.LRUCache[string] {
	return w.seen
}

// HandleReminderSent processes a single reminder-sent message from AMQP
func (w *LedgerWorker) HandleReminderSent(ctx context.Context, msg *amqp.ReminderSentMessage) error {
	if ref, ok := w.seen.Get(msg.MessageID); ok {
		slog.InfoContext(ctx, "Skipping duplicate reminder message",
			"component", "ledger",
			"message_id", msg.MessageID,
			"sheets_ref", ref)
		return nil
	}

	entry, err := msg.Entry()
	if err != nil {
		// Unparseable dates will never succeed; drop instead of requeueing.
		slog.ErrorContext(ctx, "Discarding malformed reminder message",
			"component", "ledger",
			"message_id", msg.MessageID,
			"error", err)
		return nil
	}

	ref, err := w.ledger.AppendEntry(ctx, entry)
	if err != nil {
		return fmt.Errorf("append to ledger: %w", err)
	}
	if msg.MessageID != "" {
		w.seen.Set(msg.MessageID, ref)
	}

	slog.InfoContext(ctx, "Reminder recorded in ledger",
		"component", "ledger",
		"message_id", msg.MessageID,
		"run_id", msg.RunID,
		"account_id", msg.AccountID,
		"sheets_ref", ref)
	return nil
}
