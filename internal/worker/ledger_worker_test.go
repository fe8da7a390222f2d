package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"billremind/internal/amqp"
	"billremind/internal/core"
	"billremind/internal/sheets/memory"
)

type failingLedger struct{ calls int }

func (f *failingLedger) AppendEntry(context.Context, core.LedgerEntry) (string, error) {
	f.calls++
	return "", errors.New("quota exceeded")
}

func message(t *testing.T) *amqp.ReminderSentMessage {
	t.Helper()
	return amqp.NewReminderSentMessage("run-1", core.LedgerEntry{
		AccountID:  7,
		ClientName: "Ana Souza",
		Amount:     decimal.RequireFromString("99.90"),
		BilledOn:   core.NewDate(2025, 3, 10),
	})
}

func TestLedgerWorker_AppendsOncePerMessage(t *testing.T) {
	ledger := memory.New()
	w := NewLedgerWorker(ledger)
	msg := message(t)

	for i := 0; i < 2; i++ {
		if err := w.HandleReminderSent(context.Background(), msg); err != nil {
			t.Fatal(err)
		}
	}
	entries := ledger.Entries()
	if len(entries) != 1 {
		t.Fatalf("ledger has %d entries, want 1", len(entries))
	}
	if entries[0].AccountID != 7 || !entries[0].BilledOn.Equal(core.NewDate(2025, 3, 10)) {
		t.Errorf("unexpected entry %+v", entries[0])
	}

	other := message(t)
	if err := w.HandleReminderSent(context.Background(), other); err != nil {
		t.Fatal(err)
	}
	if n := len(ledger.Entries()); n != 2 {
		t.Errorf("distinct message should append, got %d entries", n)
	}
}

func TestLedgerWorker_PropagatesLedgerErrors(t *testing.T) {
	ledger := &failingLedger{}
	w := NewLedgerWorker(ledger)
	msg := message(t)

	if err := w.HandleReminderSent(context.Background(), msg); err == nil {
		t.Fatal("expected error so the message is requeued")
	}
	if err := w.HandleReminderSent(context.Background(), msg); err == nil {
		t.Fatal("failed messages must not be remembered as seen")
	}
	if ledger.calls != 2 {
		t.Errorf("ledger called %d times, want 2", ledger.calls)
	}
}

func TestLedgerWorker_DropsMalformedDates(t *testing.T) {
	ledger := memory.New()
	w := NewLedgerWorker(ledger)
	msg := message(t)
	msg.BilledOn = "10/03/2025"

	if err := w.HandleReminderSent(context.Background(), msg); err != nil {
		t.Fatalf("malformed message should be dropped, got %v", err)
	}
	if n := len(ledger.Entries()); n != 0 {
		t.Errorf("ledger has %d entries, want 0", n)
	}
}
