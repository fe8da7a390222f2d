package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"billremind/internal/core"
	"billremind/internal/messaging"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    map[string]string
	failFor string
}

func (f *fakeSender) Send(_ context.Context, to messaging.Recipient, text string) (messaging.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if to.ContactRef == f.failFor {
		return messaging.Receipt{}, errors.New("provider returned 500")
	}
	if f.sent == nil {
		f.sent = map[string]string{}
	}
	f.sent[to.ContactRef] = text
	return messaging.Receipt{Channel: "fake", MessageID: "m-" + to.ContactRef}, nil
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []core.LedgerEntry
	runIDs  map[string]bool
}

func (f *fakeLedger) PublishReminderSent(_ context.Context, runID string, e core.LedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runIDs == nil {
		f.runIDs = map[string]bool{}
	}
	f.runIDs[runID] = true
	f.entries = append(f.entries, e)
	return nil
}

type processorFixture struct {
	*fixture
	sender *fakeSender
	ledger *fakeLedger
	proc   *ReminderProcessor
}

func newProcessorFixture(t *testing.T, today core.Date, workers int) *processorFixture {
	f := newFixture(t)
	ctx := context.Background()
	for _, tpl := range []core.MessageTemplate{
		{Name: TemplateStandard, Body: "Olá ${nome}, ${descricao} de R$ ${valor} vence dia ${vencimento}.", Active: true},
		{Name: TemplateDelinquent, Body: "${nome}, há pendências: ${descricao}.", Active: true},
	} {
		if err := f.store.UpsertTemplate(ctx, tpl); err != nil {
			t.Fatal(err)
		}
	}

	clock := fixedClock(today)
	sender := &fakeSender{}
	ledger := &fakeLedger{}
	cfg := DefaultReminderProcessorConfig()
	cfg.Workers = workers
	proc := NewReminderProcessor(
		newScheduler(f.store, today),
		NewStatusResolver(f.store, 30, clock),
		NewTemplateRenderer(f.store, nil, "Grupo INOV", clock),
		sender,
		f.store,
		ledger,
		cfg,
	)
	return &processorFixture{fixture: f, sender: sender, ledger: ledger, proc: proc}
}

func (f *processorFixture) client(name, contact string) int64 {
	f.t.Helper()
	id, err := f.store.CreateClient(context.Background(), core.Client{Name: name, ContactRef: contact})
	if err != nil {
		f.t.Fatal(err)
	}
	return id
}

func (f *processorFixture) accountFor(clientID int64, dueDay int) int64 {
	f.t.Helper()
	id, err := f.store.CreateAccount(context.Background(), core.BillingAccount{
		OwnerID:       clientID,
		Description:   "Internet",
		Amount:        decimal.RequireFromString("99.90"),
		DueDayOfMonth: dueDay,
		Active:        true,
	})
	if err != nil {
		f.t.Fatal(err)
	}
	return id
}

func TestReminderProcessor_Run(t *testing.T) {
	today := d(2025, 3, 10)
	f := newProcessorFixture(t, today, 4)
	id := f.account(10, true)
	notDue := f.account(20, true)

	summary, err := f.proc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.RunID == "" || !summary.Date.Equal(today) {
		t.Errorf("unexpected summary header %+v", summary)
	}
	if summary.Initialized != 2 || summary.Due != 1 || summary.Sent != 1 || summary.Failed != 0 {
		t.Errorf("unexpected summary %+v", summary)
	}

	msg := f.sender.sent["ct-1"]
	if msg != "Olá Ana Souza, Mensalidade de R$ 150,00 vence dia 10." {
		t.Errorf("unexpected message %q", msg)
	}

	if got := f.nextDate(id); got == nil || !got.Equal(d(2025, 4, 10)) {
		t.Errorf("next date after send = %v, want 2025-04-10", got)
	}
	if got := f.nextDate(notDue); got == nil || !got.Equal(d(2025, 3, 20)) {
		t.Errorf("not-due account next = %v, want 2025-03-20", got)
	}

	history := f.store.Reminders()
	if len(history) != 1 || history[0].Status != core.ReminderSent || history[0].Message != msg {
		t.Errorf("unexpected history %+v", history)
	}

	if len(f.ledger.entries) != 1 || !f.ledger.runIDs[summary.RunID] {
		t.Fatalf("expected one ledger entry for run %s, got %+v", summary.RunID, f.ledger.entries)
	}
	entry := f.ledger.entries[0]
	if entry.AccountID != id || entry.NextBilling == nil || !entry.NextBilling.Equal(d(2025, 4, 10)) || entry.Channel != "fake" {
		t.Errorf("unexpected ledger entry %+v", entry)
	}

	// Running again the same day finds nothing: the account moved on.
	again, err := f.proc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if again.Due != 0 || again.Sent != 0 {
		t.Errorf("second run should be a no-op, got %+v", again)
	}
}

func TestReminderProcessor_SendFailureDoesNotAdvance(t *testing.T) {
	today := d(2025, 3, 10)
	f := newProcessorFixture(t, today, 2)
	ok := f.account(10, true)
	other := f.client("Bruno Lima", "ct-2")
	failing := f.accountFor(other, 10)
	f.sender.failFor = "ct-2"

	summary, err := f.proc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Sent != 1 || summary.Failed != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if got := f.nextDate(ok); got == nil || !got.Equal(d(2025, 4, 10)) {
		t.Errorf("healthy account next = %v", got)
	}
	if got := f.nextDate(failing); got == nil || !got.Equal(today) {
		t.Errorf("failed account must stay due today, got %v", got)
	}

	var errorsRecorded int
	for _, r := range f.store.Reminders() {
		if r.Status == core.ReminderError {
			errorsRecorded++
			if r.AccountID != failing || !strings.Contains(r.ErrorDetail, "500") {
				t.Errorf("unexpected error record %+v", r)
			}
		}
	}
	if errorsRecorded != 1 {
		t.Errorf("expected one error record, got %d", errorsRecorded)
	}
}

func TestReminderProcessor_MissingTemplate(t *testing.T) {
	today := d(2025, 3, 10)
	f := newProcessorFixture(t, today, 1)
	if err := f.store.UpsertTemplate(context.Background(), core.MessageTemplate{Name: TemplateStandard, Body: "x", Active: false}); err != nil {
		t.Fatal(err)
	}
	id := f.account(10, true)

	summary, err := f.proc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 1 || summary.Sent != 0 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if len(f.sender.sent) != 0 {
		t.Error("nothing should be sent without a template")
	}
	history := f.store.Reminders()
	if len(history) != 1 || history[0].Status != core.ReminderError || !strings.Contains(history[0].Message, TemplateStandard) {
		t.Errorf("unexpected history %+v", history)
	}
	if got := f.nextDate(id); got == nil || !got.Equal(today) {
		t.Errorf("account should stay due, got %v", got)
	}
}

func TestReminderProcessor_DelinquentTemplate(t *testing.T) {
	today := d(2025, 3, 10)
	f := newProcessorFixture(t, today, 1)
	f.account(10, true)
	err := f.store.SavePayment(context.Background(), core.Payment{
		ClientID: f.clientID,
		Amount:   decimal.RequireFromString("150"),
		PaidOn:   d(2025, 1, 5),
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.proc.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if msg := f.sender.sent["ct-1"]; msg != "Ana Souza, há pendências: Mensalidade." {
		t.Errorf("expected delinquent template, got %q", msg)
	}
}

func TestReminderProcessor_ManyAccountsConcurrently(t *testing.T) {
	today := d(2025, 3, 10)
	f := newProcessorFixture(t, today, 8)
	var ids []int64
	for i := 0; i < 40; i++ {
		ids = append(ids, f.account(10, true))
	}

	summary, err := f.proc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Sent != len(ids) {
		t.Errorf("sent %d, want %d", summary.Sent, len(ids))
	}
	for _, id := range ids {
		if got := f.nextDate(id); got == nil || !got.Equal(d(2025, 4, 10)) {
			t.Fatalf("account %d next = %v", id, got)
		}
	}
	if len(f.ledger.entries) != len(ids) {
		t.Errorf("ledger entries = %d, want %d", len(f.ledger.entries), len(ids))
	}
}

func TestReminderProcessor_CancelledContext(t *testing.T) {
	f := newProcessorFixture(t, d(2025, 3, 10), 1)
	f.account(10, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := f.proc.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary.Sent != 0 {
		t.Errorf("nothing should be sent after cancellation, got %+v", summary)
	}
}
