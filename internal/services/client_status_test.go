package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"billremind/internal/core"
)

func TestStatusResolver_TemplateFor(t *testing.T) {
	today := d(2025, 3, 10)
	tests := []struct {
		name     string
		lastPaid *core.Date
		want     string
	}{
		{"never paid", nil, TemplateStandard},
		{"paid recently", d(2025, 3, 1).Ptr(), TemplateStandard},
		{"paid exactly at tolerance", d(2025, 2, 8).Ptr(), TemplateStandard},
		{"paid one day past tolerance", d(2025, 2, 7).Ptr(), TemplateDelinquent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.lastPaid != nil {
				err := f.store.SavePayment(context.Background(), core.Payment{
					ClientID: f.clientID,
					Amount:   decimal.RequireFromString("10"),
					PaidOn:   *tt.lastPaid,
				})
				if err != nil {
					t.Fatal(err)
				}
			}
			r := NewStatusResolver(f.store, 30, fixedClock(today))
			got, err := r.TemplateFor(context.Background(), f.clientID)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("TemplateFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatusResolver_RefreshAndRecordPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	late, err := f.store.CreateClient(ctx, core.Client{Name: "Caio", ContactRef: "ct-9"})
	if err != nil {
		t.Fatal(err)
	}
	suspended, err := f.store.CreateClient(ctx, core.Client{Name: "Davi", ContactRef: "ct-10"})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.store.SaveClientStatus(ctx, core.ClientStatus{ClientID: suspended, Status: core.StatusSuspended}); err != nil {
		t.Fatal(err)
	}
	if err := f.store.SavePayment(ctx, core.Payment{ClientID: late, Amount: decimal.RequireFromString("10"), PaidOn: d(2024, 12, 1)}); err != nil {
		t.Fatal(err)
	}

	r := NewStatusResolver(f.store, 0, fixedClock(d(2025, 3, 10)))
	changed, err := r.RefreshStatuses(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if changed != 2 {
		t.Errorf("changed = %d, want 2", changed)
	}

	st, _ := f.store.LoadClientStatus(ctx, late)
	if st == nil || st.Status != core.StatusDelinquent || st.ToleranceDays != core.DefaultToleranceDays {
		t.Fatalf("late client status = %+v", st)
	}
	st, _ = f.store.LoadClientStatus(ctx, suspended)
	if st.Status != core.StatusSuspended {
		t.Errorf("suspended client was overwritten: %+v", st)
	}

	if again, _ := r.RefreshStatuses(ctx); again != 0 {
		t.Errorf("second refresh changed %d, want 0", again)
	}

	err = r.RecordPayment(ctx, core.Payment{ClientID: late, Amount: decimal.RequireFromString("150"), PaidOn: d(2025, 3, 9)})
	if err != nil {
		t.Fatal(err)
	}
	st, _ = f.store.LoadClientStatus(ctx, late)
	if st.Status != core.StatusActive || st.LastPaymentDate == nil || !st.LastPaymentDate.Equal(d(2025, 3, 9)) {
		t.Errorf("status after payment = %+v", st)
	}
}

func TestStatusResolver_RecordPaymentValidates(t *testing.T) {
	f := newFixture(t)
	r := NewStatusResolver(f.store, 30, nil)
	err := r.RecordPayment(context.Background(), core.Payment{ClientID: f.clientID, Amount: decimal.Zero, PaidOn: d(2025, 1, 1)})
	if !core.IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
