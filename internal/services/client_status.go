package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"billremind/internal/core"
)

// StatusResolver derives a client's standing from their payment history.
type StatusResolver struct {
	store     StatusStore
	tolerance int
	now       func() time.Time
}

// NewStatusResolver creates a resolver. toleranceDays <= 0 uses
// core.DefaultToleranceDays.
func NewStatusResolver(store StatusStore, toleranceDays int, now func() time.Time) *StatusResolver {
	if toleranceDays <= 0 {
		toleranceDays = core.DefaultToleranceDays
	}
	if now == nil {
		now = time.Now
	}
	return &StatusResolver{store: store, tolerance: toleranceDays, now: now}
}

// IsDelinquent reports whether the client's last payment is older than the
// tolerance. Clients without any recorded payment are not delinquent.
func (r *StatusResolver) IsDelinquent(ctx context.Context, clientID int64) (bool, error) {
	last, err := r.store.LastPaymentDate(ctx, clientID)
	if err != nil {
		return false, fmt.Errorf("load last payment: %w", err)
	}
	if last == nil {
		return false, nil
	}
	return core.DateOf(r.now()).DaysSince(*last) > r.tolerance, nil
}

// TemplateFor picks the reminder template for the client's standing.
func (r *StatusResolver) TemplateFor(ctx context.Context, clientID int64) (string, error) {
	delinquent, err := r.IsDelinquent(ctx, clientID)
	if err != nil {
		return "", err
	}
	if delinquent {
		return TemplateDelinquent, nil
	}
	return TemplateStandard, nil
}

// RefreshStatuses recomputes the stored status of every client and returns
// how many changed. Suspended and cancelled clients are left alone.
func (r *StatusResolver) RefreshStatuses(ctx context.Context) (int, error) {
	ids, err := r.store.ListClientIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list clients: %w", err)
	}

	changed := 0
	for _, id := range ids {
		ok, err := r.refresh(ctx, id)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to refresh client status",
				"component", "scheduler",
				"client_id", id,
				"error", err)
			continue
		}
		if ok {
			changed++
		}
	}

	slog.InfoContext(ctx, "Client statuses refreshed",
		"component", "scheduler",
		"clients", len(ids),
		"changed", changed)
	return changed, nil
}

func (r *StatusResolver) refresh(ctx context.Context, clientID int64) (bool, error) {
	current, err := r.store.LoadClientStatus(ctx, clientID)
	if err != nil {
		return false, err
	}
	if current != nil && (current.Status == core.StatusSuspended || current.Status == core.StatusCancelled) {
		return false, nil
	}

	last, err := r.store.LastPaymentDate(ctx, clientID)
	if err != nil {
		return false, err
	}
	status := core.StatusActive
	if last != nil && core.DateOf(r.now()).DaysSince(*last) > r.tolerance {
		status = core.StatusDelinquent
	}

	if current != nil && current.Status == status && sameDate(current.LastPaymentDate, last) {
		return false, nil
	}
	err = r.store.SaveClientStatus(ctx, core.ClientStatus{
		ClientID:        clientID,
		Status:          status,
		LastPaymentDate: last,
		ToleranceDays:   r.tolerance,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecordPayment stores a payment and clears delinquency.
func (r *StatusResolver) RecordPayment(ctx context.Context, p core.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ReferenceMonth == "" {
		p.ReferenceMonth = p.PaidOn.Format("2006-01")
	}
	if err := r.store.SavePayment(ctx, p); err != nil {
		return fmt.Errorf("save payment: %w", err)
	}
	if _, err := r.refresh(ctx, p.ClientID); err != nil {
		return fmt.Errorf("refresh status: %w", err)
	}
	slog.InfoContext(ctx, "Payment recorded",
		"component", "scheduler",
		"client_id", p.ClientID,
		"amount", p.Amount.StringFixed(2),
		"paid_on", p.PaidOn.String())
	return nil
}

func sameDate(a, b *core.Date) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
