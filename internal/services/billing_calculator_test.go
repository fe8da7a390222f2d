package services

import (
	"testing"

	"billremind/internal/core"
)

func d(y, m, day int) core.Date { return core.NewDate(y, m, day) }

func TestNextCandidate(t *testing.T) {
	prior := d(2000, 1, 1).Ptr()

	tests := []struct {
		name   string
		freq   core.Frequency
		dueDay int
		prior  *core.Date
		asOf   core.Date
		want   core.Date
	}{
		{"daily is asOf", core.Daily, 10, nil, d(2025, 1, 10), d(2025, 1, 10)},
		{"weekly adds 7 days", core.Weekly, 10, prior, d(2025, 1, 10), d(2025, 1, 17)},
		{"biweekly adds 15 days", core.Biweekly, 10, prior, d(2025, 1, 10), d(2025, 1, 25)},
		{"weekly crosses year", core.Weekly, 1, nil, d(2025, 12, 29), d(2026, 1, 5)},

		{"first computation uses same month", core.Monthly, 20, nil, d(2025, 1, 10), d(2025, 1, 20)},
		{"first computation on the due day", core.Monthly, 20, nil, d(2025, 1, 20), d(2025, 1, 20)},
		{"first computation after due day", core.Monthly, 20, nil, d(2025, 1, 21), d(2025, 2, 20)},
		{"first computation day missing in month", core.Monthly, 31, nil, d(2025, 4, 5), d(2025, 5, 31)},
		{"first computation day missing, next month short", core.Monthly, 31, nil, d(2025, 2, 10), d(2025, 3, 31)},

		{"prior present advances even before due day", core.Monthly, 20, prior, d(2025, 1, 10), d(2025, 2, 20)},
		{"clamp to february", core.Monthly, 31, prior, d(2025, 1, 31), d(2025, 2, 28)},
		{"clamp to leap february", core.Monthly, 31, prior, d(2024, 1, 31), d(2024, 2, 29)},
		{"clamp to 30 day month", core.Monthly, 31, prior, d(2025, 3, 31), d(2025, 4, 30)},
		{"february to march keeps 31", core.Monthly, 31, prior, d(2025, 2, 28), d(2025, 3, 31)},
		{"year rollover", core.Monthly, 15, prior, d(2025, 12, 31), d(2026, 1, 15)},

		{"bimonthly first computation same month", core.Bimonthly, 10, nil, d(2025, 1, 5), d(2025, 1, 10)},
		{"bimonthly first computation past due", core.Bimonthly, 10, nil, d(2025, 1, 15), d(2025, 3, 10)},
		{"bimonthly clamp across year", core.Bimonthly, 31, prior, d(2025, 12, 15), d(2026, 2, 28)},
		{"bimonthly from january 31", core.Bimonthly, 31, prior, d(2025, 1, 31), d(2025, 3, 31)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextCandidate(tt.freq, tt.dueDay, tt.prior, tt.asOf)
			if err != nil {
				t.Fatalf("NextCandidate() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextCandidate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNextCandidate_InvalidInput(t *testing.T) {
	asOf := d(2025, 1, 10)
	tests := []struct {
		name   string
		freq   core.Frequency
		dueDay int
	}{
		{"due day zero", core.Monthly, 0},
		{"due day 32", core.Monthly, 32},
		{"negative due day on weekly", core.Weekly, -1},
		{"unknown frequency", core.Frequency("yearly"), 10},
		{"empty frequency", core.Frequency(""), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NextCandidate(tt.freq, tt.dueDay, nil, asOf); !core.IsInvalidInput(err) {
				t.Errorf("expected invalid input, got %v", err)
			}
		})
	}
}

// Every monthly advance with a prior date lands in the following month on
// the due day or that month's last day.
func TestNextCandidate_MonthlyAdvanceProperty(t *testing.T) {
	prior := d(2000, 1, 1).Ptr()
	for asOf := d(2023, 1, 1); asOf.Before(d(2027, 1, 1)); asOf = asOf.AddDays(1) {
		wantMonth := asOf.Time.AddDate(0, 0, -asOf.Day()+1).AddDate(0, 1, 0)
		last := core.DaysIn(wantMonth.Year(), wantMonth.Month())

		for due := 1; due <= 31; due++ {
			got, err := NextCandidate(core.Monthly, due, prior, asOf)
			if err != nil {
				t.Fatal(err)
			}
			if got.Year() != wantMonth.Year() || got.Time.Month() != wantMonth.Month() {
				t.Fatalf("asOf %s due %d: got %s, want month %s", asOf, due, got, wantMonth.Format("2006-01"))
			}
			if want := min(due, last); got.Day() != want {
				t.Fatalf("asOf %s due %d: got day %d, want %d", asOf, due, got.Day(), want)
			}
		}
	}
}

// A first computation never lands before asOf and never skips a whole
// billing month.
func TestNextCandidate_FirstComputationProperty(t *testing.T) {
	for asOf := d(2024, 1, 1); asOf.Before(d(2026, 1, 1)); asOf = asOf.AddDays(1) {
		for due := 1; due <= 31; due++ {
			got, err := NextCandidate(core.Monthly, due, nil, asOf)
			if err != nil {
				t.Fatal(err)
			}
			if got.Before(asOf) {
				t.Fatalf("asOf %s due %d: %s is in the past", asOf, due, got)
			}
			if got.DaysSince(asOf) > 61 {
				t.Fatalf("asOf %s due %d: %s is too far ahead", asOf, due, got)
			}
		}
	}
}
