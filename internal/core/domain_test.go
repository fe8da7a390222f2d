package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseFrequency(t *testing.T) {
	cases := []struct {
		in   string
		want Frequency
		ok   bool
	}{
		{"monthly", Monthly, true},
		{" Weekly ", Weekly, true},
		{"biweekly", Biweekly, true},
		{"bimonthly", Bimonthly, true},
		{"daily", Daily, true},
		{"mensal", Monthly, true},
		{"quinzenal", Biweekly, true},
		{"bimestral", Bimonthly, true},
		{"yearly", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseFrequency(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.want, got, err)
		}
		if !tc.ok && !IsInvalidInput(err) {
			t.Fatalf("%q expected invalid input error, got %v", tc.in, err)
		}
	}
}

func TestIsDueOn(t *testing.T) {
	today := NewDate(2025, 3, 10)
	active := BillingAccount{ID: 1, Active: true, DueDayOfMonth: 10}

	cases := []struct {
		name    string
		account BillingAccount
		cfg     *ScheduleConfig
		want    bool
	}{
		{"no config, due day matches", active, nil, true},
		{"config without date, due day matches", active, &ScheduleConfig{Frequency: Monthly}, true},
		{"next date is today", BillingAccount{Active: true, DueDayOfMonth: 3}, &ScheduleConfig{NextBillingDate: today.Ptr()}, true},
		{"next date is another day", active, &ScheduleConfig{NextBillingDate: NewDate(2025, 3, 11).Ptr()}, false},
		{"inactive account", BillingAccount{Active: false, DueDayOfMonth: 10}, nil, false},
		{"inactive account with date", BillingAccount{Active: false}, &ScheduleConfig{NextBillingDate: today.Ptr()}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsDueOn(tc.account, tc.cfg, today); got != tc.want {
				t.Errorf("IsDueOn() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBillingAccountValidate(t *testing.T) {
	good := BillingAccount{OwnerID: 1, Description: "Honorarios", Amount: decimal.NewFromInt(150), DueDayOfMonth: 31}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []BillingAccount{
		{OwnerID: 0, Description: "a", Amount: decimal.NewFromInt(1), DueDayOfMonth: 1},
		{OwnerID: 1, Description: " ", Amount: decimal.NewFromInt(1), DueDayOfMonth: 1},
		{OwnerID: 1, Description: "a", Amount: decimal.Zero, DueDayOfMonth: 1},
		{OwnerID: 1, Description: "a", Amount: decimal.NewFromInt(1), DueDayOfMonth: 0},
		{OwnerID: 1, Description: "a", Amount: decimal.NewFromInt(1), DueDayOfMonth: 32},
	}
	for i, a := range bads {
		if err := a.Validate(); !IsInvalidInput(err) {
			t.Fatalf("case %d expected invalid input error, got %v", i, err)
		}
	}
}

func TestDateOfIgnoresTimeOfDay(t *testing.T) {
	late := time.Date(2025, 5, 1, 23, 59, 59, 0, time.FixedZone("BRT", -3*60*60))
	if got := DateOf(late); !got.Equal(NewDate(2025, 5, 1)) {
		t.Fatalf("DateOf() = %s, want 2025-05-01", got)
	}
}

func TestDaysIn(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2025, time.February, 28},
		{2024, time.February, 29},
		{2000, time.February, 29},
		{1900, time.February, 28},
		{2025, time.April, 30},
		{2025, time.December, 31},
	}
	for _, tc := range cases {
		if got := DaysIn(tc.year, tc.month); got != tc.want {
			t.Fatalf("DaysIn(%d, %s) = %d, want %d", tc.year, tc.month, got, tc.want)
		}
	}
}

func TestNullDateScan(t *testing.T) {
	cases := []struct {
		name  string
		in    any
		want  *Date
		isErr bool
	}{
		{"nil", nil, nil, false},
		{"text", "2025-05-02", NewDate(2025, 5, 2).Ptr(), false},
		{"bytes", []byte("2025-05-02"), NewDate(2025, 5, 2).Ptr(), false},
		{"timestamp text", "2025-05-02T00:00:00Z", NewDate(2025, 5, 2).Ptr(), false},
		{"time", time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC), NewDate(2025, 5, 2).Ptr(), false},
		{"garbage", "yesterday", nil, true},
		{"int", int64(3), nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var n NullDate
			err := n.Scan(tc.in)
			if (err != nil) != tc.isErr {
				t.Fatalf("Scan() error = %v, wantErr %v", err, tc.isErr)
			}
			if tc.isErr {
				return
			}
			got := n.Ptr()
			if (got == nil) != (tc.want == nil) || (got != nil && !got.Equal(*tc.want)) {
				t.Fatalf("Scan() = %v, want %v", got, tc.want)
			}
		})
	}
}
