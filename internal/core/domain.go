package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Biweekly  Frequency = "biweekly"
	Monthly   Frequency = "monthly"
	Bimonthly Frequency = "bimonthly"
)

const (
	StatusActive     ClientStatusKind = "active"
	StatusDelinquent ClientStatusKind = "delinquent"
	StatusSuspended  ClientStatusKind = "suspended"
	StatusCancelled  ClientStatusKind = "cancelled"
)

const (
	ReminderSent    ReminderStatus = "sent"
	ReminderError   ReminderStatus = "error"
	ReminderPending ReminderStatus = "pending"
)

// DefaultToleranceDays is how long a client may go without paying before
// being treated as delinquent.
const DefaultToleranceDays = 30

type (
	Frequency        string
	ClientStatusKind string
	ReminderStatus   string

	Client struct {
		ID         int64
		Name       string
		ContactRef string // messaging platform contact id
		Phone      string
		Email      string
	}

	BillingAccount struct {
		ID            int64
		OwnerID       int64
		Description   string
		Amount        decimal.Decimal
		DueDayOfMonth int
		Active        bool
	}

	ScheduleConfig struct {
		AccountID         int64
		Frequency         Frequency
		NextBillingDate   *Date // nil until first computation
		AdjustForHolidays bool
	}

	// DueAccount is the read model returned when listing accounts to bill.
	DueAccount struct {
		AccountID     int64
		ClientID      int64
		ClientName    string
		ContactRef    string
		Phone         string
		Description   string
		DueDayOfMonth int
		Amount        decimal.Decimal
	}

	ClientStatus struct {
		ClientID        int64
		Status          ClientStatusKind
		LastPaymentDate *Date
		ToleranceDays   int
	}

	Payment struct {
		ClientID       int64
		Amount         decimal.Decimal
		PaidOn         Date
		ReferenceMonth string // YYYY-MM
	}

	MessageTemplate struct {
		ID     int64
		Name   string
		Body   string
		Active bool
	}

	ReminderRecord struct {
		ClientID    int64
		AccountID   int64
		Message     string
		Status      ReminderStatus
		ErrorDetail string
		Attempts    int
		SentAt      time.Time
	}

	// LedgerEntry is one sent reminder as exported to the external ledger.
	LedgerEntry struct {
		AccountID   int64
		ClientID    int64
		ClientName  string
		Description string
		Amount      decimal.Decimal
		BilledOn    Date
		NextBilling *Date
		Channel     string
		SentAt      time.Time
	}
)

// AdvanceFunc computes the updated schedule for an account inside a store
// transaction. cfg is nil when the account has no schedule row yet.
type AdvanceFunc func(account BillingAccount, cfg *ScheduleConfig) (ScheduleConfig, error)

// legacyFrequencies maps names found in imported data to frequencies.
var legacyFrequencies = map[string]Frequency{
	"diaria":    Daily,
	"semanal":   Weekly,
	"quinzenal": Biweekly,
	"mensal":    Monthly,
	"bimestral": Bimonthly,
}

// ParseFrequency parses a frequency name, accepting legacy names.
func ParseFrequency(s string) (Frequency, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	f := Frequency(s)
	if f.IsValid() {
		return f, nil
	}
	if legacy, ok := legacyFrequencies[s]; ok {
		return legacy, nil
	}
	return "", InvalidInputf("unknown frequency %q", s)
}

// IsValid reports whether f is one of the supported frequencies.
func (f Frequency) IsValid() bool {
	switch f {
	case Daily, Weekly, Biweekly, Monthly, Bimonthly:
		return true
	default:
		return false
	}
}

func (f Frequency) String() string {
	return string(f)
}

// DefaultScheduleConfig returns the configuration used for accounts that
// have never been scheduled: monthly, holiday adjusted.
func DefaultScheduleConfig(accountID int64) ScheduleConfig {
	return ScheduleConfig{
		AccountID:         accountID,
		Frequency:         Monthly,
		AdjustForHolidays: true,
	}
}

// IsDueOn reports whether an account must be billed on day. An account
// without a computed next date falls back to its due day of month.
func IsDueOn(account BillingAccount, cfg *ScheduleConfig, day Date) bool {
	if !account.Active {
		return false
	}
	if cfg != nil && cfg.NextBillingDate != nil {
		return cfg.NextBillingDate.Equal(day)
	}
	return account.DueDayOfMonth == day.Day()
}

func (a BillingAccount) Validate() error {
	if a.OwnerID <= 0 {
		return InvalidInputf("account owner is required")
	}
	if strings.TrimSpace(a.Description) == "" {
		return ErrEmptyDescription
	}
	if !a.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if a.DueDayOfMonth < 1 || a.DueDayOfMonth > 31 {
		return InvalidInputf("due day %d out of range 1-31", a.DueDayOfMonth)
	}
	return nil
}

func (c ScheduleConfig) Validate() error {
	if !c.Frequency.IsValid() {
		return InvalidInputf("unknown frequency %q", c.Frequency)
	}
	return nil
}

func (c Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return InvalidInputf("client name is required")
	}
	if strings.TrimSpace(c.ContactRef) == "" {
		return InvalidInputf("client contact reference is required")
	}
	return nil
}

func (p Payment) Validate() error {
	if p.ClientID <= 0 {
		return InvalidInputf("payment client is required")
	}
	if !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if p.PaidOn.IsZero() {
		return InvalidInputf("payment date is required")
	}
	return nil
}
