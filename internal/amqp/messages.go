package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"billremind/internal/core"
)

// ReminderSentMessage announces one delivered reminder. It carries everything
// the ledger needs, so consumers never read the billing database.
type ReminderSentMessage struct {
	MessageID   string          `json:"message_id"`
	RunID       string          `json:"run_id"`
	AccountID   int64           `json:"account_id"`
	ClientID    int64           `json:"client_id"`
	ClientName  string          `json:"client_name"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	BilledOn    string          `json:"billed_on"`
	NextBilling string          `json:"next_billing,omitempty"`
	Channel     string          `json:"channel"`
	SentAt      time.Time       `json:"sent_at"`
}

// NewReminderSentMessage builds a message for entry with a fresh message id.
func NewReminderSentMessage(runID string, entry core.LedgerEntry) *ReminderSentMessage {
	msg := &ReminderSentMessage{
		MessageID:   uuid.NewString(),
		RunID:       runID,
		AccountID:   entry.AccountID,
		ClientID:    entry.ClientID,
		ClientName:  entry.ClientName,
		Description: entry.Description,
		Amount:      entry.Amount,
		BilledOn:    entry.BilledOn.String(),
		Channel:     entry.Channel,
		SentAt:      entry.SentAt,
	}
	if entry.NextBilling != nil {
		msg.NextBilling = entry.NextBilling.String()
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *ReminderSentMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReminderSentMessageFromJSON decodes and validates a message body.
func ReminderSentMessageFromJSON(data []byte) (*ReminderSentMessage, error) {
	var msg ReminderSentMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.AccountID <= 0 || msg.BilledOn == "" {
		return nil, fmt.Errorf("reminder message missing account or billing date")
	}
	return &msg, nil
}

// Entry converts the message back into a ledger entry.
func (m *ReminderSentMessage) Entry() (core.LedgerEntry, error) {
	billed, err := core.ParseDate(m.BilledOn)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	entry := core.LedgerEntry{
		AccountID:   m.AccountID,
		ClientID:    m.ClientID,
		ClientName:  m.ClientName,
		Description: m.Description,
		Amount:      m.Amount,
		BilledOn:    billed,
		Channel:     m.Channel,
		SentAt:      m.SentAt,
	}
	if m.NextBilling != "" {
		next, err := core.ParseDate(m.NextBilling)
		if err != nil {
			return core.LedgerEntry{}, err
		}
		entry.NextBilling = &next
	}
	return entry, nil
}
