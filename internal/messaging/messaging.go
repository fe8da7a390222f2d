// Package messaging defines the outbound channel reminders are sent through.
package messaging

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type (
	// Recipient identifies who a reminder goes to. Providers pick the field
	// they understand: Digisac uses ContactRef, Twilio uses Phone.
	Recipient struct {
		Name       string
		ContactRef string
		Phone      string
	}

	// Receipt describes an accepted message.
	Receipt struct {
		Channel   string
		MessageID string
	}

	Sender interface {
		Send(ctx context.Context, to Recipient, text string) (Receipt, error)
	}
)

// LogSender writes messages to the log instead of sending them. Used for
// dry runs.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to Recipient, text string) (Receipt, error) {
	id := uuid.NewString()
	slog.InfoContext(ctx, "Reminder (dry run)",
		"component", "messaging",
		"message_id", id,
		"recipient", to.Name,
		"contact_ref", to.ContactRef,
		"chars", len(text))
	return Receipt{Channel: "log", MessageID: id}, nil
}
