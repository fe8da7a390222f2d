package log

// Field names shared across packages.
const (
	FieldComponent  = "component"
	FieldRunID      = "run_id"
	FieldRequestID  = "request_id"
	FieldAccountID  = "account_id"
	FieldClientID   = "client_id"
	FieldTemplate   = "template"
	FieldChannel    = "channel"
	FieldMessageID  = "message_id"
	FieldNextDate   = "next_billing_date"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
)

const (
	ComponentApp       = "app"
	ComponentScheduler = "scheduler"
	ComponentHoliday   = "holiday"
	ComponentMessaging = "messaging"
	ComponentStorage   = "storage"
	ComponentLedger    = "ledger"
	ComponentAMQP      = "amqp"
	ComponentHTTP      = "http"
	ComponentCache     = "cache"
)

const (
	OpInitialize = "initialize"
	OpSend       = "send"
	OpAdvance    = "advance"
	OpRender     = "render"
	OpRecord     = "record"
	OpPublish    = "publish"
	OpMigrate    = "migrate"
)

// Fields builds attribute lists for slog calls.
type Fields map[string]any

func NewFields() Fields {
	return make(Fields)
}

func (f Fields) WithRun(runID string) Fields {
	f[FieldRunID] = runID
	return f
}

func (f Fields) WithAccount(accountID, clientID int64) Fields {
	f[FieldAccountID] = accountID
	f[FieldClientID] = clientID
	return f
}

func (f Fields) WithOperation(op string) Fields {
	f[FieldOperation] = op
	return f
}

func (f Fields) WithError(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f Fields) With(key string, value any) Fields {
	f[key] = value
	return f
}

// ToSlice flattens the fields into slog's alternating key/value form.
func (f Fields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
