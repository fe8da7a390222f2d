package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"billremind/internal/core"
)

const maxBodyBytes = 1 << 16

// previewRequest holds the parsed query of a schedule preview.
type previewRequest struct {
	Frequency   core.Frequency
	DueDay      int
	AsOf        core.Date
	Initialized *core.Date
	Adjust      bool
}

// parsePreviewRequest reads frequency (default monthly), due_day
// (required), as_of (default today), initialized (the stored next billing
// date, if any) and adjust (default true).
func parsePreviewRequest(query url.Values, today core.Date) (previewRequest, error) {
	req := previewRequest{Frequency: core.Monthly, AsOf: today, Adjust: true}

	if v := strings.TrimSpace(query.Get("frequency")); v != "" {
		f, err := core.ParseFrequency(v)
		if err != nil {
			return previewRequest{}, err
		}
		req.Frequency = f
	}

	v := strings.TrimSpace(query.Get("due_day"))
	if v == "" {
		return previewRequest{}, core.InvalidInputf("due_day is required")
	}
	day, err := strconv.Atoi(v)
	if err != nil {
		return previewRequest{}, core.InvalidInputf("due_day must be a number")
	}
	req.DueDay = day

	if v := strings.TrimSpace(query.Get("as_of")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return previewRequest{}, err
		}
		req.AsOf = d
	}
	if v := strings.TrimSpace(query.Get("initialized")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return previewRequest{}, err
		}
		req.Initialized = &d
	}
	if v := strings.TrimSpace(query.Get("adjust")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return previewRequest{}, core.InvalidInputf("adjust must be true or false")
		}
		req.Adjust = b
	}
	return req, nil
}

type paymentRequest struct {
	ClientID       int64           `json:"client_id"`
	Amount         json.RawMessage `json:"amount"`
	PaidOn         string          `json:"paid_on"`
	ReferenceMonth string          `json:"reference_month"`
}

// parsePaymentRequest decodes a JSON payment. amount may be a number or a
// string ("150,00" is accepted); paid_on defaults to today.
func parsePaymentRequest(r *http.Request, today core.Date) (core.Payment, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return core.Payment{}, core.InvalidInputf("read body: %v", err)
	}

	var req paymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return core.Payment{}, core.InvalidInputf("invalid JSON body: %v", err)
	}

	raw := strings.Trim(strings.TrimSpace(string(req.Amount)), `"`)
	amount, err := core.ParseAmount(raw)
	if err != nil {
		return core.Payment{}, err
	}

	p := core.Payment{
		ClientID:       req.ClientID,
		Amount:         amount,
		PaidOn:         today,
		ReferenceMonth: strings.TrimSpace(req.ReferenceMonth),
	}
	if v := strings.TrimSpace(req.PaidOn); v != "" {
		if p.PaidOn, err = core.ParseDate(v); err != nil {
			return core.Payment{}, err
		}
	}
	if p.ReferenceMonth == "" {
		p.ReferenceMonth = p.PaidOn.Format("2006-01")
	}
	return p, p.Validate()
}
