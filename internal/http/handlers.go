package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"billremind/internal/core"
	"billremind/internal/holiday"
	applog "billremind/internal/log"
	"billremind/internal/services"
)

type previewResponse struct {
	Frequency       core.Frequency `json:"frequency"`
	DueDay          int            `json:"due_day"`
	AsOf            string         `json:"as_of"`
	Candidate       string         `json:"candidate"`
	NextBillingDate string         `json:"next_billing_date"`
	Adjusted        bool           `json:"adjusted"`
}

type holidaysResponse struct {
	Year     int      `json:"year"`
	Easter   string   `json:"easter"`
	Holidays []string `json:"holidays"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).Warn("Readiness check failed", applog.FieldError, err)
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleSchedulePreview(w http.ResponseWriter, r *http.Request) {
	req, err := parsePreviewRequest(r.URL.Query(), core.DateOf(s.deps.Now()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	candidate, err := services.NextCandidate(req.Frequency, req.DueDay, req.Initialized, req.AsOf)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	next := candidate
	if req.Adjust {
		if next, err = s.deps.Calendar.AdjustToBusinessDay(candidate); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, previewResponse{
		Frequency:       req.Frequency,
		DueDay:          req.DueDay,
		AsOf:            req.AsOf.String(),
		Candidate:       candidate.String(),
		NextBillingDate: next.String(),
		Adjusted:        !next.Equal(candidate),
	})
}

func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year must be a number")
		return
	}

	days, err := s.deps.Calendar.HolidaysFor(year)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	easter, err := holiday.Easter(year)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := holidaysResponse{Year: year, Easter: easter.String(), Holidays: make([]string, len(days))}
	for i, d := range days {
		resp.Holidays[i] = d.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	if s.deps.Payments == nil {
		writeError(w, http.StatusServiceUnavailable, "payments are not available")
		return
	}

	payment, err := parsePaymentRequest(r, core.DateOf(s.deps.Now()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := s.deps.Payments.RecordPayment(r.Context(), payment); err != nil {
		writeDomainError(w, r, err)
		return
	}

	applog.FromContext(r.Context()).Info("Payment registered",
		applog.FieldClientID, payment.ClientID,
		"paid_on", payment.PaidOn.String())
	writeJSON(w, http.StatusCreated, map[string]any{
		"client_id":       payment.ClientID,
		"amount":          payment.Amount.StringFixed(2),
		"paid_on":         payment.PaidOn.String(),
		"reference_month": payment.ReferenceMonth,
	})
}
