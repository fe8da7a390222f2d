package http

import (
	"encoding/json"
	"net/http"

	"billremind/internal/core"
	applog "billremind/internal/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps an error kind to a status. Unexpected errors are
// logged and their text is not returned.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case core.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case core.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case core.IsPersistenceUnavailable(err):
		applog.FromContext(r.Context()).Error("Store unavailable", applog.FieldError, err)
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		applog.FromContext(r.Context()).Error("Request failed", applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
