package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"petsos/barcode"
	"petsos/middleware"
	"petsos/sos"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, message string, status int) {
	middleware.WriteError(w, message, status)
}

// statusFor maps engine and barcode errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sos.ErrCaseNotFound):
		return http.StatusNotFound
	case errors.Is(err, sos.ErrCaseClosed):
		return http.StatusConflict
	case errors.Is(err, barcode.ErrInvalidFormat), errors.Is(err, barcode.ErrInvalidChecksum):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sos.ErrServiceClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func requireID(w http.ResponseWriter, name string, id uuid.UUID) bool {
	if id == uuid.Nil {
		writeError(w, name+" is required", http.StatusBadRequest)
		return false
	}
	return true
}
