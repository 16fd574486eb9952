package web

import (
	"encoding/json"
	"net/http"

	"cylinder-ledger/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeDomainError maps a core error to its HTTP status and machine code.
// Unrecognized errors become opaque 500s so storage details never leak.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch core.ErrorKind(err) {
	case core.KindValidation:
		writeError(w, r, err.Error(), core.KindValidation, http.StatusBadRequest)
	case core.KindInsufficientStock:
		writeError(w, r, err.Error(), core.KindInsufficientStock, http.StatusConflict)
	case core.KindInvariantViolation:
		writeError(w, r, err.Error(), core.KindInvariantViolation, http.StatusConflict)
	case core.KindConcurrentModification:
		// Retryable: the client may resubmit the same adjustment.
		writeError(w, r, err.Error(), core.KindConcurrentModification, http.StatusConflict)
	default:
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONStatus writes a JSON response with an explicit status code.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
