package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cylinder-ledger/internal/core"
)

// orderTransition is the REST entry point of the order workflow. The order
// system posts every status change here; the coordinator decides whether it
// moves stock.
func (h *Handler) orderTransition(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req core.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	req.OrderID = orderID

	result, err := h.svc.Coordinator.ApplyTransition(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if result.Applied {
		for _, rec := range result.Records {
			h.cache.InvalidateStock(r.Context(), rec.ProductID)
		}
	}
	writeJSON(w, result)
}
