package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cylinder-ledger/internal/cache"
	"cylinder-ledger/internal/core"
)

// productTotals sums one product's stock across every warehouse.
func (h *Handler) productTotals(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	product, err := h.svc.Catalog.ProductBySKU(r.Context(), sku)
	if err != nil {
		writeError(w, r, fmt.Sprintf("product %q not found", sku), "NOT_FOUND", http.StatusNotFound)
		return
	}

	cacheKey := fmt.Sprintf("%s%d", cache.TotalsPrefix, product.ID)
	var totals core.ProductTotals
	if !h.cache.GetJSON(r.Context(), cacheKey, &totals) {
		t, err := h.svc.Query.TotalsByProduct(r.Context(), product.ID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		totals = *t
		h.cache.SetJSON(r.Context(), cacheKey, totals, cache.ShortTTL)
	}
	writeJSON(w, map[string]any{"sku": sku, "totals": totals})
}

// lowStock lists keys at or below the threshold ratio, out-of-stock first.
func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	threshold := h.lowStockThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, r, "threshold must be a number", core.KindValidation, http.StatusBadRequest)
			return
		}
		threshold = parsed
	}

	cacheable := threshold == h.lowStockThreshold
	var entries []core.LowStockEntry
	if !cacheable || !h.cache.GetJSON(r.Context(), cache.LowStockKey, &entries) {
		var err error
		entries, err = h.svc.Query.LowStock(r.Context(), threshold)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if cacheable {
			h.cache.SetJSON(r.Context(), cache.LowStockKey, entries, cache.ShortTTL)
		}
	}
	writeJSON(w, map[string]any{"threshold": threshold, "entries": entries})
}

// usageTrend returns daily delivered quantities for a product over a window.
func (h *Handler) usageTrend(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	product, err := h.svc.Catalog.ProductBySKU(r.Context(), sku)
	if err != nil {
		writeError(w, r, fmt.Sprintf("product %q not found", sku), "NOT_FOUND", http.StatusNotFound)
		return
	}

	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, "days must be an integer", core.KindValidation, http.StatusBadRequest)
			return
		}
		days = parsed
	}

	points, err := h.svc.Query.UsageTrend(r.Context(), product.ID, days)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"sku": sku, "days": days, "points": points})
}
