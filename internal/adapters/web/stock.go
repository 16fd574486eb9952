package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"cylinder-ledger/internal/cache"
	"cylinder-ledger/internal/core"
)

type adjustmentPayload struct {
	WarehouseID   int    `json:"warehouse_id"`
	ProductID     int    `json:"product_id"`
	InventoryType string `json:"inventory_type"`
	Delta         int    `json:"delta"`
	Reason        string `json:"reason"`
	Actor         string `json:"actor"`
}

type stockRecordResponse struct {
	WarehouseID int    `json:"warehouse_id"`
	ProductID   int    `json:"product_id"`
	QtyFull     int    `json:"qty_full"`
	QtyEmpty    int    `json:"qty_empty"`
	QtyReserved int    `json:"qty_reserved"`
	Available   int    `json:"available"`
	Version     int64  `json:"version"`
	UpdatedAt   string `json:"updated_at"`
}

func toStockResponse(rec core.StockRecord) stockRecordResponse {
	return stockRecordResponse{
		WarehouseID: rec.WarehouseID,
		ProductID:   rec.ProductID,
		QtyFull:     rec.QtyFull,
		QtyEmpty:    rec.QtyEmpty,
		QtyReserved: rec.QtyReserved,
		Available:   rec.Available(),
		Version:     rec.Version,
		UpdatedAt:   rec.UpdatedAt.Format(timeFormat),
	}
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

// createAdjustment applies a manual stock adjustment through the engine.
func (h *Handler) createAdjustment(w http.ResponseWriter, r *http.Request) {
	var payload adjustmentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, "invalid JSON body", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	rec, err := h.svc.Engine.Adjust(r.Context(), core.AdjustmentRequest{
		WarehouseID:   payload.WarehouseID,
		ProductID:     payload.ProductID,
		InventoryType: core.InventoryType(payload.InventoryType),
		Delta:         payload.Delta,
		Reason:        payload.Reason,
		Actor:         payload.Actor,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	h.cache.InvalidateStock(r.Context(), payload.ProductID)
	writeJSONStatus(w, http.StatusCreated, toStockResponse(rec))
}

// listStock returns all stock records, optionally filtered by warehouse or product.
func (h *Handler) listStock(w http.ResponseWriter, r *http.Request) {
	warehouseID, _ := strconv.Atoi(r.URL.Query().Get("warehouse_id"))
	productID, _ := strconv.Atoi(r.URL.Query().Get("product_id"))

	var records []core.StockRecord
	cacheable := warehouseID == 0 && productID == 0
	if !cacheable || !h.cache.GetJSON(r.Context(), cache.StockListKey, &records) {
		var err error
		records, err = h.svc.Store.List(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if cacheable {
			h.cache.SetJSON(r.Context(), cache.StockListKey, records, cache.ShortTTL)
		}
	}

	out := make([]stockRecordResponse, 0, len(records))
	for _, rec := range records {
		if warehouseID != 0 && rec.WarehouseID != warehouseID {
			continue
		}
		if productID != 0 && rec.ProductID != productID {
			continue
		}
		out = append(out, toStockResponse(rec))
	}
	writeJSON(w, map[string]any{"stock": out})
}

// stockHistory returns the newest-first audit trail for one stock key.
func (h *Handler) stockHistory(w http.ResponseWriter, r *http.Request) {
	warehouseID, err := strconv.Atoi(r.URL.Query().Get("warehouse_id"))
	if err != nil || warehouseID <= 0 {
		writeError(w, r, "warehouse_id is required", core.KindValidation, http.StatusBadRequest)
		return
	}
	productID, err := strconv.Atoi(r.URL.Query().Get("product_id"))
	if err != nil || productID <= 0 {
		writeError(w, r, "product_id is required", core.KindValidation, http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	key := core.StockKey{WarehouseID: warehouseID, ProductID: productID}
	records, err := h.svc.Audit.History(r.Context(), key, limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"history": records})
}

// exportStockCSV streams the ledger as CSV.
func (h *Handler) exportStockCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="stock.csv"`)
	if err := h.svc.Query.ExportCSV(r.Context(), w); err != nil {
		// Headers are already gone; log and cut the stream.
		h.logger.Error("stock export failed", zap.Error(err))
	}
}
