package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cylinder-ledger/internal/cache"
	"cylinder-ledger/internal/core"
)

func (h *Handler) createWarehouse(w http.ResponseWriter, r *http.Request) {
	var input core.WarehouseInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, r, "invalid JSON body", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	warehouse, err := h.svc.Catalog.CreateWarehouse(r.Context(), input)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.cache.Invalidate(r.Context(), cache.WarehousesKey)
	writeJSONStatus(w, http.StatusCreated, warehouse)
}

func (h *Handler) listWarehouses(w http.ResponseWriter, r *http.Request) {
	var warehouses []core.Warehouse
	if !h.cache.GetJSON(r.Context(), cache.WarehousesKey, &warehouses) {
		var err error
		warehouses, err = h.svc.Catalog.Warehouses(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		h.cache.SetJSON(r.Context(), cache.WarehousesKey, warehouses, cache.LongTTL)
	}
	writeJSON(w, map[string]any{"warehouses": warehouses})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var input core.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, r, "invalid JSON body", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	product, err := h.svc.Catalog.CreateProduct(r.Context(), input)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.cache.Invalidate(r.Context(), cache.ProductsKey)
	writeJSONStatus(w, http.StatusCreated, product)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	var products []core.Product
	if !h.cache.GetJSON(r.Context(), cache.ProductsKey, &products) {
		var err error
		products, err = h.svc.Catalog.Products(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		h.cache.SetJSON(r.Context(), cache.ProductsKey, products, cache.MediumTTL)
	}
	writeJSON(w, map[string]any{"products": products})
}

func (h *Handler) updateProductStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid product id", core.KindValidation, http.StatusBadRequest)
		return
	}

	var payload struct {
		Status core.ProductStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, "invalid JSON body", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	product, err := h.svc.Catalog.UpdateProductStatus(r.Context(), id, payload.Status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.cache.Invalidate(r.Context(), cache.ProductsKey)
	writeJSON(w, product)
}
