package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"cylinder-ledger/internal/app"
	"cylinder-ledger/internal/cache"
)

// Handler holds the wired services, the chi router, and the read-side cache.
type Handler struct {
	svc    *app.Services
	cache  *cache.Cache
	logger *zap.Logger

	lowStockThreshold float64
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc *app.Services, c *cache.Cache, logger *zap.Logger, allowedOrigins string, lowStockThreshold float64) http.Handler {
	h := &Handler{
		svc:               svc,
		cache:             c,
		logger:            logger,
		lowStockThreshold: lowStockThreshold,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(CORS(allowedOrigins))
	r.Use(RequestBodyLimit(1 << 20))

	r.Get("/api/health", h.health)

	// ── Stock ledger ──────────────────────────────────────────────────────────
	r.Post("/api/stock/adjustments", h.createAdjustment)
	r.Get("/api/stock", h.listStock)
	r.Get("/api/stock/history", h.stockHistory)
	r.Get("/api/stock/export.csv", h.exportStockCSV)

	// ── Reports ───────────────────────────────────────────────────────────────
	r.Get("/api/reports/totals/{sku}", h.productTotals)
	r.Get("/api/reports/low-stock", h.lowStock)
	r.Get("/api/reports/usage/{sku}", h.usageTrend)

	// ── Order workflow ────────────────────────────────────────────────────────
	r.Post("/api/orders/{id}/transition", h.orderTransition)

	// ── Catalog ───────────────────────────────────────────────────────────────
	r.Post("/api/warehouses", h.createWarehouse)
	r.Get("/api/warehouses", h.listWarehouses)
	r.Post("/api/products", h.createProduct)
	r.Get("/api/products", h.listProducts)
	r.Patch("/api/products/{id}/status", h.updateProductStatus)

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}
