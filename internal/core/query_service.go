package core

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"
)

// ── Report types ──────────────────────────────────────────────────────────────

// ProductTotals sums one product's stock across all warehouses.
type ProductTotals struct {
	ProductID int `json:"product_id"`
	Full      int `json:"full"`
	Empty     int `json:"empty"`
	Reserved  int `json:"reserved"`
	Available int `json:"available"`
}

// LowStockSeverity separates "running low" from "nothing left": out-of-stock
// keys are an alerting tier of their own, not just very low.
type LowStockSeverity string

const (
	SeverityLow        LowStockSeverity = "low"
	SeverityOutOfStock LowStockSeverity = "out_of_stock"
)

type LowStockEntry struct {
	WarehouseID int              `json:"warehouse_id"`
	ProductID   int              `json:"product_id"`
	Available   int              `json:"available"`
	Full        int              `json:"full"`
	Severity    LowStockSeverity `json:"severity"`
}

// UsagePoint is one day of delivered quantity for a product.
type UsagePoint struct {
	Date              string `json:"date"` // YYYY-MM-DD
	QuantityDelivered int    `json:"quantity_delivered"`
}

// CatalogReader is the read-only slice of the catalog the query service needs
// to render warehouse and product names in reports and exports.
type CatalogReader interface {
	Warehouses(ctx context.Context) ([]Warehouse, error)
	Products(ctx context.Context) ([]Product, error)
}

// ── Interface ─────────────────────────────────────────────────────────────────

// QueryService provides read-only aggregation over the ledger. It never
// mutates and never competes for the per-key write path.
type QueryService interface {
	// TotalsByProduct sums full/empty/reserved/available across warehouses.
	TotalsByProduct(ctx context.Context, productID int) (*ProductTotals, error)

	// LowStock returns every key where available/full falls below the
	// threshold ratio, plus every key with full == 0 as its own severity
	// tier. Results are ordered by severity (out-of-stock first), then
	// warehouse, then product.
	LowStock(ctx context.Context, thresholdRatio float64) ([]LowStockEntry, error)

	// UsageTrend replays delivery commits from the audit trail and returns
	// one point per day over the window, oldest first. Days without
	// deliveries are omitted.
	UsageTrend(ctx context.Context, productID, windowDays int) ([]UsagePoint, error)

	// ExportCSV writes every stock record with a non-zero history as one CSV
	// row, sorted by warehouse then SKU.
	ExportCSV(ctx context.Context, w io.Writer) error
}

type queryService struct {
	store   StockStore
	audit   AuditTrail
	catalog CatalogReader
}

func NewQueryService(store StockStore, audit AuditTrail, catalog CatalogReader) QueryService {
	return &queryService{store: store, audit: audit, catalog: catalog}
}

func (s *queryService) TotalsByProduct(ctx context.Context, productID int) (*ProductTotals, error) {
	if productID <= 0 {
		return nil, &ValidationError{Field: "product_id", Detail: "must be positive"}
	}

	records, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock records: %w", err)
	}

	totals := &ProductTotals{ProductID: productID}
	for _, rec := range records {
		if rec.ProductID != productID {
			continue
		}
		totals.Full += rec.QtyFull
		totals.Empty += rec.QtyEmpty
		totals.Reserved += rec.QtyReserved
	}
	totals.Available = totals.Full - totals.Reserved
	return totals, nil
}

func (s *queryService) LowStock(ctx context.Context, thresholdRatio float64) ([]LowStockEntry, error) {
	if thresholdRatio <= 0 || thresholdRatio > 1 {
		return nil, &ValidationError{Field: "threshold_ratio", Detail: "must be in (0, 1]"}
	}

	records, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock records: %w", err)
	}

	var out []LowStockEntry
	for _, rec := range records {
		entry := LowStockEntry{
			WarehouseID: rec.WarehouseID,
			ProductID:   rec.ProductID,
			Available:   rec.Available(),
			Full:        rec.QtyFull,
		}
		switch {
		case rec.QtyFull == 0:
			entry.Severity = SeverityOutOfStock
		case float64(rec.Available())/float64(rec.QtyFull) < thresholdRatio:
			entry.Severity = SeverityLow
		default:
			continue
		}
		out = append(out, entry)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity == SeverityOutOfStock
		}
		if out[i].WarehouseID != out[j].WarehouseID {
			return out[i].WarehouseID < out[j].WarehouseID
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

func (s *queryService) UsageTrend(ctx context.Context, productID, windowDays int) ([]UsagePoint, error) {
	if productID <= 0 {
		return nil, &ValidationError{Field: "product_id", Detail: "must be positive"}
	}
	if windowDays <= 0 {
		return nil, &ValidationError{Field: "window_days", Detail: "must be positive"}
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays)
	records, err := s.audit.Since(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to replay audit trail: %w", err)
	}

	// Delivery commits are the full-slot deductions tagged with an order id.
	byDay := make(map[string]int)
	for _, rec := range records {
		if rec.ProductID != productID || rec.OrderID == "" {
			continue
		}
		if rec.InventoryType != InventoryFull || rec.Delta >= 0 {
			continue
		}
		day := rec.CreatedAt.UTC().Format("2006-01-02")
		byDay[day] += -rec.Delta
	}

	out := make([]UsagePoint, 0, len(byDay))
	for day, qty := range byDay {
		out = append(out, UsagePoint{Date: day, QuantityDelivered: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *queryService) ExportCSV(ctx context.Context, w io.Writer) error {
	records, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stock records: %w", err)
	}

	whs, err := s.catalog.Warehouses(ctx)
	if err != nil {
		return fmt.Errorf("failed to load warehouses: %w", err)
	}
	warehouses := make(map[int]Warehouse, len(whs))
	for _, wh := range whs {
		warehouses[wh.ID] = wh
	}

	prods, err := s.catalog.Products(ctx)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}
	products := make(map[int]Product, len(prods))
	for _, p := range prods {
		products[p.ID] = p
	}

	// Only keys with a non-zero history; Version 0 means never written.
	rows := records[:0]
	for _, rec := range records {
		if rec.Version > 0 {
			rows = append(rows, rec)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		wi, wj := warehouses[rows[i].WarehouseID].Name, warehouses[rows[j].WarehouseID].Name
		if wi != wj {
			return wi < wj
		}
		return products[rows[i].ProductID].SKU < products[rows[j].ProductID].SKU
	})

	cw := csv.NewWriter(w)
	header := []string{"Warehouse", "Product SKU", "Product Name", "Full Qty", "Empty Qty", "Reserved Qty", "Available Qty", "Last Updated"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range rows {
		row := []string{
			warehouses[rec.WarehouseID].Name,
			products[rec.ProductID].SKU,
			products[rec.ProductID].Name,
			strconv.Itoa(rec.QtyFull),
			strconv.Itoa(rec.QtyEmpty),
			strconv.Itoa(rec.QtyReserved),
			strconv.Itoa(rec.Available()),
			rec.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
