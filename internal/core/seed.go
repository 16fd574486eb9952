package core

import (
	"context"
	"fmt"
)

// SeedEntry is one baseline line from a seed manifest. Warehouses and
// products are referenced by their stable business keys, not database ids.
type SeedEntry struct {
	WarehouseCode string `json:"warehouse_code"`
	ProductSKU    string `json:"product_sku"`
	Full          int    `json:"full"`
	Empty         int    `json:"empty"`
}

// SeedResult reports what a seeding run did.
type SeedResult struct {
	Applied int
	Skipped int
}

// Seeder applies baseline stock levels through the adjustment engine so that
// every seeded quantity leaves an audit row like any other mutation.
type Seeder struct {
	engine  AdjustmentEngine
	store   StockStore
	catalog CatalogService
}

func NewSeeder(engine AdjustmentEngine, store StockStore, catalog CatalogService) *Seeder {
	return &Seeder{engine: engine, store: store, catalog: catalog}
}

// Apply seeds each entry whose stock record has never been written. Keys
// with an existing history are skipped, so re-running the same manifest
// after real mutations never overwrites live quantities.
func (s *Seeder) Apply(ctx context.Context, actor string, entries []SeedEntry) (*SeedResult, error) {
	result := &SeedResult{}
	for _, entry := range entries {
		warehouse, err := s.catalog.WarehouseByCode(ctx, entry.WarehouseCode)
		if err != nil {
			return result, fmt.Errorf("seed entry %s/%s: %w", entry.WarehouseCode, entry.ProductSKU, err)
		}
		product, err := s.catalog.ProductBySKU(ctx, entry.ProductSKU)
		if err != nil {
			return result, fmt.Errorf("seed entry %s/%s: %w", entry.WarehouseCode, entry.ProductSKU, err)
		}

		key := StockKey{WarehouseID: warehouse.ID, ProductID: product.ID}
		current, err := s.store.Get(ctx, key)
		if err != nil {
			return result, err
		}
		if current.Version > 0 {
			result.Skipped++
			continue
		}

		for _, step := range []struct {
			t InventoryType
			q int
		}{
			{InventoryFull, entry.Full},
			{InventoryEmpty, entry.Empty},
		} {
			if step.q == 0 {
				continue
			}
			_, err := s.engine.Adjust(ctx, AdjustmentRequest{
				WarehouseID:   warehouse.ID,
				ProductID:     product.ID,
				InventoryType: step.t,
				Delta:         step.q,
				Reason:        "baseline seed",
				Actor:         actor,
			})
			if err != nil {
				return result, fmt.Errorf("seed %s/%s %s: %w", entry.WarehouseCode, entry.ProductSKU, step.t, err)
			}
		}
		result.Applied++
	}
	return result, nil
}
