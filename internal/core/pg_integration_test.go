package core_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"cylinder-ledger/internal/core"
)

func setupTestDB(t *testing.T) (*pgxpool.Pool, context.Context) {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE stock_adjustments, order_commit_log, stock_records, products, warehouses CASCADE;

		INSERT INTO warehouses (id, code, name, capacity) VALUES
		(1, 'NORTH', 'North Depot', 500),
		(2, 'SOUTH', 'South Depot', 300);
		SELECT setval(pg_get_serial_sequence('warehouses', 'id'), 2);

		INSERT INTO products (id, sku, name, capacity_kg, tare_weight_kg, status) VALUES
		(1, 'CYL-12', '12.5kg Cylinder', 27.50, 15.00, 'active'),
		(2, 'CYL-45', '45kg Cylinder',   78.00, 33.00, 'active');
		SELECT setval(pg_get_serial_sequence('products', 'id'), 2);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test data: %v", err)
	}

	return pool, ctx
}

func TestPgStockStore_CompareAndSwapCycle(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()

	store := core.NewPgStockStore(pool)
	key := core.StockKey{WarehouseID: 1, ProductID: 1}

	// Unknown keys read as the zero record.
	rec, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Version != 0 || rec.QtyFull != 0 {
		t.Errorf("expected zero record, got %+v", rec)
	}

	rec.QtyFull = 25
	saved, err := store.CompareAndSwap(ctx, 0, rec)
	if err != nil {
		t.Fatalf("first swap: %v", err)
	}
	if saved.Version != 1 {
		t.Errorf("version after insert = %d, want 1", saved.Version)
	}

	// Stale version loses.
	if _, err := store.CompareAndSwap(ctx, 0, saved); !errors.Is(err, core.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	saved.QtyReserved = 5
	saved2, err := store.CompareAndSwap(ctx, saved.Version, saved)
	if err != nil {
		t.Fatalf("second swap: %v", err)
	}
	if saved2.Version != 2 {
		t.Errorf("version after update = %d, want 2", saved2.Version)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].QtyFull != 25 || records[0].QtyReserved != 5 {
		t.Errorf("list = %+v", records)
	}
}

func TestPgLedger_FullOrderCycle(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()

	store := core.NewPgStockStore(pool)
	audit := core.NewPgAuditTrail(pool)
	commitLog := core.NewPgCommitLog(pool)
	catalog := core.NewCatalogService(pool)
	engine := core.NewAdjustmentEngine(store, audit)
	coordinator := core.NewReservationCoordinator(store, audit, commitLog, catalog)

	if _, err := engine.Adjust(ctx, core.AdjustmentRequest{
		WarehouseID: 1, ProductID: 1, InventoryType: core.InventoryFull,
		Delta: 30, Reason: "refill delivery", Actor: "ops",
	}); err != nil {
		t.Fatalf("seed adjust: %v", err)
	}

	confirm := core.TransitionRequest{
		OrderID: "ord-100", WarehouseID: 1,
		From: core.OrderPending, To: core.OrderConfirmed,
		Lines: []core.OrderLine{{ProductID: 1, Quantity: 10, UnitPrice: decimal.NewFromInt(45)}},
		Actor: "dispatcher",
	}
	if _, err := coordinator.ApplyTransition(ctx, confirm); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	deliver := confirm
	deliver.From = core.OrderConfirmed
	deliver.To = core.OrderDelivered
	deliver.Actor = "driver"
	if _, err := coordinator.ApplyTransition(ctx, deliver); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	// Replay the delivery; the commit log must absorb it.
	deliver.From = core.OrderDelivered
	result, err := coordinator.ApplyTransition(ctx, deliver)
	if err != nil {
		t.Fatalf("replayed deliver: %v", err)
	}
	if result.Applied {
		t.Errorf("replayed delivery applied again")
	}

	rec, err := store.Get(ctx, core.StockKey{WarehouseID: 1, ProductID: 1})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.QtyFull != 20 || rec.QtyReserved != 0 {
		t.Errorf("full/reserved = %d/%d, want 20/0", rec.QtyFull, rec.QtyReserved)
	}

	history, err := audit.History(ctx, rec.Key(), 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Errorf("expected 3 audit entries (seed, reserve, commit), got %d", len(history))
	}
	byOrder, err := audit.ByOrder(ctx, "ord-100")
	if err != nil {
		t.Fatalf("by order: %v", err)
	}
	if len(byOrder) != 2 {
		t.Errorf("expected 2 order-tagged entries, got %d", len(byOrder))
	}
}

func TestPgCatalogService_ProductValidation(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()

	catalog := core.NewCatalogService(pool)

	_, err := catalog.CreateProduct(ctx, core.ProductInput{
		SKU: "CYL-9", Name: "9kg Cylinder",
		CapacityKg: decimal.NewFromFloat(10), TareWeightKg: decimal.NewFromFloat(11),
	})
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for capacity <= tare, got %v", err)
	}

	created, err := catalog.CreateProduct(ctx, core.ProductInput{
		SKU: "CYL-9", Name: "9kg Cylinder",
		CapacityKg: decimal.NewFromFloat(20.5), TareWeightKg: decimal.NewFromFloat(9.5),
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if created.Status != core.ProductActive {
		t.Errorf("default status = %s, want active", created.Status)
	}

	updated, err := catalog.UpdateProductStatus(ctx, created.ID, core.ProductObsolete)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != core.ProductObsolete {
		t.Errorf("status = %s, want obsolete", updated.Status)
	}

	status, err := catalog.ProductStatus(ctx, created.ID)
	if err != nil {
		t.Fatalf("product status: %v", err)
	}
	if status != core.ProductObsolete {
		t.Errorf("lookup status = %s, want obsolete", status)
	}
}

func TestPgSeeder_IdempotentApply(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()

	store := core.NewPgStockStore(pool)
	audit := core.NewPgAuditTrail(pool)
	catalog := core.NewCatalogService(pool)
	engine := core.NewAdjustmentEngine(store, audit)
	seeder := core.NewSeeder(engine, store, catalog)

	manifest := []core.SeedEntry{
		{WarehouseCode: "NORTH", ProductSKU: "CYL-12", Full: 40, Empty: 10},
		{WarehouseCode: "SOUTH", ProductSKU: "CYL-45", Full: 15},
	}

	result, err := seeder.Apply(ctx, "seed", manifest)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if result.Applied != 2 || result.Skipped != 0 {
		t.Errorf("first apply = %+v, want 2 applied", result)
	}

	result, err = seeder.Apply(ctx, "seed", manifest)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if result.Applied != 0 || result.Skipped != 2 {
		t.Errorf("second apply = %+v, want 2 skipped", result)
	}

	rec, _ := store.Get(ctx, core.StockKey{WarehouseID: 1, ProductID: 1})
	if rec.QtyFull != 40 || rec.QtyEmpty != 10 {
		t.Errorf("seeded record = %+v, want full 40 empty 10", rec)
	}
}
