package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"cylinder-ledger/internal/core"
)

func newTestEngine() (core.AdjustmentEngine, *core.MemoryStockStore, *core.MemoryAuditTrail) {
	store := core.NewMemoryStockStore()
	audit := core.NewMemoryAuditTrail()
	return core.NewAdjustmentEngine(store, audit), store, audit
}

func TestAdjust_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  core.AdjustmentRequest
	}{
		{
			name: "missing warehouse",
			req:  core.AdjustmentRequest{ProductID: 1, InventoryType: core.InventoryFull, Delta: 5, Reason: "refill"},
		},
		{
			name: "missing product",
			req:  core.AdjustmentRequest{WarehouseID: 1, InventoryType: core.InventoryFull, Delta: 5, Reason: "refill"},
		},
		{
			name: "unknown inventory type",
			req:  core.AdjustmentRequest{WarehouseID: 1, ProductID: 1, InventoryType: "damaged", Delta: 5, Reason: "refill"},
		},
		{
			name: "zero delta",
			req:  core.AdjustmentRequest{WarehouseID: 1, ProductID: 1, InventoryType: core.InventoryFull, Delta: 0, Reason: "refill"},
		},
		{
			name: "empty reason",
			req:  core.AdjustmentRequest{WarehouseID: 1, ProductID: 1, InventoryType: core.InventoryFull, Delta: 5},
		},
	}

	engine, _, _ := newTestEngine()
	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Adjust(ctx, tt.req)
			var verr *core.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestAdjust_PositiveDeltaCreatesRecord(t *testing.T) {
	engine, store, audit := newTestEngine()
	ctx := context.Background()

	rec, err := engine.Adjust(ctx, core.AdjustmentRequest{
		WarehouseID: 1, ProductID: 2, InventoryType: core.InventoryFull,
		Delta: 40, Reason: "initial refill delivery", Actor: "ops",
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if rec.QtyFull != 40 {
		t.Errorf("expected qty_full 40, got %d", rec.QtyFull)
	}
	if rec.Version != 1 {
		t.Errorf("expected version 1 on first write, got %d", rec.Version)
	}

	stored, err := store.Get(ctx, core.StockKey{WarehouseID: 1, ProductID: 2})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.QtyFull != 40 {
		t.Errorf("stored qty_full = %d, want 40", stored.QtyFull)
	}

	history, err := audit.History(ctx, rec.Key(), 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(history))
	}
	if history[0].Delta != 40 || history[0].ResultingQuantity != 40 {
		t.Errorf("audit record delta/resulting = %d/%d, want 40/40", history[0].Delta, history[0].ResultingQuantity)
	}
	if history[0].Actor != "ops" || history[0].Reason != "initial refill delivery" {
		t.Errorf("audit actor/reason not carried: %+v", history[0])
	}
}

// A delta that would drive a slot negative is rejected outright; nothing is
// clamped and nothing is written.
func TestAdjust_RejectsNegativeResult(t *testing.T) {
	engine, store, audit := newTestEngine()
	ctx := context.Background()

	if _, err := engine.Adjust(ctx, core.AdjustmentRequest{
		WarehouseID: 1, ProductID: 1, InventoryType: core.InventoryEmpty,
		Delta: 10, Reason: "returns", Actor: "ops",
	}); err != nil {
		t.Fatalf("setup adjust: %v", err)
	}

	_, err := engine.Adjust(ctx, core.AdjustmentRequest{
		WarehouseID: 1, ProductID: 1, InventoryType: core.InventoryEmpty,
		Delta: -12, Reason: "correction", Actor: "ops",
	})
	var ierr *core.InsufficientStockError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if ierr.Requested != -12 || ierr.Available != 10 {
		t.Errorf("error context requested/available = %d/%d, want -12/10", ierr.Requested, ierr.Available)
	}

	rec, _ := store.Get(ctx, core.StockKey{WarehouseID: 1, ProductID: 1})
	if rec.QtyEmpty != 10 {
		t.Errorf("rejected adjustment mutated the record: qty_empty = %d, want 10", rec.QtyEmpty)
	}
	history, _ := audit.History(ctx, rec.Key(), 10)
	if len(history) != 1 {
		t.Errorf("rejected adjustment left an audit record: %d entries", len(history))
	}
}

func TestAdjust_ReservedCannotExceedFull(t *testing.T) {
	engine, _, _ := newTestEngine()
	ctx := context.Background()

	if _, err := engine.Adjust(ctx, core.AdjustmentRequest{
		WarehouseID: 1, ProductID: 1, InventoryType: core.InventoryFull,
		Delta: 5, Reason: "refill", Actor: "ops",
	}); err != nil {
		t.Fatalf("setup adjust: %v", err)
	}

	_, err := engine.Adjust(ctx, core.AdjustmentRequest{
		WarehouseID: 1, ProductID: 1, InventoryType: core.InventoryReserved,
		Delta: 6, Reason: "manual hold", Actor: "ops",
	})
	var verr *core.InvariantViolationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected InvariantViolationError, got %v", err)
	}
}

// A sequence of adjustments nets out exactly; nothing is lost or clamped on
// the way down and back up.
func TestAdjust_RoundTrip(t *testing.T) {
	engine, store, _ := newTestEngine()
	ctx := context.Background()

	deltas := []int{30, -10, -20, 15}
	for _, d := range deltas {
		if _, err := engine.Adjust(ctx, core.AdjustmentRequest{
			WarehouseID: 3, ProductID: 7, InventoryType: core.InventoryFull,
			Delta: d, Reason: "cycle count", Actor: "ops",
		}); err != nil {
			t.Fatalf("adjust %d: %v", d, err)
		}
	}

	rec, _ := store.Get(ctx, core.StockKey{WarehouseID: 3, ProductID: 7})
	if rec.QtyFull != 15 {
		t.Errorf("qty_full = %d, want 15", rec.QtyFull)
	}
	if rec.Version != int64(len(deltas)) {
		t.Errorf("version = %d, want %d", rec.Version, len(deltas))
	}
}

// Concurrent increments on the same key must all land; the CAS loop retries
// through conflicts instead of losing updates.
func TestAdjust_NoLostUpdates(t *testing.T) {
	engine, store, audit := newTestEngine()
	ctx := context.Background()

	const workers = 8
	const perWorker = 5

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := engine.Adjust(ctx, core.AdjustmentRequest{
					WarehouseID: 1, ProductID: 1, InventoryType: core.InventoryFull,
					Delta: 1, Reason: "refill", Actor: "ops",
				}); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	failed := 0
	for err := range errs {
		var cerr *core.ConcurrentModificationError
		if !errors.As(err, &cerr) {
			t.Fatalf("unexpected error under contention: %v", err)
		}
		failed++
	}

	rec, _ := store.Get(ctx, core.StockKey{WarehouseID: 1, ProductID: 1})
	want := workers*perWorker - failed
	if rec.QtyFull != want {
		t.Errorf("qty_full = %d, want %d (every accepted adjustment applied exactly once)", rec.QtyFull, want)
	}
	history, _ := audit.History(ctx, rec.Key(), workers*perWorker+1)
	if len(history) != want {
		t.Errorf("audit entries = %d, want %d", len(history), want)
	}
}

// flakyAudit fails the first few appends before recovering.
type flakyAudit struct {
	*core.MemoryAuditTrail
	failures int
}

func (a *flakyAudit) Append(ctx context.Context, record core.AdjustmentRecord) error {
	if a.failures > 0 {
		a.failures--
		return errors.New("audit storage unavailable")
	}
	return a.MemoryAuditTrail.Append(ctx, record)
}

// Once the stock mutation has landed, transient audit failures are retried so
// the applied delta is not stranded without its audit row.
func TestAdjust_AuditAppendRetriedAfterTransientFailure(t *testing.T) {
	store := core.NewMemoryStockStore()
	audit := &flakyAudit{MemoryAuditTrail: core.NewMemoryAuditTrail(), failures: 2}
	engine := core.NewAdjustmentEngine(store, audit)
	ctx := context.Background()

	rec, err := engine.Adjust(ctx, core.AdjustmentRequest{
		WarehouseID: 1, ProductID: 1, InventoryType: core.InventoryFull,
		Delta: 5, Reason: "refill", Actor: "ops",
	})
	if err != nil {
		t.Fatalf("adjust with flaky audit: %v", err)
	}
	if rec.QtyFull != 5 {
		t.Errorf("qty_full = %d, want 5", rec.QtyFull)
	}

	history, _ := audit.History(ctx, rec.Key(), 10)
	if len(history) != 1 {
		t.Errorf("audit entries = %d, want exactly 1 after retries", len(history))
	}
}

// conflictStore always reports a version conflict to exhaust the retry budget.
type conflictStore struct {
	*core.MemoryStockStore
}

func (s *conflictStore) CompareAndSwap(ctx context.Context, expectedVersion int64, record core.StockRecord) (core.StockRecord, error) {
	return core.StockRecord{}, core.ErrVersionConflict
}

func TestAdjust_RetryBudgetExhausted(t *testing.T) {
	store := &conflictStore{core.NewMemoryStockStore()}
	engine := core.NewAdjustmentEngine(store, core.NewMemoryAuditTrail())

	_, err := engine.Adjust(context.Background(), core.AdjustmentRequest{
		WarehouseID: 1, ProductID: 1, InventoryType: core.InventoryFull,
		Delta: 1, Reason: "refill", Actor: "ops",
	})
	var cerr *core.ConcurrentModificationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConcurrentModificationError, got %v", err)
	}
	if core.ErrorKind(err) != core.KindConcurrentModification {
		t.Errorf("kind = %q, want %q", core.ErrorKind(err), core.KindConcurrentModification)
	}
}
