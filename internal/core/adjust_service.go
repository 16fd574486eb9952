package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// maxCASAttempts bounds the CompareAndSwap retry loop; exhausting it
	// surfaces as ConcurrentModificationError rather than spinning forever.
	maxCASAttempts = 5
	casRetryDelay  = 5 * time.Millisecond

	// maxAuditAttempts bounds the Append retry once a stock mutation has
	// landed; the audit row must not be silently dropped on a transient
	// storage error.
	maxAuditAttempts = 3
)

// appendWithRetry writes one audit record, retrying transient failures. It is
// only called after the stock mutation it describes has been applied.
func appendWithRetry(ctx context.Context, audit AuditTrail, record AdjustmentRecord) error {
	var err error
	for attempt := 1; attempt <= maxAuditAttempts; attempt++ {
		if err = audit.Append(ctx, record); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(casRetryDelay):
		}
	}
	return err
}

// AdjustmentEngine applies manual signed quantity changes to one slot of one
// StockRecord, with mandatory reason tracking. Seeding and correction tooling
// go through the same path as the adjustment UI.
type AdjustmentEngine interface {
	Adjust(ctx context.Context, req AdjustmentRequest) (StockRecord, error)
}

// AdjustmentRequest carries one manual stock correction.
type AdjustmentRequest struct {
	WarehouseID   int           `json:"warehouse_id"`
	ProductID     int           `json:"product_id"`
	InventoryType InventoryType `json:"inventory_type"`
	Delta         int           `json:"delta"`
	Reason        string        `json:"reason"`
	Actor         string        `json:"actor"`
}

func (r AdjustmentRequest) validate() error {
	if r.WarehouseID <= 0 {
		return &ValidationError{Field: "warehouse_id", Detail: "must be positive"}
	}
	if r.ProductID <= 0 {
		return &ValidationError{Field: "product_id", Detail: "must be positive"}
	}
	if !r.InventoryType.Valid() {
		return &ValidationError{Field: "inventory_type", Detail: fmt.Sprintf("unknown type %q", r.InventoryType)}
	}
	if r.Delta == 0 {
		return &ValidationError{Field: "delta", Detail: "must be non-zero"}
	}
	if r.Reason == "" {
		return &ValidationError{Field: "reason", Detail: "must not be empty"}
	}
	return nil
}

type adjustmentEngine struct {
	store StockStore
	audit AuditTrail
}

func NewAdjustmentEngine(store StockStore, audit AuditTrail) AdjustmentEngine {
	return &adjustmentEngine{store: store, audit: audit}
}

// Adjust validates the request, applies the delta through CompareAndSwap with
// bounded retries, and appends an AdjustmentRecord. Rejected requests leave
// the StockRecord untouched: a delta that would drive the slot negative fails
// with InsufficientStockError instead of clamping to zero, so operator
// mistakes surface instead of disappearing.
func (e *adjustmentEngine) Adjust(ctx context.Context, req AdjustmentRequest) (StockRecord, error) {
	if err := req.validate(); err != nil {
		return StockRecord{}, err
	}

	key := StockKey{WarehouseID: req.WarehouseID, ProductID: req.ProductID}

	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		current, err := e.store.Get(ctx, key)
		if err != nil {
			return StockRecord{}, fmt.Errorf("failed to read stock record: %w", err)
		}

		newQty := current.Qty(req.InventoryType) + req.Delta
		if newQty < 0 {
			return StockRecord{}, &InsufficientStockError{
				WarehouseID: req.WarehouseID,
				ProductID:   req.ProductID,
				Requested:   req.Delta,
				Available:   current.Qty(req.InventoryType),
			}
		}

		next := current.SetQty(req.InventoryType, newQty)
		if next.QtyReserved > next.QtyFull {
			return StockRecord{}, &InvariantViolationError{
				WarehouseID: req.WarehouseID,
				ProductID:   req.ProductID,
				Reserved:    next.QtyReserved,
				Full:        next.QtyFull,
			}
		}

		saved, err := e.store.CompareAndSwap(ctx, current.Version, next)
		if errors.Is(err, ErrVersionConflict) {
			select {
			case <-ctx.Done():
				return StockRecord{}, ctx.Err()
			case <-time.After(casRetryDelay):
			}
			continue
		}
		if err != nil {
			return StockRecord{}, fmt.Errorf("failed to write stock record: %w", err)
		}

		record := AdjustmentRecord{
			ID:                uuid.NewString(),
			WarehouseID:       req.WarehouseID,
			ProductID:         req.ProductID,
			InventoryType:     req.InventoryType,
			Delta:             req.Delta,
			Reason:            req.Reason,
			Actor:             req.Actor,
			ResultingQuantity: newQty,
			CreatedAt:         saved.UpdatedAt,
		}
		if err := appendWithRetry(ctx, e.audit, record); err != nil {
			return StockRecord{}, fmt.Errorf("failed to append audit record: %w", err)
		}
		return saved, nil
	}

	return StockRecord{}, &ConcurrentModificationError{
		WarehouseID: req.WarehouseID,
		ProductID:   req.ProductID,
		Attempts:    maxCASAttempts,
	}
}
