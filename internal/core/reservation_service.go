package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReservationCoordinator encodes the order-lifecycle side effects on the
// inventory ledger as explicit, idempotent transitions:
//
//	draft/pending → confirmed:                reserve (all-or-nothing)
//	confirmed/scheduled/en_route → delivered: commit  (deduct full + reserved)
//	any non-terminal → cancelled:             release (only what was reserved)
//
// Transitions to scheduled and en_route are pure status changes with no
// inventory effect. Commit and release are no-ops when re-applied, so the
// order workflow may deliver status events at-least-once.
type ReservationCoordinator interface {
	ApplyTransition(ctx context.Context, req TransitionRequest) (*TransitionResult, error)
}

// TransitionRequest is one order status change as reported by the order
// workflow, together with the lines the transition applies to.
type TransitionRequest struct {
	OrderID     string      `json:"order_id"`
	WarehouseID int         `json:"warehouse_id"`
	From        OrderStatus `json:"from_status"`
	To          OrderStatus `json:"to_status"`
	Lines       []OrderLine `json:"lines"`
	Actor       string      `json:"actor"`
}

// TransitionResult reports what the transition actually did to the ledger.
type TransitionResult struct {
	OrderID string        `json:"order_id"`
	Applied bool          `json:"applied"` // false for pure status changes and idempotent no-ops
	Effect  string        `json:"effect"`  // "reserve", "commit", "release", "none"
	Records []StockRecord `json:"records,omitempty"`
}

type reservationCoordinator struct {
	store    StockStore
	audit    AuditTrail
	log      CommitLog
	products ProductLookup // nil accepts every product
}

func NewReservationCoordinator(store StockStore, audit AuditTrail, log CommitLog, products ProductLookup) ReservationCoordinator {
	return &reservationCoordinator{store: store, audit: audit, log: log, products: products}
}

func (c *reservationCoordinator) ApplyTransition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}

	switch req.To {
	case OrderConfirmed:
		return c.reserve(ctx, req)
	case OrderDelivered:
		return c.commit(ctx, req)
	case OrderCancelled:
		return c.release(ctx, req)
	default:
		// scheduled, en_route, pending: status-only transitions.
		return &TransitionResult{OrderID: req.OrderID, Applied: false, Effect: "none"}, nil
	}
}

func (c *reservationCoordinator) validateRequest(req TransitionRequest) error {
	if req.OrderID == "" {
		return &ValidationError{Field: "order_id", Detail: "must not be empty"}
	}
	if !req.From.Valid() {
		return &ValidationError{Field: "from_status", Detail: fmt.Sprintf("unknown status %q", req.From)}
	}
	if !req.To.Valid() {
		return &ValidationError{Field: "to_status", Detail: fmt.Sprintf("unknown status %q", req.To)}
	}
	if req.To == OrderConfirmed || req.To == OrderDelivered {
		if req.WarehouseID <= 0 {
			return &ValidationError{Field: "warehouse_id", Detail: "must be positive"}
		}
		if len(req.Lines) == 0 {
			return &ValidationError{Field: "lines", Detail: "must not be empty"}
		}
	}
	for i, line := range req.Lines {
		if line.ProductID <= 0 {
			return &ValidationError{Field: "lines", Detail: fmt.Sprintf("line %d: product_id must be positive", i+1)}
		}
		if line.Quantity <= 0 {
			return &ValidationError{Field: "lines", Detail: fmt.Sprintf("line %d: quantity must be positive", i+1)}
		}
	}
	if !transitionAllowed(req.From, req.To) {
		return &ValidationError{
			Field:  "to_status",
			Detail: fmt.Sprintf("cannot transition %s → %s", req.From, req.To),
		}
	}
	return nil
}

// transitionAllowed is the authoritative transition table. Re-applying a
// terminal transition (delivered → delivered, cancelled → cancelled) is
// allowed so retried events resolve as no-ops instead of errors.
func transitionAllowed(from, to OrderStatus) bool {
	switch to {
	case OrderPending:
		return from == OrderDraft || from == OrderPending
	case OrderConfirmed:
		return from == OrderDraft || from == OrderPending || from == OrderConfirmed
	case OrderScheduled:
		return from == OrderConfirmed || from == OrderScheduled
	case OrderEnRoute:
		return from == OrderScheduled || from == OrderEnRoute
	case OrderDelivered:
		return from == OrderConfirmed || from == OrderScheduled || from == OrderEnRoute || from == OrderDelivered
	case OrderCancelled:
		// Delivered is terminal; only re-cancelling resolves as a no-op.
		return from != OrderDelivered
	case OrderDraft:
		return from == OrderDraft
	}
	return false
}

// ── reserve ──────────────────────────────────────────────────────────────────

// reserve holds stock for a confirmed order. The whole reservation is
// all-or-nothing: availability is validated for every line before any write,
// and a mid-flight conflict unwinds the lines already applied.
func (c *reservationCoordinator) reserve(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	lines, err := c.pendingLines(ctx, req, LineReserved)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		// Every line already reserved: retried confirmation event.
		return &TransitionResult{OrderID: req.OrderID, Applied: false, Effect: "reserve"}, nil
	}

	for _, line := range lines {
		if err := c.checkProduct(ctx, line.ProductID); err != nil {
			return nil, err
		}
	}

	// Validate availability for all lines before mutating any record.
	for _, line := range lines {
		rec, err := c.store.Get(ctx, StockKey{WarehouseID: req.WarehouseID, ProductID: line.ProductID})
		if err != nil {
			return nil, fmt.Errorf("failed to read stock record: %w", err)
		}
		if line.Quantity > rec.Available() {
			return nil, &InsufficientStockError{
				WarehouseID: req.WarehouseID,
				ProductID:   line.ProductID,
				Requested:   line.Quantity,
				Available:   rec.Available(),
			}
		}
	}

	var applied []appliedLine
	var records []StockRecord
	for _, line := range lines {
		key := StockKey{WarehouseID: req.WarehouseID, ProductID: line.ProductID}
		qty := line.Quantity
		rec, err := c.casApply(ctx, key, func(cur StockRecord) (StockRecord, error) {
			if qty > cur.Available() {
				return StockRecord{}, &InsufficientStockError{
					WarehouseID: key.WarehouseID,
					ProductID:   key.ProductID,
					Requested:   qty,
					Available:   cur.Available(),
				}
			}
			cur.QtyReserved += qty
			return cur, nil
		})
		if err != nil {
			// A line failed after earlier lines were applied: unwind so the
			// reservation lands as a whole or not at all.
			c.unwindReservations(ctx, req, applied)
			return nil, err
		}
		applied = append(applied, appliedLine{key: key, quantity: qty})
		records = append(records, rec)
	}

	// Stock for every line is held. Marking lines reserved only now keeps the
	// commit log honest: a retried confirm after an unwind must see no trace
	// of the failed attempt, or it would skip the unwound lines and report a
	// reservation that holds nothing.
	for i, line := range lines {
		if err := c.log.Record(ctx, CommitLogEntry{
			OrderID: req.OrderID, ProductID: line.ProductID, Action: LineReserved, Quantity: line.Quantity,
		}); err != nil {
			c.unwindReservations(ctx, req, applied)
			return nil, fmt.Errorf("failed to record reservation for order %s: %w", req.OrderID, err)
		}
		applied[i].logged = true
		if err := c.appendAudit(ctx, req, line.ProductID, InventoryReserved, line.Quantity, records[i].QtyReserved,
			fmt.Sprintf("order %s confirmed: reserved %d", req.OrderID, line.Quantity)); err != nil {
			c.unwindReservations(ctx, req, applied)
			return nil, err
		}
	}

	return &TransitionResult{OrderID: req.OrderID, Applied: true, Effect: "reserve", Records: records}, nil
}

type appliedLine struct {
	key      StockKey
	quantity int
	logged   bool
}

// unwindReservations backs out partially applied reservation lines, both the
// held stock and any reserved markers already written to the commit log.
// Failures here are deliberately swallowed because the caller already carries
// the original failure.
func (c *reservationCoordinator) unwindReservations(ctx context.Context, req TransitionRequest, applied []appliedLine) {
	for _, a := range applied {
		qty := a.quantity
		_, _ = c.casApply(ctx, a.key, func(cur StockRecord) (StockRecord, error) {
			cur.QtyReserved -= qty
			if cur.QtyReserved < 0 {
				cur.QtyReserved = 0
			}
			return cur, nil
		})
		if a.logged {
			_ = c.log.Remove(ctx, req.OrderID, a.key.ProductID, LineReserved)
		}
	}
}

// ── commit ───────────────────────────────────────────────────────────────────

// commit converts reservations into physical deductions at delivery. Lines
// already present in the commit log are skipped, so re-delivering an order
// never double-deducts.
func (c *reservationCoordinator) commit(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	lines, err := c.pendingLines(ctx, req, LineCommitted)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return &TransitionResult{OrderID: req.OrderID, Applied: false, Effect: "commit"}, nil
	}

	var records []StockRecord
	for _, line := range lines {
		key := StockKey{WarehouseID: req.WarehouseID, ProductID: line.ProductID}

		// How much was actually reserved for this line; a commit may arrive
		// for an order confirmed before the ledger tracked it.
		reservedForLine := 0
		if entry, err := c.log.Lookup(ctx, req.OrderID, line.ProductID, LineReserved); err != nil {
			return nil, fmt.Errorf("failed to look up reservation for order %s: %w", req.OrderID, err)
		} else if entry != nil {
			reservedForLine = entry.Quantity
		}
		if reservedForLine > line.Quantity {
			reservedForLine = line.Quantity
		}

		qty := line.Quantity
		release := reservedForLine
		rec, err := c.casApply(ctx, key, func(cur StockRecord) (StockRecord, error) {
			if qty > cur.QtyFull {
				return StockRecord{}, &InsufficientStockError{
					WarehouseID: key.WarehouseID,
					ProductID:   key.ProductID,
					Requested:   qty,
					Available:   cur.QtyFull,
				}
			}
			cur.QtyFull -= qty
			cur.QtyReserved -= release
			if cur.QtyReserved < 0 {
				cur.QtyReserved = 0
			}
			return cur, nil
		})
		if err != nil {
			return nil, err
		}
		records = append(records, rec)

		if err := c.log.Record(ctx, CommitLogEntry{
			OrderID: req.OrderID, ProductID: line.ProductID, Action: LineCommitted, Quantity: qty,
		}); err != nil {
			return nil, fmt.Errorf("failed to record commit for order %s: %w", req.OrderID, err)
		}
		if err := c.appendAudit(ctx, req, line.ProductID, InventoryFull, -qty, rec.QtyFull,
			fmt.Sprintf("order %s delivered: deducted %d", req.OrderID, qty)); err != nil {
			return nil, err
		}
	}

	return &TransitionResult{OrderID: req.OrderID, Applied: true, Effect: "commit", Records: records}, nil
}

// ── release ──────────────────────────────────────────────────────────────────

// release returns reserved stock on cancellation. Only lines the commit log
// shows as reserved and not yet committed or released are touched: cancelling
// a draft order that never reserved anything is a no-op.
func (c *reservationCoordinator) release(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	entries, err := c.log.ByOrder(ctx, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit log for order %s: %w", req.OrderID, err)
	}

	reserved := make(map[int]int)
	done := make(map[int]bool)
	for _, e := range entries {
		switch e.Action {
		case LineReserved:
			reserved[e.ProductID] = e.Quantity
		case LineCommitted, LineReleased:
			done[e.ProductID] = true
		}
	}
	if len(reserved) > 0 && req.WarehouseID <= 0 {
		return nil, &ValidationError{Field: "warehouse_id", Detail: "must be positive to release reservations"}
	}

	var records []StockRecord
	appliedAny := false
	for productID, qty := range reserved {
		if done[productID] {
			continue
		}
		key := StockKey{WarehouseID: req.WarehouseID, ProductID: productID}
		release := qty
		rec, err := c.casApply(ctx, key, func(cur StockRecord) (StockRecord, error) {
			cur.QtyReserved -= release
			if cur.QtyReserved < 0 {
				cur.QtyReserved = 0
			}
			return cur, nil
		})
		if err != nil {
			return nil, err
		}
		appliedAny = true
		records = append(records, rec)

		if err := c.log.Record(ctx, CommitLogEntry{
			OrderID: req.OrderID, ProductID: productID, Action: LineReleased, Quantity: qty,
		}); err != nil {
			return nil, fmt.Errorf("failed to record release for order %s: %w", req.OrderID, err)
		}
		if err := c.appendAudit(ctx, req, productID, InventoryReserved, -qty, rec.QtyReserved,
			fmt.Sprintf("order %s cancelled: released %d", req.OrderID, qty)); err != nil {
			return nil, err
		}
	}

	return &TransitionResult{OrderID: req.OrderID, Applied: appliedAny, Effect: "release", Records: records}, nil
}

// ── shared plumbing ──────────────────────────────────────────────────────────

// pendingLines merges duplicate products and filters out lines the commit log
// already shows as applied for the given action.
func (c *reservationCoordinator) pendingLines(ctx context.Context, req TransitionRequest, action LineAction) ([]OrderLine, error) {
	merged := make([]OrderLine, 0, len(req.Lines))
	index := make(map[int]int)
	for _, line := range req.Lines {
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}

	var pending []OrderLine
	for _, line := range merged {
		entry, err := c.log.Lookup(ctx, req.OrderID, line.ProductID, action)
		if err != nil {
			return nil, fmt.Errorf("failed to look up commit log for order %s: %w", req.OrderID, err)
		}
		if entry == nil {
			pending = append(pending, line)
		}
	}
	return pending, nil
}

func (c *reservationCoordinator) checkProduct(ctx context.Context, productID int) error {
	if c.products == nil {
		return nil
	}
	status, err := c.products.ProductStatus(ctx, productID)
	if err != nil {
		return fmt.Errorf("failed to resolve product %d: %w", productID, err)
	}
	if status == ProductObsolete {
		return &ValidationError{
			Field:  "lines",
			Detail: fmt.Sprintf("product %d is obsolete and cannot be reserved", productID),
		}
	}
	return nil
}

// casApply runs the read-mutate-swap cycle with the same bounded retry
// discipline as the Adjustment Engine.
func (c *reservationCoordinator) casApply(ctx context.Context, key StockKey, mutate func(StockRecord) (StockRecord, error)) (StockRecord, error) {
	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		current, err := c.store.Get(ctx, key)
		if err != nil {
			return StockRecord{}, fmt.Errorf("failed to read stock record: %w", err)
		}

		next, err := mutate(current)
		if err != nil {
			return StockRecord{}, err
		}
		if err := next.CheckInvariants(); err != nil {
			return StockRecord{}, err
		}

		saved, err := c.store.CompareAndSwap(ctx, current.Version, next)
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
		return saved, nil
	}

	return StockRecord{}, &ConcurrentModificationError{
		WarehouseID: key.WarehouseID,
		ProductID:   key.ProductID,
		Attempts:    maxCASAttempts,
	}
}

func (c *reservationCoordinator) appendAudit(ctx context.Context, req TransitionRequest, productID int, t InventoryType, delta, resulting int, reason string) error {
	record := AdjustmentRecord{
		ID:                uuid.NewString(),
		WarehouseID:       req.WarehouseID,
		ProductID:         productID,
		InventoryType:     t,
		Delta:             delta,
		Reason:            reason,
		Actor:             req.Actor,
		OrderID:           req.OrderID,
		ResultingQuantity: resulting,
		CreatedAt:         time.Now().UTC(),
	}
	if err := appendWithRetry(ctx, c.audit, record); err != nil {
		return fmt.Errorf("failed to append audit record for order %s: %w", req.OrderID, err)
	}
	return nil
}
