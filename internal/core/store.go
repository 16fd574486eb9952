package core

import (
	"context"
	"errors"
	"time"
)

// ErrVersionConflict is returned by CompareAndSwap when the stored version no
// longer matches the expected one. Engines retry on it; it never escapes to
// callers directly (a retry-budget overrun surfaces as ConcurrentModificationError).
var ErrVersionConflict = errors.New("stock record version conflict")

// StockStore is durable keyed storage for StockRecords with per-key
// optimistic concurrency. Get never fails with not-found: a key that was
// never written reads back as a zero-valued record with Version 0.
//
// CompareAndSwap is the only mutation primitive. Implementations must
// guarantee linearizable writes per key: no two successful swaps observe the
// same prior version. Across keys there is no ordering guarantee.
type StockStore interface {
	Get(ctx context.Context, key StockKey) (StockRecord, error)
	CompareAndSwap(ctx context.Context, expectedVersion int64, record StockRecord) (StockRecord, error)
	// List returns every record that has ever been written, in unspecified order.
	List(ctx context.Context) ([]StockRecord, error)
}

// AuditTrail is the append-only mutation history. Records are immutable once
// appended; Append is retried by the caller on storage unavailability, never
// silently dropped.
type AuditTrail interface {
	Append(ctx context.Context, record AdjustmentRecord) error
	// History returns the most recent records for one key, newest first.
	History(ctx context.Context, key StockKey, limit int) ([]AdjustmentRecord, error)
	// ByOrder returns every record tagged with the given order id.
	ByOrder(ctx context.Context, orderID string) ([]AdjustmentRecord, error)
	// Since returns every record created at or after the given instant,
	// oldest first. Used by usage-trend replay.
	Since(ctx context.Context, cutoff time.Time) ([]AdjustmentRecord, error)
}

// CommitLogEntry marks a reserve or commit that has been applied for one
// order line, so retried status events never double-apply.
type CommitLogEntry struct {
	OrderID   string
	ProductID int
	Action    LineAction
	Quantity  int
}

type LineAction string

const (
	LineReserved  LineAction = "reserved"
	LineCommitted LineAction = "committed"
	LineReleased  LineAction = "released"
)

// CommitLog tracks which order lines have been reserved, committed, or
// released. It is the idempotency backbone of the Reservation Coordinator:
// at-least-once delivery of order status events must not double-deduct or
// release stock that was never reserved.
type CommitLog interface {
	Record(ctx context.Context, entry CommitLogEntry) error
	// Lookup returns the entry for (orderID, productID, action), if present.
	Lookup(ctx context.Context, orderID string, productID int, action LineAction) (*CommitLogEntry, error)
	// ByOrder returns all entries for one order.
	ByOrder(ctx context.Context, orderID string) ([]CommitLogEntry, error)
	// Remove deletes the entry for (orderID, productID, action), if present.
	// Only reservation unwinding uses it; committed and released markers are
	// never removed.
	Remove(ctx context.Context, orderID string, productID int, action LineAction) error
}

// ProductLookup is the slice of the catalog the coordinator needs: enough to
// refuse new reservations for obsolete products. Callers without a catalog
// (tests, seeding) may pass nil, which accepts every product.
type ProductLookup interface {
	ProductStatus(ctx context.Context, productID int) (ProductStatus, error)
}
