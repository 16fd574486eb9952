package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ── StockStore ────────────────────────────────────────────────────────────────

type pgStockStore struct {
	pool *pgxpool.Pool
}

// NewPgStockStore constructs a StockStore backed by PostgreSQL. The version
// column carries the optimistic-concurrency check into the UPDATE predicate,
// so conflicting writers lose at the database rather than racing in memory.
func NewPgStockStore(pool *pgxpool.Pool) StockStore {
	return &pgStockStore{pool: pool}
}

func (s *pgStockStore) Get(ctx context.Context, key StockKey) (StockRecord, error) {
	rec := StockRecord{WarehouseID: key.WarehouseID, ProductID: key.ProductID}
	err := s.pool.QueryRow(ctx, `
		SELECT qty_full, qty_empty, qty_reserved, version, updated_at
		FROM stock_records
		WHERE warehouse_id = $1 AND product_id = $2`,
		key.WarehouseID, key.ProductID,
	).Scan(&rec.QtyFull, &rec.QtyEmpty, &rec.QtyReserved, &rec.Version, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Never-written keys read as the zero record.
		return rec, nil
	}
	if err != nil {
		return StockRecord{}, fmt.Errorf("get stock record %d/%d: %w", key.WarehouseID, key.ProductID, err)
	}
	return rec, nil
}

func (s *pgStockStore) CompareAndSwap(ctx context.Context, expectedVersion int64, record StockRecord) (StockRecord, error) {
	saved := record
	var err error
	if expectedVersion == 0 {
		// First write for this key. A concurrent first writer makes the
		// insert conflict, which reads as a version mismatch.
		err = s.pool.QueryRow(ctx, `
			INSERT INTO stock_records (warehouse_id, product_id, qty_full, qty_empty, qty_reserved, version, updated_at)
			VALUES ($1, $2, $3, $4, $5, 1, now())
			ON CONFLICT (warehouse_id, product_id) DO NOTHING
			RETURNING version, updated_at`,
			record.WarehouseID, record.ProductID, record.QtyFull, record.QtyEmpty, record.QtyReserved,
		).Scan(&saved.Version, &saved.UpdatedAt)
	} else {
		err = s.pool.QueryRow(ctx, `
			UPDATE stock_records
			SET qty_full = $3, qty_empty = $4, qty_reserved = $5, version = version + 1, updated_at = now()
			WHERE warehouse_id = $1 AND product_id = $2 AND version = $6
			RETURNING version, updated_at`,
			record.WarehouseID, record.ProductID, record.QtyFull, record.QtyEmpty, record.QtyReserved,
			expectedVersion,
		).Scan(&saved.Version, &saved.UpdatedAt)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return StockRecord{}, ErrVersionConflict
	}
	if err != nil {
		return StockRecord{}, fmt.Errorf("swap stock record %d/%d: %w", record.WarehouseID, record.ProductID, err)
	}
	return saved, nil
}

func (s *pgStockStore) List(ctx context.Context) ([]StockRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT warehouse_id, product_id, qty_full, qty_empty, qty_reserved, version, updated_at
		FROM stock_records
		ORDER BY warehouse_id, product_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list stock records: %w", err)
	}
	defer rows.Close()

	var records []StockRecord
	for rows.Next() {
		var rec StockRecord
		if err := rows.Scan(
			&rec.WarehouseID, &rec.ProductID,
			&rec.QtyFull, &rec.QtyEmpty, &rec.QtyReserved,
			&rec.Version, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stock record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ── AuditTrail ────────────────────────────────────────────────────────────────

type pgAuditTrail struct {
	pool *pgxpool.Pool
}

// NewPgAuditTrail constructs an AuditTrail backed by PostgreSQL. Rows are
// insert-only; nothing in the code path updates or deletes them.
func NewPgAuditTrail(pool *pgxpool.Pool) AuditTrail {
	return &pgAuditTrail{pool: pool}
}

func (t *pgAuditTrail) Append(ctx context.Context, record AdjustmentRecord) error {
	var orderID *string
	if record.OrderID != "" {
		orderID = &record.OrderID
	}
	_, err := t.pool.Exec(ctx, `
		INSERT INTO stock_adjustments
			(id, warehouse_id, product_id, inventory_type, delta, reason, actor, order_id, resulting_quantity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID, record.WarehouseID, record.ProductID, record.InventoryType,
		record.Delta, record.Reason, record.Actor, orderID, record.ResultingQuantity, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append adjustment %s: %w", record.ID, err)
	}
	return nil
}

func (t *pgAuditTrail) History(ctx context.Context, key StockKey, limit int) ([]AdjustmentRecord, error) {
	rows, err := t.pool.Query(ctx, `
		SELECT id, warehouse_id, product_id, inventory_type, delta, reason, actor,
		       COALESCE(order_id, ''), resulting_quantity, created_at
		FROM stock_adjustments
		WHERE warehouse_id = $1 AND product_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3`,
		key.WarehouseID, key.ProductID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("stock history %d/%d: %w", key.WarehouseID, key.ProductID, err)
	}
	defer rows.Close()
	return scanAdjustments(rows)
}

func (t *pgAuditTrail) ByOrder(ctx context.Context, orderID string) ([]AdjustmentRecord, error) {
	rows, err := t.pool.Query(ctx, `
		SELECT id, warehouse_id, product_id, inventory_type, delta, reason, actor,
		       COALESCE(order_id, ''), resulting_quantity, created_at
		FROM stock_adjustments
		WHERE order_id = $1
		ORDER BY created_at, id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("adjustments for order %s: %w", orderID, err)
	}
	defer rows.Close()
	return scanAdjustments(rows)
}

func (t *pgAuditTrail) Since(ctx context.Context, cutoff time.Time) ([]AdjustmentRecord, error) {
	rows, err := t.pool.Query(ctx, `
		SELECT id, warehouse_id, product_id, inventory_type, delta, reason, actor,
		       COALESCE(order_id, ''), resulting_quantity, created_at
		FROM stock_adjustments
		WHERE created_at >= $1
		ORDER BY created_at, id`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("adjustments since %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()
	return scanAdjustments(rows)
}

func scanAdjustments(rows pgx.Rows) ([]AdjustmentRecord, error) {
	var records []AdjustmentRecord
	for rows.Next() {
		var rec AdjustmentRecord
		if err := rows.Scan(
			&rec.ID, &rec.WarehouseID, &rec.ProductID, &rec.InventoryType,
			&rec.Delta, &rec.Reason, &rec.Actor, &rec.OrderID,
			&rec.ResultingQuantity, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan adjustment: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ── CommitLog ─────────────────────────────────────────────────────────────────

type pgCommitLog struct {
	pool *pgxpool.Pool
}

// NewPgCommitLog constructs a CommitLog backed by PostgreSQL. The primary key
// on (order_id, product_id, action) makes Record idempotent under retried
// order status events.
func NewPgCommitLog(pool *pgxpool.Pool) CommitLog {
	return &pgCommitLog{pool: pool}
}

func (l *pgCommitLog) Record(ctx context.Context, entry CommitLogEntry) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO order_commit_log (order_id, product_id, action, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id, product_id, action) DO NOTHING`,
		entry.OrderID, entry.ProductID, entry.Action, entry.Quantity,
	)
	if err != nil {
		return fmt.Errorf("record commit log %s/%d/%s: %w", entry.OrderID, entry.ProductID, entry.Action, err)
	}
	return nil
}

func (l *pgCommitLog) Lookup(ctx context.Context, orderID string, productID int, action LineAction) (*CommitLogEntry, error) {
	entry := &CommitLogEntry{OrderID: orderID, ProductID: productID, Action: action}
	err := l.pool.QueryRow(ctx, `
		SELECT quantity FROM order_commit_log
		WHERE order_id = $1 AND product_id = $2 AND action = $3`,
		orderID, productID, action,
	).Scan(&entry.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup commit log %s/%d/%s: %w", orderID, productID, action, err)
	}
	return entry, nil
}

func (l *pgCommitLog) Remove(ctx context.Context, orderID string, productID int, action LineAction) error {
	_, err := l.pool.Exec(ctx, `
		DELETE FROM order_commit_log
		WHERE order_id = $1 AND product_id = $2 AND action = $3`,
		orderID, productID, action,
	)
	if err != nil {
		return fmt.Errorf("remove commit log %s/%d/%s: %w", orderID, productID, action, err)
	}
	return nil
}

func (l *pgCommitLog) ByOrder(ctx context.Context, orderID string) ([]CommitLogEntry, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT order_id, product_id, action, quantity
		FROM order_commit_log
		WHERE order_id = $1
		ORDER BY product_id, action`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("commit log for order %s: %w", orderID, err)
	}
	defer rows.Close()

	var entries []CommitLogEntry
	for rows.Next() {
		var e CommitLogEntry
		if err := rows.Scan(&e.OrderID, &e.ProductID, &e.Action, &e.Quantity); err != nil {
			return nil, fmt.Errorf("scan commit log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
