package core

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStockStore is an in-process StockStore. It backs the engine tests and
// small single-node deployments; the semantics (zero-value reads, per-key
// linearizable CompareAndSwap) are identical to the Postgres store.
type MemoryStockStore struct {
	mu      sync.RWMutex
	records map[StockKey]StockRecord
}

func NewMemoryStockStore() *MemoryStockStore {
	return &MemoryStockStore{records: make(map[StockKey]StockRecord)}
}

func (s *MemoryStockStore) Get(_ context.Context, key StockKey) (StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.records[key]; ok {
		return rec, nil
	}
	// Implicit zero baseline: valid keys never fail with not-found.
	return StockRecord{WarehouseID: key.WarehouseID, ProductID: key.ProductID}, nil
}

func (s *MemoryStockStore) CompareAndSwap(_ context.Context, expectedVersion int64, record StockRecord) (StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := record.Key()
	current, ok := s.records[key]
	currentVersion := int64(0)
	if ok {
		currentVersion = current.Version
	}
	if currentVersion != expectedVersion {
		return StockRecord{}, ErrVersionConflict
	}

	record.Version = currentVersion + 1
	record.UpdatedAt = time.Now().UTC()
	s.records[key] = record
	return record, nil
}

func (s *MemoryStockStore) List(_ context.Context) ([]StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]StockRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WarehouseID != out[j].WarehouseID {
			return out[i].WarehouseID < out[j].WarehouseID
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

// MemoryAuditTrail keeps the append-only history in process memory.
type MemoryAuditTrail struct {
	mu      sync.RWMutex
	records []AdjustmentRecord
}

func NewMemoryAuditTrail() *MemoryAuditTrail {
	return &MemoryAuditTrail{}
}

func (a *MemoryAuditTrail) Append(_ context.Context, record AdjustmentRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, record)
	return nil
}

func (a *MemoryAuditTrail) History(_ context.Context, key StockKey, limit int) ([]AdjustmentRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []AdjustmentRecord
	for i := len(a.records) - 1; i >= 0; i-- {
		rec := a.records[i]
		if rec.WarehouseID != key.WarehouseID || rec.ProductID != key.ProductID {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (a *MemoryAuditTrail) Since(_ context.Context, cutoff time.Time) ([]AdjustmentRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []AdjustmentRecord
	for _, rec := range a.records {
		if !rec.CreatedAt.Before(cutoff) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (a *MemoryAuditTrail) ByOrder(_ context.Context, orderID string) ([]AdjustmentRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []AdjustmentRecord
	for _, rec := range a.records {
		if rec.OrderID == orderID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type commitLogKey struct {
	orderID   string
	productID int
	action    LineAction
}

// MemoryCommitLog is the in-process CommitLog used alongside MemoryStockStore.
type MemoryCommitLog struct {
	mu      sync.RWMutex
	entries map[commitLogKey]CommitLogEntry
}

func NewMemoryCommitLog() *MemoryCommitLog {
	return &MemoryCommitLog{entries: make(map[commitLogKey]CommitLogEntry)}
}

func (l *MemoryCommitLog) Record(_ context.Context, entry CommitLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[commitLogKey{entry.OrderID, entry.ProductID, entry.Action}] = entry
	return nil
}

func (l *MemoryCommitLog) Lookup(_ context.Context, orderID string, productID int, action LineAction) (*CommitLogEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if e, ok := l.entries[commitLogKey{orderID, productID, action}]; ok {
		out := e
		return &out, nil
	}
	return nil, nil
}

func (l *MemoryCommitLog) Remove(_ context.Context, orderID string, productID int, action LineAction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, commitLogKey{orderID, productID, action})
	return nil
}

func (l *MemoryCommitLog) ByOrder(_ context.Context, orderID string) ([]CommitLogEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []CommitLogEntry
	for _, e := range l.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}
