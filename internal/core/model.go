package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryType selects which slot of a StockRecord an adjustment targets.
type InventoryType string

const (
	InventoryFull     InventoryType = "full"
	InventoryEmpty    InventoryType = "empty"
	InventoryReserved InventoryType = "reserved"
)

func (t InventoryType) Valid() bool {
	switch t {
	case InventoryFull, InventoryEmpty, InventoryReserved:
		return true
	}
	return false
}

type ProductStatus string

const (
	ProductActive    ProductStatus = "active"
	ProductEndOfSale ProductStatus = "end_of_sale"
	ProductObsolete  ProductStatus = "obsolete"
)

func (s ProductStatus) Valid() bool {
	switch s {
	case ProductActive, ProductEndOfSale, ProductObsolete:
		return true
	}
	return false
}

type Warehouse struct {
	ID        int       `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
}

type Product struct {
	ID           int             `json:"id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	CapacityKg   decimal.Decimal `json:"capacity_kg"`
	TareWeightKg decimal.Decimal `json:"tare_weight_kg"`
	Status       ProductStatus   `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

// StockKey identifies one StockRecord: cylinders of one product in one warehouse.
type StockKey struct {
	WarehouseID int `json:"warehouse_id"`
	ProductID   int `json:"product_id"`
}

// StockRecord is the quantity triple for one warehouse/product pair.
// Version is the optimistic-concurrency stamp used by CompareAndSwap;
// a zero-valued record (Version 0) means the key has never been written.
type StockRecord struct {
	WarehouseID int       `json:"warehouse_id"`
	ProductID   int       `json:"product_id"`
	QtyFull     int       `json:"qty_full"`
	QtyEmpty    int       `json:"qty_empty"`
	QtyReserved int       `json:"qty_reserved"`
	Version     int64     `json:"version"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r StockRecord) Key() StockKey {
	return StockKey{WarehouseID: r.WarehouseID, ProductID: r.ProductID}
}

// Available is derived, never stored: full stock not yet held for an order.
func (r StockRecord) Available() int {
	return r.QtyFull - r.QtyReserved
}

// Qty returns the slot value for one inventory type.
func (r StockRecord) Qty(t InventoryType) int {
	switch t {
	case InventoryFull:
		return r.QtyFull
	case InventoryEmpty:
		return r.QtyEmpty
	case InventoryReserved:
		return r.QtyReserved
	}
	return 0
}

// SetQty returns a copy with the slot for t replaced by qty.
func (r StockRecord) SetQty(t InventoryType, qty int) StockRecord {
	switch t {
	case InventoryFull:
		r.QtyFull = qty
	case InventoryEmpty:
		r.QtyEmpty = qty
	case InventoryReserved:
		r.QtyReserved = qty
	}
	return r
}

// CheckInvariants verifies the record-level invariants every successful
// mutation must preserve: no negative slot, reserved never above full.
func (r StockRecord) CheckInvariants() error {
	if r.QtyFull < 0 || r.QtyEmpty < 0 || r.QtyReserved < 0 {
		return &InsufficientStockError{
			WarehouseID: r.WarehouseID,
			ProductID:   r.ProductID,
		}
	}
	if r.QtyReserved > r.QtyFull {
		return &InvariantViolationError{
			WarehouseID: r.WarehouseID,
			ProductID:   r.ProductID,
			Reserved:    r.QtyReserved,
			Full:        r.QtyFull,
		}
	}
	return nil
}

type OrderStatus string

const (
	OrderDraft     OrderStatus = "draft"
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderScheduled OrderStatus = "scheduled"
	OrderEnRoute   OrderStatus = "en_route"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderDraft, OrderPending, OrderConfirmed, OrderScheduled, OrderEnRoute, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// OrderLine is one position of an order as handed over by the order workflow.
// The ledger never stores orders; it only reacts to their status transitions.
type OrderLine struct {
	ProductID int             `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// AdjustmentRecord is one immutable audit entry: a single applied delta on a
// single slot, with the operator's reason and the quantity that resulted.
type AdjustmentRecord struct {
	ID                string        `json:"id"`
	WarehouseID       int           `json:"warehouse_id"`
	ProductID         int           `json:"product_id"`
	InventoryType     InventoryType `json:"inventory_type"`
	Delta             int           `json:"delta"`
	Reason            string        `json:"reason"`
	Actor             string        `json:"actor"`
	OrderID           string        `json:"order_id,omitempty"`
	ResultingQuantity int           `json:"resulting_quantity"`
	CreatedAt         time.Time     `json:"created_at"`
}
