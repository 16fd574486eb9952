package core_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"cylinder-ledger/internal/core"
)

func TestStockRecord_AvailableIsDerived(t *testing.T) {
	tests := []struct {
		full, reserved, want int
	}{
		{0, 0, 0},
		{10, 0, 10},
		{10, 4, 6},
		{10, 10, 0},
	}
	for _, tt := range tests {
		rec := core.StockRecord{QtyFull: tt.full, QtyReserved: tt.reserved}
		assert.Equal(t, tt.want, rec.Available(), "full=%d reserved=%d", tt.full, tt.reserved)
	}
}

func TestStockRecord_QtySlots(t *testing.T) {
	rec := core.StockRecord{QtyFull: 1, QtyEmpty: 2, QtyReserved: 1}

	assert.Equal(t, 1, rec.Qty(core.InventoryFull))
	assert.Equal(t, 2, rec.Qty(core.InventoryEmpty))
	assert.Equal(t, 1, rec.Qty(core.InventoryReserved))

	next := rec.SetQty(core.InventoryEmpty, 7)
	assert.Equal(t, 7, next.QtyEmpty)
	assert.Equal(t, 2, rec.QtyEmpty, "SetQty must not mutate the receiver")
}

func TestStockRecord_CheckInvariants(t *testing.T) {
	tests := []struct {
		name     string
		rec      core.StockRecord
		wantKind string
	}{
		{"all zero", core.StockRecord{}, ""},
		{"healthy", core.StockRecord{QtyFull: 5, QtyEmpty: 2, QtyReserved: 3}, ""},
		{"negative full", core.StockRecord{QtyFull: -1}, core.KindInsufficientStock},
		{"negative empty", core.StockRecord{QtyEmpty: -2}, core.KindInsufficientStock},
		{"negative reserved", core.StockRecord{QtyReserved: -1}, core.KindInsufficientStock},
		{"reserved exceeds full", core.StockRecord{QtyFull: 2, QtyReserved: 3}, core.KindInvariantViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.CheckInvariants()
			if tt.wantKind == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantKind, core.ErrorKind(err))
		})
	}
}

func TestInventoryType_Valid(t *testing.T) {
	assert.True(t, core.InventoryFull.Valid())
	assert.True(t, core.InventoryEmpty.Valid())
	assert.True(t, core.InventoryReserved.Valid())
	assert.False(t, core.InventoryType("damaged").Valid())
	assert.False(t, core.InventoryType("").Valid())
}

func TestProductStatus_Valid(t *testing.T) {
	assert.True(t, core.ProductActive.Valid())
	assert.True(t, core.ProductEndOfSale.Valid())
	assert.True(t, core.ProductObsolete.Valid())
	assert.False(t, core.ProductStatus("retired").Valid())
	assert.False(t, core.ProductStatus("").Valid())
}

func TestOrderStatus_ValidAndTerminal(t *testing.T) {
	statuses := []core.OrderStatus{
		core.OrderDraft, core.OrderPending, core.OrderConfirmed,
		core.OrderScheduled, core.OrderEnRoute, core.OrderDelivered, core.OrderCancelled,
	}
	for _, s := range statuses {
		assert.True(t, s.Valid(), "status %s", s)
	}
	assert.False(t, core.OrderStatus("shipped").Valid())

	assert.True(t, core.OrderDelivered.Terminal())
	assert.True(t, core.OrderCancelled.Terminal())
	assert.False(t, core.OrderEnRoute.Terminal())
}

func TestErrorKind_UnwrapsWrappedErrors(t *testing.T) {
	base := &core.InsufficientStockError{WarehouseID: 1, ProductID: 2, Requested: 5, Available: 3}
	wrapped := fmt.Errorf("applying line: %w", base)

	assert.Equal(t, core.KindInsufficientStock, core.ErrorKind(wrapped))
	assert.Equal(t, "", core.ErrorKind(errors.New("plain")))
	assert.Equal(t, "", core.ErrorKind(nil))
}
