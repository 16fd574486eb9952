package core

import "fmt"

// Error kinds let callers branch without string matching; the web adapter
// maps them onto HTTP statuses and machine-readable codes.
const (
	KindValidation             = "VALIDATION"
	KindInsufficientStock      = "INSUFFICIENT_STOCK"
	KindInvariantViolation     = "INVARIANT_VIOLATION"
	KindConcurrentModification = "CONCURRENT_MODIFICATION"
)

// ValidationError rejects malformed input before any store access.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Detail)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Detail)
}

func (e *ValidationError) Kind() string { return KindValidation }

// InsufficientStockError means the requested change would drive a slot below
// zero, or a reservation exceeds available stock. Nothing was mutated.
type InsufficientStockError struct {
	WarehouseID int
	ProductID   int
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for warehouse %d product %d: requested %d, available %d",
		e.WarehouseID, e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Kind() string { return KindInsufficientStock }

// InvariantViolationError means the change would leave reserved above full.
// Nothing was mutated.
type InvariantViolationError struct {
	WarehouseID int
	ProductID   int
	Reserved    int
	Full        int
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation for warehouse %d product %d: reserved %d would exceed full %d",
		e.WarehouseID, e.ProductID, e.Reserved, e.Full)
}

func (e *InvariantViolationError) Kind() string { return KindInvariantViolation }

// ConcurrentModificationError means the bounded CompareAndSwap retry budget
// was exhausted. The caller should retry the whole operation from fresh reads.
type ConcurrentModificationError struct {
	WarehouseID int
	ProductID   int
	Attempts    int
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("concurrent modification on warehouse %d product %d: gave up after %d attempts",
		e.WarehouseID, e.ProductID, e.Attempts)
}

func (e *ConcurrentModificationError) Kind() string { return KindConcurrentModification }

// Kinder is implemented by every ledger error so adapters can classify
// failures without enumerating concrete types.
type Kinder interface {
	Kind() string
}

// ErrorKind returns the ledger kind of err, or empty string for foreign errors.
func ErrorKind(err error) string {
	var k Kinder
	if ok := asKinder(err, &k); ok {
		return k.Kind()
	}
	return ""
}

func asKinder(err error, target *Kinder) bool {
	for err != nil {
		if k, ok := err.(Kinder); ok {
			*target = k
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
