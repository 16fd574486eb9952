package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// WarehouseInput carries the fields for creating a warehouse.
type WarehouseInput struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// ProductInput carries the fields for creating a cylinder product.
type ProductInput struct {
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	CapacityKg   decimal.Decimal `json:"capacity_kg"`
	TareWeightKg decimal.Decimal `json:"tare_weight_kg"`
	Status       ProductStatus   `json:"status"`
}

// CatalogService manages the warehouse and product master data the ledger
// keys against. It also satisfies CatalogReader and ProductLookup.
type CatalogService interface {
	CreateWarehouse(ctx context.Context, input WarehouseInput) (*Warehouse, error)
	Warehouses(ctx context.Context) ([]Warehouse, error)
	WarehouseByCode(ctx context.Context, code string) (*Warehouse, error)

	CreateProduct(ctx context.Context, input ProductInput) (*Product, error)
	Products(ctx context.Context) ([]Product, error)
	ProductBySKU(ctx context.Context, sku string) (*Product, error)
	UpdateProductStatus(ctx context.Context, productID int, status ProductStatus) (*Product, error)

	ProductStatus(ctx context.Context, productID int) (ProductStatus, error)
}

type catalogService struct {
	pool *pgxpool.Pool
}

// NewCatalogService constructs a CatalogService backed by PostgreSQL.
func NewCatalogService(pool *pgxpool.Pool) CatalogService {
	return &catalogService{pool: pool}
}

func (s *catalogService) CreateWarehouse(ctx context.Context, input WarehouseInput) (*Warehouse, error) {
	if input.Code == "" {
		return nil, &ValidationError{Field: "code", Detail: "must not be empty"}
	}
	if input.Name == "" {
		return nil, &ValidationError{Field: "name", Detail: "must not be empty"}
	}
	if input.Capacity < 0 {
		return nil, &ValidationError{Field: "capacity", Detail: "must not be negative"}
	}

	w := &Warehouse{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO warehouses (code, name, capacity)
		VALUES ($1, $2, $3)
		RETURNING id, code, name, capacity, created_at`,
		input.Code, input.Name, input.Capacity,
	).Scan(&w.ID, &w.Code, &w.Name, &w.Capacity, &w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create warehouse %q: %w", input.Code, err)
	}
	return w, nil
}

// Warehouses returns all warehouses ordered by code.
func (s *catalogService) Warehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code, name, capacity, created_at
		FROM warehouses
		ORDER BY code`,
	)
	if err != nil {
		return nil, fmt.Errorf("get warehouses: %w", err)
	}
	defer rows.Close()

	var warehouses []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Code, &w.Name, &w.Capacity, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan warehouse: %w", err)
		}
		warehouses = append(warehouses, w)
	}
	return warehouses, nil
}

func (s *catalogService) WarehouseByCode(ctx context.Context, code string) (*Warehouse, error) {
	w := &Warehouse{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, code, name, capacity, created_at
		FROM warehouses
		WHERE code = $1`,
		code,
	).Scan(&w.ID, &w.Code, &w.Name, &w.Capacity, &w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("warehouse %q not found: %w", code, err)
	}
	return w, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, input ProductInput) (*Product, error) {
	if input.SKU == "" {
		return nil, &ValidationError{Field: "sku", Detail: "must not be empty"}
	}
	if input.Name == "" {
		return nil, &ValidationError{Field: "name", Detail: "must not be empty"}
	}
	if input.CapacityKg.LessThanOrEqual(decimal.Zero) {
		return nil, &ValidationError{Field: "capacity_kg", Detail: "must be positive"}
	}
	if input.TareWeightKg.LessThanOrEqual(decimal.Zero) {
		return nil, &ValidationError{Field: "tare_weight_kg", Detail: "must be positive"}
	}
	if input.CapacityKg.LessThanOrEqual(input.TareWeightKg) {
		return nil, &ValidationError{Field: "capacity_kg", Detail: "must be greater than tare weight"}
	}
	status := input.Status
	if status == "" {
		status = ProductActive
	}
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Detail: fmt.Sprintf("unknown status %q", input.Status)}
	}

	p := &Product{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (sku, name, capacity_kg, tare_weight_kg, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, sku, name, capacity_kg, tare_weight_kg, status, created_at`,
		input.SKU, input.Name, input.CapacityKg, input.TareWeightKg, status,
	).Scan(&p.ID, &p.SKU, &p.Name, &p.CapacityKg, &p.TareWeightKg, &p.Status, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create product %q: %w", input.SKU, err)
	}
	return p, nil
}

// Products returns all products ordered by SKU.
func (s *catalogService) Products(ctx context.Context) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sku, name, capacity_kg, tare_weight_kg, status, created_at
		FROM products
		ORDER BY sku`,
	)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.CapacityKg, &p.TareWeightKg, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, nil
}

func (s *catalogService) ProductBySKU(ctx context.Context, sku string) (*Product, error) {
	p := &Product{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, sku, name, capacity_kg, tare_weight_kg, status, created_at
		FROM products
		WHERE sku = $1`,
		sku,
	).Scan(&p.ID, &p.SKU, &p.Name, &p.CapacityKg, &p.TareWeightKg, &p.Status, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("product %q not found: %w", sku, err)
	}
	return p, nil
}

// UpdateProductStatus moves a product through its lifecycle. Existing stock
// for an obsolete product stays on the ledger; only new reservations stop.
func (s *catalogService) UpdateProductStatus(ctx context.Context, productID int, status ProductStatus) (*Product, error) {
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Detail: fmt.Sprintf("unknown status %q", status)}
	}

	p := &Product{}
	err := s.pool.QueryRow(ctx, `
		UPDATE products
		SET status = $2
		WHERE id = $1
		RETURNING id, sku, name, capacity_kg, tare_weight_kg, status, created_at`,
		productID, status,
	).Scan(&p.ID, &p.SKU, &p.Name, &p.CapacityKg, &p.TareWeightKg, &p.Status, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("update product %d status: %w", productID, err)
	}
	return p, nil
}

// ProductStatus implements ProductLookup for the reservation coordinator.
func (s *catalogService) ProductStatus(ctx context.Context, productID int) (ProductStatus, error) {
	var status ProductStatus
	err := s.pool.QueryRow(ctx, `
		SELECT status FROM products WHERE id = $1`,
		productID,
	).Scan(&status)
	if err != nil {
		return "", fmt.Errorf("product %d not found: %w", productID, err)
	}
	return status, nil
}
