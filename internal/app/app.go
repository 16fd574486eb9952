package app

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"cylinder-ledger/internal/core"
)

// Services bundles the wired domain services. All adapters (HTTP, Kafka
// consumer, CLI tools) receive this instead of constructing their own.
type Services struct {
	Store       core.StockStore
	Audit       core.AuditTrail
	CommitLog   core.CommitLog
	Catalog     core.CatalogService
	Engine      core.AdjustmentEngine
	Coordinator core.ReservationCoordinator
	Query       core.QueryService
	Seeder      *core.Seeder
}

// NewServices wires the PostgreSQL-backed service graph on one pool.
func NewServices(pool *pgxpool.Pool) *Services {
	store := core.NewPgStockStore(pool)
	audit := core.NewPgAuditTrail(pool)
	commitLog := core.NewPgCommitLog(pool)
	catalog := core.NewCatalogService(pool)
	engine := core.NewAdjustmentEngine(store, audit)

	return &Services{
		Store:       store,
		Audit:       audit,
		CommitLog:   commitLog,
		Catalog:     catalog,
		Engine:      engine,
		Coordinator: core.NewReservationCoordinator(store, audit, commitLog, catalog),
		Query:       core.NewQueryService(store, audit, catalog),
		Seeder:      core.NewSeeder(engine, store, catalog),
	}
}
