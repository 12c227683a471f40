package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/finvault/trading-backend/models"
)

// Store is the persistence boundary for the core services. Lookups that
// find nothing return (nil, nil); callers translate that into their own
// not-found errors.
type Store interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindPortfolioByUserID(ctx context.Context, userID uuid.UUID) (*models.Portfolio, error)
	FindStockByID(ctx context.Context, id uuid.UUID) (*models.Stock, error)
	FindStockBySymbol(ctx context.Context, symbol string) (*models.Stock, error)
	FindStocks(ctx context.Context) ([]models.Stock, error)

	// UpsertStock inserts or replaces the row for the stock's symbol and
	// returns the persisted record with its store-assigned id.
	UpsertStock(ctx context.Context, stock models.Stock) (*models.Stock, error)

	// FindTransactionsInRange returns transactions with timestamp in [start, end)
	FindTransactionsInRange(ctx context.Context, start, end time.Time) ([]models.Transaction, error)

	BeginUnitOfWork(ctx context.Context) (UnitOfWork, error)
}

// UnitOfWork is an atomic, rollback-capable grouping of persistence
// operations. Release must always be called; it rolls back any work that
// was neither committed nor rolled back explicitly.
type UnitOfWork interface {
	// FindStockByID reads the stock row through the active transaction so
	// it sees the same snapshot as the writes in this unit of work.
	FindStockByID(ctx context.Context, id uuid.UUID) (*models.Stock, error)

	// FindHoldingForUpdate reads the holding row with a row-level lock so
	// concurrent purchases against the same holding serialize.
	FindHoldingForUpdate(ctx context.Context, portfolioID, stockID uuid.UUID) (*models.PortfolioHolding, error)
	SaveHolding(ctx context.Context, holding *models.PortfolioHolding) error
	SaveTransaction(ctx context.Context, transaction *models.Transaction) error

	// InsertReportIfAbsent inserts the report row, returning a conflict
	// service error when the (report_date, report_type) uniqueness
	// constraint is violated.
	InsertReportIfAbsent(ctx context.Context, report *models.Report) error
	SaveReport(ctx context.Context, report *models.Report) error

	Commit() error
	// Rollback after a successful Commit is a no-op
	Rollback() error
	Release()
}
