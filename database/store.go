package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/finvault/trading-backend/models"
	"github.com/finvault/trading-backend/services"
	"github.com/finvault/trading-backend/shared"
)

// uniqueViolation is the Postgres error code raised on a uniqueness
// constraint violation. The report pipeline relies on it as its
// cross-process lock signal.
const uniqueViolation = "23505"

// PostgresStore implements services.Store over database/sql + lib/pq
type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

var _ services.Store = (*PostgresStore)(nil)

func (s *PostgresStore) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, email, name, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user models.User
	err := s.DB.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (s *PostgresStore) FindPortfolioByUserID(ctx context.Context, userID uuid.UUID) (*models.Portfolio, error) {
	query := `
		SELECT id, user_id, name, created_at, updated_at
		FROM portfolios
		WHERE user_id = $1
	`
	var portfolio models.Portfolio
	err := s.DB.QueryRowContext(ctx, query, userID).Scan(
		&portfolio.ID, &portfolio.UserID, &portfolio.Name, &portfolio.CreatedAt, &portfolio.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	holdings, err := s.findHoldingsByPortfolio(ctx, portfolio.ID)
	if err != nil {
		return nil, err
	}
	portfolio.Holdings = holdings

	return &portfolio, nil
}

func (s *PostgresStore) findHoldingsByPortfolio(ctx context.Context, portfolioID uuid.UUID) ([]models.PortfolioHolding, error) {
	query := `
		SELECT id, portfolio_id, stock_id, quantity, average_purchase_price, created_at, updated_at
		FROM portfolio_holdings
		WHERE portfolio_id = $1
		ORDER BY created_at
	`
	rows, err := s.DB.QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []models.PortfolioHolding
	for rows.Next() {
		var holding models.PortfolioHolding
		if err := rows.Scan(
			&holding.ID, &holding.PortfolioID, &holding.StockID,
			&holding.Quantity, &holding.AveragePurchasePrice,
			&holding.CreatedAt, &holding.UpdatedAt,
		); err != nil {
			return nil, err
		}
		holdings = append(holdings, holding)
	}
	return holdings, rows.Err()
}

func (s *PostgresStore) FindStockByID(ctx context.Context, id uuid.UUID) (*models.Stock, error) {
	return s.findStock(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) FindStockBySymbol(ctx context.Context, symbol string) (*models.Stock, error) {
	return s.findStock(ctx, `WHERE symbol = $1`, symbol)
}

func (s *PostgresStore) findStock(ctx context.Context, where string, arg interface{}) (*models.Stock, error) {
	query := `
		SELECT id, symbol, name, sector, price, change, currency, last_updated, created_at, updated_at
		FROM stocks ` + where

	var stock models.Stock
	err := s.DB.QueryRowContext(ctx, query, arg).Scan(
		&stock.ID, &stock.Symbol, &stock.Name, &stock.Sector,
		&stock.Price, &stock.Change, &stock.Currency,
		&stock.LastUpdated, &stock.CreatedAt, &stock.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &stock, nil
}

func (s *PostgresStore) FindStocks(ctx context.Context) ([]models.Stock, error) {
	query := `
		SELECT id, symbol, name, sector, price, change, currency, last_updated, created_at, updated_at
		FROM stocks
		ORDER BY symbol
	`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stocks []models.Stock
	for rows.Next() {
		var stock models.Stock
		if err := rows.Scan(
			&stock.ID, &stock.Symbol, &stock.Name, &stock.Sector,
			&stock.Price, &stock.Change, &stock.Currency,
			&stock.LastUpdated, &stock.CreatedAt, &stock.UpdatedAt,
		); err != nil {
			return nil, err
		}
		stocks = append(stocks, stock)
	}
	return stocks, rows.Err()
}

func (s *PostgresStore) UpsertStock(ctx context.Context, stock models.Stock) (*models.Stock, error) {
	query := `
		INSERT INTO stocks (id, symbol, name, sector, price, change, currency, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			sector = EXCLUDED.sector,
			price = EXCLUDED.price,
			change = EXCLUDED.change,
			currency = EXCLUDED.currency,
			last_updated = EXCLUDED.last_updated,
			updated_at = NOW()
		RETURNING id, symbol, name, sector, price, change, currency, last_updated, created_at, updated_at
	`
	id := stock.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	var saved models.Stock
	err := s.DB.QueryRowContext(ctx, query,
		id, stock.Symbol, stock.Name, stock.Sector,
		stock.Price, stock.Change, stock.Currency, stock.LastUpdated,
	).Scan(
		&saved.ID, &saved.Symbol, &saved.Name, &saved.Sector,
		&saved.Price, &saved.Change, &saved.Currency,
		&saved.LastUpdated, &saved.CreatedAt, &saved.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *PostgresStore) FindTransactionsInRange(ctx context.Context, start, end time.Time) ([]models.Transaction, error) {
	query := `
		SELECT id, user_id, stock_id, portfolio_id, quantity, price, type, status, timestamp
		FROM transactions
		WHERE timestamp >= $1 AND timestamp < $2
		ORDER BY timestamp
	`
	rows, err := s.DB.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var transaction models.Transaction
		if err := rows.Scan(
			&transaction.ID, &transaction.UserID, &transaction.StockID, &transaction.PortfolioID,
			&transaction.Quantity, &transaction.Price,
			&transaction.Type, &transaction.Status, &transaction.Timestamp,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, transaction)
	}
	return transactions, rows.Err()
}

func (s *PostgresStore) BeginUnitOfWork(ctx context.Context) (services.UnitOfWork, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &pgUnitOfWork{tx: tx}, nil
}

// pgUnitOfWork wraps one *sql.Tx. Release rolls back anything not yet
// committed so the handle is always returned to the pool.
type pgUnitOfWork struct {
	tx   *sql.Tx
	done bool
}

var _ services.UnitOfWork = (*pgUnitOfWork)(nil)

func (u *pgUnitOfWork) FindStockByID(ctx context.Context, id uuid.UUID) (*models.Stock, error) {
	query := `
		SELECT id, symbol, name, sector, price, change, currency, last_updated, created_at, updated_at
		FROM stocks
		WHERE id = $1
	`
	var stock models.Stock
	err := u.tx.QueryRowContext(ctx, query, id).Scan(
		&stock.ID, &stock.Symbol, &stock.Name, &stock.Sector,
		&stock.Price, &stock.Change, &stock.Currency,
		&stock.LastUpdated, &stock.CreatedAt, &stock.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &stock, nil
}

func (u *pgUnitOfWork) FindHoldingForUpdate(ctx context.Context, portfolioID, stockID uuid.UUID) (*models.PortfolioHolding, error) {
	query := `
		SELECT id, portfolio_id, stock_id, quantity, average_purchase_price, created_at, updated_at
		FROM portfolio_holdings
		WHERE portfolio_id = $1 AND stock_id = $2
		FOR UPDATE
	`
	var holding models.PortfolioHolding
	err := u.tx.QueryRowContext(ctx, query, portfolioID, stockID).Scan(
		&holding.ID, &holding.PortfolioID, &holding.StockID,
		&holding.Quantity, &holding.AveragePurchasePrice,
		&holding.CreatedAt, &holding.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &holding, nil
}

func (u *pgUnitOfWork) SaveHolding(ctx context.Context, holding *models.PortfolioHolding) error {
	query := `
		INSERT INTO portfolio_holdings (id, portfolio_id, stock_id, quantity, average_purchase_price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (portfolio_id, stock_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			average_purchase_price = EXCLUDED.average_purchase_price,
			updated_at = NOW()
	`
	_, err := u.tx.ExecContext(ctx, query,
		holding.ID, holding.PortfolioID, holding.StockID,
		holding.Quantity, holding.AveragePurchasePrice,
	)
	return err
}

func (u *pgUnitOfWork) SaveTransaction(ctx context.Context, transaction *models.Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, stock_id, portfolio_id, quantity, price, type, status, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status
	`
	_, err := u.tx.ExecContext(ctx, query,
		transaction.ID, transaction.UserID, transaction.StockID, transaction.PortfolioID,
		transaction.Quantity, transaction.Price,
		transaction.Type, transaction.Status, transaction.Timestamp,
	)
	return err
}

func (u *pgUnitOfWork) InsertReportIfAbsent(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO reports (
			id, report_date, generated_at, report_type, status,
			total_transactions, successful_transactions, failed_transactions,
			report_data, email_delivery_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := u.tx.ExecContext(ctx, query,
		report.ID, report.ReportDate, report.GeneratedAt, report.ReportType, report.Status,
		report.TotalTransactions, report.SuccessfulTransactions, report.FailedTransactions,
		report.ReportData, report.EmailDeliveryStatus,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return shared.NewConflictError("REPORT_EXISTS",
				"report already in progress or exists for this date and type",
				"postgres-store", "insert_report_if_absent", err)
		}
		return err
	}
	return nil
}

func (u *pgUnitOfWork) SaveReport(ctx context.Context, report *models.Report) error {
	query := `
		UPDATE reports SET
			status = $2,
			total_transactions = $3,
			successful_transactions = $4,
			failed_transactions = $5,
			report_data = $6,
			email_delivery_status = $7
		WHERE id = $1
	`
	_, err := u.tx.ExecContext(ctx, query,
		report.ID, report.Status,
		report.TotalTransactions, report.SuccessfulTransactions, report.FailedTransactions,
		report.ReportData, report.EmailDeliveryStatus,
	)
	return err
}

func (u *pgUnitOfWork) Commit() error {
	if u.done {
		return nil
	}
	u.done = true
	return u.tx.Commit()
}

func (u *pgUnitOfWork) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	return u.tx.Rollback()
}

func (u *pgUnitOfWork) Release() {
	if !u.done {
		_ = u.tx.Rollback()
		u.done = true
	}
}
