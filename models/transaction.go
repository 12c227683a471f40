package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeBuy  TransactionType = "BUY"
	TransactionTypeSell TransactionType = "SELL"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Transaction is the purchase record created once per purchase attempt.
// Status moves PENDING -> COMPLETED/FAILED when settlement goes through the
// external trading API, or is written directly as COMPLETED when settling
// synchronously.
type Transaction struct {
	ID          uuid.UUID         `json:"id"`
	UserID      uuid.UUID         `json:"user_id"`
	StockID     uuid.UUID         `json:"stock_id"`
	PortfolioID uuid.UUID         `json:"portfolio_id"`
	Quantity    int64             `json:"quantity"`
	Price       decimal.Decimal   `json:"price"`
	Type        TransactionType   `json:"type"`
	Status      TransactionStatus `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
}
