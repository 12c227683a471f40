package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stock is the persisted record for a tradable instrument, mirrored into
// the quote cache after each refresh cycle
type Stock struct {
	ID          uuid.UUID       `json:"id"`
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	Sector      string          `json:"sector"`
	Price       decimal.Decimal `json:"price"`
	Change      decimal.Decimal `json:"change"`
	Currency    string          `json:"currency"`
	LastUpdated time.Time       `json:"last_updated"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
