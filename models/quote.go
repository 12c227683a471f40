package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Quote is a cached price snapshot for a symbol. Entries are replaced
// wholesale on refresh, never partially patched.
type Quote struct {
	StockID    uuid.UUID       `json:"stock_id"`
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency"`
	Name       string          `json:"name"`
	Sector     string          `json:"sector"`
	Change     decimal.Decimal `json:"change"`
	ObservedAt time.Time       `json:"observed_at"`
}

// QuoteFromStock builds the cache snapshot for a persisted stock record
func QuoteFromStock(stock *Stock) Quote {
	return Quote{
		StockID:    stock.ID,
		Symbol:     stock.Symbol,
		Price:      stock.Price,
		Currency:   stock.Currency,
		Name:       stock.Name,
		Sector:     stock.Sector,
		Change:     stock.Change,
		ObservedAt: stock.LastUpdated,
	}
}
