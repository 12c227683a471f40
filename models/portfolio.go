package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Portfolio struct {
	ID        uuid.UUID          `json:"id"`
	UserID    uuid.UUID          `json:"user_id"`
	Name      string             `json:"name"`
	Holdings  []PortfolioHolding `json:"holdings,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// PortfolioHolding is a user's position in one stock within one portfolio,
// unique per (portfolio, stock). Repeated purchases recompute the
// cost-weighted average purchase price.
type PortfolioHolding struct {
	ID                   uuid.UUID       `json:"id"`
	PortfolioID          uuid.UUID       `json:"portfolio_id"`
	StockID              uuid.UUID       `json:"stock_id"`
	Quantity             int64           `json:"quantity"`
	AveragePurchasePrice decimal.Decimal `json:"average_purchase_price"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// ApplyPurchase folds a new buy into the holding:
// avgPrice' = (qty*avgPrice + newQty*newPrice) / (qty+newQty)
func (h *PortfolioHolding) ApplyPurchase(quantity int64, price decimal.Decimal) {
	existingCost := h.AveragePurchasePrice.Mul(decimal.NewFromInt(h.Quantity))
	newCost := price.Mul(decimal.NewFromInt(quantity))
	totalQuantity := h.Quantity + quantity

	h.AveragePurchasePrice = existingCost.Add(newCost).Div(decimal.NewFromInt(totalQuantity))
	h.Quantity = totalQuantity
}
