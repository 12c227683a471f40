package services

import (
	"context"
	"fmt"

	"github.com/finvault/trading-backend/models"
	"github.com/finvault/trading-backend/shared"
)

// StockService serves stock reads cache-first, repopulating the quote
// cache from the store on miss
type StockService struct {
	store Store
	cache *QuoteCache
}

func NewStockService(store Store, cache *QuoteCache) *StockService {
	return &StockService{store: store, cache: cache}
}

// GetStockBySymbol returns the quote for a symbol, preferring the cache
func (ss *StockService) GetStockBySymbol(ctx context.Context, symbol string) (*models.Quote, error) {
	if quote, ok := ss.cache.Get(symbol); ok {
		return &quote, nil
	}

	stock, err := ss.store.FindStockBySymbol(ctx, symbol)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "STOCK_QUERY_FAILED", "stock-service", "get_stock_by_symbol", true)
	}
	if stock == nil {
		return nil, shared.NewNotFoundError("STOCK_NOT_FOUND",
			fmt.Sprintf("stock with symbol %s not found", symbol), "stock-service", "get_stock_by_symbol")
	}

	quote := models.QuoteFromStock(stock)
	ss.cache.Set(symbol, quote)
	return &quote, nil
}

// ListStocks returns quotes for every known stock from the store,
// refreshing cache entries that are absent or stale along the way
func (ss *StockService) ListStocks(ctx context.Context) ([]models.Quote, error) {
	stocks, err := ss.store.FindStocks(ctx)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "STOCK_QUERY_FAILED", "stock-service", "list_stocks", true)
	}

	quotes := make([]models.Quote, 0, len(stocks))
	refresh := make([]models.Quote, 0, len(stocks))
	for i := range stocks {
		quote := models.QuoteFromStock(&stocks[i])
		quotes = append(quotes, quote)
		refresh = append(refresh, quote)
	}
	ss.cache.Refresh(refresh)

	return quotes, nil
}
