package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/finvault/trading-backend/models"
	"github.com/finvault/trading-backend/shared"
)

// DefaultPriceBandPercent is the allowed deviation between the requested
// price and the cached quote price.
const DefaultPriceBandPercent = 2.0

// TradeExecutor settles a buy order with the external trading API.
// Only consulted when external settlement is enabled.
type TradeExecutor interface {
	ExecuteBuy(ctx context.Context, symbol string, price decimal.Decimal, quantity int64) (*VendorOrder, error)
}

// PurchaseRequest is the input to the purchase workflow
type PurchaseRequest struct {
	UserID   uuid.UUID       `json:"user_id"`
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// PurchaseResult is returned to the caller after a completed purchase
type PurchaseResult struct {
	TransactionID uuid.UUID                `json:"transaction_id"`
	Status        models.TransactionStatus `json:"status"`
	Message       string                   `json:"message"`
	CreatedAt     time.Time                `json:"created_at"`
}

// PurchaseService validates a purchase request against the quote cache and
// persisted entities, then executes the holding update and transaction
// record creation atomically inside one unit of work.
type PurchaseService struct {
	store      Store
	cache      *QuoteCache
	executor   TradeExecutor // nil when settling synchronously
	bandFactor decimal.Decimal
	now        func() time.Time
}

// NewPurchaseService creates a purchase service settling synchronously
func NewPurchaseService(store Store, cache *QuoteCache, bandPercent float64) *PurchaseService {
	return NewPurchaseServiceWithExecutor(store, cache, nil, bandPercent)
}

// NewPurchaseServiceWithExecutor creates a purchase service that settles
// each buy through the external trading API before updating the holding
func NewPurchaseServiceWithExecutor(store Store, cache *QuoteCache, executor TradeExecutor, bandPercent float64) *PurchaseService {
	if bandPercent <= 0 {
		bandPercent = DefaultPriceBandPercent
	}
	return &PurchaseService{
		store:      store,
		cache:      cache,
		executor:   executor,
		bandFactor: decimal.NewFromFloat(bandPercent).Div(decimal.NewFromInt(100)),
		now:        time.Now,
	}
}

// ProcessPurchase runs the full buy workflow. The holding update and
// transaction record are all-or-nothing: any failure rolls back the active
// unit of work before propagating.
func (ps *PurchaseService) ProcessPurchase(ctx context.Context, request PurchaseRequest) (*PurchaseResult, error) {
	if request.Quantity <= 0 {
		return nil, shared.NewValidationError("INVALID_QUANTITY", "quantity must be a positive integer", "purchase-service", "process_purchase")
	}
	if !request.Price.IsPositive() {
		return nil, shared.NewValidationError("INVALID_PRICE", "price must be positive", "purchase-service", "process_purchase")
	}

	// Step 1: resolve user
	user, err := ps.store.FindUserByID(ctx, request.UserID)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "USER_LOOKUP_FAILED", "purchase-service", "process_purchase", false)
	}
	if user == nil {
		return nil, shared.NewNotFoundError("USER_NOT_FOUND",
			fmt.Sprintf("user with id %s not found", request.UserID), "purchase-service", "process_purchase")
	}

	// Step 2: resolve the user's portfolio
	portfolio, err := ps.store.FindPortfolioByUserID(ctx, request.UserID)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "PORTFOLIO_LOOKUP_FAILED", "purchase-service", "process_purchase", false)
	}
	if portfolio == nil {
		return nil, shared.NewNotFoundError("PORTFOLIO_NOT_FOUND",
			fmt.Sprintf("portfolio for user %s not found", request.UserID), "purchase-service", "process_purchase")
	}

	// Step 3: the cache is authoritative for the current price; no fallback
	// to the store or vendor inline
	quote, ok := ps.cache.Get(request.Symbol)
	if !ok {
		return nil, shared.NewNotFoundError("QUOTE_NOT_FOUND",
			fmt.Sprintf("stock with symbol %s not found in cache", request.Symbol), "purchase-service", "process_purchase")
	}

	// Step 4: price-band check against the cached price
	band := quote.Price.Mul(ps.bandFactor)
	lowerBound := quote.Price.Sub(band)
	upperBound := quote.Price.Add(band)
	if request.Price.LessThan(lowerBound) || request.Price.GreaterThan(upperBound) {
		return nil, shared.NewValidationError("PRICE_OUT_OF_BAND",
			fmt.Sprintf("price %s is not within %s%% of current price %s",
				request.Price, ps.bandFactor.Mul(decimal.NewFromInt(100)), quote.Price),
			"purchase-service", "process_purchase")
	}

	uow, err := ps.store.BeginUnitOfWork(ctx)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "BEGIN_TX_FAILED", "purchase-service", "process_purchase", true)
	}
	defer uow.Release()

	result, err := ps.executeInUnitOfWork(ctx, uow, request, quote, portfolio)
	if err != nil {
		if rollbackErr := uow.Rollback(); rollbackErr != nil {
			logrus.Errorf("Failed to roll back purchase unit of work: %v", rollbackErr)
		}
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "COMMIT_FAILED", "purchase-service", "process_purchase", true)
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": result.TransactionID,
		"user_id":        request.UserID,
		"symbol":         request.Symbol,
		"quantity":       request.Quantity,
		"price":          request.Price,
		"status":         result.Status,
	}).Info("Stock purchase processed")

	return result, nil
}

func (ps *PurchaseService) executeInUnitOfWork(
	ctx context.Context,
	uow UnitOfWork,
	request PurchaseRequest,
	quote models.Quote,
	portfolio *models.Portfolio,
) (*PurchaseResult, error) {
	// Step 5: the store must agree with the cache about the stock; read
	// through the unit of work so all of steps 5-7 share one handle
	stock, err := uow.FindStockByID(ctx, quote.StockID)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "STOCK_LOOKUP_FAILED", "purchase-service", "process_purchase", false)
	}
	if stock == nil {
		return nil, shared.NewNotFoundError("STOCK_NOT_FOUND",
			fmt.Sprintf("stock entity for id %s not found in store", quote.StockID), "purchase-service", "process_purchase")
	}

	transaction := &models.Transaction{
		ID:          uuid.New(),
		UserID:      request.UserID,
		StockID:     stock.ID,
		PortfolioID: portfolio.ID,
		Quantity:    request.Quantity,
		Price:       request.Price,
		Type:        models.TransactionTypeBuy,
		Status:      models.TransactionStatusCompleted,
		Timestamp:   ps.now(),
	}

	// Externally-settled variant: record the attempt as PENDING, settle
	// through the trading API, and only touch the holding if that succeeds.
	if ps.executor != nil {
		transaction.Status = models.TransactionStatusPending
		if err := uow.SaveTransaction(ctx, transaction); err != nil {
			return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "TRANSACTION_SAVE_FAILED", "purchase-service", "process_purchase", false)
		}

		if _, err := ps.executor.ExecuteBuy(ctx, request.Symbol, request.Price, request.Quantity); err != nil {
			transaction.Status = models.TransactionStatusFailed
			if saveErr := uow.SaveTransaction(ctx, transaction); saveErr != nil {
				logrus.Errorf("Failed to record failed transaction %s: %v", transaction.ID, saveErr)
			} else if commitErr := uow.Commit(); commitErr != nil {
				logrus.Errorf("Failed to commit failed transaction %s: %v", transaction.ID, commitErr)
			}
			return nil, shared.NewServiceError(shared.ErrorCategoryValidation, "TRADE_EXECUTION_REJECTED",
				fmt.Sprintf("trade execution failed for %s: %v", request.Symbol, err),
				"purchase-service", "process_purchase", false, err)
		}
		transaction.Status = models.TransactionStatusCompleted
	}

	// Step 6: upsert the holding with the cost-weighted average price
	holding, err := uow.FindHoldingForUpdate(ctx, portfolio.ID, stock.ID)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "HOLDING_LOOKUP_FAILED", "purchase-service", "process_purchase", false)
	}
	if holding != nil {
		holding.ApplyPurchase(request.Quantity, request.Price)
	} else {
		holding = &models.PortfolioHolding{
			ID:                   uuid.New(),
			PortfolioID:          portfolio.ID,
			StockID:              stock.ID,
			Quantity:             request.Quantity,
			AveragePurchasePrice: request.Price,
		}
	}
	if err := uow.SaveHolding(ctx, holding); err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "HOLDING_SAVE_FAILED", "purchase-service", "process_purchase", false)
	}

	// Step 7: persist the transaction record
	if err := uow.SaveTransaction(ctx, transaction); err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "TRANSACTION_SAVE_FAILED", "purchase-service", "process_purchase", false)
	}

	return &PurchaseResult{
		TransactionID: transaction.ID,
		Status:        transaction.Status,
		Message:       "Transaction completed successfully",
		CreatedAt:     transaction.Timestamp,
	}, nil
}
