package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finvault/trading-backend/models"
	"github.com/finvault/trading-backend/services"
	"github.com/finvault/trading-backend/shared"
)

// jobStore is a minimal in-memory services.Store for job tests
type jobStore struct {
	mu           sync.Mutex
	stocks       map[string]*models.Stock // keyed by symbol
	reports      map[string]*models.Report
	transactions []models.Transaction

	beginCalls int
	beginErr   error
	upsertErr  error
}

func newJobStore() *jobStore {
	return &jobStore{
		stocks:  make(map[string]*models.Stock),
		reports: make(map[string]*models.Report),
	}
}

func (js *jobStore) stockCount() int {
	js.mu.Lock()
	defer js.mu.Unlock()
	return len(js.stocks)
}

func (js *jobStore) beginCallCount() int {
	js.mu.Lock()
	defer js.mu.Unlock()
	return js.beginCalls
}

func (js *jobStore) reportCount() int {
	js.mu.Lock()
	defer js.mu.Unlock()
	return len(js.reports)
}

func (js *jobStore) FindUserByID(context.Context, uuid.UUID) (*models.User, error) {
	return nil, nil
}

func (js *jobStore) FindPortfolioByUserID(context.Context, uuid.UUID) (*models.Portfolio, error) {
	return nil, nil
}

func (js *jobStore) FindStockByID(context.Context, uuid.UUID) (*models.Stock, error) {
	return nil, nil
}

func (js *jobStore) FindStockBySymbol(_ context.Context, symbol string) (*models.Stock, error) {
	js.mu.Lock()
	defer js.mu.Unlock()
	return js.stocks[symbol], nil
}

func (js *jobStore) FindStocks(context.Context) ([]models.Stock, error) {
	js.mu.Lock()
	defer js.mu.Unlock()
	stocks := make([]models.Stock, 0, len(js.stocks))
	for _, stock := range js.stocks {
		stocks = append(stocks, *stock)
	}
	return stocks, nil
}

func (js *jobStore) UpsertStock(_ context.Context, stock models.Stock) (*models.Stock, error) {
	js.mu.Lock()
	defer js.mu.Unlock()
	if js.upsertErr != nil {
		return nil, js.upsertErr
	}
	if existing, ok := js.stocks[stock.Symbol]; ok {
		stock.ID = existing.ID
	} else {
		stock.ID = uuid.New()
	}
	js.stocks[stock.Symbol] = &stock
	return &stock, nil
}

func (js *jobStore) FindTransactionsInRange(_ context.Context, start, end time.Time) ([]models.Transaction, error) {
	js.mu.Lock()
	defer js.mu.Unlock()
	var matched []models.Transaction
	for _, transaction := range js.transactions {
		if !transaction.Timestamp.Before(start) && transaction.Timestamp.Before(end) {
			matched = append(matched, transaction)
		}
	}
	return matched, nil
}

func (js *jobStore) BeginUnitOfWork(context.Context) (services.UnitOfWork, error) {
	js.mu.Lock()
	defer js.mu.Unlock()
	js.beginCalls++
	if js.beginErr != nil {
		return nil, js.beginErr
	}
	return &jobUnitOfWork{store: js}, nil
}

type jobUnitOfWork struct {
	store  *jobStore
	staged []*models.Report
	done   bool
}

func (uow *jobUnitOfWork) FindStockByID(ctx context.Context, id uuid.UUID) (*models.Stock, error) {
	return uow.store.FindStockByID(ctx, id)
}

func (uow *jobUnitOfWork) FindHoldingForUpdate(context.Context, uuid.UUID, uuid.UUID) (*models.PortfolioHolding, error) {
	return nil, nil
}

func (uow *jobUnitOfWork) SaveHolding(context.Context, *models.PortfolioHolding) error { return nil }

func (uow *jobUnitOfWork) SaveTransaction(context.Context, *models.Transaction) error { return nil }

func (uow *jobUnitOfWork) InsertReportIfAbsent(_ context.Context, report *models.Report) error {
	key := report.ReportDate.UTC().Format("2006-01-02") + "_" + report.ReportType
	uow.store.mu.Lock()
	_, exists := uow.store.reports[key]
	uow.store.mu.Unlock()
	if exists {
		return shared.NewConflictError("REPORT_EXISTS", "report already exists for this date", "job-store", "insert_report_if_absent", nil)
	}
	copied := *report
	uow.staged = append(uow.staged, &copied)
	return nil
}

func (uow *jobUnitOfWork) SaveReport(_ context.Context, report *models.Report) error {
	copied := *report
	uow.staged = append(uow.staged, &copied)
	return nil
}

func (uow *jobUnitOfWork) Commit() error {
	if uow.done {
		return nil
	}
	uow.done = true
	uow.store.mu.Lock()
	defer uow.store.mu.Unlock()
	for _, report := range uow.staged {
		key := report.ReportDate.UTC().Format("2006-01-02") + "_" + report.ReportType
		uow.store.reports[key] = report
	}
	return nil
}

func (uow *jobUnitOfWork) Rollback() error {
	if uow.done {
		return nil
	}
	uow.done = true
	uow.staged = nil
	return nil
}

func (uow *jobUnitOfWork) Release() {
	_ = uow.Rollback()
}

// discardMailer accepts every send
type discardMailer struct{}

func (discardMailer) Send(string, []string, string, string, string) error { return nil }
