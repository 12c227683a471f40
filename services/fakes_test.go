package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finvault/trading-backend/models"
	"github.com/finvault/trading-backend/shared"
)

// fakeStore is an in-memory Store for service tests. Unit-of-work writes
// are staged and only become visible on Commit, mirroring the contract the
// database-backed store provides.
type fakeStore struct {
	mu           sync.Mutex
	users        map[uuid.UUID]*models.User
	portfolios   map[uuid.UUID]*models.Portfolio // keyed by user id
	stocks       map[uuid.UUID]*models.Stock
	holdings     map[string]*models.PortfolioHolding // keyed portfolioID_stockID
	transactions map[uuid.UUID]*models.Transaction
	reports      map[uuid.UUID]*models.Report

	findTransactionsCalls int
	uowStockLookups       int

	beginErr            error
	findTransactionsErr error
	saveTransactionErr  error
	commitErr           error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        make(map[uuid.UUID]*models.User),
		portfolios:   make(map[uuid.UUID]*models.Portfolio),
		stocks:       make(map[uuid.UUID]*models.Stock),
		holdings:     make(map[string]*models.PortfolioHolding),
		transactions: make(map[uuid.UUID]*models.Transaction),
		reports:      make(map[uuid.UUID]*models.Report),
	}
}

func holdingKey(portfolioID, stockID uuid.UUID) string {
	return portfolioID.String() + "_" + stockID.String()
}

func reportLockKey(report *models.Report) string {
	return report.ReportDate.UTC().Format("2006-01-02") + "_" + report.ReportType
}

func (fs *fakeStore) addUser(user *models.User) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.users[user.ID] = user
}

func (fs *fakeStore) addPortfolio(portfolio *models.Portfolio) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.portfolios[portfolio.UserID] = portfolio
}

func (fs *fakeStore) addStock(stock *models.Stock) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.stocks[stock.ID] = stock
}

func (fs *fakeStore) addTransaction(transaction *models.Transaction) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.transactions[transaction.ID] = transaction
}

func (fs *fakeStore) holding(portfolioID, stockID uuid.UUID) *models.PortfolioHolding {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.holdings[holdingKey(portfolioID, stockID)]
}

func (fs *fakeStore) transactionCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.transactions)
}

func (fs *fakeStore) transactionsByStatus(status models.TransactionStatus) []*models.Transaction {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var matched []*models.Transaction
	for _, transaction := range fs.transactions {
		if transaction.Status == status {
			matched = append(matched, transaction)
		}
	}
	return matched
}

func (fs *fakeStore) reportList() []*models.Report {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	reports := make([]*models.Report, 0, len(fs.reports))
	for _, report := range fs.reports {
		reports = append(reports, report)
	}
	return reports
}

func (fs *fakeStore) FindUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.users[id], nil
}

func (fs *fakeStore) FindPortfolioByUserID(_ context.Context, userID uuid.UUID) (*models.Portfolio, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.portfolios[userID], nil
}

func (fs *fakeStore) FindStockByID(_ context.Context, id uuid.UUID) (*models.Stock, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.stocks[id], nil
}

func (fs *fakeStore) FindStockBySymbol(_ context.Context, symbol string) (*models.Stock, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, stock := range fs.stocks {
		if stock.Symbol == symbol {
			return stock, nil
		}
	}
	return nil, nil
}

func (fs *fakeStore) FindStocks(_ context.Context) ([]models.Stock, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	stocks := make([]models.Stock, 0, len(fs.stocks))
	for _, stock := range fs.stocks {
		stocks = append(stocks, *stock)
	}
	return stocks, nil
}

func (fs *fakeStore) UpsertStock(_ context.Context, stock models.Stock) (*models.Stock, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, existing := range fs.stocks {
		if existing.Symbol == stock.Symbol {
			stock.ID = existing.ID
			fs.stocks[stock.ID] = &stock
			return &stock, nil
		}
	}
	stock.ID = uuid.New()
	fs.stocks[stock.ID] = &stock
	return &stock, nil
}

func (fs *fakeStore) FindTransactionsInRange(_ context.Context, start, end time.Time) ([]models.Transaction, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.findTransactionsCalls++
	if fs.findTransactionsErr != nil {
		return nil, fs.findTransactionsErr
	}
	var matched []models.Transaction
	for _, transaction := range fs.transactions {
		if !transaction.Timestamp.Before(start) && transaction.Timestamp.Before(end) {
			matched = append(matched, *transaction)
		}
	}
	return matched, nil
}

func (fs *fakeStore) BeginUnitOfWork(_ context.Context) (UnitOfWork, error) {
	if fs.beginErr != nil {
		return nil, fs.beginErr
	}
	return &fakeUnitOfWork{
		store:              fs,
		holdings:           make(map[string]*models.PortfolioHolding),
		transactions:       make(map[uuid.UUID]*models.Transaction),
		reports:            make(map[uuid.UUID]*models.Report),
		saveTransactionErr: fs.saveTransactionErr,
		commitErr:          fs.commitErr,
	}, nil
}

// fakeUnitOfWork stages writes and applies them on Commit. Rollback after
// a successful Commit is a no-op, matching the UnitOfWork contract.
type fakeUnitOfWork struct {
	store        *fakeStore
	holdings     map[string]*models.PortfolioHolding
	transactions map[uuid.UUID]*models.Transaction
	reports      map[uuid.UUID]*models.Report
	done         bool

	saveTransactionErr error
	commitErr          error
}

func (uow *fakeUnitOfWork) FindStockByID(ctx context.Context, id uuid.UUID) (*models.Stock, error) {
	uow.store.mu.Lock()
	uow.store.uowStockLookups++
	uow.store.mu.Unlock()
	return uow.store.FindStockByID(ctx, id)
}

func (uow *fakeUnitOfWork) FindHoldingForUpdate(_ context.Context, portfolioID, stockID uuid.UUID) (*models.PortfolioHolding, error) {
	key := holdingKey(portfolioID, stockID)
	if staged, ok := uow.holdings[key]; ok {
		copied := *staged
		return &copied, nil
	}
	uow.store.mu.Lock()
	defer uow.store.mu.Unlock()
	if existing, ok := uow.store.holdings[key]; ok {
		copied := *existing
		return &copied, nil
	}
	return nil, nil
}

func (uow *fakeUnitOfWork) SaveHolding(_ context.Context, holding *models.PortfolioHolding) error {
	copied := *holding
	uow.holdings[holdingKey(holding.PortfolioID, holding.StockID)] = &copied
	return nil
}

func (uow *fakeUnitOfWork) SaveTransaction(_ context.Context, transaction *models.Transaction) error {
	if uow.saveTransactionErr != nil {
		return uow.saveTransactionErr
	}
	copied := *transaction
	uow.transactions[transaction.ID] = &copied
	return nil
}

func (uow *fakeUnitOfWork) InsertReportIfAbsent(_ context.Context, report *models.Report) error {
	key := reportLockKey(report)
	uow.store.mu.Lock()
	for _, existing := range uow.store.reports {
		if reportLockKey(existing) == key {
			uow.store.mu.Unlock()
			return conflictForReport(report)
		}
	}
	uow.store.mu.Unlock()
	for _, staged := range uow.reports {
		if reportLockKey(staged) == key {
			return conflictForReport(report)
		}
	}
	copied := *report
	uow.reports[report.ID] = &copied
	return nil
}

func (uow *fakeUnitOfWork) SaveReport(_ context.Context, report *models.Report) error {
	copied := *report
	uow.reports[report.ID] = &copied
	return nil
}

func (uow *fakeUnitOfWork) Commit() error {
	if uow.done {
		return nil
	}
	if uow.commitErr != nil {
		return uow.commitErr
	}
	uow.done = true

	uow.store.mu.Lock()
	defer uow.store.mu.Unlock()
	for key, holding := range uow.holdings {
		uow.store.holdings[key] = holding
	}
	for id, transaction := range uow.transactions {
		uow.store.transactions[id] = transaction
	}
	for id, report := range uow.reports {
		uow.store.reports[id] = report
	}
	return nil
}

func (uow *fakeUnitOfWork) Rollback() error {
	if uow.done {
		return nil
	}
	uow.done = true
	uow.holdings = map[string]*models.PortfolioHolding{}
	uow.transactions = map[uuid.UUID]*models.Transaction{}
	uow.reports = map[uuid.UUID]*models.Report{}
	return nil
}

func (uow *fakeUnitOfWork) Release() {
	_ = uow.Rollback()
}

// fakeMailer records outbound mail instead of dialing SMTP
type fakeMailer struct {
	mu      sync.Mutex
	sent    []EmailPayload
	sendErr error
}

func (fm *fakeMailer) Send(_ string, to []string, subject, html, text string) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if fm.sendErr != nil {
		return fm.sendErr
	}
	fm.sent = append(fm.sent, EmailPayload{Subject: subject, HTML: html, Text: text, To: to})
	return nil
}

func (fm *fakeMailer) sentCount() int {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return len(fm.sent)
}

// fakeExecutor settles buys in memory, optionally rejecting every order
type fakeExecutor struct {
	rejectErr error
	calls     int
}

func (fe *fakeExecutor) ExecuteBuy(_ context.Context, symbol string, price decimal.Decimal, quantity int64) (*VendorOrder, error) {
	fe.calls++
	if fe.rejectErr != nil {
		return nil, fe.rejectErr
	}
	return &VendorOrder{
		Symbol:   symbol,
		Quantity: quantity,
		Price:    price,
		Total:    price.Mul(decimal.NewFromInt(quantity)),
	}, nil
}

func conflictForReport(report *models.Report) error {
	return shared.NewConflictError("REPORT_EXISTS",
		fmt.Sprintf("report for %s already exists", report.ReportDate.Format("2006-01-02")),
		"fake-store", "insert_report_if_absent", nil)
}
