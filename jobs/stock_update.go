package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/finvault/trading-backend/models"
	"github.com/finvault/trading-backend/services"
)

// StockUpdateJob polls the vendor stock API on a fixed interval, persists
// each listing, and mirrors the persisted records into the quote cache.
// A tick that fires while the previous tick is still executing is skipped,
// not queued.
type StockUpdateJob struct {
	cache     *services.QuoteCache
	vendor    *services.VendorClient
	store     services.Store
	interval  time.Duration
	isRunning atomic.Bool
}

func NewStockUpdateJob(cache *services.QuoteCache, vendor *services.VendorClient, store services.Store, interval time.Duration) *StockUpdateJob {
	return &StockUpdateJob{
		cache:    cache,
		vendor:   vendor,
		store:    store,
		interval: interval,
	}
}

// Start runs the job immediately and then on every tick until the context
// is cancelled
func (j *StockUpdateJob) Start(ctx context.Context) {
	logrus.Infof("Starting stock update job (runs every %v)", j.interval)
	ticker := time.NewTicker(j.interval)

	go func() {
		defer ticker.Stop()

		j.Run(ctx)
		for {
			select {
			case <-ctx.Done():
				logrus.Info("Stock update job stopped")
				return
			case <-ticker.C:
				j.Run(ctx)
			}
		}
	}()
}

// Run executes one refresh cycle. Failures are logged and never crash the
// process; the running flag always resets.
func (j *StockUpdateJob) Run(ctx context.Context) {
	if !j.isRunning.CompareAndSwap(false, true) {
		logrus.Info("Stock update job already running, skipping")
		return
	}
	defer j.isRunning.Store(false)

	startTime := time.Now()
	logrus.Info("Stock update job started")

	items, err := j.vendor.FetchAllListings(ctx)
	if err != nil {
		logrus.Errorf("Stock update job failed: error fetching stock listings: %v", err)
		return
	}

	updated := 0
	failed := 0
	for _, item := range items {
		stock, err := j.store.UpsertStock(ctx, models.Stock{
			Symbol:      item.Symbol,
			Name:        item.Name,
			Sector:      item.Sector,
			Price:       item.Price,
			Change:      item.Change,
			Currency:    "USD", // vendor API does not provide currency
			LastUpdated: item.LastUpdated,
		})
		if err != nil {
			logrus.Errorf("Failed to persist stock %s: %v", item.Symbol, err)
			failed++
			continue
		}

		j.cache.Set(stock.Symbol, models.QuoteFromStock(stock))
		updated++
	}

	logrus.WithFields(logrus.Fields{
		"updated":  updated,
		"failed":   failed,
		"duration": time.Since(startTime),
	}).Infof("Stock update job completed: %d stocks updated", updated)
}
