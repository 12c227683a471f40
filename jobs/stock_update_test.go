package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvault/trading-backend/services"
)

type vendorListing struct {
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	Sector      string          `json:"sector"`
	Price       decimal.Decimal `json:"price"`
	Change      decimal.Decimal `json:"change"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

func newListingServer(t *testing.T, requests *atomic.Int64, listings []vendorListing) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		response := map[string]interface{}{
			"status": 200,
			"data":   map[string]interface{}{"items": listings},
		}
		json.NewEncoder(w).Encode(response)
	}))
}

func TestStockUpdateJobRun(t *testing.T) {
	var requests atomic.Int64
	observedAt := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	server := newListingServer(t, &requests, []vendorListing{
		{Symbol: "AAPL", Name: "Apple Inc.", Sector: "Technology", Price: decimal.NewFromInt(100), LastUpdated: observedAt},
		{Symbol: "MSFT", Name: "Microsoft Corporation", Sector: "Technology", Price: decimal.NewFromInt(400), LastUpdated: observedAt},
	})
	defer server.Close()

	store := newJobStore()
	cache := services.NewQuoteCacheWithTTL(services.DefaultQuoteTTL)
	vendor := services.NewVendorClient(services.VendorClientConfig{BaseURL: server.URL, MaxPages: 20})
	job := NewStockUpdateJob(cache, vendor, store, time.Hour)

	job.Run(context.Background())

	assert.Equal(t, int64(1), requests.Load())
	assert.Equal(t, 2, store.stockCount())

	// Persisted records are mirrored into the cache
	quote, ok := cache.Get("AAPL")
	require.True(t, ok)
	assert.True(t, quote.Price.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "USD", quote.Currency)

	stock, err := store.FindStockBySymbol(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, stock)
	assert.NotEqual(t, uuid.Nil, stock.ID, "upsert must assign a store id")
}

func TestStockUpdateJobSkipsWhenAlreadyRunning(t *testing.T) {
	var requests atomic.Int64
	server := newListingServer(t, &requests, []vendorListing{
		{Symbol: "AAPL", Price: decimal.NewFromInt(100)},
	})
	defer server.Close()

	store := newJobStore()
	cache := services.NewQuoteCacheWithTTL(services.DefaultQuoteTTL)
	vendor := services.NewVendorClient(services.VendorClientConfig{BaseURL: server.URL, MaxPages: 20})
	job := NewStockUpdateJob(cache, vendor, store, time.Hour)

	// Simulate an in-flight run: the overlapping run must skip entirely
	job.isRunning.Store(true)
	job.Run(context.Background())
	assert.Equal(t, int64(0), requests.Load())
	assert.Equal(t, 0, store.stockCount())

	// And the flag is owned by the in-flight run, not cleared by the skip
	assert.True(t, job.isRunning.Load())

	job.isRunning.Store(false)
	job.Run(context.Background())
	assert.Equal(t, int64(1), requests.Load())
	assert.Equal(t, 1, store.stockCount())
	assert.False(t, job.isRunning.Load(), "flag must reset after a completed run")
}

func TestStockUpdateJobSurvivesPersistenceFailures(t *testing.T) {
	var requests atomic.Int64
	server := newListingServer(t, &requests, []vendorListing{
		{Symbol: "AAPL", Price: decimal.NewFromInt(100)},
	})
	defer server.Close()

	store := newJobStore()
	store.upsertErr = errors.New("disk full")
	cache := services.NewQuoteCacheWithTTL(services.DefaultQuoteTTL)
	vendor := services.NewVendorClient(services.VendorClientConfig{BaseURL: server.URL, MaxPages: 20})
	job := NewStockUpdateJob(cache, vendor, store, time.Hour)

	job.Run(context.Background())

	// Failure is logged, not propagated; the cache stays untouched for the
	// failed symbol and the flag resets
	assert.False(t, cache.Has("AAPL"))
	assert.False(t, job.isRunning.Load())
}

func TestStockUpdateJobStartRunsImmediatelyAndStops(t *testing.T) {
	var requests atomic.Int64
	server := newListingServer(t, &requests, []vendorListing{
		{Symbol: "AAPL", Price: decimal.NewFromInt(100)},
	})
	defer server.Close()

	store := newJobStore()
	cache := services.NewQuoteCacheWithTTL(services.DefaultQuoteTTL)
	vendor := services.NewVendorClient(services.VendorClientConfig{BaseURL: server.URL, MaxPages: 20})
	job := NewStockUpdateJob(cache, vendor, store, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	job.Start(ctx)

	require.Eventually(t, func() bool {
		return requests.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond, "start must run a refresh cycle immediately")

	cancel()
}
