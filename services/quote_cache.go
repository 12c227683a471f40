package services

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/finvault/trading-backend/models"
)

// DefaultQuoteTTL is how long a cached quote stays servable after its
// observation time.
const DefaultQuoteTTL = 5 * time.Minute

// QuoteCacheStats holds cumulative lookup accounting since process start.
// Counters are never reset.
type QuoteCacheStats struct {
	Size     int     `json:"size"`
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	HitRate  float64 `json:"hit_rate"`
	MissRate float64 `json:"miss_rate"`
}

// QuoteCache is the in-memory symbol -> quote mapping with TTL staleness,
// hit/miss accounting, and refresh-with-lock semantics. Staleness is
// enforced lazily at read time, so the cache self-heals even if the
// background refresh job dies. All operations are fast, synchronous and
// guarded by a single mutex.
type QuoteCache struct {
	mu         sync.Mutex
	quotes     map[string]models.Quote
	ttl        time.Duration
	hits       uint64
	misses     uint64
	refreshing bool
	now        func() time.Time
}

// NewQuoteCache creates a quote cache with the default 5-minute TTL
func NewQuoteCache() *QuoteCache {
	return NewQuoteCacheWithTTL(DefaultQuoteTTL)
}

// NewQuoteCacheWithTTL creates a quote cache with a custom TTL
func NewQuoteCacheWithTTL(ttl time.Duration) *QuoteCache {
	return &QuoteCache{
		quotes: make(map[string]models.Quote),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Get returns the quote for a symbol if present and not stale. A stale
// entry is evicted as a side effect and counted as a miss; present and
// fresh counts as a hit.
func (qc *QuoteCache) Get(symbol string) (models.Quote, bool) {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	quote, exists := qc.quotes[symbol]
	if !exists {
		qc.misses++
		logrus.Debugf("Quote cache miss for symbol: %s", symbol)
		return models.Quote{}, false
	}
	if qc.isStaleLocked(quote) {
		qc.misses++
		delete(qc.quotes, symbol)
		logrus.Debugf("Quote cache stale for symbol: %s", symbol)
		return models.Quote{}, false
	}

	qc.hits++
	logrus.Debugf("Quote cache hit for symbol: %s", symbol)
	return quote, true
}

// Set unconditionally upserts the quote for a symbol, stamping the
// observation time when the caller did not provide one.
func (qc *QuoteCache) Set(symbol string, quote models.Quote) {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	if quote.ObservedAt.IsZero() {
		quote.ObservedAt = qc.now()
	}
	qc.quotes[symbol] = quote
	logrus.Debugf("Quote cache set for symbol: %s", symbol)
}

// Has reports presence and freshness without touching counters or
// evicting. Pure predicate: it must not be relied upon to mutate state.
func (qc *QuoteCache) Has(symbol string) bool {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	quote, exists := qc.quotes[symbol]
	return exists && !qc.isStaleLocked(quote)
}

// IsStale reports whether a quote is older than the configured TTL
func (qc *QuoteCache) IsStale(quote models.Quote) bool {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	return qc.isStaleLocked(quote)
}

func (qc *QuoteCache) isStaleLocked(quote models.Quote) bool {
	return qc.now().Sub(quote.ObservedAt) > qc.ttl
}

// Invalidate evicts the entry for a symbol
func (qc *QuoteCache) Invalidate(symbol string) {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	delete(qc.quotes, symbol)
	logrus.Debugf("Quote cache invalidated for symbol: %s", symbol)
}

// InvalidateAll evicts every entry
func (qc *QuoteCache) InvalidateAll() {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	qc.quotes = make(map[string]models.Quote)
	logrus.Debug("All quote cache entries invalidated")
}

// InvalidateStale evicts every stale entry and returns how many were removed
func (qc *QuoteCache) InvalidateStale() int {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	count := 0
	for symbol, quote := range qc.quotes {
		if qc.isStaleLocked(quote) {
			delete(qc.quotes, symbol)
			count++
		}
	}
	if count > 0 {
		logrus.Debugf("Invalidated %d stale quote cache entries", count)
	}
	return count
}

// Refresh bulk-upserts the given quotes, only touching entries that are
// absent or stale; fresh entries are left untouched even if the incoming
// data differs. A refresh made while another refresh is in flight is a
// no-op (skip, not queue); the caller should rely on the next scheduled
// refresh.
func (qc *QuoteCache) Refresh(quotes []models.Quote) {
	// The flag is claimed under the mutex but held across the sweep, so a
	// concurrent Refresh observes it and drops out instead of queueing on
	// the mutex behind the whole sweep.
	qc.mu.Lock()
	if qc.refreshing {
		qc.mu.Unlock()
		logrus.Warn("Quote cache refresh in progress, skipping refresh")
		return
	}
	qc.refreshing = true
	qc.mu.Unlock()

	for _, quote := range quotes {
		if quote.ObservedAt.IsZero() {
			quote.ObservedAt = qc.now()
		}
		qc.mu.Lock()
		cached, exists := qc.quotes[quote.Symbol]
		if !exists || qc.isStaleLocked(cached) {
			qc.quotes[quote.Symbol] = quote
		}
		qc.mu.Unlock()
	}

	qc.mu.Lock()
	qc.refreshing = false
	qc.mu.Unlock()
	logrus.Debugf("Refreshed %d quotes in cache", len(quotes))
}

// Stats returns size plus cumulative hit/miss counters and rates. Rates
// are 0 before the first lookup.
func (qc *QuoteCache) Stats() QuoteCacheStats {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	stats := QuoteCacheStats{
		Size:   len(qc.quotes),
		Hits:   qc.hits,
		Misses: qc.misses,
	}
	total := qc.hits + qc.misses
	if total > 0 {
		stats.HitRate = float64(qc.hits) / float64(total)
		stats.MissRate = float64(qc.misses) / float64(total)
	}
	return stats
}
