package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/finvault/trading-backend/services"
)

// CacheCleanupJob periodically evicts stale quote cache entries. Staleness
// is already enforced lazily on read; this job keeps the cache small when
// symbols stop being looked up.
type CacheCleanupJob struct {
	cache    *services.QuoteCache
	interval time.Duration
}

func NewCacheCleanupJob(cache *services.QuoteCache, interval time.Duration) *CacheCleanupJob {
	return &CacheCleanupJob{cache: cache, interval: interval}
}

// Start runs the cleanup on every tick until the context is cancelled
func (j *CacheCleanupJob) Start(ctx context.Context) {
	logrus.Infof("Starting cache cleanup job (runs every %v)", j.interval)
	ticker := time.NewTicker(j.interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logrus.Info("Cache cleanup job stopped")
				return
			case <-ticker.C:
				j.Run()
			}
		}
	}()
}

// Run evicts every stale cache entry
func (j *CacheCleanupJob) Run() {
	removed := j.cache.InvalidateStale()
	if removed > 0 {
		logrus.Infof("Cache cleanup job removed %d stale quotes", removed)
	}
}
