package shared

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RequestPacer enforces a minimum delay between outbound requests to a
// single upstream. Safe for concurrent use; callers block until their slot.
type RequestPacer struct {
	minimumDelay time.Duration
	lastRequest  time.Time
	mutex        sync.Mutex
	requestCount int64
}

// NewRequestPacer creates a pacer with the given minimum delay between
// requests. A zero or negative delay disables pacing.
func NewRequestPacer(minimumDelay time.Duration) *RequestPacer {
	return &RequestPacer{minimumDelay: minimumDelay}
}

// Wait blocks until the minimum delay since the previous request has
// elapsed, or the context is cancelled.
func (p *RequestPacer) Wait(ctx context.Context) error {
	if p == nil || p.minimumDelay <= 0 {
		return nil
	}

	p.mutex.Lock()
	elapsed := time.Since(p.lastRequest)
	var remaining time.Duration
	if !p.lastRequest.IsZero() && elapsed < p.minimumDelay {
		remaining = p.minimumDelay - elapsed
	}
	p.lastRequest = time.Now().Add(remaining)
	p.requestCount++
	p.mutex.Unlock()

	if remaining <= 0 {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"remaining_delay": remaining,
		"minimum_delay":   p.minimumDelay,
	}).Debug("Pacing upstream request")

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RequestCount returns how many requests have passed through the pacer
func (p *RequestPacer) RequestCount() int64 {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.requestCount
}
