package binance

import (
	"strconv"
	"sync"
	"time"

	"exec-core/pkg/logger"
)

// WeightTracker tracks API rate limit usage reported by response headers.
type WeightTracker struct {
	usedWeight    int
	limit         int
	lastReset     time.Time
	resetInterval time.Duration
	mu            sync.RWMutex
}

// NewWeightTracker creates a tracker for the given weight budget per window.
func NewWeightTracker(limit int, resetInterval time.Duration) *WeightTracker {
	return &WeightTracker{
		limit:         limit,
		resetInterval: resetInterval,
		lastReset:     time.Now(),
	}
}

// UpdateFromHeader updates the used weight from an API response header.
func (w *WeightTracker) UpdateFromHeader(headerValue string) {
	if headerValue == "" {
		return
	}
	weight, err := strconv.Atoi(headerValue)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if time.Since(w.lastReset) >= w.resetInterval {
		w.usedWeight = 0
		w.lastReset = time.Now()
	}
	w.usedWeight = weight

	percentage := float64(w.usedWeight) / float64(w.limit) * 100
	if percentage >= 95 {
		logger.Warn("rate limit critical, approaching ban threshold",
			logger.Pair("used", w.usedWeight), logger.Pair("limit", w.limit))
	} else if percentage >= 80 {
		logger.Warn("rate limit high",
			logger.Pair("used", w.usedWeight), logger.Pair("limit", w.limit))
	}
}

// Usage returns current usage information.
func (w *WeightTracker) Usage() (used int, limit int, percentage float64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if time.Since(w.lastReset) >= w.resetInterval {
		return 0, w.limit, 0
	}
	return w.usedWeight, w.limit, float64(w.usedWeight) / float64(w.limit) * 100
}
