package binance

import (
	"sync"
	"time"
)

// TimeSync tracks the offset between local clock and exchange server time so
// signed request timestamps stay inside the receive window.
type TimeSync struct {
	getServerTime func() (int64, error)
	offset        int64 // milliseconds (server - local)
	lastSync      time.Time
	mu            sync.RWMutex
}

// NewTimeSync creates a time synchronization helper.
func NewTimeSync(getServerTime func() (int64, error)) *TimeSync {
	return &TimeSync{getServerTime: getServerTime}
}

// Sync fetches server time and recomputes the offset. Network latency is
// assumed symmetric.
func (ts *TimeSync) Sync() error {
	localBefore := time.Now().UnixMilli()
	serverTime, err := ts.getServerTime()
	if err != nil {
		return err
	}
	localAfter := time.Now().UnixMilli()

	localTime := localBefore + (localAfter-localBefore)/2

	ts.mu.Lock()
	ts.offset = serverTime - localTime
	ts.lastSync = time.Now()
	ts.mu.Unlock()
	return nil
}

// Now returns current time in milliseconds adjusted for server offset.
func (ts *TimeSync) Now() int64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return time.Now().UnixMilli() + ts.offset
}

// Offset returns the current offset in milliseconds.
func (ts *TimeSync) Offset() int64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.offset
}
