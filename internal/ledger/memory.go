package ledger

import (
	"context"
	"sync"
)

// MemoryStore keeps trades in memory; used by backtests where persistence
// across runs is pointless.
type MemoryStore struct {
	mu     sync.RWMutex
	trades []TradeRecord
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) AddTrade(_ context.Context, rec TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, rec)
	return nil
}

func (m *MemoryStore) GetAllTrades(_ context.Context) ([]TradeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TradeRecord, len(m.trades))
	copy(out, m.trades)
	return out, nil
}

func (m *MemoryStore) GetDailySummary(_ context.Context, date string) (DailySummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := DailySummary{Date: date}
	for _, rec := range m.trades {
		if rec.CloseTime.UTC().Format("2006-01-02") != date {
			continue
		}
		sum.Trades++
		sum.RealizedPnl += rec.RealizedPnl
		sum.Fees += rec.Fee
		if rec.RealizedPnl > 0 {
			sum.Wins++
		} else if rec.RealizedPnl < 0 {
			sum.Losses++
		}
	}
	return sum, nil
}

func (m *MemoryStore) Close() error { return nil }
