package ledger

import (
	"context"
	"time"
)

// TradeRecord is one closed round-trip. Append-only; never mutated after
// creation.
type TradeRecord struct {
	ID              string
	OpenTime        time.Time
	CloseTime       time.Time
	Symbol          string
	Side            string // LONG or SHORT
	Quantity        float64
	EntryPrice      float64
	ExitPrice       float64
	RealizedPnl     float64
	Fee             float64
	StrategyTag     string
	Mode            string
	ExchangeOrderID string
	ExchangeTradeID string
}

// DailySummary aggregates closed trades for one calendar day.
type DailySummary struct {
	Date        string
	Trades      int
	Wins        int
	Losses      int
	RealizedPnl float64
	Fees        float64
}

// Store is the downstream contract exposed to the history subsystem.
type Store interface {
	AddTrade(ctx context.Context, rec TradeRecord) error
	GetAllTrades(ctx context.Context) ([]TradeRecord, error)
	GetDailySummary(ctx context.Context, date string) (DailySummary, error)
	Close() error
}
