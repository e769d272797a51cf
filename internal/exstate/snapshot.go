package exstate

import (
	"context"
	"time"

	"exec-core/internal/account"
	"exec-core/pkg/binance"
)

// RestAPI is the REST surface the service reconciles against. Implemented by
// *binance.Client; narrowed to an interface for tests.
type RestAPI interface {
	AccountInfo(ctx context.Context) (*binance.AccountInfo, error)
	PositionRisk(ctx context.Context, symbol string) ([]binance.PositionRisk, error)
	OpenOrders(ctx context.Context, symbol string) ([]binance.OpenOrder, error)
	Income(ctx context.Context, symbol string, startTime int64, limit int) ([]binance.Income, error)
	CreateListenKey(ctx context.Context) (string, error)
	KeepAliveListenKey(ctx context.Context, listenKey string) error
	StreamHost() string
}

// posKey identifies one cached position entry.
type posKey struct {
	Symbol string
	Side   account.PositionSide
}

// Fill is one trade execution observed on the user data stream.
type Fill struct {
	Symbol        string
	Side          string
	PositionSide  string
	Price         float64
	Qty           float64
	Commission    float64
	RealizedPnl   float64
	OrderID       int64
	TradeID       int64
	ClientOrderID string
	Maker         bool
	Status        string
	Time          time.Time
}

// PnlRow aggregates realized P&L and fees for one calendar day.
type PnlRow struct {
	Date        string
	RealizedPnl float64
	Fees        float64
}

const recentFillsCap = 200
