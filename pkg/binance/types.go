package binance

import "strconv"

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderRequest captures a futures order to be sent to the exchange.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Type       string // MARKET, LIMIT, STOP_MARKET, TAKE_PROFIT_MARKET
	Qty        float64
	Price      float64 // LIMIT only
	StopPrice  float64 // STOP_MARKET / TAKE_PROFIT_MARKET
	ReduceOnly bool
	ClientID   string
}

// OrderAck is the exchange acknowledgement for a submitted order.
type OrderAck struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Status        string `json:"status"`
}

// AccountInfo returns futures account balances and positions.
type AccountInfo struct {
	TotalWalletBalance string `json:"totalWalletBalance"`
	TotalMarginBalance string `json:"totalMarginBalance"`
	AvailableBalance   string `json:"availableBalance"`
	UpdateTime         int64  `json:"updateTime"`
}

// PositionRisk is one row of the positionRisk endpoint.
type PositionRisk struct {
	Symbol           string `json:"symbol"`
	PositionSide     string `json:"positionSide"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	MarkPrice        string `json:"markPrice"`
	UnRealizedProfit string `json:"unRealizedProfit"`
	Leverage         string `json:"leverage"`
}

// OpenOrder is one row of the openOrders endpoint.
type OpenOrder struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Price         string `json:"price"`
	OrigQty       string `json:"origQty"`
	StopPrice     string `json:"stopPrice"`
	Status        string `json:"status"`
	ReduceOnly    bool   `json:"reduceOnly"`
	Time          int64  `json:"time"`
}

// Income is one realized-P&L ledger row.
type Income struct {
	Symbol     string `json:"symbol"`
	IncomeType string `json:"incomeType"`
	Income     string `json:"income"`
	Asset      string `json:"asset"`
	Time       int64  `json:"time"`
	TradeID    int64  `json:"tradeId"`
}

// Kline is one candle from the public klines endpoint.
type Kline struct {
	Symbol    string
	OpenTime  int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime int64
}

// ToFloat parses an exchange decimal string, returning 0 on garbage.
func ToFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
