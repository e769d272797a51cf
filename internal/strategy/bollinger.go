package strategy

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"exec-core/internal/account"
	"exec-core/internal/decision"
	"exec-core/pkg/binance"
)

// Bollinger fades band breaks: long below the lower band, short above the
// upper band, exit on a touch of the middle band.
type Bollinger struct {
	period  int
	stdDev  float64
	stopPct float64
}

// NewBollinger creates a Bollinger band reversion strategy.
func NewBollinger(period int, stdDev, stopPct float64) *Bollinger {
	if stopPct <= 0 {
		stopPct = 0.01
	}
	return &Bollinger{period: period, stdDev: stdDev, stopPct: stopPct}
}

func (s *Bollinger) Name() string { return fmt.Sprintf("bollinger_%d", s.period) }

func (s *Bollinger) MinCandles() int { return s.period + 1 }

func (s *Bollinger) OnCandles(symbol string, candles []binance.Kline, pos account.Position) decision.Decision {
	if len(candles) < s.MinCandles() {
		return decision.None(symbol, "insufficient candles")
	}
	cl := closes(candles)
	upper, middle, lower := talib.BBands(cl, s.period, s.stdDev, s.stdDev, talib.SMA)

	n := len(cl)
	price := cl[n-1]

	switch pos.Side {
	case account.SideLong:
		if price >= middle[n-1] {
			return closePosition(s.Name(), symbol, price, "price back to middle band")
		}
	case account.SideShort:
		if price <= middle[n-1] {
			return closePosition(s.Name(), symbol, price, "price back to middle band")
		}
	default:
		if price < lower[n-1] {
			return openLong(s.Name(), symbol, price, price*(1-s.stopPct),
				fmt.Sprintf("below lower band %.4f", lower[n-1]))
		}
		if price > upper[n-1] {
			return openShort(s.Name(), symbol, price, price*(1+s.stopPct),
				fmt.Sprintf("above upper band %.4f", upper[n-1]))
		}
	}
	return decision.None(symbol, "inside bands")
}
