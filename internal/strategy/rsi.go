package strategy

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"exec-core/internal/account"
	"exec-core/internal/decision"
	"exec-core/pkg/binance"
)

// RSIReversion fades RSI extremes: long when oversold, short when overbought,
// flat again when RSI recrosses the midline.
type RSIReversion struct {
	period     int
	oversold   float64
	overbought float64
	stopPct    float64
}

// NewRSIReversion creates an RSI mean-reversion strategy.
func NewRSIReversion(period int, oversold, overbought, stopPct float64) *RSIReversion {
	if stopPct <= 0 {
		stopPct = 0.01
	}
	return &RSIReversion{period: period, oversold: oversold, overbought: overbought, stopPct: stopPct}
}

func (s *RSIReversion) Name() string { return fmt.Sprintf("rsi_%d", s.period) }

func (s *RSIReversion) MinCandles() int { return s.period + 2 }

func (s *RSIReversion) OnCandles(symbol string, candles []binance.Kline, pos account.Position) decision.Decision {
	if len(candles) < s.MinCandles() {
		return decision.None(symbol, "insufficient candles")
	}
	cl := closes(candles)
	rsi := talib.Rsi(cl, s.period)

	n := len(cl)
	price := cl[n-1]
	cur := rsi[n-1]

	switch pos.Side {
	case account.SideLong:
		if cur >= 50 {
			return closePosition(s.Name(), symbol, price, fmt.Sprintf("rsi recovered %.1f", cur))
		}
	case account.SideShort:
		if cur <= 50 {
			return closePosition(s.Name(), symbol, price, fmt.Sprintf("rsi cooled %.1f", cur))
		}
	default:
		if cur < s.oversold {
			return openLong(s.Name(), symbol, price, price*(1-s.stopPct),
				fmt.Sprintf("rsi oversold %.1f", cur))
		}
		if cur > s.overbought {
			return openShort(s.Name(), symbol, price, price*(1+s.stopPct),
				fmt.Sprintf("rsi overbought %.1f", cur))
		}
	}
	return decision.None(symbol, "rsi neutral")
}
