package strategy

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"exec-core/internal/account"
	"exec-core/internal/decision"
	"exec-core/pkg/binance"
)

// MACross trades simple moving average crossovers. A golden cross opens a
// long, a death cross closes it and opens a short.
type MACross struct {
	fastPeriod int
	slowPeriod int
	stopPct    float64
}

// NewMACross creates an MA crossover strategy; stopPct places the protective
// stop as a fraction of entry price.
func NewMACross(fastPeriod, slowPeriod int, stopPct float64) *MACross {
	if stopPct <= 0 {
		stopPct = 0.01
	}
	return &MACross{fastPeriod: fastPeriod, slowPeriod: slowPeriod, stopPct: stopPct}
}

func (s *MACross) Name() string {
	return fmt.Sprintf("ma_cross_%d_%d", s.fastPeriod, s.slowPeriod)
}

func (s *MACross) MinCandles() int { return s.slowPeriod + 1 }

func (s *MACross) OnCandles(symbol string, candles []binance.Kline, pos account.Position) decision.Decision {
	if len(candles) < s.MinCandles() {
		return decision.None(symbol, "insufficient candles")
	}
	cl := closes(candles)
	fast := talib.Sma(cl, s.fastPeriod)
	slow := talib.Sma(cl, s.slowPeriod)

	n := len(cl)
	price := cl[n-1]
	goldenCross := fast[n-2] <= slow[n-2] && fast[n-1] > slow[n-1]
	deathCross := fast[n-2] >= slow[n-2] && fast[n-1] < slow[n-1]

	switch {
	case goldenCross:
		if pos.Side == account.SideShort {
			return closePosition(s.Name(), symbol, price, "golden cross against short")
		}
		return openLong(s.Name(), symbol, price, price*(1-s.stopPct),
			fmt.Sprintf("golden cross fast=%.4f slow=%.4f", fast[n-1], slow[n-1]))
	case deathCross:
		if pos.Side == account.SideLong {
			return closePosition(s.Name(), symbol, price, "death cross against long")
		}
		return openShort(s.Name(), symbol, price, price*(1+s.stopPct),
			fmt.Sprintf("death cross fast=%.4f slow=%.4f", fast[n-1], slow[n-1]))
	}
	return decision.None(symbol, "no crossover")
}
