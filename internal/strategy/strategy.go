package strategy

import (
	"exec-core/internal/account"
	"exec-core/internal/decision"
	"exec-core/pkg/binance"
)

// Strategy turns a candle window plus the current position into a decision.
// Returning a NONE decision means no action this bar.
type Strategy interface {
	// Name is the tag stamped on decisions and trade records.
	Name() string
	// MinCandles is the shortest window the strategy can work with.
	MinCandles() int
	// OnCandles evaluates the latest closed candle in the window.
	OnCandles(symbol string, candles []binance.Kline, pos account.Position) decision.Decision
}

func closes(candles []binance.Kline) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func openLong(name, symbol string, price, stop float64, reason string) decision.Decision {
	return decision.Decision{
		Intent:        decision.IntentOpenLong,
		Symbol:        symbol,
		LastPrice:     price,
		StopLossPrice: stop,
		Reason:        reason,
		StrategyTag:   name,
	}
}

func openShort(name, symbol string, price, stop float64, reason string) decision.Decision {
	return decision.Decision{
		Intent:        decision.IntentOpenShort,
		Symbol:        symbol,
		LastPrice:     price,
		StopLossPrice: stop,
		Reason:        reason,
		StrategyTag:   name,
	}
}

func closePosition(name, symbol string, price float64, reason string) decision.Decision {
	return decision.Decision{
		Intent:      decision.IntentClose,
		Symbol:      symbol,
		LastPrice:   price,
		Reason:      reason,
		StrategyTag: name,
	}
}
