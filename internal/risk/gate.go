package risk

import (
	"exec-core/internal/account"
	"exec-core/internal/decision"
)

// ExchangeView answers whether the exchange itself reports an open position,
// guarding against a lagging local cache. Live/testnet gates carry one; sim
// gates do not.
type ExchangeView interface {
	HasOpenPosition(symbol string) bool
}

// Gate validates pricing and enforces the single-open-position rule for one
// environment before a decision reaches the global risk checks.
type Gate struct {
	exchange ExchangeView
}

// NewGate builds a gate. exchange may be nil for simulated environments.
func NewGate(exchange ExchangeView) *Gate {
	return &Gate{exchange: exchange}
}

// Apply adjusts or rejects a decision against the current account and
// position. Rejections come back as NONE decisions carrying a reason tag;
// nothing here returns an error.
func (g *Gate) Apply(acct account.Snapshot, pos account.Position, d decision.Decision) decision.Decision {
	if d.Intent == decision.IntentNone {
		return d
	}

	if !pos.IsFlat() {
		if d.IsOpen() {
			out := decision.None(d.Symbol, d.Reason)
			out.StrategyTag = d.StrategyTag
			out.Tag(decision.TagAlreadyHavePosition)
			return out
		}
		// Close intents against an open position always pass.
		return d
	}

	if d.IsOpen() {
		if d.ResolvedPrice() <= 0 {
			out := decision.None(d.Symbol, d.Reason)
			out.StrategyTag = d.StrategyTag
			out.Tag(decision.TagInvalidPrice)
			return out
		}
		if g.exchange != nil && g.exchange.HasOpenPosition(d.Symbol) {
			out := decision.None(d.Symbol, d.Reason)
			out.StrategyTag = d.StrategyTag
			out.Tag(decision.TagExchangeHasOpenPosition)
			return out
		}
		d.Tag(decision.TagRiskChecked)
	}
	return d
}
