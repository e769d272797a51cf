package risk

import (
	"math"

	"exec-core/internal/decision"
	"exec-core/pkg/logger"
)

// Sizer derives order quantity from account equity and stop distance.
type Sizer struct {
	settings Settings
}

// NewSizer builds a sizer from risk settings.
func NewSizer(settings Settings) *Sizer {
	return &Sizer{settings: settings}
}

// Size computes quantity and notional for an open intent and writes them
// back onto the decision. Non-open intents are returned unchanged.
func (s *Sizer) Size(equity float64, d decision.Decision) decision.Decision {
	if !d.IsOpen() {
		return d
	}
	price := d.ResolvedPrice()
	if price <= 0 {
		return d
	}

	cfg := s.settings
	riskAmount := equity * cfg.RiskPerTradePct
	stopDistance := math.Abs(price - d.StopLossPrice)

	var rawQty float64
	if d.StopLossPrice > 0 && stopDistance > 0 {
		rawQty = riskAmount / stopDistance
	} else {
		// No stop distance: fall back to one quantity step. This yields an
		// un-risk-budgeted position and is logged for that reason.
		rawQty = cfg.QtyStep
		logger.Warn("sizing without stop distance, falling back to minimum step",
			logger.Pair("symbol", d.Symbol), logger.Pair("step", cfg.QtyStep))
	}

	qty := floorToStep(rawQty, cfg.QtyStep)
	if qty < cfg.QtyStep {
		qty = cfg.QtyStep
	}

	if cfg.MaxQty > 0 && qty > cfg.MaxQty {
		clamped := floorToStep(cfg.MaxQty, cfg.QtyStep)
		logger.Warn("quantity clamped to max",
			logger.Pair("symbol", d.Symbol),
			logger.Pair("raw_qty", qty), logger.Pair("max_qty", clamped))
		qty = clamped
	}

	notional := qty * price
	if cfg.MaxNotional > 0 && notional > cfg.MaxNotional {
		refloored := floorToStep(cfg.MaxNotional/price, cfg.QtyStep)
		logger.Warn("quantity re-floored to fit notional cap",
			logger.Pair("symbol", d.Symbol),
			logger.Pair("qty", qty), logger.Pair("capped_qty", refloored),
			logger.Pair("max_notional", cfg.MaxNotional))
		qty = refloored
		notional = qty * price
	}

	d.Quantity = roundTo(qty, cfg.QtyDecimals)
	d.Notional = roundTo(d.Quantity*price, cfg.NotionalDecimals)
	return d
}

func floorToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	// Tolerance absorbs float error so an exact multiple is not floored down.
	return math.Floor(v/step+1e-9) * step
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
