package risk

import (
	"sync"
	"time"

	"exec-core/pkg/logger"
)

// Settings bundles the circuit-breaker thresholds and sizing parameters.
type Settings struct {
	RiskPerTradePct    float64
	QtyStep            float64
	MaxQty             float64
	MaxNotional        float64
	QtyDecimals        int
	NotionalDecimals   int
	MaxTradesPerDay    int
	MaxConsecutiveLoss int
	MaxAbsPnl          float64
}

// Verdict is the outcome of a global risk check.
type Verdict struct {
	Allowed bool
	Reason  string
}

// RuntimeState is an immutable copy of the counters for status reporting.
type RuntimeState struct {
	TradingDate          string
	TradesToday          int
	ConsecutiveLossCount int
	IsFrozen             bool
	IsManualFrozen       bool
	FrozenReason         string
}

// Runtime holds day-scoped risk counters plus automatic and manual freeze
// flags. Mutated only through its own methods; one coordinator owns it.
type Runtime struct {
	mu       sync.Mutex
	settings Settings

	tradingDate          string
	tradesToday          int
	consecutiveLossCount int
	autoFrozen           bool
	manualFrozen         bool
	frozenReason         string
}

// NewRuntime creates a runtime scoped to today's date.
func NewRuntime(settings Settings) *Runtime {
	return &Runtime{
		settings:    settings,
		tradingDate: time.Now().UTC().Format("2006-01-02"),
	}
}

// CanOpen evaluates the global gate for an open intent. First match wins:
// freeze, daily trade cap, consecutive loss cooldown.
func (r *Runtime) CanOpen() Verdict {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.autoFrozen || r.manualFrozen {
		reason := r.frozenReason
		if reason == "" {
			reason = "trading frozen"
		}
		return Verdict{Allowed: false, Reason: reason}
	}
	if r.settings.MaxTradesPerDay > 0 && r.tradesToday >= r.settings.MaxTradesPerDay {
		return Verdict{Allowed: false, Reason: "daily trade cap reached"}
	}
	if r.settings.MaxConsecutiveLoss > 0 && r.consecutiveLossCount >= r.settings.MaxConsecutiveLoss {
		return Verdict{Allowed: false, Reason: "consecutive loss cooldown"}
	}
	return Verdict{Allowed: true}
}

// OnTradeClosed updates counters for one closed round-trip. A close dated on
// a new calendar day resets the day-scoped state first.
func (r *Runtime) OnTradeClosed(closeTime time.Time, realizedPnl float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	day := closeTime.UTC().Format("2006-01-02")
	if day != r.tradingDate {
		r.resetFor(day)
	}

	r.tradesToday++
	switch {
	case realizedPnl < 0:
		r.consecutiveLossCount++
		if r.settings.MaxConsecutiveLoss > 0 && r.consecutiveLossCount >= r.settings.MaxConsecutiveLoss && !r.autoFrozen {
			r.autoFrozen = true
			r.frozenReason = "consecutive loss cooldown"
			logger.Warn("auto freeze engaged",
				logger.Pair("consecutive_losses", r.consecutiveLossCount),
				logger.Pair("date", r.tradingDate))
		}
	case realizedPnl > 0:
		r.consecutiveLossCount = 0
		if r.autoFrozen {
			r.autoFrozen = false
			if !r.manualFrozen {
				r.frozenReason = ""
			}
		}
	}
	// Breakeven leaves the loss streak unchanged.
}

// Freeze engages the manual kill switch.
func (r *Runtime) Freeze(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manualFrozen = true
	if reason == "" {
		reason = "manually frozen"
	}
	r.frozenReason = reason
	logger.Warn("manual freeze engaged", logger.Pair("reason", reason))
}

// Unfreeze clears the kill switch, overriding automatic freezing as well.
func (r *Runtime) Unfreeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manualFrozen = false
	r.autoFrozen = false
	r.frozenReason = ""
	logger.Info("manual unfreeze")
}

// resetFor starts a fresh trading day. Caller holds the lock. Manual freeze
// persists across rollovers until explicitly cleared.
func (r *Runtime) resetFor(date string) {
	r.tradingDate = date
	r.tradesToday = 0
	r.consecutiveLossCount = 0
	r.autoFrozen = false
	if !r.manualFrozen {
		r.frozenReason = ""
	}
}

// State returns a copy of the current counters.
func (r *Runtime) State() RuntimeState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RuntimeState{
		TradingDate:          r.tradingDate,
		TradesToday:          r.tradesToday,
		ConsecutiveLossCount: r.consecutiveLossCount,
		IsFrozen:             r.autoFrozen || r.manualFrozen,
		IsManualFrozen:       r.manualFrozen,
		FrozenReason:         r.frozenReason,
	}
}
