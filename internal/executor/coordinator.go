package executor

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"exec-core/internal/account"
	"exec-core/internal/decision"
	"exec-core/internal/events"
	"exec-core/internal/ledger"
	"exec-core/internal/risk"
	"exec-core/pkg/logger"
)

// Environment is the façade the coordinator executes against: one running
// mode's risk gate, order router, ledger and account/position accessors.
type Environment interface {
	Mode() Mode
	Account(ctx context.Context) (account.Snapshot, error)
	Position(ctx context.Context, symbol string) (account.Position, error)
	Gate() *risk.Gate
	Router() Router
	Ledger() ledger.Store
}

// pnlSink is implemented by simulated environments that want realized P&L
// folded back into equity.
type pnlSink interface {
	ApplyRealizedPnl(delta float64)
}

// SimEconomics are the deterministic trade economics applied to simulated
// closes. Live/testnet closes use exchange-reported numbers instead.
type SimEconomics struct {
	SlippageTicks float64
	TickSize      float64
	TakerFeeRate  float64 // may be negative
}

// Coordinator orchestrates the decision-to-order pipeline: risk gates,
// sizing, routing, trade recording and execution notifications. One
// coordinator owns the global risk runtime.
type Coordinator struct {
	guard *risk.Runtime
	sizer *risk.Sizer
	bus   *events.Bus
	econ  SimEconomics

	maxAbsPnl float64
	now       func() time.Time
}

// NewCoordinator wires the coordinator. Missing collaborators are
// configuration errors and fail fast.
func NewCoordinator(guard *risk.Runtime, sizer *risk.Sizer, bus *events.Bus, econ SimEconomics, maxAbsPnl float64) (*Coordinator, error) {
	if guard == nil {
		return nil, errors.New("coordinator: global risk runtime is required")
	}
	if sizer == nil {
		return nil, errors.New("coordinator: sizer is required")
	}
	if bus == nil {
		return nil, errors.New("coordinator: event bus is required")
	}
	if maxAbsPnl <= 0 {
		maxAbsPnl = 1e6
	}
	return &Coordinator{
		guard:     guard,
		sizer:     sizer,
		bus:       bus,
		econ:      econ,
		maxAbsPnl: maxAbsPnl,
		now:       time.Now,
	}, nil
}

// Guard exposes the global risk runtime (status API, fill recorder).
func (c *Coordinator) Guard() *risk.Runtime { return c.guard }

// Execute runs one decision through the full pipeline. Per-decision
// failures never escape as errors; they come back encoded in the result so
// an unattended loop continues.
func (c *Coordinator) Execute(ctx context.Context, d decision.Decision, env Environment) ExecutionResult {
	if d.Intent == decision.IntentNone {
		return ExecutionResult{Success: false, Message: MsgNoDecision, Symbol: d.Symbol}
	}

	acct, err := env.Account(ctx)
	if err != nil {
		logger.Error("account read failed", logger.Pair("symbol", d.Symbol), logger.Pair("error", err.Error()))
		return ExecutionResult{Success: false, Message: MsgStateError, Symbol: d.Symbol}
	}
	pos, err := env.Position(ctx, d.Symbol)
	if err != nil {
		logger.Error("position read failed", logger.Pair("symbol", d.Symbol), logger.Pair("error", err.Error()))
		return ExecutionResult{Success: false, Message: MsgStateError, Symbol: d.Symbol}
	}
	// Field-level copy: the router must not be able to mutate state the
	// P&L computation still needs.
	posCopy := pos

	d = env.Gate().Apply(acct, pos, d)
	if d.Intent == decision.IntentNone {
		logger.Info("decision rejected by risk gate",
			logger.Pair("symbol", d.Symbol), logger.Pair("reason", d.Reason))
		return ExecutionResult{Success: false, Message: MsgRiskRejected, Symbol: d.Symbol}
	}

	if d.IsOpen() {
		d = c.sizer.Size(acct.Equity, d)

		if verdict := c.guard.CanOpen(); !verdict.Allowed {
			c.bus.Publish(events.EventRiskBlocked, events.ExecutionNote{
				Symbol:  d.Symbol,
				Intent:  string(d.Intent),
				Message: MsgGlobalGuardBlock,
				Detail:  verdict.Reason,
			})
			logger.Warn("decision blocked by global risk gate",
				logger.Pair("symbol", d.Symbol), logger.Pair("reason", verdict.Reason))
			return ExecutionResult{Success: false, Message: MsgGlobalGuardBlock, Symbol: d.Symbol}
		}
	}

	res := env.Router().Route(ctx, d)

	if res.Success && d.IsClose() {
		if env.Mode().Simulated() {
			c.recordSimClose(ctx, d, posCopy, acct, env)
		} else {
			c.bus.Publish(events.EventExecutionPlaced, events.ExecutionNote{
				Symbol:  d.Symbol,
				Intent:  string(d.Intent),
				Message: MsgPlaced,
				Detail:  "order placed, awaiting real fill",
			})
		}
	}

	note := events.ExecutionNote{
		Symbol:  res.Symbol,
		Intent:  string(d.Intent),
		Message: res.Message,
		Detail:  d.Reason,
	}
	if res.Success {
		c.bus.Publish(events.EventExecutionPlaced, note)
	} else {
		c.bus.Publish(events.EventExecutionError, note)
	}
	return res
}

// recordSimClose synthesizes the trade record for a simulated close:
// deterministic slippage on the exit, taker fee folded into realized P&L,
// then a sanity clamp before the record is appended.
func (c *Coordinator) recordSimClose(ctx context.Context, d decision.Decision, pos account.Position, acct account.Snapshot, env Environment) {
	exit := d.LastPrice
	if exit <= 0 {
		exit = pos.MarkPrice
	}
	dir := pos.Side.Direction()

	effectiveExit := exit + dir*c.econ.SlippageTicks*c.econ.TickSize
	rawPnl := (effectiveExit - pos.EntryPrice) * pos.Quantity * dir
	fee := effectiveExit * pos.Quantity * c.econ.TakerFeeRate
	pnl := rawPnl + fee

	if math.Abs(pnl) > c.maxAbsPnl {
		clamped := math.Copysign(c.maxAbsPnl, pnl)
		logger.Warn("realized pnl outside sane bounds, clamping",
			logger.Pair("symbol", d.Symbol),
			logger.Pair("pnl", pnl), logger.Pair("clamped", clamped))
		pnl = clamped
	}

	closeTime := acct.Timestamp
	if closeTime.IsZero() {
		closeTime = c.now()
	}

	rec := ledger.TradeRecord{
		ID:          uuid.NewString(),
		OpenTime:    pos.EntryTime,
		CloseTime:   closeTime,
		Symbol:      d.Symbol,
		Side:        string(pos.Side),
		Quantity:    pos.Quantity,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   effectiveExit,
		RealizedPnl: pnl,
		Fee:         fee,
		StrategyTag: d.StrategyTag,
		Mode:        string(env.Mode()),
	}

	logger.Info("trade closed",
		logger.Pair("symbol", rec.Symbol), logger.Pair("side", rec.Side),
		logger.Pair("qty", rec.Quantity), logger.Pair("entry", rec.EntryPrice),
		logger.Pair("exit", rec.ExitPrice), logger.Pair("pnl", rec.RealizedPnl))

	if err := env.Ledger().AddTrade(ctx, rec); err != nil {
		logger.Error("ledger write failed", logger.Pair("error", err.Error()))
	}
	if sink, ok := env.(pnlSink); ok {
		sink.ApplyRealizedPnl(pnl)
	}
	c.guard.OnTradeClosed(rec.CloseTime, rec.RealizedPnl)
	c.bus.Publish(events.EventTradeClosed, rec)
}
