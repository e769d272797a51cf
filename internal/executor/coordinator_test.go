package executor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"exec-core/internal/account"
	"exec-core/internal/decision"
	"exec-core/internal/events"
	"exec-core/internal/ledger"
	"exec-core/internal/risk"
	"exec-core/internal/sim"
)

type testEnv struct {
	mode   Mode
	sim    *sim.Simulator
	gate   *risk.Gate
	router Router
	store  ledger.Store

	acctErr error
}

func (e *testEnv) Mode() Mode { return e.mode }

func (e *testEnv) Account(context.Context) (account.Snapshot, error) {
	if e.acctErr != nil {
		return account.Snapshot{}, e.acctErr
	}
	return e.sim.Account(), nil
}

func (e *testEnv) Position(_ context.Context, symbol string) (account.Position, error) {
	return e.sim.Position(symbol), nil
}

func (e *testEnv) Gate() *risk.Gate           { return e.gate }
func (e *testEnv) Router() Router             { return e.router }
func (e *testEnv) Ledger() ledger.Store       { return e.store }
func (e *testEnv) ApplyRealizedPnl(d float64) { e.sim.ApplyRealizedPnl(d) }

func newTestEnv(mode Mode, balance float64) *testEnv {
	s := sim.New(balance)
	return &testEnv{
		mode:   mode,
		sim:    s,
		gate:   risk.NewGate(nil),
		router: NewSimRouter(s),
		store:  ledger.NewMemory(),
	}
}

func newTestCoordinator(t *testing.T, settings risk.Settings, econ SimEconomics) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(risk.NewRuntime(settings), risk.NewSizer(settings), events.NewBus(), econ, settings.MaxAbsPnl)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	return c
}

func defaultSettings() risk.Settings {
	return risk.Settings{
		RiskPerTradePct:  0.01,
		QtyStep:          0.001,
		MaxQty:           10,
		MaxNotional:      100000,
		QtyDecimals:      3,
		NotionalDecimals: 2,
		MaxTradesPerDay:  20,
	}
}

func TestCoordinatorRejectsNoneDecision(t *testing.T) {
	c := newTestCoordinator(t, defaultSettings(), SimEconomics{})
	env := newTestEnv(ModeDryRun, 10000)
	res := c.Execute(context.Background(), decision.None("BTCUSDT", "no signal"), env)
	if res.Success || res.Message != MsgNoDecision {
		t.Fatalf("got %+v", res)
	}
}

func TestCoordinatorStateError(t *testing.T) {
	c := newTestCoordinator(t, defaultSettings(), SimEconomics{})
	env := newTestEnv(ModeDryRun, 10000)
	env.acctErr = errors.New("boom")
	res := c.Execute(context.Background(), decision.Decision{
		Intent: decision.IntentOpenLong, Symbol: "BTCUSDT", LastPrice: 100,
	}, env)
	if res.Success || res.Message != MsgStateError {
		t.Fatalf("got %+v", res)
	}
}

func TestCoordinatorOpenThenSecondOpenRejected(t *testing.T) {
	c := newTestCoordinator(t, defaultSettings(), SimEconomics{})
	env := newTestEnv(ModeDryRun, 10000)
	open := decision.Decision{
		Intent: decision.IntentOpenLong, Symbol: "BTCUSDT",
		LastPrice: 100, StopLossPrice: 99,
	}

	res := c.Execute(context.Background(), open, env)
	if !res.Success || res.Message != MsgSimFilled {
		t.Fatalf("first open: %+v", res)
	}
	if pos := env.sim.Position("BTCUSDT"); pos.IsFlat() {
		t.Fatal("expected open position after fill")
	}

	res = c.Execute(context.Background(), open, env)
	if res.Success || res.Message != MsgRiskRejected {
		t.Fatalf("second open should be risk rejected: %+v", res)
	}
}

func TestCoordinatorGlobalGuardBlocks(t *testing.T) {
	c := newTestCoordinator(t, defaultSettings(), SimEconomics{})
	env := newTestEnv(ModeDryRun, 10000)
	c.Guard().Freeze("kill switch test")

	bus := c.bus
	blocked, unsub := bus.Subscribe(events.EventRiskBlocked, 1)
	defer unsub()

	res := c.Execute(context.Background(), decision.Decision{
		Intent: decision.IntentOpenLong, Symbol: "BTCUSDT",
		LastPrice: 100, StopLossPrice: 99,
	}, env)
	if res.Success || res.Message != MsgGlobalGuardBlock {
		t.Fatalf("got %+v", res)
	}
	select {
	case <-blocked:
	default:
		t.Fatal("expected a risk blocked event")
	}
}

func TestCoordinatorSimCloseEconomics(t *testing.T) {
	settings := defaultSettings()
	settings.MaxAbsPnl = 1e6
	econ := SimEconomics{SlippageTicks: 0.5, TickSize: 0.01, TakerFeeRate: -0.00036}
	c := newTestCoordinator(t, settings, econ)
	env := newTestEnv(ModeDryRun, 10000)

	if err := env.sim.Open("BTCUSDT", account.SideLong, 1, 100); err != nil {
		t.Fatalf("seed position: %v", err)
	}

	res := c.Execute(context.Background(), decision.Decision{
		Intent: decision.IntentClose, Symbol: "BTCUSDT", LastPrice: 101,
	}, env)
	if !res.Success {
		t.Fatalf("close failed: %+v", res)
	}

	trades, err := env.store.GetAllTrades(context.Background())
	if err != nil {
		t.Fatalf("GetAllTrades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	rec := trades[0]

	wantExit := 101.005
	wantFee := wantExit * 1 * -0.00036
	wantPnl := 1.005 + wantFee
	if math.Abs(rec.ExitPrice-wantExit) > 1e-9 {
		t.Fatalf("exit = %v, want %v", rec.ExitPrice, wantExit)
	}
	if math.Abs(rec.RealizedPnl-wantPnl) > 1e-9 {
		t.Fatalf("pnl = %v, want %v", rec.RealizedPnl, wantPnl)
	}

	// Realized P&L folds back into simulated equity.
	eq := env.sim.Account().Equity
	if math.Abs(eq-(10000+wantPnl)) > 1e-9 {
		t.Fatalf("equity = %v, want %v", eq, 10000+wantPnl)
	}
	if st := c.Guard().State(); st.TradesToday != 1 {
		t.Fatalf("guard should count the close, got %d", st.TradesToday)
	}
}

func TestCoordinatorPnlClamp(t *testing.T) {
	settings := defaultSettings()
	settings.MaxAbsPnl = 10
	c := newTestCoordinator(t, settings, SimEconomics{})
	env := newTestEnv(ModeDryRun, 10000)

	if err := env.sim.Open("BTCUSDT", account.SideLong, 1, 100); err != nil {
		t.Fatalf("seed position: %v", err)
	}
	res := c.Execute(context.Background(), decision.Decision{
		Intent: decision.IntentClose, Symbol: "BTCUSDT", LastPrice: 5000,
	}, env)
	if !res.Success {
		t.Fatalf("close failed: %+v", res)
	}
	trades, _ := env.store.GetAllTrades(context.Background())
	if len(trades) != 1 || trades[0].RealizedPnl != 10 {
		t.Fatalf("expected clamped pnl 10, got %+v", trades)
	}
}

type ackRouter struct{}

func (ackRouter) Route(context.Context, decision.Decision) ExecutionResult {
	return ExecutionResult{Success: true, Message: MsgPlaced, Symbol: "BTCUSDT"}
}

func TestCoordinatorLiveCloseDefersToFills(t *testing.T) {
	c := newTestCoordinator(t, defaultSettings(), SimEconomics{})
	env := newTestEnv(ModeTestnet, 10000)
	env.router = ackRouter{}

	if err := env.sim.Open("BTCUSDT", account.SideLong, 1, 100); err != nil {
		t.Fatalf("seed position: %v", err)
	}
	res := c.Execute(context.Background(), decision.Decision{
		Intent: decision.IntentClose, Symbol: "BTCUSDT", LastPrice: 101,
	}, env)
	if !res.Success || res.Message != MsgPlaced {
		t.Fatalf("got %+v", res)
	}

	// Live closes are fire and forget: no synthesized record, no counters.
	trades, _ := env.store.GetAllTrades(context.Background())
	if len(trades) != 0 {
		t.Fatalf("live close must not synthesize a trade record, got %d", len(trades))
	}
	if st := c.Guard().State(); st.TradesToday != 0 {
		t.Fatalf("guard must wait for the real fill, got %d trades", st.TradesToday)
	}
}

func TestCoordinatorBacktestUsesBarClock(t *testing.T) {
	c := newTestCoordinator(t, defaultSettings(), SimEconomics{})
	env := newTestEnv(ModeBacktest, 10000)
	barTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env.sim.SetClock(func() time.Time { return barTime })

	if err := env.sim.Open("BTCUSDT", account.SideLong, 1, 100); err != nil {
		t.Fatalf("seed position: %v", err)
	}
	res := c.Execute(context.Background(), decision.Decision{
		Intent: decision.IntentClose, Symbol: "BTCUSDT", LastPrice: 101,
	}, env)
	if !res.Success {
		t.Fatalf("close failed: %+v", res)
	}
	trades, _ := env.store.GetAllTrades(context.Background())
	if len(trades) != 1 || !trades[0].CloseTime.Equal(barTime) {
		t.Fatalf("close time should be the pinned bar time, got %+v", trades)
	}
}
