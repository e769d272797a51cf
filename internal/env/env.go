package env

import (
	"context"
	"fmt"
	"time"

	"exec-core/internal/account"
	"exec-core/internal/events"
	"exec-core/internal/executor"
	"exec-core/internal/exstate"
	"exec-core/internal/ledger"
	"exec-core/internal/risk"
	"exec-core/internal/sim"
	"exec-core/pkg/binance"
	"exec-core/pkg/config"
)

// Environment extends the executor contract with candle access and lifecycle
// hooks so main can drive mode-specific machinery uniformly.
type Environment interface {
	executor.Environment
	RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]binance.Kline, error)
	Start(ctx context.Context) error
	Stop()
}

// Sim backs backtest and dry-run modes with a local simulator. Candles still
// come from the real public endpoint.
type Sim struct {
	mode   executor.Mode
	sim    *sim.Simulator
	feed   *binance.Client
	gate   *risk.Gate
	router executor.Router
	store  ledger.Store
}

// NewSim builds a simulated environment over a fresh simulator.
func NewSim(mode executor.Mode, simulator *sim.Simulator, store ledger.Store) *Sim {
	return &Sim{
		mode:   mode,
		sim:    simulator,
		feed:   binance.NewClient(binance.Config{}),
		gate:   risk.NewGate(nil),
		router: executor.NewSimRouter(simulator),
		store:  store,
	}
}

func (e *Sim) Mode() executor.Mode { return e.mode }

func (e *Sim) Account(context.Context) (account.Snapshot, error) {
	return e.sim.Account(), nil
}

func (e *Sim) Position(_ context.Context, symbol string) (account.Position, error) {
	return e.sim.Position(symbol), nil
}

func (e *Sim) Gate() *risk.Gate        { return e.gate }
func (e *Sim) Router() executor.Router { return e.router }
func (e *Sim) Ledger() ledger.Store    { return e.store }

func (e *Sim) RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]binance.Kline, error) {
	return e.feed.Klines(ctx, symbol, interval, limit)
}

// Simulator exposes the underlying simulator for the replay loop.
func (e *Sim) Simulator() *sim.Simulator { return e.sim }

// ApplyRealizedPnl folds a round-trip result back into simulated equity.
func (e *Sim) ApplyRealizedPnl(delta float64) { e.sim.ApplyRealizedPnl(delta) }

func (e *Sim) Start(context.Context) error { return nil }
func (e *Sim) Stop()                       {}

// Live backs testnet and live modes with the real exchange. Account and
// position reads come from the exchange state service cache, never from ad
// hoc REST calls on the decision path.
type Live struct {
	mode   executor.Mode
	client *binance.Client
	state  *exstate.Service
	gate   *risk.Gate
	router executor.Router
	store  ledger.Store
}

// NewLive builds a live environment; the state service is not started yet.
func NewLive(mode executor.Mode, client *binance.Client, state *exstate.Service, store ledger.Store) *Live {
	return &Live{
		mode:   mode,
		client: client,
		state:  state,
		gate:   risk.NewGate(state),
		router: executor.NewExchangeRouter(client, state),
		store:  store,
	}
}

func (e *Live) Mode() executor.Mode { return e.mode }

func (e *Live) Account(context.Context) (account.Snapshot, error) {
	snap := e.state.AccountSnapshot()
	if snap.Timestamp.IsZero() {
		return snap, fmt.Errorf("env: no account snapshot yet")
	}
	return snap, nil
}

func (e *Live) Position(_ context.Context, symbol string) (account.Position, error) {
	return e.state.OpenPosition(symbol), nil
}

func (e *Live) Gate() *risk.Gate        { return e.gate }
func (e *Live) Router() executor.Router { return e.router }
func (e *Live) Ledger() ledger.Store    { return e.store }

func (e *Live) RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]binance.Kline, error) {
	return e.client.Klines(ctx, symbol, interval, limit)
}

// State exposes the exchange state service (status API, fill recorder).
func (e *Live) State() *exstate.Service { return e.state }

func (e *Live) Start(ctx context.Context) error {
	if err := e.client.SyncTime(); err != nil {
		return fmt.Errorf("env: time sync: %w", err)
	}
	return e.state.Start(ctx)
}

func (e *Live) Stop() { e.state.Stop() }

// Build assembles the environment matching the configured mode.
func Build(cfg *config.Config, bus *events.Bus, store ledger.Store) (Environment, error) {
	mode, err := executor.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	if mode.Simulated() {
		return NewSim(mode, sim.New(cfg.InitialBalance), store), nil
	}

	client := binance.NewClient(binance.Config{
		APIKey:    cfg.BinanceAPIKey,
		APISecret: cfg.BinanceAPISecret,
		Testnet:   mode == executor.ModeTestnet,
	})
	state := exstate.New(client, bus,
		time.Duration(cfg.ReconcileIntervalSec)*time.Second, cfg.StreamMaxReconnects)
	return NewLive(mode, client, state, store), nil
}
