package executor

import (
	"context"
	"testing"
	"time"

	"exec-core/internal/events"
	"exec-core/internal/exstate"
	"exec-core/internal/ledger"
	"exec-core/internal/risk"
	"exec-core/pkg/binance"
)

type stubRest struct{}

func (stubRest) AccountInfo(context.Context) (*binance.AccountInfo, error) { return nil, nil }
func (stubRest) PositionRisk(context.Context, string) ([]binance.PositionRisk, error) {
	return nil, nil
}
func (stubRest) OpenOrders(context.Context, string) ([]binance.OpenOrder, error) { return nil, nil }
func (stubRest) Income(context.Context, string, int64, int) ([]binance.Income, error) {
	return nil, nil
}
func (stubRest) CreateListenKey(context.Context) (string, error)  { return "", nil }
func (stubRest) KeepAliveListenKey(context.Context, string) error { return nil }
func (stubRest) StreamHost() string                               { return "" }

func newFillRecorder(t *testing.T) (*FillRecorder, *ledger.MemoryStore, *risk.Runtime) {
	t.Helper()
	bus := events.NewBus()
	state := exstate.New(stubRest{}, bus, time.Minute, 3)
	store := ledger.NewMemory()
	guard := risk.NewRuntime(risk.Settings{MaxTradesPerDay: 20})
	return NewFillRecorder(bus, state, store, guard, ModeLive), store, guard
}

func TestFillRecorderRecordsClosingFill(t *testing.T) {
	r, store, guard := newFillRecorder(t)

	fillTime := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	r.record(context.Background(), exstate.Fill{
		Symbol:      "BTCUSDT",
		Side:        "SELL",
		Price:       101.5,
		Qty:         0.5,
		Commission:  0.02,
		RealizedPnl: 1.25,
		OrderID:     42,
		TradeID:     7,
		Time:        fillTime,
	})

	trades, err := store.GetAllTrades(context.Background())
	if err != nil {
		t.Fatalf("GetAllTrades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	rec := trades[0]
	if rec.Side != "LONG" || rec.ExitPrice != 101.5 {
		t.Fatalf("record = %+v", rec)
	}
	if rec.RealizedPnl != 1.25-0.02 {
		t.Fatalf("pnl = %v", rec.RealizedPnl)
	}
	if rec.ExchangeOrderID != "42" || rec.ExchangeTradeID != "7" {
		t.Fatalf("ids = %s/%s", rec.ExchangeOrderID, rec.ExchangeTradeID)
	}
	if st := guard.State(); st.TradesToday != 1 {
		t.Fatalf("guard trades = %d", st.TradesToday)
	}
}

func TestFillRecorderSkipsEntryFills(t *testing.T) {
	r, store, guard := newFillRecorder(t)

	r.record(context.Background(), exstate.Fill{
		Symbol:      "BTCUSDT",
		Side:        "BUY",
		Price:       100,
		Qty:         0.5,
		RealizedPnl: 0,
		Time:        time.Now(),
	})

	trades, _ := store.GetAllTrades(context.Background())
	if len(trades) != 0 {
		t.Fatalf("entry fills must not be recorded, got %d", len(trades))
	}
	if st := guard.State(); st.TradesToday != 0 {
		t.Fatalf("guard trades = %d", st.TradesToday)
	}
}

func TestFillRecorderBuyCloseIsShort(t *testing.T) {
	r, store, _ := newFillRecorder(t)
	r.record(context.Background(), exstate.Fill{
		Symbol:      "BTCUSDT",
		Side:        "BUY",
		Price:       99,
		Qty:         1,
		RealizedPnl: 1.0,
		Time:        time.Now(),
	})
	trades, _ := store.GetAllTrades(context.Background())
	if len(trades) != 1 || trades[0].Side != "SHORT" {
		t.Fatalf("trades = %+v", trades)
	}
}
