package executor

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"exec-core/internal/events"
	"exec-core/internal/exstate"
	"exec-core/internal/ledger"
	"exec-core/internal/risk"
	"exec-core/pkg/logger"
)

// FillRecorder turns real exchange fills into ledger records. In live and
// testnet modes the close order is fire and forget; the authoritative trade
// outcome arrives later on the user data stream, and this is where it lands.
type FillRecorder struct {
	bus   *events.Bus
	state *exstate.Service
	store ledger.Store
	guard *risk.Runtime
	mode  Mode
}

// NewFillRecorder wires a recorder over the event bus and exchange state.
func NewFillRecorder(bus *events.Bus, state *exstate.Service, store ledger.Store, guard *risk.Runtime, mode Mode) *FillRecorder {
	return &FillRecorder{bus: bus, state: state, store: store, guard: guard, mode: mode}
}

// Run consumes fill events until the context is cancelled. Entry-side fills
// carry zero realized P&L and are skipped; only closing fills produce trade
// records and feed the global risk counters.
func (r *FillRecorder) Run(ctx context.Context) {
	ch, unsub := r.bus.Subscribe(events.EventOrderFill, 64)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			fill, valid := ev.(exstate.Fill)
			if !valid {
				continue
			}
			r.record(ctx, fill)
		}
	}
}

func (r *FillRecorder) record(ctx context.Context, fill exstate.Fill) {
	if fill.RealizedPnl == 0 {
		return
	}

	// The position may already be gone from the cache by the time the fill
	// arrives; entry details are best effort.
	pos := r.state.OpenPosition(fill.Symbol)
	openTime := pos.EntryTime
	if openTime.IsZero() {
		openTime = fill.Time
	}

	pnl := fill.RealizedPnl - fill.Commission
	rec := ledger.TradeRecord{
		ID:              uuid.NewString(),
		OpenTime:        openTime,
		CloseTime:       fill.Time,
		Symbol:          fill.Symbol,
		Side:            closedSide(fill),
		Quantity:        fill.Qty,
		EntryPrice:      pos.EntryPrice,
		ExitPrice:       fill.Price,
		RealizedPnl:     pnl,
		Fee:             -fill.Commission,
		Mode:            string(r.mode),
		ExchangeOrderID: strconv.FormatInt(fill.OrderID, 10),
		ExchangeTradeID: strconv.FormatInt(fill.TradeID, 10),
	}

	logger.Info("exchange trade closed",
		logger.Pair("symbol", rec.Symbol), logger.Pair("side", rec.Side),
		logger.Pair("qty", rec.Quantity), logger.Pair("exit", rec.ExitPrice),
		logger.Pair("pnl", rec.RealizedPnl))

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.store.AddTrade(writeCtx, rec); err != nil {
		logger.Error("ledger write failed", logger.Pair("error", err.Error()))
	}
	r.guard.OnTradeClosed(rec.CloseTime, rec.RealizedPnl)
	r.bus.Publish(events.EventTradeClosed, rec)
}

// closedSide derives the direction of the position that was just reduced: a
// SELL fill closes a long, a BUY fill closes a short.
func closedSide(fill exstate.Fill) string {
	if fill.Side == "SELL" {
		return "LONG"
	}
	return "SHORT"
}
