package executor

import (
	"context"

	"github.com/google/uuid"

	"exec-core/internal/account"
	"exec-core/internal/decision"
	"exec-core/internal/exstate"
	"exec-core/internal/sim"
	"exec-core/pkg/binance"
	"exec-core/pkg/logger"
)

// Router translates a sized decision into concrete open/close calls against
// one execution target. Low-level failures are mapped into the uniform
// result, never propagated as errors, so an unattended loop survives them.
type Router interface {
	Route(ctx context.Context, d decision.Decision) ExecutionResult
}

// SimRouter executes against the local simulator.
type SimRouter struct {
	sim *sim.Simulator
}

// NewSimRouter builds a router over a simulator.
func NewSimRouter(s *sim.Simulator) *SimRouter {
	return &SimRouter{sim: s}
}

func (r *SimRouter) Route(_ context.Context, d decision.Decision) ExecutionResult {
	switch {
	case d.IsOpen():
		side := account.SideLong
		if d.Intent == decision.IntentOpenShort {
			side = account.SideShort
		}
		if err := r.sim.Open(d.Symbol, side, d.Quantity, d.ResolvedPrice()); err != nil {
			logger.Warn("sim open rejected", logger.Pair("symbol", d.Symbol), logger.Pair("error", err.Error()))
			return ExecutionResult{Success: false, Message: MsgOrderError, Symbol: d.Symbol}
		}
		return ExecutionResult{Success: true, Message: MsgSimFilled, Symbol: d.Symbol}
	case d.IsClose():
		if _, err := r.sim.Close(d.Symbol); err != nil {
			logger.Warn("sim close rejected", logger.Pair("symbol", d.Symbol), logger.Pair("error", err.Error()))
			return ExecutionResult{Success: false, Message: MsgOrderError, Symbol: d.Symbol}
		}
		return ExecutionResult{Success: true, Message: MsgSimFilled, Symbol: d.Symbol}
	}
	return ExecutionResult{Success: false, Message: MsgNoDecision, Symbol: d.Symbol}
}

// ExchangeRouter executes against the real exchange via signed REST calls.
// Position quantity for closes is taken from the exchange state service, not
// from the decision, so a stale strategy view cannot oversize the exit.
type ExchangeRouter struct {
	client *binance.Client
	state  *exstate.Service
}

// NewExchangeRouter builds a router over a futures client and state service.
func NewExchangeRouter(client *binance.Client, state *exstate.Service) *ExchangeRouter {
	return &ExchangeRouter{client: client, state: state}
}

func (r *ExchangeRouter) Route(ctx context.Context, d decision.Decision) ExecutionResult {
	switch {
	case d.IsOpen():
		return r.open(ctx, d)
	case d.IsClose():
		return r.close(ctx, d)
	}
	return ExecutionResult{Success: false, Message: MsgNoDecision, Symbol: d.Symbol}
}

func (r *ExchangeRouter) open(ctx context.Context, d decision.Decision) ExecutionResult {
	side := binance.SideBuy
	protectSide := binance.SideSell
	if d.Intent == decision.IntentOpenShort {
		side = binance.SideSell
		protectSide = binance.SideBuy
	}

	ack, err := r.client.SubmitOrder(ctx, binance.OrderRequest{
		Symbol:   d.Symbol,
		Side:     side,
		Type:     "MARKET",
		Qty:      d.Quantity,
		ClientID: "xc-" + uuid.NewString(),
	})
	if err != nil {
		logger.Error("exchange open failed", logger.Pair("symbol", d.Symbol), logger.Pair("error", err.Error()))
		return ExecutionResult{Success: false, Message: MsgOrderError, Symbol: d.Symbol}
	}
	logger.Info("exchange order placed",
		logger.Pair("symbol", d.Symbol), logger.Pair("side", string(side)),
		logger.Pair("qty", d.Quantity), logger.Pair("order_id", ack.OrderID))

	// Protective orders are best effort; the position is already on.
	if d.StopLossPrice > 0 {
		if _, err := r.client.SubmitOrder(ctx, binance.OrderRequest{
			Symbol:     d.Symbol,
			Side:       protectSide,
			Type:       "STOP_MARKET",
			Qty:        d.Quantity,
			StopPrice:  d.StopLossPrice,
			ReduceOnly: true,
		}); err != nil {
			logger.Warn("stop order failed", logger.Pair("symbol", d.Symbol), logger.Pair("error", err.Error()))
		}
	}
	if d.TakeProfitPrice > 0 {
		if _, err := r.client.SubmitOrder(ctx, binance.OrderRequest{
			Symbol:     d.Symbol,
			Side:       protectSide,
			Type:       "TAKE_PROFIT_MARKET",
			Qty:        d.Quantity,
			StopPrice:  d.TakeProfitPrice,
			ReduceOnly: true,
		}); err != nil {
			logger.Warn("take profit order failed", logger.Pair("symbol", d.Symbol), logger.Pair("error", err.Error()))
		}
	}
	return ExecutionResult{Success: true, Message: MsgPlaced, Symbol: d.Symbol}
}

func (r *ExchangeRouter) close(ctx context.Context, d decision.Decision) ExecutionResult {
	pos := r.state.OpenPosition(d.Symbol)
	if pos.IsFlat() {
		logger.Warn("close requested but exchange shows flat", logger.Pair("symbol", d.Symbol))
		return ExecutionResult{Success: false, Message: MsgOrderError, Symbol: d.Symbol}
	}

	side := binance.SideSell
	if pos.Side == account.SideShort {
		side = binance.SideBuy
	}
	ack, err := r.client.SubmitOrder(ctx, binance.OrderRequest{
		Symbol:     d.Symbol,
		Side:       side,
		Type:       "MARKET",
		Qty:        pos.Quantity,
		ReduceOnly: true,
		ClientID:   "xc-" + uuid.NewString(),
	})
	if err != nil {
		logger.Error("exchange close failed", logger.Pair("symbol", d.Symbol), logger.Pair("error", err.Error()))
		return ExecutionResult{Success: false, Message: MsgOrderError, Symbol: d.Symbol}
	}

	// Clear leftover protective orders for the symbol.
	if err := r.client.CancelAllOpenOrders(ctx, d.Symbol); err != nil {
		logger.Warn("cancel open orders failed", logger.Pair("symbol", d.Symbol), logger.Pair("error", err.Error()))
	}

	logger.Info("exchange close placed",
		logger.Pair("symbol", d.Symbol), logger.Pair("qty", pos.Quantity),
		logger.Pair("order_id", ack.OrderID))
	return ExecutionResult{Success: true, Message: MsgPlaced, Symbol: d.Symbol}
}
