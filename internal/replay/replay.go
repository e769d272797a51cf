package replay

import (
	"context"
	"time"

	"exec-core/internal/decision"
	"exec-core/internal/env"
	"exec-core/internal/executor"
	"exec-core/internal/strategy"
	"exec-core/pkg/binance"
	"exec-core/pkg/logger"
)

// Summary reports the outcome of one backtest run.
type Summary struct {
	Symbol      string
	Bars        int
	Decisions   int
	Executions  int
	StartEquity float64
	FinalEquity float64
}

// Runner replays historical candles bar by bar through the full decision
// pipeline against a simulated environment. The simulator clock is pinned to
// each bar's close time so records carry historical timestamps.
type Runner struct {
	coord *executor.Coordinator
	env   *env.Sim
	strat strategy.Strategy
}

// New builds a replay runner.
func New(coord *executor.Coordinator, simEnv *env.Sim, strat strategy.Strategy) *Runner {
	return &Runner{coord: coord, env: simEnv, strat: strat}
}

// Run walks the candles oldest to newest, growing the visible window one bar
// at a time. Per-bar failures are logged and the replay continues.
func (r *Runner) Run(ctx context.Context, symbol string, candles []binance.Kline) (Summary, error) {
	sum := Summary{
		Symbol:      symbol,
		StartEquity: r.env.Simulator().Account().Equity,
	}

	min := r.strat.MinCandles()
	for i := range candles {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		bar := candles[i]
		barTime := time.UnixMilli(bar.CloseTime)
		r.env.Simulator().SetClock(func() time.Time { return barTime })
		r.env.Simulator().SetMarkPrice(symbol, bar.Close)
		sum.Bars++

		if i+1 < min {
			continue
		}

		pos := r.env.Simulator().Position(symbol)
		d := r.strat.OnCandles(symbol, candles[:i+1], pos)
		if d.Intent == decision.IntentNone {
			continue
		}
		sum.Decisions++

		res := r.coord.Execute(ctx, d, r.env)
		if res.Success {
			sum.Executions++
		}
	}

	sum.FinalEquity = r.env.Simulator().Account().Equity
	logger.Info("replay finished",
		logger.Pair("symbol", symbol), logger.Pair("bars", sum.Bars),
		logger.Pair("decisions", sum.Decisions), logger.Pair("executions", sum.Executions),
		logger.Pair("start_equity", sum.StartEquity), logger.Pair("final_equity", sum.FinalEquity))
	return sum, nil
}
