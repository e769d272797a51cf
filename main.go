package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exec-core/internal/account"
	"exec-core/internal/api"
	"exec-core/internal/decision"
	"exec-core/internal/env"
	"exec-core/internal/events"
	"exec-core/internal/executor"
	"exec-core/internal/exstate"
	"exec-core/internal/ledger"
	"exec-core/internal/replay"
	"exec-core/internal/risk"
	"exec-core/internal/strategy"
	"exec-core/pkg/config"
	"exec-core/pkg/logger"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger.Init(logger.Options{
		Level:    cfg.LogLevel,
		FilePath: cfg.LogFile,
	})
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("fatal", logger.Pair("error", err.Error()))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	mode, err := executor.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	logger.Info("starting execution core",
		logger.Pair("version", version), logger.Pair("mode", string(mode)),
		logger.Pair("symbols", cfg.Symbols), logger.Pair("strategy", cfg.Strategy))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store ledger.Store
	if mode == executor.ModeBacktest {
		store = ledger.NewMemory()
	} else {
		store, err = ledger.NewSQLite(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
	}
	defer store.Close()

	bus := events.NewBus()
	environment, err := env.Build(cfg, bus, store)
	if err != nil {
		return err
	}

	settings := risk.Settings(cfg.Risk)
	guard := risk.NewRuntime(settings)
	sizer := risk.NewSizer(settings)
	coord, err := executor.NewCoordinator(guard, sizer, bus, executor.SimEconomics{
		SlippageTicks: cfg.SlippageTicks,
		TickSize:      cfg.TickSize,
		TakerFeeRate:  cfg.TakerFeeRate,
	}, cfg.Risk.MaxAbsPnl)
	if err != nil {
		return err
	}

	strat, err := strategy.New(cfg.Strategy)
	if err != nil {
		return err
	}

	if err := environment.Start(ctx); err != nil {
		return err
	}
	defer environment.Stop()

	if mode == executor.ModeBacktest {
		return runBacktest(ctx, cfg, coord, environment.(*env.Sim), strat)
	}

	if e, ok := environment.(*env.Live); ok {
		go executor.NewFillRecorder(bus, e.State(), store, guard, mode).Run(ctx)
	}

	srv := api.NewServer(guard, store, liveState(environment), positionsOf(environment), api.Meta{
		Mode:     string(mode),
		Symbols:  cfg.Symbols,
		Strategy: cfg.Strategy,
		Version:  version,
	})
	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: srv.Handler()}
	go func() {
		logger.Info("http api listening", logger.Pair("port", cfg.Port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", logger.Pair("error", err.Error()))
		}
	}()

	go tradeLoop(ctx, cfg, coord, environment, strat)

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", logger.Pair("error", err.Error()))
	}
	return nil
}

// tradeLoop polls closed candles at the configured interval and runs each
// symbol's decision through the pipeline.
func tradeLoop(ctx context.Context, cfg *config.Config, coord *executor.Coordinator, environment env.Environment, strat strategy.Strategy) {
	interval := intervalDuration(cfg.Interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, symbol := range cfg.Symbols {
				evalSymbol(ctx, coord, environment, strat, symbol, cfg.Interval)
			}
		}
	}
}

func evalSymbol(ctx context.Context, coord *executor.Coordinator, environment env.Environment, strat strategy.Strategy, symbol, interval string) {
	candles, err := environment.RecentCandles(ctx, symbol, interval, strat.MinCandles()+50)
	if err != nil {
		logger.Warn("candle fetch failed", logger.Pair("symbol", symbol), logger.Pair("error", err.Error()))
		return
	}
	if len(candles) == 0 {
		return
	}

	last := candles[len(candles)-1]
	if simEnv, ok := environment.(*env.Sim); ok {
		simEnv.Simulator().SetMarkPrice(symbol, last.Close)
	}

	pos, err := environment.Position(ctx, symbol)
	if err != nil {
		logger.Warn("position read failed", logger.Pair("symbol", symbol), logger.Pair("error", err.Error()))
		return
	}
	d := strat.OnCandles(symbol, candles, pos)
	if d.Intent == decision.IntentNone {
		return
	}
	coord.Execute(ctx, d, environment)
}

func runBacktest(ctx context.Context, cfg *config.Config, coord *executor.Coordinator, simEnv *env.Sim, strat strategy.Strategy) error {
	for _, symbol := range cfg.Symbols {
		candles, err := simEnv.RecentCandles(ctx, symbol, cfg.Interval, cfg.BacktestCandles)
		if err != nil {
			return fmt.Errorf("fetch candles for %s: %w", symbol, err)
		}
		sum, err := replay.New(coord, simEnv, strat).Run(ctx, symbol, candles)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d bars, %d trades executed, equity %.2f -> %.2f\n",
			sum.Symbol, sum.Bars, sum.Executions, sum.StartEquity, sum.FinalEquity)
	}
	return nil
}

func liveState(environment env.Environment) *exstate.Service {
	if e, ok := environment.(*env.Live); ok {
		return e.State()
	}
	return nil
}

func positionsOf(environment env.Environment) func() []account.Position {
	switch e := environment.(type) {
	case *env.Live:
		return e.State().Positions
	case *env.Sim:
		return e.Simulator().Positions
	}
	return func() []account.Position { return nil }
}

func intervalDuration(s string) time.Duration {
	switch s {
	case "1m":
		return time.Minute
	case "3m":
		return 3 * time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	}
	return time.Minute
}
