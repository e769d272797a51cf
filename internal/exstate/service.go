package exstate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"exec-core/internal/account"
	"exec-core/internal/events"
	"exec-core/pkg/binance"
	"exec-core/pkg/logger"
)

const (
	stateStopped int32 = iota
	stateStarting
	stateRunning
)

const pnlLedgerDays = 7

// Service owns the authoritative live view of account equity, open
// positions, open orders and recent realized P&L for testnet/live
// environments. Truth arrives from two sides: a periodic reconciliation
// poll and the push user-data stream; both funnel into one snapshot guarded
// by a single lock. Network I/O never happens inside the critical section.
type Service struct {
	api      RestAPI
	bus      *events.Bus
	interval time.Duration

	maxReconnects int
	backoffStep   time.Duration
	backoffMax    time.Duration

	dial dialFunc

	state  atomic.Int32
	cancel context.CancelFunc

	mu          sync.Mutex
	acct        account.Snapshot
	positions   map[posKey]account.Position
	openOrders  []binance.OpenOrder
	dailyPnl    map[string]*PnlRow
	recentFills []Fill
}

// New creates a service polling at interval with the given reconnect budget.
func New(api RestAPI, bus *events.Bus, interval time.Duration, maxReconnects int) *Service {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if maxReconnects <= 0 {
		maxReconnects = 5
	}
	return &Service{
		api:           api,
		bus:           bus,
		interval:      interval,
		maxReconnects: maxReconnects,
		backoffStep:   2 * time.Second,
		backoffMax:    30 * time.Second,
		dial:          gorillaDial,
		positions:     make(map[posKey]account.Position),
		dailyPnl:      make(map[string]*PnlRow),
	}
}

// Start runs one synchronous reconciliation pass, opens the user-data
// stream, then polls until the context is cancelled or Stop is called.
// Re-entrant calls while already running are no-ops.
func (s *Service) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(stateStopped, stateStarting) {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if err := s.Reconcile(runCtx); err != nil {
		logger.Warn("initial reconciliation failed", logger.Pair("error", err.Error()))
	}

	go s.streamLoop(runCtx)
	go s.pollLoop(runCtx)

	s.state.Store(stateRunning)
	logger.Info("exchange state service started", logger.Pair("interval", s.interval.String()))
	return nil
}

// Stop cancels both loops. The service can be restarted afterwards.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.state.Store(stateStopped)
}

// Running reports whether the service loops are active.
func (s *Service) Running() bool {
	return s.state.Load() == stateRunning
}

func (s *Service) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reconcile(ctx); err != nil {
				logger.Warn("reconciliation failed", logger.Pair("error", err.Error()))
			}
		}
	}
}

// Reconcile re-fetches account, positions, open orders and the realized-P&L
// ledger concurrently, then swaps the snapshot under the lock. The positions
// collection is only replaced when it actually differs from the cached one;
// a change notification fires exactly when it does.
func (s *Service) Reconcile(ctx context.Context) error {
	var (
		wg      sync.WaitGroup
		info    *binance.AccountInfo
		infoErr error
		rows    []binance.PositionRisk
		rowsErr error
		orders  []binance.OpenOrder
		ordErr  error
		income  []binance.Income
		incErr  error
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		info, infoErr = s.api.AccountInfo(ctx)
	}()
	go func() {
		defer wg.Done()
		rows, rowsErr = s.api.PositionRisk(ctx, "")
	}()
	go func() {
		defer wg.Done()
		orders, ordErr = s.api.OpenOrders(ctx, "")
	}()
	go func() {
		defer wg.Done()
		start := time.Now().Add(-pnlLedgerDays * 24 * time.Hour).UnixMilli()
		income, incErr = s.api.Income(ctx, "", start, 1000)
	}()
	wg.Wait()

	if rowsErr != nil {
		return fmt.Errorf("fetch positions: %w", rowsErr)
	}

	fresh := make(map[posKey]account.Position, len(rows))
	for _, row := range rows {
		amt := binance.ToFloat(row.PositionAmt)
		if amt == 0 {
			continue
		}
		side := account.SideLong
		if amt < 0 {
			side = account.SideShort
		}
		qty := math.Abs(amt)
		entry := binance.ToFloat(row.EntryPrice)
		mark := binance.ToFloat(row.MarkPrice)
		fresh[posKey{Symbol: row.Symbol, Side: side}] = account.Position{
			Symbol:        row.Symbol,
			Side:          side,
			Quantity:      qty,
			EntryPrice:    entry,
			MarkPrice:     mark,
			Notional:      qty * mark,
			UnrealizedPnl: binance.ToFloat(row.UnRealizedProfit),
		}
	}

	var freshPnl map[string]*PnlRow
	if incErr == nil {
		freshPnl = make(map[string]*PnlRow)
		for _, row := range income {
			date := time.UnixMilli(row.Time).UTC().Format("2006-01-02")
			r, ok := freshPnl[date]
			if !ok {
				r = &PnlRow{Date: date}
				freshPnl[date] = r
			}
			switch row.IncomeType {
			case "COMMISSION":
				r.Fees += binance.ToFloat(row.Income)
			case "REALIZED_PNL":
				r.RealizedPnl += binance.ToFloat(row.Income)
			}
		}
	}

	s.mu.Lock()
	changed := !positionsEqual(s.positions, fresh)
	if changed {
		s.positions = fresh
	}
	if infoErr == nil && info != nil {
		s.acct = account.Snapshot{
			Equity:      binance.ToFloat(info.TotalMarginBalance),
			FreeBalance: binance.ToFloat(info.AvailableBalance),
			Timestamp:   time.Now(),
		}
	}
	if ordErr == nil {
		s.openOrders = orders
	}
	if freshPnl != nil {
		s.dailyPnl = freshPnl
	}
	s.mu.Unlock()

	if infoErr != nil {
		logger.Warn("account fetch failed", logger.Pair("error", infoErr.Error()))
	}
	if ordErr != nil {
		logger.Warn("open orders fetch failed", logger.Pair("error", ordErr.Error()))
	}
	if incErr != nil {
		logger.Warn("income fetch failed", logger.Pair("error", incErr.Error()))
	}

	if changed {
		s.notifyPositionChange()
	}
	return nil
}

// positionsEqual compares by symbol+side+quantity+entry price.
func positionsEqual(a, b map[posKey]account.Position) bool {
	if len(a) != len(b) {
		return false
	}
	for k, pa := range a {
		pb, ok := b[k]
		if !ok || pa.Quantity != pb.Quantity || pa.EntryPrice != pb.EntryPrice {
			return false
		}
	}
	return true
}

func (s *Service) notifyPositionChange() {
	if s.bus != nil {
		s.bus.Publish(events.EventPositionChange, s.Positions())
	}
}

// AccountSnapshot returns the latest account view.
func (s *Service) AccountSnapshot() account.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acct
}

// OpenPosition returns a copy of the open position for symbol, or a flat
// position when none is cached.
func (s *Service) OpenPosition(symbol string) account.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, p := range s.positions {
		if k.Symbol == symbol && p.Quantity != 0 {
			return p
		}
	}
	return account.Position{Symbol: symbol, Side: account.SideFlat}
}

// HasOpenPosition reports whether the exchange currently shows exposure on
// symbol. Satisfies the risk gate's exchange-truth check.
func (s *Service) HasOpenPosition(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, p := range s.positions {
		if k.Symbol == symbol && p.Quantity != 0 {
			return true
		}
	}
	return false
}

// Positions returns copies of all cached positions, sorted by symbol.
func (s *Service) Positions() []account.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]account.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// OpenOrders returns the cached open orders.
func (s *Service) OpenOrders() []binance.OpenOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]binance.OpenOrder, len(s.openOrders))
	copy(out, s.openOrders)
	return out
}

// DailyPnl returns the realized-P&L ledger rows, newest first.
func (s *Service) DailyPnl() []PnlRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PnlRow, 0, len(s.dailyPnl))
	for _, r := range s.dailyPnl {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

// RecentFills returns fills observed on the stream, oldest first.
func (s *Service) RecentFills() []Fill {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Fill, len(s.recentFills))
	copy(out, s.recentFills)
	return out
}
