package sim

import (
	"fmt"
	"sync"
	"time"

	"exec-core/internal/account"
)

// Simulator owns authoritative account and position truth for backtest and
// dry-run environments. One open position per symbol.
type Simulator struct {
	mu        sync.RWMutex
	equity    float64
	positions map[string]account.Position
	marks     map[string]float64
	now       func() time.Time
}

// New creates a simulator seeded with initialBalance quote units.
func New(initialBalance float64) *Simulator {
	return &Simulator{
		equity:    initialBalance,
		positions: make(map[string]account.Position),
		marks:     make(map[string]float64),
		now:       time.Now,
	}
}

// SetClock overrides the time source; the replay loop pins it to bar time.
func (s *Simulator) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetMarkPrice records the latest observed price for a symbol.
func (s *Simulator) SetMarkPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[symbol] = price
}

// MarkPrice returns the latest observed price for a symbol.
func (s *Simulator) MarkPrice(symbol string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marks[symbol]
}

// Account returns a point-in-time equity snapshot. Free balance excludes
// notional locked by open positions.
func (s *Simulator) Account() account.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	locked := 0.0
	for _, p := range s.positions {
		locked += p.Quantity * p.EntryPrice
	}
	free := s.equity - locked
	if free < 0 {
		free = 0
	}
	return account.Snapshot{
		Equity:      s.equity,
		FreeBalance: free,
		Timestamp:   s.now(),
	}
}

// Position returns a copy of the open position for symbol; flat if none.
func (s *Simulator) Position(symbol string) account.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.positions[symbol]; ok {
		return p
	}
	return account.Position{Symbol: symbol, Side: account.SideFlat}
}

// Positions returns copies of all open positions.
func (s *Simulator) Positions() []account.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]account.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out
}

// Open creates a new position. Returns an error when a position already
// exists for symbol; the risk gate should have prevented that.
func (s *Simulator) Open(symbol string, side account.PositionSide, qty, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.positions[symbol]; ok && !p.IsFlat() {
		return fmt.Errorf("sim: position already open for %s", symbol)
	}
	if qty <= 0 || price <= 0 {
		return fmt.Errorf("sim: invalid open qty=%v price=%v", qty, price)
	}
	s.positions[symbol] = account.Position{
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		EntryPrice: price,
		MarkPrice:  price,
		Notional:   qty * price,
		EntryTime:  s.now(),
	}
	return nil
}

// Close removes the open position for symbol and returns a copy of it.
func (s *Simulator) Close(symbol string) (account.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[symbol]
	if !ok || p.IsFlat() {
		return account.Position{}, fmt.Errorf("sim: no open position for %s", symbol)
	}
	delete(s.positions, symbol)
	return p, nil
}

// ApplyRealizedPnl adjusts equity after a round-trip is recorded.
func (s *Simulator) ApplyRealizedPnl(delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.equity += delta
}
