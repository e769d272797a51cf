package account

import "time"

// PositionSide denotes the direction of an open position.
type PositionSide string

const (
	SideFlat  PositionSide = "FLAT"
	SideLong  PositionSide = "LONG"
	SideShort PositionSide = "SHORT"
)

// Direction returns +1 for long, -1 for short, 0 for flat.
func (s PositionSide) Direction() float64 {
	switch s {
	case SideLong:
		return 1
	case SideShort:
		return -1
	}
	return 0
}

// Position is the net position for one symbol. Components never share a
// Position by reference; callers receive value copies.
type Position struct {
	Symbol        string
	Side          PositionSide
	Quantity      float64
	EntryPrice    float64
	MarkPrice     float64
	Notional      float64
	UnrealizedPnl float64
	EntryTime     time.Time
}

// IsFlat reports whether there is no exposure on this symbol.
func (p Position) IsFlat() bool {
	return p.Side == SideFlat || p.Side == "" || p.Quantity == 0
}

// Snapshot is a point-in-time view of account equity. Immutable once built.
type Snapshot struct {
	Equity      float64
	FreeBalance float64
	Timestamp   time.Time
}
