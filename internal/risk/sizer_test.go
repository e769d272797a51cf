package risk

import (
	"math"
	"testing"

	"exec-core/internal/decision"
)

func baseSettings() Settings {
	return Settings{
		RiskPerTradePct:  0.01,
		QtyStep:          0.001,
		MaxQty:           10,
		MaxNotional:      100000,
		QtyDecimals:      3,
		NotionalDecimals: 2,
	}
}

func TestSizerRiskBudget(t *testing.T) {
	tests := []struct {
		name       string
		settings   Settings
		equity     float64
		d          decision.Decision
		wantQty    float64
		wantNotion float64
	}{
		{
			name:       "capped by max qty",
			settings:   baseSettings(),
			equity:     10000,
			d:          decision.Decision{Intent: decision.IntentOpenLong, Symbol: "BTCUSDT", LastPrice: 100, StopLossPrice: 99},
			wantQty:    10, // raw 100/1=100 clamped to MaxQty
			wantNotion: 1000,
		},
		{
			name:       "risk budget drives qty",
			settings:   baseSettings(),
			equity:     10000,
			d:          decision.Decision{Intent: decision.IntentOpenLong, Symbol: "BTCUSDT", LastPrice: 100, StopLossPrice: 50},
			wantQty:    2, // 100 risk / 50 stop distance
			wantNotion: 200,
		},
		{
			name: "notional cap refloors",
			settings: Settings{
				RiskPerTradePct: 0.01, QtyStep: 0.001, MaxQty: 100,
				MaxNotional: 150, QtyDecimals: 3, NotionalDecimals: 2,
			},
			equity:     10000,
			d:          decision.Decision{Intent: decision.IntentOpenLong, Symbol: "BTCUSDT", LastPrice: 100, StopLossPrice: 50},
			wantQty:    1.5,
			wantNotion: 150,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSizer(tt.settings)
			out := s.Size(tt.equity, tt.d)
			if math.Abs(out.Quantity-tt.wantQty) > 1e-9 {
				t.Fatalf("qty = %v, want %v", out.Quantity, tt.wantQty)
			}
			if math.Abs(out.Notional-tt.wantNotion) > 1e-9 {
				t.Fatalf("notional = %v, want %v", out.Notional, tt.wantNotion)
			}
		})
	}
}

func TestSizerMissingStopFallsBackToStep(t *testing.T) {
	s := NewSizer(baseSettings())
	out := s.Size(10000, decision.Decision{Intent: decision.IntentOpenLong, Symbol: "BTCUSDT", LastPrice: 100})
	if out.Quantity != 0.001 {
		t.Fatalf("expected minimum step fallback, got %v", out.Quantity)
	}
}

func TestSizerIgnoresNonOpen(t *testing.T) {
	s := NewSizer(baseSettings())
	in := decision.Decision{Intent: decision.IntentClose, Symbol: "BTCUSDT", LastPrice: 100}
	out := s.Size(10000, in)
	if out.Quantity != 0 {
		t.Fatalf("close decisions must not be sized, got qty %v", out.Quantity)
	}
}

func TestFloorToStepExactMultiple(t *testing.T) {
	// 0.3/0.1 is 2.9999... in floats; the tolerance must keep it at 0.3.
	if got := floorToStep(0.3, 0.1); math.Abs(got-0.3) > 1e-9 {
		t.Fatalf("floorToStep(0.3, 0.1) = %v", got)
	}
}
