package risk

import (
	"strings"
	"testing"

	"exec-core/internal/account"
	"exec-core/internal/decision"
)

type fakeExchange struct {
	open bool
}

func (f fakeExchange) HasOpenPosition(string) bool { return f.open }

func TestGateOpenWhileFlat(t *testing.T) {
	g := NewGate(nil)
	d := g.Apply(account.Snapshot{Equity: 10000}, account.Position{Symbol: "BTCUSDT", Side: account.SideFlat}, decision.Decision{
		Intent:    decision.IntentOpenLong,
		Symbol:    "BTCUSDT",
		LastPrice: 100,
	})
	if d.Intent != decision.IntentOpenLong {
		t.Fatalf("expected open to pass, got intent %s reason %q", d.Intent, d.Reason)
	}
	if !strings.Contains(d.Reason, decision.TagRiskChecked) {
		t.Fatalf("expected %s tag, got %q", decision.TagRiskChecked, d.Reason)
	}
}

func TestGateRejectsSecondOpen(t *testing.T) {
	g := NewGate(nil)
	pos := account.Position{Symbol: "BTCUSDT", Side: account.SideLong, Quantity: 1, EntryPrice: 100}
	d := g.Apply(account.Snapshot{}, pos, decision.Decision{
		Intent:      decision.IntentOpenShort,
		Symbol:      "BTCUSDT",
		LastPrice:   101,
		StrategyTag: "ma_cross_10_30",
	})
	if d.Intent != decision.IntentNone {
		t.Fatalf("expected rejection, got %s", d.Intent)
	}
	if !strings.Contains(d.Reason, decision.TagAlreadyHavePosition) {
		t.Fatalf("missing rejection tag, got %q", d.Reason)
	}
	if d.StrategyTag != "ma_cross_10_30" {
		t.Fatalf("strategy tag lost on rejection: %q", d.StrategyTag)
	}
}

func TestGateClosePassesWithPosition(t *testing.T) {
	g := NewGate(nil)
	pos := account.Position{Symbol: "BTCUSDT", Side: account.SideLong, Quantity: 1}
	d := g.Apply(account.Snapshot{}, pos, decision.Decision{Intent: decision.IntentClose, Symbol: "BTCUSDT"})
	if d.Intent != decision.IntentClose {
		t.Fatalf("close should pass, got %s", d.Intent)
	}
}

func TestGateRejectsInvalidPrice(t *testing.T) {
	g := NewGate(nil)
	d := g.Apply(account.Snapshot{}, account.Position{Side: account.SideFlat}, decision.Decision{
		Intent: decision.IntentOpenLong,
		Symbol: "BTCUSDT",
	})
	if d.Intent != decision.IntentNone || !strings.Contains(d.Reason, decision.TagInvalidPrice) {
		t.Fatalf("expected invalid price rejection, got intent %s reason %q", d.Intent, d.Reason)
	}
}

func TestGateHonorsExchangeTruth(t *testing.T) {
	g := NewGate(fakeExchange{open: true})
	d := g.Apply(account.Snapshot{}, account.Position{Side: account.SideFlat}, decision.Decision{
		Intent:    decision.IntentOpenLong,
		Symbol:    "BTCUSDT",
		LastPrice: 100,
	})
	if d.Intent != decision.IntentNone || !strings.Contains(d.Reason, decision.TagExchangeHasOpenPosition) {
		t.Fatalf("expected exchange-truth rejection, got intent %s reason %q", d.Intent, d.Reason)
	}
}
