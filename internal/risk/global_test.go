package risk

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02 15:04", s)
	return t
}

func TestRuntimeDailyTradeCap(t *testing.T) {
	r := NewRuntime(Settings{MaxTradesPerDay: 2})
	now := time.Now()

	if v := r.CanOpen(); !v.Allowed {
		t.Fatalf("fresh runtime should allow opens: %q", v.Reason)
	}
	r.OnTradeClosed(now, 1)
	r.OnTradeClosed(now, 1)
	if v := r.CanOpen(); v.Allowed {
		t.Fatal("expected daily trade cap block")
	} else if v.Reason != "daily trade cap reached" {
		t.Fatalf("wrong reason: %q", v.Reason)
	}
}

func TestRuntimeConsecutiveLossFreeze(t *testing.T) {
	r := NewRuntime(Settings{MaxConsecutiveLoss: 3, MaxTradesPerDay: 100})
	now := time.Now()

	r.OnTradeClosed(now, -1)
	r.OnTradeClosed(now, -1)
	if v := r.CanOpen(); !v.Allowed {
		t.Fatalf("two losses should not freeze yet: %q", v.Reason)
	}
	r.OnTradeClosed(now, -1)
	if v := r.CanOpen(); v.Allowed {
		t.Fatal("third loss should auto-freeze")
	}
	if st := r.State(); !st.IsFrozen || st.IsManualFrozen {
		t.Fatalf("expected auto freeze only, got %+v", st)
	}

	// A win thaws the auto freeze and resets the streak.
	r.OnTradeClosed(now, 5)
	if v := r.CanOpen(); !v.Allowed {
		t.Fatalf("win should clear auto freeze: %q", v.Reason)
	}
	if st := r.State(); st.ConsecutiveLossCount != 0 {
		t.Fatalf("loss streak should reset, got %d", st.ConsecutiveLossCount)
	}
}

func TestRuntimeBreakevenLeavesStreak(t *testing.T) {
	r := NewRuntime(Settings{MaxConsecutiveLoss: 3})
	now := time.Now()

	r.OnTradeClosed(now, -1)
	r.OnTradeClosed(now, 0)
	if st := r.State(); st.ConsecutiveLossCount != 1 {
		t.Fatalf("breakeven should leave streak at 1, got %d", st.ConsecutiveLossCount)
	}
	if st := r.State(); st.TradesToday != 2 {
		t.Fatalf("breakeven still counts as a trade, got %d", st.TradesToday)
	}
}

func TestRuntimeDayRollover(t *testing.T) {
	r := NewRuntime(Settings{MaxTradesPerDay: 1, MaxConsecutiveLoss: 1})

	d1 := day("2026-03-01 10:00")
	r.OnTradeClosed(d1, -1)
	if v := r.CanOpen(); v.Allowed {
		t.Fatal("expected freeze after loss on day one")
	}

	// Next-day close resets counters and the auto freeze.
	d2 := day("2026-03-02 01:00")
	r.OnTradeClosed(d2, 1)
	st := r.State()
	if st.TradingDate != "2026-03-02" {
		t.Fatalf("trading date not rolled: %s", st.TradingDate)
	}
	if st.TradesToday != 1 {
		t.Fatalf("rollover should restart the day counter, got %d", st.TradesToday)
	}
}

func TestRuntimeManualFreezeSurvivesRollover(t *testing.T) {
	r := NewRuntime(Settings{})
	r.Freeze("maintenance")
	r.OnTradeClosed(day("2026-03-02 01:00"), 1)
	if v := r.CanOpen(); v.Allowed {
		t.Fatal("manual freeze must persist across day rollover")
	}
	r.Unfreeze()
	if v := r.CanOpen(); !v.Allowed {
		t.Fatalf("unfreeze should clear the kill switch: %q", v.Reason)
	}
}

func TestRuntimeFreezeReasonReported(t *testing.T) {
	r := NewRuntime(Settings{})
	r.Freeze("")
	if v := r.CanOpen(); v.Allowed || v.Reason != "manually frozen" {
		t.Fatalf("expected default manual freeze reason, got %+v", v)
	}
}
