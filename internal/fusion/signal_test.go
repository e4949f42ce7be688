package fusion

import (
	"testing"
	"time"

	"trend-signals/internal/model"
)

var t0 = time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)

func TestSignalCache_ConfirmsAtNthCall(t *testing.T) {
	for _, n := range []int{1, 3, 5} {
		cfg := DefaultSignalConfig()
		cfg.MinConfirmations = n
		c := NewSignalCache(cfg)
		for i := 1; i <= n; i++ {
			snap, _ := c.Observe("X", model.Bullish, 70, t0.Add(time.Duration(i)*time.Second))
			want := model.StatePending
			if i == n {
				want = model.StateConfirmed
			}
			if snap.State != want {
				t.Fatalf("n=%d call %d: state=%s, want %s", n, i, snap.State, want)
			}
			if snap.Confirmations != i {
				t.Fatalf("n=%d call %d: confirmations=%d", n, i, snap.Confirmations)
			}
		}
	}
}

func TestSignalCache_BelowThresholdIgnored(t *testing.T) {
	c := NewSignalCache(DefaultSignalConfig())
	for i := 0; i < 10; i++ {
		snap, tr := c.Observe("X", model.Bullish, 54.9, t0)
		if snap.State != model.StateNoSignal || tr != nil {
			t.Fatalf("weak call changed state: %+v", snap)
		}
	}
	if snap, _ := c.Observe("X", model.Neutral, 99, t0); snap.State != model.StateNoSignal {
		t.Fatalf("neutral call changed state: %+v", snap)
	}
}

func TestSignalCache_ExpiresStrictlyAfterPersistence(t *testing.T) {
	cfg := DefaultSignalConfig()
	c := NewSignalCache(cfg)
	var last time.Time
	for i := 0; i < 3; i++ {
		last = t0.Add(time.Duration(i) * time.Second)
		c.Observe("X", model.Bearish, 60, last)
	}
	if got := c.Get("X", last.Add(cfg.Persistence)); got.State != model.StateConfirmed {
		t.Fatalf("at exactly the persistence window: state=%s, want CONFIRMED", got.State)
	}
	if trs := c.Expire(last.Add(cfg.Persistence)); len(trs) != 0 {
		t.Fatalf("expired at the boundary: %+v", trs)
	}
	trs := c.Expire(last.Add(cfg.Persistence + time.Nanosecond))
	if len(trs) != 1 || trs[0].From != model.StateConfirmed || trs[0].To != model.StateNoSignal {
		t.Fatalf("transitions=%+v", trs)
	}
	if got := c.Get("X", last.Add(cfg.Persistence+time.Nanosecond)); got.State != model.StateNoSignal {
		t.Fatalf("state after expiry=%s", got.State)
	}
}

func TestSignalCache_ReconfirmRefreshesExpiry(t *testing.T) {
	cfg := DefaultSignalConfig()
	c := NewSignalCache(cfg)
	for i := 0; i < 3; i++ {
		c.Observe("X", model.Bullish, 60, t0)
	}
	refresh := t0.Add(cfg.Persistence - time.Minute)
	snap, _ := c.Observe("X", model.Bullish, 65, refresh)
	if snap.State != model.StateConfirmed || snap.Strength != 65 || snap.Confirmations != 4 {
		t.Fatalf("reconfirm: %+v", snap)
	}
	if got := c.Get("X", t0.Add(cfg.Persistence+time.Minute)); got.State != model.StateConfirmed {
		t.Fatalf("refreshed entry lapsed early: %+v", got)
	}
}

func TestSignalCache_Bypass(t *testing.T) {
	c := NewSignalCache(DefaultSignalConfig())
	snap, tr := c.Observe("X", model.Bullish, 85, t0)
	if snap.State != model.StateConfirmed || snap.Confirmations != 1 {
		t.Fatalf("bypass from NO_SIGNAL: %+v", snap)
	}
	if tr == nil || tr.From != model.StateNoSignal || tr.To != model.StateConfirmed {
		t.Fatalf("transition=%+v", tr)
	}

	c.Reset()
	c.Observe("X", model.Bearish, 60, t0)
	snap, _ = c.Observe("X", model.Bullish, 90, t0.Add(time.Second))
	if snap.State != model.StateConfirmed || snap.Direction != model.Bullish {
		t.Fatalf("bypass from opposite PENDING: %+v", snap)
	}
}

func TestSignalCache_OppositeOverride(t *testing.T) {
	c := NewSignalCache(DefaultSignalConfig())
	for i := 0; i < 3; i++ {
		c.Observe("X", model.Bullish, 60, t0)
	}

	// 79.9 does not beat 60 + 20.
	snap, tr := c.Observe("X", model.Bearish, 79.9, t0.Add(time.Second))
	if snap.Direction != model.Bullish || tr != nil {
		t.Fatalf("weak opposite call overrode: %+v", snap)
	}
	snap, _ = c.Observe("X", model.Bearish, 80.1, t0.Add(2*time.Second))
	if snap.State != model.StateConfirmed || snap.Direction != model.Bearish {
		t.Fatalf("strong opposite call did not override: %+v", snap)
	}
}

func TestSignalCache_OppositeAfterLapseStartsPending(t *testing.T) {
	cfg := DefaultSignalConfig()
	c := NewSignalCache(cfg)
	for i := 0; i < 3; i++ {
		c.Observe("X", model.Bullish, 70, t0)
	}
	snap, tr := c.Observe("X", model.Bearish, 60, t0.Add(cfg.Persistence+time.Second))
	if snap.State != model.StatePending || snap.Direction != model.Bearish || snap.Confirmations != 1 {
		t.Fatalf("after lapse: %+v", snap)
	}
	if tr == nil || tr.From != model.StateConfirmed || tr.To != model.StatePending {
		t.Fatalf("transition=%+v", tr)
	}
}

func TestSignalCache_OppositePendingRestarts(t *testing.T) {
	c := NewSignalCache(DefaultSignalConfig())
	c.Observe("X", model.Bullish, 60, t0)
	c.Observe("X", model.Bullish, 60, t0)
	snap, _ := c.Observe("X", model.Bearish, 60, t0)
	if snap.State != model.StatePending || snap.Direction != model.Bearish || snap.Confirmations != 1 {
		t.Fatalf("opposite pending: %+v", snap)
	}
}

func TestSignalCache_SymbolsIndependent(t *testing.T) {
	c := NewSignalCache(DefaultSignalConfig())
	c.Observe("A", model.Bullish, 90, t0)
	if got := c.Get("B", t0); got.State != model.StateNoSignal {
		t.Fatalf("B affected by A: %+v", got)
	}
	c.Evict("A")
	if got := c.Get("A", t0); got.State != model.StateNoSignal {
		t.Fatalf("evicted entry still present: %+v", got)
	}
}
