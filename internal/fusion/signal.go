package fusion

import (
	"sort"
	"sync"
	"time"

	"trend-signals/internal/model"
)

// SignalConfig configures the persistence state machine.
type SignalConfig struct {
	MinConfirmations  int
	StrengthThreshold float64       // raw calls below this are ignored
	BypassConfidence  float64       // a single call at or above this confirms at once
	OverrideMargin    float64       // an opposite call must beat the confirmed strength by this much
	Persistence       time.Duration // idle time after which an entry lapses
}

// DefaultSignalConfig returns the persistence parameters used by the service.
func DefaultSignalConfig() SignalConfig {
	return SignalConfig{
		MinConfirmations:  3,
		StrengthThreshold: 55,
		BypassConfidence:  85,
		OverrideMargin:    20,
		Persistence:       12 * time.Minute,
	}
}

// Transition describes a state change of one symbol's entry.
type Transition struct {
	Symbol string
	From   model.SignalState
	To     model.SignalState
}

type signalEntry struct {
	state         model.SignalState
	direction     model.Direction
	confirmations int
	strength      float64
	since         time.Time // when the current state was entered
	updated       time.Time // last matching call
}

func (e *signalEntry) snapshot() model.SignalSnapshot {
	return model.SignalSnapshot{
		State:         e.state,
		Direction:     e.direction,
		Confirmations: e.confirmations,
		Strength:      e.strength,
		Since:         e.since,
		UpdatedAt:     e.updated,
	}
}

// SignalCache holds one persistence entry per symbol:
//
//	NO_SIGNAL -> PENDING(direction, confirmations) -> CONFIRMED(direction, strength, time)
//
// An entry is superseded only by lapse of the persistence window, by reaching
// the confirmation count, or by a disproportionately stronger opposite call.
// All time comes from the callers. Safe for concurrent use.
type SignalCache struct {
	cfg SignalConfig

	mu      sync.Mutex
	entries map[string]*signalEntry
}

// NewSignalCache creates an empty cache.
func NewSignalCache(cfg SignalConfig) *SignalCache {
	if cfg.MinConfirmations < 1 {
		cfg.MinConfirmations = 1
	}
	return &SignalCache{cfg: cfg, entries: make(map[string]*signalEntry, 64)}
}

// lapsed reports whether the entry has gone without reconfirmation for
// strictly longer than the persistence window.
func (c *SignalCache) lapsed(e *signalEntry, now time.Time) bool {
	return e.state != model.StateNoSignal && now.Sub(e.updated) > c.cfg.Persistence
}

// Observe applies one raw directional call made at now and returns the
// resulting entry along with the transition it caused, if any.
func (c *SignalCache) Observe(symbol string, dir model.Direction, confidence float64, now time.Time) (model.SignalSnapshot, *Transition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[symbol]
	if !ok {
		e = &signalEntry{state: model.StateNoSignal}
		c.entries[symbol] = e
	}
	from := e.state
	if c.lapsed(e, now) {
		*e = signalEntry{state: model.StateNoSignal}
	}

	if dir != model.Neutral && confidence >= c.cfg.StrengthThreshold {
		c.apply(e, dir, confidence, now)
	}
	return e.snapshot(), transition(symbol, from, e.state)
}

func (c *SignalCache) apply(e *signalEntry, dir model.Direction, confidence float64, now time.Time) {
	bypass := confidence >= c.cfg.BypassConfidence

	switch e.state {
	case model.StateNoSignal:
		if bypass {
			c.confirm(e, dir, confidence, 1, now)
			return
		}
		c.pend(e, dir, now)

	case model.StatePending:
		if dir != e.direction {
			if bypass {
				c.confirm(e, dir, confidence, 1, now)
				return
			}
			c.pend(e, dir, now)
			return
		}
		e.confirmations++
		e.updated = now
		if bypass {
			c.confirm(e, dir, confidence, e.confirmations, now)
		}

	case model.StateConfirmed:
		if dir == e.direction {
			e.confirmations++
			e.strength = confidence
			e.updated = now
			return
		}
		if confidence > e.strength+c.cfg.OverrideMargin {
			c.confirm(e, dir, confidence, 1, now)
		}
	}

	if e.state == model.StatePending && e.confirmations >= c.cfg.MinConfirmations {
		c.confirm(e, dir, confidence, e.confirmations, now)
	}
}

func (c *SignalCache) pend(e *signalEntry, dir model.Direction, now time.Time) {
	*e = signalEntry{
		state:         model.StatePending,
		direction:     dir,
		confirmations: 1,
		since:         now,
		updated:       now,
	}
	if c.cfg.MinConfirmations <= 1 {
		e.state = model.StateConfirmed
	}
}

func (c *SignalCache) confirm(e *signalEntry, dir model.Direction, confidence float64, confirmations int, now time.Time) {
	*e = signalEntry{
		state:         model.StateConfirmed,
		direction:     dir,
		confirmations: confirmations,
		strength:      confidence,
		since:         now,
		updated:       now,
	}
}

// Get returns a symbol's entry as of now, applying lapse without mutating.
func (c *SignalCache) Get(symbol string, now time.Time) model.SignalSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[symbol]
	if !ok || c.lapsed(e, now) {
		return model.SignalSnapshot{State: model.StateNoSignal}
	}
	return e.snapshot()
}

// Expire resets every entry that lapsed by now and returns the transitions,
// sorted by symbol.
func (c *SignalCache) Expire(now time.Time) []Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Transition
	for sym, e := range c.entries {
		if c.lapsed(e, now) {
			out = append(out, Transition{Symbol: sym, From: e.state, To: model.StateNoSignal})
			*e = signalEntry{state: model.StateNoSignal}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Evict forgets a symbol.
func (c *SignalCache) Evict(symbol string) {
	c.mu.Lock()
	delete(c.entries, symbol)
	c.mu.Unlock()
}

// Reset forgets every symbol.
func (c *SignalCache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]*signalEntry, 64)
	c.mu.Unlock()
}

func transition(symbol string, from, to model.SignalState) *Transition {
	if from == to {
		return nil
	}
	return &Transition{Symbol: symbol, From: from, To: to}
}
