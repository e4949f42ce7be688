// Package aggregate combines weighted-average results across many periods
// into a trend hierarchy and tracks the dual-horizon rate of change.
package aggregate

import (
	"sync"

	"trend-signals/internal/indicator"
	"trend-signals/internal/model"
)

// Config bundles both aggregations.
type Config struct {
	ROC       ROCConfig
	Hierarchy HierarchyConfig
}

// DefaultConfig returns the tiers and lookbacks used by the hosted service.
// Every tier period divides the 240-sample history.
func DefaultConfig() Config {
	return Config{
		ROC: ROCConfig{ShortLookback: 5, LongLookback: 20, AlignmentMargin: 0.1},
		Hierarchy: HierarchyConfig{
			HistoryLength:  240,
			Short:          []int{6, 8, 10, 12},
			Medium:         []int{15, 20, 24, 30},
			Long:           []int{40, 48, 60, 80},
			WeightExponent: 1.5,
			SlopeBand:      0.01,
			TierThreshold:  0.25,
			AlignedBonus:   15,
		},
	}
}

// Aggregator reads Hull results from the indicator engine and keeps the
// per-symbol ROC trackers.
type Aggregator struct {
	cfg     Config
	engine  *indicator.Engine
	periods []int

	mu  sync.Mutex
	roc map[string]*ROC
}

// New creates an aggregator over engine. The engine must track every
// hierarchy period; see HierarchyConfig.Periods.
func New(cfg Config, engine *indicator.Engine) *Aggregator {
	return &Aggregator{
		cfg:     cfg,
		engine:  engine,
		periods: cfg.Hierarchy.Periods(),
		roc:     make(map[string]*ROC, 64),
	}
}

// Observe feeds one observation to the symbol's ROC tracker.
func (a *Aggregator) Observe(o model.Observation) model.ROCReading {
	a.mu.Lock()
	r, ok := a.roc[o.Symbol]
	if !ok {
		r = NewROC(a.cfg.ROC)
		a.roc[o.Symbol] = r
	}
	a.mu.Unlock()
	return r.Add(o.Close)
}

// ROC returns the latest ROC reading of a symbol.
func (a *Aggregator) ROC(symbol string) model.ROCReading {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r, ok := a.roc[symbol]; ok {
		return r.Last()
	}
	return model.ROCReading{}
}

// Hierarchy classifies the symbol's current Hull results.
func (a *Aggregator) Hierarchy(symbol string) model.HierarchyReading {
	return Classify(a.cfg.Hierarchy, a.engine.LatestAll(symbol, a.periods))
}

// Evict drops a symbol's ROC tracker.
func (a *Aggregator) Evict(symbol string) {
	a.mu.Lock()
	delete(a.roc, symbol)
	a.mu.Unlock()
}

// Reset drops all trackers.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.roc = make(map[string]*ROC, 64)
	a.mu.Unlock()
}
