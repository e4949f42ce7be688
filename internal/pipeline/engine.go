// Package pipeline hosts the per-symbol indicator pipeline: weighted averages
// and filter bank, then aggregation, then fusion. It owns the key-partitioned
// symbol store with create-on-first-use and evict-after-inactivity lifecycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"trend-signals/internal/aggregate"
	"trend-signals/internal/dsp"
	"trend-signals/internal/fusion"
	"trend-signals/internal/indicator"
	"trend-signals/internal/model"
	"trend-signals/internal/scanner"
)

// ErrInvalidEvent is returned for events without a symbol or a usable price.
var ErrInvalidEvent = errors.New("pipeline: invalid event")

// symbolState is the per-symbol bookkeeping of the pipeline. The layer state
// itself lives in the layer engines, keyed by the same symbol.
type symbolState struct {
	mu        sync.Mutex
	evicted   bool
	lastQuote float64
	haveQuote bool
	lastSeen  time.Time
	events    uint64
	record    model.TrendAnalysis
	hasRecord bool
}

// Engine runs the full pipeline for each event of a symbol to completion
// before the next event of the same symbol. Events of different symbols may
// be processed concurrently. All time comes from event timestamps or the
// value passed to Advance.
type Engine struct {
	cfg   Config
	log   *slog.Logger
	hooks Hooks

	indicators *indicator.Engine
	filters    *dsp.Bank
	agg        *aggregate.Aggregator
	fusion     *fusion.Analyzer

	mu      sync.RWMutex
	symbols map[string]*symbolState
	clock   time.Time // latest event or Advance time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithHooks sets the instrumentation hooks.
func WithHooks(h Hooks) Option {
	return func(e *Engine) { e.hooks = h }
}

// New builds an engine and its layers.
func New(cfg Config, opts ...Option) *Engine {
	indCfg := cfg.Indicator
	indCfg.Periods = append(append([]int(nil), cfg.Indicator.Periods...), cfg.Aggregate.Hierarchy.Periods()...)
	if len(cfg.Indicator.Periods) > 0 {
		// The crossover pair stays on the display periods.
		display := append([]int(nil), cfg.Indicator.Periods...)
		sort.Ints(display)
		if indCfg.FastPeriod == 0 {
			indCfg.FastPeriod = display[0]
		}
		if indCfg.SlowPeriod == 0 {
			indCfg.SlowPeriod = display[len(display)-1]
		}
	}
	fusionCfg := cfg.Fusion
	if len(cfg.Indicator.Periods) > 0 {
		fusionCfg.DisplayPeriods = cfg.Indicator.Periods
	}
	cfg.Fusion = fusionCfg

	ind := indicator.NewEngine(indCfg)
	bank := dsp.NewBank(cfg.Filter)
	agg := aggregate.New(cfg.Aggregate, ind)

	e := &Engine{
		cfg:        cfg,
		log:        slog.Default(),
		hooks:      nopHooks{},
		indicators: ind,
		filters:    bank,
		agg:        agg,
		fusion:     fusion.NewAnalyzer(fusionCfg, ind, bank, agg),
		symbols:    make(map[string]*symbolState, 64),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// OnCandle processes one candle and returns the replaced analysis record.
func (e *Engine) OnCandle(c model.Candle) (model.TrendAnalysis, error) {
	if !c.Valid() {
		e.hooks.EventRejected(model.EventCandle)
		return model.TrendAnalysis{}, fmt.Errorf("%w: candle %q close=%v", ErrInvalidEvent, c.Symbol, c.Close)
	}
	return e.process(model.EventCandle, c.Symbol, func(st *symbolState) model.Observation {
		st.lastQuote, st.haveQuote = c.Close, true
		return c.Observation()
	})
}

// OnTick processes one tick. Its derivative is taken against the previous
// quote of the same symbol.
func (e *Engine) OnTick(t model.Tick) (model.TrendAnalysis, error) {
	if !t.Valid() {
		e.hooks.EventRejected(model.EventTick)
		return model.TrendAnalysis{}, fmt.Errorf("%w: tick %q quote=%v", ErrInvalidEvent, t.Symbol, t.Quote)
	}
	return e.process(model.EventTick, t.Symbol, func(st *symbolState) model.Observation {
		open := t.Quote
		if st.haveQuote {
			open = st.lastQuote
		}
		st.lastQuote, st.haveQuote = t.Quote, true
		return model.Observation{Symbol: t.Symbol, Open: open, Close: t.Quote, TS: t.Time()}
	})
}

// OnEvent dispatches an event by kind.
func (e *Engine) OnEvent(ev model.Event) (model.TrendAnalysis, error) {
	switch ev.Kind {
	case model.EventCandle:
		return e.OnCandle(ev.Candle)
	case model.EventTick:
		return e.OnTick(ev.Tick)
	default:
		return model.TrendAnalysis{}, fmt.Errorf("%w: unknown kind %d", ErrInvalidEvent, ev.Kind)
	}
}

func (e *Engine) process(kind model.EventKind, symbol string, observe func(*symbolState) model.Observation) (model.TrendAnalysis, error) {
	start := time.Now()
	for {
		st := e.state(symbol)
		st.mu.Lock()
		if st.evicted {
			// Lost a race with eviction; retry against a fresh state.
			st.mu.Unlock()
			continue
		}

		o := observe(st)
		e.indicators.Update(o)
		e.filters.Update(o)
		e.agg.Observe(o)
		rec, tr := e.fusion.Analyze(symbol, o.TS)

		st.lastSeen = o.TS
		st.events++
		st.record, st.hasRecord = rec, true
		st.mu.Unlock()

		e.tick(o.TS)
		e.noteTransition(tr)
		e.hooks.Recommendation(rec.Recommendation)
		e.hooks.EventProcessed(kind, time.Since(start))
		return rec, nil
	}
}

func (e *Engine) state(symbol string) *symbolState {
	e.mu.RLock()
	st, ok := e.symbols[symbol]
	e.mu.RUnlock()
	if ok {
		return st
	}

	e.mu.Lock()
	if st, ok = e.symbols[symbol]; !ok {
		st = &symbolState{}
		e.symbols[symbol] = st
	}
	n := len(e.symbols)
	e.mu.Unlock()

	if !ok {
		e.log.Debug("symbol tracked", slog.String("symbol", symbol))
		e.hooks.SymbolsTracked(n)
	}
	return st
}

// tick advances the engine clock monotonically.
func (e *Engine) tick(t time.Time) {
	e.mu.Lock()
	if t.After(e.clock) {
		e.clock = t
	}
	e.mu.Unlock()
}

func (e *Engine) noteTransition(tr *fusion.Transition) {
	if tr == nil {
		return
	}
	e.hooks.SignalTransition(tr.From, tr.To)
	level := slog.LevelDebug
	if tr.To == model.StateConfirmed {
		level = slog.LevelInfo
	}
	e.log.Log(context.Background(), level, "signal transition",
		slog.String("symbol", tr.Symbol),
		slog.String("from", string(tr.From)),
		slog.String("to", string(tr.To)),
	)
}

// AdvanceReport summarizes one Advance call.
type AdvanceReport struct {
	Expired []fusion.Transition
	Evicted []string
	Records []model.TrendAnalysis // refreshed records, sorted by symbol
}

// Advance re-evaluates every tracked symbol at now: signal entries whose
// persistence window lapsed are reset, records are rebuilt, and symbols idle
// for longer than IdleTimeout are evicted from every layer.
func (e *Engine) Advance(now time.Time) AdvanceReport {
	e.tick(now)

	var rep AdvanceReport
	rep.Expired = e.fusion.Signals().Expire(now)
	for i := range rep.Expired {
		e.noteTransition(&rep.Expired[i])
	}

	for _, sym := range e.Symbols() {
		e.mu.RLock()
		st, ok := e.symbols[sym]
		e.mu.RUnlock()
		if !ok {
			continue
		}

		st.mu.Lock()
		if st.evicted {
			st.mu.Unlock()
			continue
		}
		if e.cfg.IdleTimeout > 0 && now.Sub(st.lastSeen) > e.cfg.IdleTimeout {
			e.evictLocked(sym, st)
			st.mu.Unlock()
			rep.Evicted = append(rep.Evicted, sym)
			continue
		}
		rec := e.fusion.Reevaluate(sym, now)
		st.record, st.hasRecord = rec, true
		st.mu.Unlock()
		rep.Records = append(rep.Records, rec)
	}

	if len(rep.Evicted) > 0 {
		e.hooks.SymbolsEvicted(len(rep.Evicted))
		e.mu.RLock()
		n := len(e.symbols)
		e.mu.RUnlock()
		e.hooks.SymbolsTracked(n)
		e.log.Info("symbols evicted", slog.Int("count", len(rep.Evicted)), slog.Any("symbols", rep.Evicted))
	}
	return rep
}

// evictLocked drops a symbol from every layer. The caller holds st.mu.
func (e *Engine) evictLocked(symbol string, st *symbolState) {
	st.evicted = true
	e.mu.Lock()
	if e.symbols[symbol] == st {
		delete(e.symbols, symbol)
	}
	e.mu.Unlock()
	e.indicators.Evict(symbol)
	e.filters.Evict(symbol)
	e.agg.Evict(symbol)
	e.fusion.Evict(symbol)
}

// GetLatestIndicator returns the latest result of (symbol, period).
func (e *Engine) GetLatestIndicator(symbol string, period int) (model.IndicatorResult, bool) {
	return e.indicators.Latest(symbol, period)
}

// GetTrendAnalysis returns the current record of a symbol.
func (e *Engine) GetTrendAnalysis(symbol string) (model.TrendAnalysis, bool) {
	e.mu.RLock()
	st, ok := e.symbols[symbol]
	e.mu.RUnlock()
	if !ok {
		return model.TrendAnalysis{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.record, st.hasRecord
}

// ScanMarket ranks the current records of the given instruments.
// Instruments without a record are skipped.
func (e *Engine) ScanMarket(instruments []model.Instrument) scanner.Result {
	cands := make([]scanner.Candidate, 0, len(instruments))
	for _, inst := range instruments {
		if rec, ok := e.GetTrendAnalysis(inst.Symbol); ok {
			cands = append(cands, scanner.Candidate{Instrument: inst, Trend: rec})
		}
	}
	e.mu.RLock()
	at := e.clock
	e.mu.RUnlock()
	return scanner.Scan(e.cfg.Scanner, cands, at)
}

// Symbols returns the tracked symbols, sorted.
func (e *Engine) Symbols() []string {
	e.mu.RLock()
	out := make([]string, 0, len(e.symbols))
	for s := range e.symbols {
		out = append(out, s)
	}
	e.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Instruments returns the tracked symbols as instruments named after themselves.
func (e *Engine) Instruments() []model.Instrument {
	syms := e.Symbols()
	out := make([]model.Instrument, len(syms))
	for i, s := range syms {
		out[i] = model.Instrument{Symbol: s, DisplayName: s}
	}
	return out
}

// Reset drops all state of every layer.
func (e *Engine) Reset() {
	e.mu.Lock()
	old := e.symbols
	e.symbols = make(map[string]*symbolState, 64)
	e.clock = time.Time{}
	e.mu.Unlock()

	for _, st := range old {
		st.mu.Lock()
		st.evicted = true
		st.mu.Unlock()
	}

	e.indicators.Reset()
	e.filters.Reset()
	e.agg.Reset()
	e.fusion.Reset()
	e.hooks.SymbolsTracked(0)
}
