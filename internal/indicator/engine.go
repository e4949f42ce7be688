package indicator

import (
	"math"
	"sort"
	"sync"

	"trend-signals/internal/model"
)

// Config configures the per-(symbol, period) engine.
type Config struct {
	// Periods lists every period tracked per symbol. Display periods and
	// hierarchy periods are merged by the caller.
	Periods []int

	// FastPeriod and SlowPeriod select the crossover pair. Both must be in
	// Periods; zero picks the smallest and largest period.
	FastPeriod int
	SlowPeriod int

	// SlopeThreshold is the dead band for direction, in % of value per sample.
	SlopeThreshold float64

	RSIPeriod int
}

// DefaultConfig returns the periods used by the hosted service.
func DefaultConfig() Config {
	return Config{
		Periods:        []int{5, 10, 20},
		SlopeThreshold: 0.05,
		RSIPeriod:      14,
	}
}

func (c Config) normalized() Config {
	seen := make(map[int]struct{}, len(c.Periods))
	periods := make([]int, 0, len(c.Periods))
	for _, p := range c.Periods {
		if p < 1 {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		periods = append(periods, p)
	}
	sort.Ints(periods)
	c.Periods = periods
	if len(periods) > 0 {
		if _, ok := seen[c.FastPeriod]; !ok {
			c.FastPeriod = periods[0]
		}
		if _, ok := seen[c.SlowPeriod]; !ok {
			c.SlowPeriod = periods[len(periods)-1]
		}
	}
	if c.SlopeThreshold <= 0 {
		c.SlopeThreshold = 0.05
	}
	if c.RSIPeriod < 1 {
		c.RSIPeriod = 14
	}
	return c
}

// series is the state of one (symbol, period) pair.
type series struct {
	period    int
	hull      *Hull
	slope     *SlopeTracker // over the weighted average
	hullSlope *SlopeTracker // over the Hull value
	latest    model.IndicatorResult
	ready     bool
}

func newSeries(period int) *series {
	k := SlopeLookback(period)
	return &series{
		period:    period,
		hull:      NewHull(period),
		slope:     NewSlopeTracker(k),
		hullSlope: NewSlopeTracker(k),
	}
}

// add feeds one value. The result becomes available once the full-period
// weighted average is ready; the Hull value is attached when it is too.
func (s *series) add(symbol string, obs model.Observation, threshold float64) (model.IndicatorResult, bool) {
	h, hullOK := s.hull.Add(obs.Close)
	w, ok := s.hull.Base()
	if !ok {
		return model.IndicatorResult{}, false
	}

	res := model.IndicatorResult{
		Symbol: symbol,
		Period: s.period,
		Value:  w,
		Slope:  PercentOf(s.slope.Add(w), w),
		TS:     obs.TS,
	}
	if hullOK {
		res.Hull = h
		res.HullReady = true
		res.HullSlope = PercentOf(s.hullSlope.Add(h), h)
	}
	res.Direction = model.DirectionOf(res.Slope, threshold)
	res.Strength = strengthOf(res.Slope, threshold)

	s.latest = res
	s.ready = true
	return res, true
}

// strengthOf maps |slope| to 0-100, saturating at four times the threshold.
func strengthOf(slope, threshold float64) float64 {
	if threshold <= 0 || math.IsNaN(slope) {
		return 0
	}
	v := math.Abs(slope) / (4 * threshold) * 100
	if v > 100 {
		return 100
	}
	return v
}

// symbolState holds all period series of one symbol.
type symbolState struct {
	mu     sync.Mutex
	series map[int]*series
	rsi    *RSI
	cross  Crossover
}

// Engine computes weighted averages, Hull values and slopes for every
// configured period of every symbol. State for each (symbol, period) pair is
// fully independent. Safe for concurrent use.
type Engine struct {
	cfg Config

	mu      sync.RWMutex
	symbols map[string]*symbolState
}

// NewEngine creates an engine. Invalid or duplicate periods are dropped.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:     cfg.normalized(),
		symbols: make(map[string]*symbolState, 64),
	}
}

// Config returns the normalized configuration.
func (e *Engine) Config() Config { return e.cfg }

// Periods returns the tracked periods in ascending order.
func (e *Engine) Periods() []int {
	out := make([]int, len(e.cfg.Periods))
	copy(out, e.cfg.Periods)
	return out
}

func (e *Engine) state(symbol string) *symbolState {
	e.mu.RLock()
	st, ok := e.symbols[symbol]
	e.mu.RUnlock()
	if ok {
		return st
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok = e.symbols[symbol]; ok {
		return st
	}
	st = &symbolState{
		series: make(map[int]*series, len(e.cfg.Periods)),
		rsi:    NewRSI(e.cfg.RSIPeriod),
	}
	for _, p := range e.cfg.Periods {
		st.series[p] = newSeries(p)
	}
	e.symbols[symbol] = st
	return st
}

func (e *Engine) lookup(symbol string) (*symbolState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.symbols[symbol]
	return st, ok
}

// Add appends one value to a single (symbol, period) series and returns its
// weighted average once period samples have been seen. Periods outside the
// configuration get their own series on first use.
func (e *Engine) Add(symbol string, period int, value float64) (float64, bool) {
	if period < 1 {
		return 0, false
	}
	st := e.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.series[period]
	if !ok {
		s = newSeries(period)
		st.series[period] = s
	}
	res, ok := s.add(symbol, model.Observation{Symbol: symbol, Close: value}, e.cfg.SlopeThreshold)
	if !ok {
		return 0, false
	}
	return res.Value, true
}

// Update feeds one observation to every configured period of its symbol and
// returns the ready results in period order together with the crossover
// signal of the fast/slow pair (+1, -1 or 0) for this update.
func (e *Engine) Update(obs model.Observation) ([]model.IndicatorResult, int) {
	st := e.state(obs.Symbol)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.rsi.Add(obs.Close)

	results := make([]model.IndicatorResult, 0, len(e.cfg.Periods))
	var fast, slow float64
	var fastOK, slowOK bool
	for _, p := range e.cfg.Periods {
		res, ok := st.series[p].add(obs.Symbol, obs, e.cfg.SlopeThreshold)
		if !ok {
			continue
		}
		results = append(results, res)
		if p == e.cfg.FastPeriod {
			fast, fastOK = res.Value, true
		}
		if p == e.cfg.SlowPeriod {
			slow, slowOK = res.Value, true
		}
	}

	cross := 0
	if fastOK && slowOK {
		cross = st.cross.Update(fast, slow)
	}
	return results, cross
}

// Latest returns the most recent result for (symbol, period).
func (e *Engine) Latest(symbol string, period int) (model.IndicatorResult, bool) {
	st, ok := e.lookup(symbol)
	if !ok {
		return model.IndicatorResult{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.series[period]
	if !ok || !s.ready {
		return model.IndicatorResult{}, false
	}
	return s.latest, true
}

// LatestAll returns the most recent ready results of a symbol for the given
// periods, skipping periods that are not ready.
func (e *Engine) LatestAll(symbol string, periods []int) []model.IndicatorResult {
	st, ok := e.lookup(symbol)
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]model.IndicatorResult, 0, len(periods))
	for _, p := range periods {
		if s, ok := st.series[p]; ok && s.ready {
			out = append(out, s.latest)
		}
	}
	return out
}

// RSI returns the symbol's RSI and whether it is ready.
func (e *Engine) RSI(symbol string) (float64, bool) {
	st, ok := e.lookup(symbol)
	if !ok {
		return 0, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.rsi.Value(), st.rsi.Ready()
}

// Crossover returns the last crossover signal of the fast/slow pair.
func (e *Engine) Crossover(symbol string) int {
	st, ok := e.lookup(symbol)
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cross.Last()
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

// Evict drops all state of a symbol.
func (e *Engine) Evict(symbol string) {
	e.mu.Lock()
	delete(e.symbols, symbol)
	e.mu.Unlock()
}

// Reset drops all state.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.symbols = make(map[string]*symbolState, 64)
	e.mu.Unlock()
}
