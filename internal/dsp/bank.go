package dsp

import (
	"sort"
	"sync"

	"trend-signals/internal/model"
)

// Config parameterizes every stage of the bank.
type Config struct {
	HighPassPeriod   float64
	SmootherPeriod   float64
	RankLength       int
	EnvelopeLength   int
	VolatilityLength int
	TimingLength     int
	Cycle            CycleConfig
	Anticipation     AnticipationConfig
}

// DefaultConfig returns the stage parameters used by the hosted service.
func DefaultConfig() Config {
	return Config{
		HighPassPeriod:   40,
		SmootherPeriod:   10,
		RankLength:       14,
		EnvelopeLength:   4,
		VolatilityLength: 8,
		TimingLength:     10,
		Cycle: CycleConfig{
			MinSamples:     50,
			History:        200,
			MinCycle:       10,
			MaxCycle:       50,
			DecyclerPeriod: 40,
		},
		Anticipation: AnticipationConfig{
			ShortLookback:  3,
			MediumLookback: 10,
			LongLookback:   30,
			ShortWeight:    0.35,
			MediumWeight:   0.20,
			AccelWeight:    0.25,
			CycleWeight:    0.20,
			WeakTier:       30,
			MediumTier:     50,
			StrongTier:     70,
		},
	}
}

// chain is the filter state of one symbol.
type chain struct {
	mu      sync.Mutex
	samples int
	hp      *HighPass
	ss      *SuperSmoother
	rank    *RankCorrelation
	amfm    *AMFM
	cycle   *CycleTracker
	antic   *Anticipator
	latest  model.FilterReading
}

func newChain(cfg Config) *chain {
	return &chain{
		hp:    NewHighPass(cfg.HighPassPeriod),
		ss:    NewSuperSmoother(cfg.SmootherPeriod),
		rank:  NewRankCorrelation(cfg.RankLength),
		amfm:  NewAMFM(cfg.EnvelopeLength, cfg.VolatilityLength, cfg.TimingLength),
		cycle: NewCycleTracker(cfg.Cycle),
		antic: NewAnticipator(cfg.Anticipation),
	}
}

func (c *chain) update(o model.Observation) model.FilterReading {
	c.samples++
	r := model.FilterReading{Samples: c.samples}

	r.HighPass = finite(c.hp.Add(o.Close))
	r.Smoothed = finite(c.ss.Add(r.HighPass))
	r.RankCorrelation, r.RankReady = c.rank.Add(r.Smoothed)
	r.Volatility, r.Timing, r.AMFMReady = c.amfm.Add(o.Close - o.Open)
	// The discriminator runs on price: its trendline and decycler are price
	// levels. It counts one sample per roofing output, so its readiness
	// still tracks the number of filtered samples.
	r.Cycle = c.cycle.Add(o.Close)
	r.Anticipation = c.antic.Add(o.Close, r.Cycle)

	c.latest = r
	return r
}

// Bank runs one filter chain per symbol. Chains are created on first use and
// are independent of each other. Safe for concurrent use.
type Bank struct {
	cfg Config

	mu     sync.RWMutex
	chains map[string]*chain
}

// NewBank creates a filter bank.
func NewBank(cfg Config) *Bank {
	return &Bank{
		cfg:    cfg,
		chains: make(map[string]*chain, 64),
	}
}

func (b *Bank) chainFor(symbol string) *chain {
	b.mu.RLock()
	c, ok := b.chains[symbol]
	b.mu.RUnlock()
	if ok {
		return c
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok = b.chains[symbol]; ok {
		return c
	}
	c = newChain(b.cfg)
	b.chains[symbol] = c
	return c
}

// Update runs one observation through the symbol's chain. For ticks the
// caller sets Open to the previous quote.
func (b *Bank) Update(o model.Observation) model.FilterReading {
	c := b.chainFor(o.Symbol)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.update(o)
}

// Latest returns the most recent reading of a symbol.
func (b *Bank) Latest(symbol string) (model.FilterReading, bool) {
	b.mu.RLock()
	c, ok := b.chains[symbol]
	b.mu.RUnlock()
	if !ok {
		return model.FilterReading{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, c.samples > 0
}

// Symbols returns the tracked symbols, sorted.
func (b *Bank) Symbols() []string {
	b.mu.RLock()
	out := make([]string, 0, len(b.chains))
	for s := range b.chains {
		out = append(out, s)
	}
	b.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Evict drops a symbol's chain.
func (b *Bank) Evict(symbol string) {
	b.mu.Lock()
	delete(b.chains, symbol)
	b.mu.Unlock()
}

// Reset drops every chain.
func (b *Bank) Reset() {
	b.mu.Lock()
	b.chains = make(map[string]*chain, 64)
	b.mu.Unlock()
}
