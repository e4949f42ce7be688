package fusion

import (
	"time"

	"trend-signals/internal/aggregate"
	"trend-signals/internal/dsp"
	"trend-signals/internal/indicator"
	"trend-signals/internal/model"
)

// Inputs is everything the analyzer reads for one symbol.
type Inputs struct {
	Symbol     string
	Indicators []model.IndicatorResult // display periods, ready only
	Crossover  int
	RSI        float64
	RSIReady   bool
	ROC        model.ROCReading
	Hierarchy  model.HierarchyReading
	Filter     model.FilterReading
	FilterOK   bool
}

// ready reports whether every layer has enough history. A symbol whose
// averages are ready while its filter chain is not is treated as not ready.
func (in Inputs) ready() bool {
	return len(in.Indicators) > 0 &&
		in.Hierarchy.Ready &&
		in.FilterOK && in.Filter.RankReady && in.Filter.AMFMReady
}

func (in Inputs) snapshot() model.Snapshot {
	return model.Snapshot{
		Indicators: in.Indicators,
		Crossover:  in.Crossover,
		RSIReady:   in.RSIReady,
		RSI:        in.RSI,
		ROC:        in.ROC,
		Hierarchy:  in.Hierarchy,
		Filter:     in.Filter,
	}
}

// Analyzer produces TrendAnalysis records. It reads the indicator engine,
// filter bank and aggregator it was constructed with and owns the signal
// cache.
type Analyzer struct {
	cfg        Config
	indicators *indicator.Engine
	filters    *dsp.Bank
	agg        *aggregate.Aggregator
	signals    *SignalCache
}

// NewAnalyzer wires an analyzer to its upstream layers.
func NewAnalyzer(cfg Config, indicators *indicator.Engine, filters *dsp.Bank, agg *aggregate.Aggregator) *Analyzer {
	return &Analyzer{
		cfg:        cfg,
		indicators: indicators,
		filters:    filters,
		agg:        agg,
		signals:    NewSignalCache(cfg.Signal),
	}
}

// Signals exposes the signal cache.
func (a *Analyzer) Signals() *SignalCache { return a.signals }

// Gather reads the current upstream state of a symbol.
func (a *Analyzer) Gather(symbol string) Inputs {
	in := Inputs{
		Symbol:     symbol,
		Indicators: a.indicators.LatestAll(symbol, a.cfg.DisplayPeriods),
		Crossover:  a.indicators.Crossover(symbol),
		ROC:        a.agg.ROC(symbol),
		Hierarchy:  a.agg.Hierarchy(symbol),
	}
	in.RSI, in.RSIReady = a.indicators.RSI(symbol)
	in.Filter, in.FilterOK = a.filters.Latest(symbol)
	return in
}

// Analyze runs one analysis cycle for a symbol after a new observation: the
// selected raw call is fed to the signal cache.
func (a *Analyzer) Analyze(symbol string, now time.Time) (model.TrendAnalysis, *Transition) {
	return a.Evaluate(a.Gather(symbol), now, true)
}

// Reevaluate rebuilds a symbol's record at now without feeding a new raw
// call, so only lapse of the persistence window can change the signal.
func (a *Analyzer) Reevaluate(symbol string, now time.Time) model.TrendAnalysis {
	rec, _ := a.Evaluate(a.Gather(symbol), now, false)
	return rec
}

// Evaluate turns inputs into a record. When observe is set the selected call
// is applied to the signal cache.
func (a *Analyzer) Evaluate(in Inputs, now time.Time, observe bool) (model.TrendAnalysis, *Transition) {
	rec := model.TrendAnalysis{
		Symbol:         in.Symbol,
		Direction:      in.Hierarchy.Dominant,
		Recommendation: model.RecommendHold,
		Family:         model.FamilyNone,
		Quality:        model.QualityPoor,
		StrengthClass:  model.StrengthWeak,
		Snapshot:       in.snapshot(),
		UpdatedAt:      now,
	}
	if in.Filter.Cycle.Ready {
		rec.Quality = model.QualityOf(in.Filter.Cycle.Quality)
	}

	if !in.ready() {
		rec.Reason = model.ReasonInsufficientData
		rec.Signal = a.signals.Get(in.Symbol, now)
		return rec, nil
	}

	call := choose(a.trendFollowing(in), a.meanReversion(in))

	var tr *Transition
	if observe {
		dir, conf := model.Neutral, 0.0
		if call != nil {
			dir, conf = call.Direction(), call.Confidence()
		}
		rec.Signal, tr = a.signals.Observe(in.Symbol, dir, conf, now)
	} else {
		rec.Signal = a.signals.Get(in.Symbol, now)
	}

	if call == nil {
		rec.Reason = model.ReasonNoCandidate
		return rec, tr
	}
	rec.Direction = call.Direction()
	rec.Confidence = call.Confidence()
	rec.StrengthClass = model.StrengthClassOf(rec.Confidence)

	switch {
	case !in.ROC.Ready:
		rec.Reason = model.ReasonROCNotReady
		return rec, tr
	case in.ROC.Alignment == model.Neutral:
		rec.Reason = model.ReasonROCNeutral
		return rec, tr
	case !call.Accepts(in.ROC.Alignment):
		rec.Reason = model.ReasonROCConflict
		return rec, tr
	case rec.Signal.State != model.StateConfirmed || rec.Signal.Direction != call.Direction():
		rec.Reason = model.ReasonNoConfirmedSignal
		return rec, tr
	}

	score := call.Adjusted()
	if rec.Signal.Confirmations > a.cfg.Signal.MinConfirmations {
		score += a.cfg.ReconfirmBonus
	}
	score = clamp100(score)
	if score < a.cfg.MinScore {
		rec.Reason = model.ReasonBelowMinScore
		return rec, tr
	}

	rec.Score = score
	rec.Family = call.Family()
	rec.Recommendation = model.RecommendationFor(call.Direction())
	return rec, tr
}

// Evict forgets a symbol's signal entry.
func (a *Analyzer) Evict(symbol string) { a.signals.Evict(symbol) }

// Reset forgets every signal entry.
func (a *Analyzer) Reset() { a.signals.Reset() }
