package aggregate

import (
	"math"

	"trend-signals/internal/model"
)

// ROCConfig configures the dual-horizon rate of change.
type ROCConfig struct {
	ShortLookback int
	LongLookback  int
	// AlignmentMargin is the lead, in percentage points, by which the short
	// ROC must exceed the long ROC: bullish requires short > long+margin
	// with both positive.
	AlignmentMargin float64
}

// ROC tracks percentage change over a short and a long lookback.
type ROC struct {
	cfg   ROCConfig
	hist  []float64
	idx   int
	count int
	last  model.ROCReading
}

// NewROC creates a tracker.
func NewROC(cfg ROCConfig) *ROC {
	if cfg.ShortLookback < 1 {
		cfg.ShortLookback = 1
	}
	if cfg.LongLookback <= cfg.ShortLookback {
		cfg.LongLookback = cfg.ShortLookback + 1
	}
	return &ROC{cfg: cfg, hist: make([]float64, cfg.LongLookback+1)}
}

func (r *ROC) back(n int) float64 {
	l := len(r.hist)
	return r.hist[(r.idx-1-n+2*l)%l]
}

// Add appends a price. Not ready until LongLookback+1 prices are buffered.
func (r *ROC) Add(price float64) model.ROCReading {
	r.hist[r.idx] = price
	r.idx = (r.idx + 1) % len(r.hist)
	if r.count < len(r.hist) {
		r.count++
	}
	if r.count < len(r.hist) {
		r.last = model.ROCReading{}
		return r.last
	}
	short := pct(price, r.back(r.cfg.ShortLookback))
	long := pct(price, r.back(r.cfg.LongLookback))
	r.last = model.ROCReading{
		Ready:     true,
		Short:     short,
		Long:      long,
		Alignment: Alignment(short, long, r.cfg.AlignmentMargin),
	}
	return r.last
}

// Last returns the most recent reading.
func (r *ROC) Last() model.ROCReading { return r.last }

// Alignment classifies a short/long ROC pair. The short horizon has to lead
// the long one by more than margin in the direction both agree on.
func Alignment(short, long, margin float64) model.Direction {
	switch {
	case short > 0 && long > 0 && short > long+margin:
		return model.Bullish
	case short < 0 && long < 0 && short < long-margin:
		return model.Bearish
	default:
		return model.Neutral
	}
}

func pct(now, past float64) float64 {
	if past == 0 {
		return 0
	}
	v := (now - past) / math.Abs(past) * 100
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
