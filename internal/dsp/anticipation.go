package dsp

import (
	"math"

	"trend-signals/internal/indicator"
	"trend-signals/internal/model"
)

// AnticipationConfig holds the lookbacks, blend weights and tier thresholds of
// the anticipatory score.
type AnticipationConfig struct {
	ShortLookback  int
	MediumLookback int
	LongLookback   int

	ShortWeight  float64
	MediumWeight float64
	AccelWeight  float64
	CycleWeight  float64

	WeakTier   float64
	MediumTier float64
	StrongTier float64
}

// Anticipator blends momentum at three horizons, the acceleration of the
// short rate of change and the cycle position into a score in [-100,100].
// A non-neutral score opposing the long momentum is flagged as a reversal.
type Anticipator struct {
	cfg   AnticipationConfig
	hist  []float64 // last LongLookback+1 prices
	idx   int
	count int

	absRet    *indicator.SMMA // Wilder-smoothed |1-step % return|
	accel     *indicator.EMA
	prevShort float64
	haveShort bool
}

// NewAnticipator creates the stage.
func NewAnticipator(cfg AnticipationConfig) *Anticipator {
	if cfg.ShortLookback < 1 {
		cfg.ShortLookback = 1
	}
	if cfg.MediumLookback <= cfg.ShortLookback {
		cfg.MediumLookback = cfg.ShortLookback + 1
	}
	if cfg.LongLookback <= cfg.MediumLookback {
		cfg.LongLookback = cfg.MediumLookback + 1
	}
	return &Anticipator{
		cfg:    cfg,
		hist:   make([]float64, cfg.LongLookback+1),
		absRet: indicator.NewSMMA(14),
		accel:  indicator.NewEMA(3),
	}
}

// back returns the price n steps before the newest.
func (a *Anticipator) back(n int) float64 {
	l := len(a.hist)
	return a.hist[(a.idx-1-n+2*l)%l]
}

// Add consumes one price and the current cycle reading.
func (a *Anticipator) Add(price float64, cyc model.CycleReading) model.Anticipation {
	a.hist[a.idx] = price
	a.idx = (a.idx + 1) % len(a.hist)
	if a.count < len(a.hist) {
		a.count++
	}
	if a.count >= 2 {
		a.absRet.Add(math.Abs(pctChange(price, a.back(1))))
	}

	short := 0.0
	if a.count > a.cfg.ShortLookback {
		short = pctChange(price, a.back(a.cfg.ShortLookback))
		if a.haveShort {
			a.accel.Add(short - a.prevShort)
		}
		a.prevShort, a.haveShort = short, true
	}

	if a.count < len(a.hist) || !a.absRet.Ready() || !a.accel.Ready() {
		return model.Anticipation{Tier: model.TierNone}
	}

	medium := pctChange(price, a.back(a.cfg.MediumLookback))
	long := pctChange(price, a.back(a.cfg.LongLookback))
	acc := a.accel.Value()
	unit := a.absRet.Value()

	blend := a.cfg.ShortWeight*squash(short, unit*math.Sqrt(float64(a.cfg.ShortLookback))) +
		a.cfg.MediumWeight*squash(medium, unit*math.Sqrt(float64(a.cfg.MediumLookback))) +
		a.cfg.AccelWeight*squash(acc, unit)
	if cyc.Ready && cyc.Amplitude > 0 {
		// Below the trendline within a cycle points to an upturn and vice versa.
		blend += a.cfg.CycleWeight * clamp(-cyc.CycleComponent/cyc.Amplitude, -1, 1)
	}
	score := clamp(100*blend, -100, 100)

	out := model.Anticipation{
		Ready:          true,
		Score:          score,
		Tier:           a.tierOf(math.Abs(score)),
		ShortMomentum:  short,
		MediumMomentum: medium,
		LongMomentum:   long,
		Acceleration:   acc,
	}
	if out.Tier != model.TierNone {
		out.Direction = model.DirectionOf(score, 0)
		out.Reversal = long != 0 && math.Signbit(long) != math.Signbit(score)
	}
	return out
}

func (a *Anticipator) tierOf(abs float64) model.AnticipationTier {
	switch {
	case abs >= a.cfg.StrongTier:
		return model.TierStrong
	case abs >= a.cfg.MediumTier:
		return model.TierMedium
	case abs >= a.cfg.WeakTier:
		return model.TierWeak
	default:
		return model.TierNone
	}
}

// Reset clears all state.
func (a *Anticipator) Reset() {
	a.idx = 0
	a.count = 0
	a.absRet.Reset()
	a.accel.Reset()
	a.prevShort = 0
	a.haveShort = false
}

// squash maps x to (-1,1) relative to scale. A zero scale degrades to the sign.
func squash(x, scale float64) float64 {
	if scale <= 0 || math.IsNaN(scale) {
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		}
		return 0
	}
	return math.Tanh(x / scale)
}
