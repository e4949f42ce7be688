package dsp

import (
	"math"

	"trend-signals/internal/model"
)

// Hilbert transform taps shared by the detrender and quadrature stages.
const (
	tapA = 0.0962
	tapB = 0.5769
)

// CycleConfig parameterizes the cycle-phase discriminator.
type CycleConfig struct {
	MinSamples     int     // samples required before the first reading
	History        int     // bounded price history
	MinCycle       float64 // dominant cycle clamp, bars
	MaxCycle       float64
	DecyclerPeriod float64
}

// cycleScratch holds the derived per-index arrays. They are rebuilt from the
// bounded history on every step.
type cycleScratch struct {
	price, smooth, detrender []float64
	i1, q1, ji, jq           []float64
	i2, q2, re, im           []float64
	period, smoothPeriod     []float64
	instTrend, trendline     []float64
	decycler                 []float64
}

func newCycleScratch(n int) cycleScratch {
	mk := func() []float64 { return make([]float64, n) }
	return cycleScratch{
		price: mk(), smooth: mk(), detrender: mk(),
		i1: mk(), q1: mk(), ji: mk(), jq: mk(),
		i2: mk(), q2: mk(), re: mk(), im: mk(),
		period: mk(), smoothPeriod: mk(),
		instTrend: mk(), trendline: mk(),
		decycler: mk(),
	}
}

// CycleTracker is a homodyne cycle-phase discriminator over a bounded price
// history. Unlike the other stages it costs O(history) per sample.
type CycleTracker struct {
	cfg   CycleConfig
	buf   []float64
	idx   int
	count int
	s     cycleScratch

	decAlpha float64
}

// NewCycleTracker creates a tracker. MinSamples is raised to at least 7 and
// History to at least MinSamples.
func NewCycleTracker(cfg CycleConfig) *CycleTracker {
	if cfg.MinSamples < 7 {
		cfg.MinSamples = 7
	}
	if cfg.History < cfg.MinSamples {
		cfg.History = cfg.MinSamples
	}
	if cfg.MinCycle < 2 {
		cfg.MinCycle = 2
	}
	if cfg.MaxCycle < cfg.MinCycle {
		cfg.MaxCycle = cfg.MinCycle
	}
	if cfg.DecyclerPeriod < 2 {
		cfg.DecyclerPeriod = 2
	}
	w := 2 * math.Pi / cfg.DecyclerPeriod
	return &CycleTracker{
		cfg:      cfg,
		buf:      make([]float64, cfg.History),
		s:        newCycleScratch(cfg.History),
		decAlpha: (math.Cos(w) + math.Sin(w) - 1) / math.Cos(w),
	}
}

// Len returns the number of buffered samples.
func (c *CycleTracker) Len() int { return c.count }

// Add appends a price and returns the reading for the newest sample.
func (c *CycleTracker) Add(price float64) model.CycleReading {
	c.buf[c.idx] = price
	c.idx = (c.idx + 1) % len(c.buf)
	if c.count < len(c.buf) {
		c.count++
	}
	if c.count < c.cfg.MinSamples {
		return model.CycleReading{}
	}
	return c.compute()
}

// Reset clears the history.
func (c *CycleTracker) Reset() {
	c.idx = 0
	c.count = 0
}

// hilbert applies the fixed quadrature taps to v ending at index i.
func hilbert(v []float64, i int) float64 {
	at := func(k int) float64 {
		if k < 0 {
			return 0
		}
		return v[k]
	}
	return tapA*at(i) + tapB*at(i-2) - tapB*at(i-4) - tapA*at(i-6)
}

func (c *CycleTracker) compute() model.CycleReading {
	n := c.count
	s := &c.s
	start := c.idx - n
	if start < 0 {
		start += len(c.buf)
	}
	for i := 0; i < n; i++ {
		s.price[i] = c.buf[(start+i)%len(c.buf)]
	}
	x := s.price[:n]

	for i := 0; i < n; i++ {
		if i >= 3 {
			s.smooth[i] = (4*x[i] + 3*x[i-1] + 2*x[i-2] + x[i-3]) / 10
		} else {
			s.smooth[i] = x[i]
		}

		prevPeriod := c.cfg.MinCycle
		prevSmooth := c.cfg.MinCycle
		if i > 0 {
			prevPeriod = s.period[i-1]
			prevSmooth = s.smoothPeriod[i-1]
		}
		adj := 0.075*prevPeriod + 0.54

		s.detrender[i] = hilbert(s.smooth, i) * adj
		s.q1[i] = hilbert(s.detrender, i) * adj
		s.i1[i] = 0
		if i >= 3 {
			s.i1[i] = s.detrender[i-3]
		}
		s.ji[i] = hilbert(s.i1, i) * adj
		s.jq[i] = hilbert(s.q1, i) * adj

		i2 := s.i1[i] - s.jq[i]
		q2 := s.q1[i] + s.ji[i]
		if i > 0 {
			i2 = 0.2*i2 + 0.8*s.i2[i-1]
			q2 = 0.2*q2 + 0.8*s.q2[i-1]
		}
		s.i2[i], s.q2[i] = i2, q2

		// Homodyne discriminator.
		s.re[i], s.im[i] = 0, 0
		if i > 0 {
			re := i2*s.i2[i-1] + q2*s.q2[i-1]
			im := i2*s.q2[i-1] - q2*s.i2[i-1]
			s.re[i] = 0.2*re + 0.8*s.re[i-1]
			s.im[i] = 0.2*im + 0.8*s.im[i-1]
		}
		period := prevPeriod
		if s.im[i] != 0 && s.re[i] != 0 {
			if a := math.Atan(s.im[i] / s.re[i]); a != 0 {
				period = 2 * math.Pi / a
			}
		}
		period = clamp(period, 0.67*prevPeriod, 1.5*prevPeriod)
		period = 0.2*period + 0.8*prevPeriod
		period = clamp(period, c.cfg.MinCycle, c.cfg.MaxCycle)
		s.period[i] = period
		s.smoothPeriod[i] = 0.33*period + 0.67*prevSmooth
		if i == 0 {
			s.smoothPeriod[i] = period
		}

		// Instantaneous trendline: mean over one dominant cycle, then smoothed.
		dc := int(s.smoothPeriod[i] + 0.5)
		if dc > i+1 {
			dc = i + 1
		}
		var sum float64
		for k := i - dc + 1; k <= i; k++ {
			sum += x[k]
		}
		s.instTrend[i] = sum / float64(dc)
		if i >= 3 {
			s.trendline[i] = (4*s.instTrend[i] + 3*s.instTrend[i-1] + 2*s.instTrend[i-2] + s.instTrend[i-3]) / 10
		} else {
			s.trendline[i] = s.instTrend[i]
		}

		if i == 0 {
			s.decycler[i] = x[i]
		} else {
			s.decycler[i] = c.decAlpha/2*(x[i]+x[i-1]) + (1-c.decAlpha)*s.decycler[i-1]
		}
	}

	last := n - 1
	dc := int(s.smoothPeriod[last] + 0.5)
	if dc < 1 {
		dc = 1
	}
	if dc > n {
		dc = n
	}

	r := model.CycleReading{
		Ready:          true,
		DominantCycle:  s.smoothPeriod[last],
		Trendline:      s.trendline[last],
		Decycler:       s.decycler[last],
		Trend:          s.trendline[last],
		CycleComponent: s.smooth[last] - s.trendline[last],
		Noise:          x[last] - s.smooth[last],
		Amplitude:      math.Hypot(s.i1[last], s.q1[last]),
	}
	if s.i1[last] != 0 || s.q1[last] != 0 {
		r.Phase = math.Atan2(s.q1[last], s.i1[last]) * 180 / math.Pi
	}
	r.Power = r.Amplitude * r.Amplitude

	// Noise power and residual variance over the last dominant cycle.
	var noisePower, resSum, resSq float64
	for k := n - dc; k < n; k++ {
		nz := x[k] - s.smooth[k]
		noisePower += nz * nz
		res := x[k] - s.trendline[k]
		resSum += res
		resSq += res * res
	}
	noisePower /= float64(dc)
	resMean := resSum / float64(dc)
	resVar := resSq/float64(dc) - resMean*resMean
	if resVar < 0 {
		resVar = 0
	}

	if noisePower == 0 {
		r.SNR = 100
	} else {
		r.SNR = clamp(10*math.Log10(r.Power/noisePower), -100, 100)
	}

	// Quality weighs trend displacement over one cycle against the residual
	// variance around the trendline, blended with the SNR.
	from := last - dc
	if from < 0 {
		from = 0
	}
	d := s.trendline[last] - s.trendline[from]
	trendQ := 0.0
	if den := d*d + resVar; den > 0 {
		trendQ = 100 * d * d / den
	}
	snrQ := clamp(r.SNR/20, 0, 1) * 100
	r.Quality = clamp(0.75*trendQ+0.25*snrQ, 0, 100)

	if last > 0 {
		r.TrendDirection = model.DirectionOf(pctChange(s.trendline[last], s.trendline[last-1]), 1e-4)
	}

	r.DominantCycle = finite(r.DominantCycle)
	r.Phase = finite(r.Phase)
	r.Amplitude = finite(r.Amplitude)
	r.Power = finite(r.Power)
	r.Quality = finite(r.Quality)
	return r
}
