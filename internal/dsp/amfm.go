package dsp

import "trend-signals/internal/indicator"

// AMFM splits the bar derivative into an amplitude part (volatility) and a
// frequency part (timing).
type AMFM struct {
	env    []float64 // last |derivative| values
	idx    int
	count  int
	vol    *indicator.SMA
	timing *indicator.SMA
}

// NewAMFM creates the stage. envelope is the rectified peak window; volLen and
// timingLen are the averaging windows of the two outputs.
func NewAMFM(envelope, volLen, timingLen int) *AMFM {
	if envelope < 1 {
		envelope = 1
	}
	return &AMFM{
		env:    make([]float64, envelope),
		vol:    indicator.NewSMA(volLen),
		timing: indicator.NewSMA(timingLen),
	}
}

// Add consumes one derivative (close - open) and returns volatility and
// timing. timing is in [-1,1]. ok is false until both averages are filled.
func (a *AMFM) Add(deriv float64) (volatility, timing float64, ok bool) {
	abs := deriv
	if abs < 0 {
		abs = -abs
	}
	a.env[a.idx] = abs
	a.idx = (a.idx + 1) % len(a.env)
	if a.count < len(a.env) {
		a.count++
	}
	envelope := 0.0
	for i := 0; i < a.count; i++ {
		if a.env[i] > envelope {
			envelope = a.env[i]
		}
	}

	limited := 0.0
	if envelope > 0 {
		limited = clamp(deriv/envelope, -1, 1)
	}

	v, okV := a.vol.Add(envelope)
	tm, okT := a.timing.Add(limited)
	if !okV || !okT {
		return 0, 0, false
	}
	return v, tm, true
}

// Reset clears all state.
func (a *AMFM) Reset() {
	a.idx = 0
	a.count = 0
	a.vol.Reset()
	a.timing.Reset()
}
