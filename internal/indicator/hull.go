package indicator

import "math"

// Hull is a Hull-type moving average composed of three independent weighted
// windows: A (period/2) and B (period) over the raw input, and C (sqrt(period))
// over the intermediate series 2*WMA_A - WMA_B.
type Hull struct {
	period  int
	half    *WeightedWindow
	full    *WeightedWindow
	smooth  *WeightedWindow
	current float64
	ready   bool
}

// NewHull creates a Hull average for the given period (minimum 1).
func NewHull(period int) *Hull {
	if period < 1 {
		period = 1
	}
	return &Hull{
		period: period,
		half:   NewWeightedWindow(maxInt(1, period/2)),
		full:   NewWeightedWindow(period),
		smooth: NewWeightedWindow(maxInt(1, int(math.Sqrt(float64(period))))),
	}
}

func (h *Hull) Name() string { return "HULL" }

// Period returns the nominal period.
func (h *Hull) Period() int { return h.period }

// Warmup returns how many samples are needed before the first output.
func (h *Hull) Warmup() int {
	return h.full.Period() + h.smooth.Period() - 1
}

// Add feeds both raw windows on every call so their state stays aligned, and
// only reaches the smoothing window once both are ready.
func (h *Hull) Add(v float64) (float64, bool) {
	a, okA := h.half.Add(v)
	b, okB := h.full.Add(v)
	if !okA || !okB {
		return 0, false
	}
	c, okC := h.smooth.Add(2*a - b)
	if !okC {
		return 0, false
	}
	h.current = c
	h.ready = true
	return c, true
}

// Base returns the full-period weighted average that feeds the Hull.
func (h *Hull) Base() (float64, bool) {
	return h.full.Value(), h.full.Ready()
}

func (h *Hull) Value() float64 { return h.current }
func (h *Hull) Ready() bool    { return h.ready }

// Reset clears all three windows.
func (h *Hull) Reset() {
	h.half.Reset()
	h.full.Reset()
	h.smooth.Reset()
	h.current = 0
	h.ready = false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
