package dsp

import "math"

// HighPass is a 2-pole high-pass filter. It keeps the last two inputs and the
// last two outputs.
type HighPass struct {
	c1, c2, c3 float64
	x1, x2     float64
	y1, y2     float64
	count      int
}

// NewHighPass creates a high-pass filter with the given cutoff period.
func NewHighPass(period float64) *HighPass {
	if period < 2 {
		period = 2
	}
	w := 0.707 * 2 * math.Pi / period
	alpha := (math.Cos(w) + math.Sin(w) - 1) / math.Cos(w)
	return &HighPass{
		c1: (1 - alpha/2) * (1 - alpha/2),
		c2: 2 * (1 - alpha),
		c3: -(1 - alpha) * (1 - alpha),
	}
}

// Add filters one sample. The first two outputs are zero.
func (h *HighPass) Add(x float64) float64 {
	h.count++
	y := 0.0
	if h.count > 2 {
		y = h.c1*(x-2*h.x1+h.x2) + h.c2*h.y1 + h.c3*h.y2
	}
	h.x2, h.x1 = h.x1, x
	h.y2, h.y1 = h.y1, y
	return y
}

// Reset clears the filter memory.
func (h *HighPass) Reset() {
	h.x1, h.x2, h.y1, h.y2, h.count = 0, 0, 0, 0, 0
}

// SuperSmoother is a 2-pole low-pass filter with minimal lag.
type SuperSmoother struct {
	c1, c2, c3 float64
	x1         float64
	y1, y2     float64
	count      int
}

// NewSuperSmoother creates a super-smoother with the given cutoff period.
func NewSuperSmoother(period float64) *SuperSmoother {
	if period < 2 {
		period = 2
	}
	a := math.Exp(-1.414 * math.Pi / period)
	b := 2 * a * math.Cos(1.414*math.Pi/period)
	c2 := b
	c3 := -a * a
	return &SuperSmoother{
		c1: 1 - c2 - c3,
		c2: c2,
		c3: c3,
	}
}

// Add filters one sample. The first two outputs pass the input through.
func (s *SuperSmoother) Add(x float64) float64 {
	s.count++
	y := x
	if s.count > 2 {
		y = s.c1*(x+s.x1)/2 + s.c2*s.y1 + s.c3*s.y2
	}
	s.x1 = x
	s.y2, s.y1 = s.y1, y
	return y
}

// Reset clears the filter memory.
func (s *SuperSmoother) Reset() {
	s.x1, s.y1, s.y2, s.count = 0, 0, 0, 0
}
