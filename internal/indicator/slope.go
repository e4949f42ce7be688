package indicator

import "math"

// Slope lookback bounds: k scales with the period but stays small so the
// regression remains constant-cost per update.
const (
	minSlopeLookback = 3
	maxSlopeLookback = 20
)

// SlopeLookback returns the regression window used for a given period.
func SlopeLookback(period int) int {
	k := period / 2
	if k < minSlopeLookback {
		k = minSlopeLookback
	}
	if k > maxSlopeLookback {
		k = maxSlopeLookback
	}
	return k
}

// SlopeTracker keeps the last k values of a series and reports the
// least-squares slope over them.
type SlopeTracker struct {
	buf   []float64
	idx   int
	count int
}

// NewSlopeTracker creates a tracker with lookback k (minimum 2).
func NewSlopeTracker(k int) *SlopeTracker {
	if k < 2 {
		k = 2
	}
	return &SlopeTracker{buf: make([]float64, k)}
}

// Add appends v and returns the regression slope in value units per sample.
// With fewer than two values the slope is 0.
func (s *SlopeTracker) Add(v float64) float64 {
	s.buf[s.idx] = v
	s.idx = (s.idx + 1) % len(s.buf)
	if s.count < len(s.buf) {
		s.count++
	}
	return s.Slope()
}

// Slope returns the regression slope over the buffered values.
func (s *SlopeTracker) Slope() float64 {
	n := s.count
	if n < 2 {
		return 0
	}
	start := s.idx - n
	if start < 0 {
		start += len(s.buf)
	}
	var sx, sy, sxy, sxx float64
	for i := 0; i < n; i++ {
		x := float64(i)
		y := s.buf[(start+i)%len(s.buf)]
		sx += x
		sy += y
		sxy += x * y
		sxx += x * x
	}
	fn := float64(n)
	den := fn*sxx - sx*sx
	if den == 0 {
		return 0
	}
	return (fn*sxy - sx*sy) / den
}

// Len returns the number of buffered values.
func (s *SlopeTracker) Len() int { return s.count }

// Reset clears the tracker.
func (s *SlopeTracker) Reset() {
	s.idx = 0
	s.count = 0
}

// PercentOf expresses an absolute slope as a percentage of ref.
// A zero or non-finite reference yields 0.
func PercentOf(slope, ref float64) float64 {
	if ref == 0 || math.IsNaN(ref) || math.IsInf(ref, 0) {
		return 0
	}
	return slope / math.Abs(ref) * 100
}
