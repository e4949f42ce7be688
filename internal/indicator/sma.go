package indicator

import "math"

// SMA calculates a Simple Moving Average over a rolling window, together with
// the rolling population variance. Uses a preallocated circular buffer for a
// zero-allocation hot path.
type SMA struct {
	period  int
	buf     []float64 // preallocated circular buffer
	idx     int       // current write position
	count   int       // total values received
	sum     float64
	sumSq   float64
	current float64
}

// NewSMA creates a new SMA indicator with the given period (minimum 1).
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Name() string { return "SMA" }

func (s *SMA) Add(v float64) (float64, bool) {
	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		old := s.buf[s.idx]
		s.sum -= old
		s.sumSq -= old * old
	}

	s.buf[s.idx] = v
	s.sum += v
	s.sumSq += v * v
	s.idx = (s.idx + 1) % s.period
	s.count++

	if s.count >= s.period {
		s.current = s.sum / float64(s.period)
		return s.current, true
	}
	return 0, false
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.count >= s.period }

// Partial returns the mean of the values seen so far, even before Ready.
func (s *SMA) Partial() float64 {
	n := s.count
	if n > s.period {
		n = s.period
	}
	if n == 0 {
		return 0
	}
	return s.sum / float64(n)
}

// Variance returns the population variance of the buffered values.
// Tiny negative results from cancellation are clamped to zero.
func (s *SMA) Variance() float64 {
	n := s.count
	if n > s.period {
		n = s.period
	}
	if n == 0 {
		return 0
	}
	mean := s.sum / float64(n)
	v := s.sumSq/float64(n) - mean*mean
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

// Reset clears the SMA state for reuse.
func (s *SMA) Reset() {
	s.idx = 0
	s.count = 0
	s.sum = 0
	s.sumSq = 0
	s.current = 0
	for i := range s.buf {
		s.buf[i] = 0
	}
}
