package dsp

// RankCorrelation measures how consistently the last n samples move in one
// direction. Each pair of samples is compared against a strictly decreasing
// reference ramp indexed from the newest sample, so a series that rose on
// every step scores +1 and one that fell on every step scores -1. The result
// ignores amplitude.
type RankCorrelation struct {
	buf   []float64
	idx   int
	count int
}

// NewRankCorrelation creates the stage over n samples (minimum 2).
func NewRankCorrelation(n int) *RankCorrelation {
	if n < 2 {
		n = 2
	}
	return &RankCorrelation{buf: make([]float64, n)}
}

// Add appends a sample and returns the correlation in [-1,1] once n samples
// are buffered.
func (r *RankCorrelation) Add(v float64) (float64, bool) {
	r.buf[r.idx] = v
	r.idx = (r.idx + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	if r.count < len(r.buf) {
		return 0, false
	}
	return r.value(), true
}

// at returns the sample i steps back from the newest (0 = newest).
func (r *RankCorrelation) at(i int) float64 {
	n := len(r.buf)
	return r.buf[(r.idx-1-i+2*n)%n]
}

func (r *RankCorrelation) value() float64 {
	n := len(r.buf)
	var concordant, discordant int
	for i := 0; i < n-1; i++ {
		xi := r.at(i)
		for j := i + 1; j < n; j++ {
			// The ramp ranks index i above index j.
			switch xj := r.at(j); {
			case xi > xj:
				concordant++
			case xi < xj:
				discordant++
			}
		}
	}
	pairs := n * (n - 1) / 2
	return float64(concordant-discordant) / float64(pairs)
}

// Reset clears the buffer.
func (r *RankCorrelation) Reset() {
	r.idx = 0
	r.count = 0
}
