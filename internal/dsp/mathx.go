package dsp

import "math"

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// finite replaces NaN and Inf with 0.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// pctChange returns the percentage change from past to now, 0 when past is 0.
func pctChange(now, past float64) float64 {
	if past == 0 {
		return 0
	}
	return finite((now - past) / math.Abs(past) * 100)
}
