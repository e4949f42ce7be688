package gateway

import (
	"math"
	"sort"
	"sync"
)

// AgeSummary describes how old records were when they reached the hub.
type AgeSummary struct {
	Samples int     `json:"samples"`
	P50Ms   float64 `json:"p50_ms"`
	P95Ms   float64 `json:"p95_ms"`
	P99Ms   float64 `json:"p99_ms"`
	MaxMs   float64 `json:"max_ms"`
}

// AgeTracker keeps the last capacity record ages in a circular buffer.
type AgeTracker struct {
	mu      sync.Mutex
	samples []float64 // ms
	pos     int
	count   int
}

// NewAgeTracker creates a tracker that holds the last capacity samples.
func NewAgeTracker(capacity int) *AgeTracker {
	if capacity <= 0 {
		capacity = 10000
	}
	return &AgeTracker{samples: make([]float64, capacity)}
}

// Record adds an age sample in milliseconds.
func (a *AgeTracker) Record(ms float64) {
	a.mu.Lock()
	a.samples[a.pos] = ms
	a.pos = (a.pos + 1) % len(a.samples)
	if a.count < len(a.samples) {
		a.count++
	}
	a.mu.Unlock()
}

// Summary returns the percentiles of the held samples. The zero summary is
// returned when nothing has been recorded.
func (a *AgeTracker) Summary() AgeSummary {
	a.mu.Lock()
	n := a.count
	if n == 0 {
		a.mu.Unlock()
		return AgeSummary{}
	}
	// Order does not matter once sorted.
	sorted := make([]float64, n)
	copy(sorted, a.samples[:n])
	a.mu.Unlock()

	sort.Float64s(sorted)
	return AgeSummary{
		Samples: n,
		P50Ms:   percentile(sorted, 0.50),
		P95Ms:   percentile(sorted, 0.95),
		P99Ms:   percentile(sorted, 0.99),
		MaxMs:   sorted[n-1],
	}
}

// percentile linearly interpolates the p-th percentile (0.0–1.0) of a
// sorted slice.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	rank := p * float64(n-1)
	lower := int(math.Floor(rank))
	if lower+1 >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[lower+1]*frac
}
