package indicator

import (
	"math"
	"math/rand"
	"testing"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// naiveWMA recomputes the weighted average of the last p values from scratch.
func naiveWMA(vals []float64, p int) float64 {
	window := vals[len(vals)-p:]
	var num float64
	for i, v := range window {
		num += float64(i+1) * v
	}
	return num / (float64(p) * float64(p+1) / 2)
}

// ────────────────────────────────────────────────────────────
// WeightedWindow Correctness
// ────────────────────────────────────────────────────────────

func TestWMA_Correctness_Period3(t *testing.T) {
	// WMA(3), weights 1,2,3, divisor 6
	// Prices: 100, 102, 104, 103, 105
	// After 3: (100*1+102*2+104*3)/6 = 616/6 = 102.6667
	// After 4: (102*1+104*2+103*3)/6 = 619/6 = 103.1667
	// After 5: (104*1+103*2+105*3)/6 = 625/6 = 104.1667
	w := NewWeightedWindow(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.6667, 103.1667, 104.1667}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		v, ok := w.Add(p)
		if ok != ready[i] {
			t.Errorf("value %d: ok=%v, want %v", i, ok, ready[i])
		}
		if ready[i] {
			assertClose(t, "WMA(3)", v, expected[i], 0.001)
		}
	}
}

func TestWMA_MatchesNaive_AllPeriods(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, p := range []int{1, 2, 3, 5, 8, 13, 20, 48} {
		w := NewWeightedWindow(p)
		var vals []float64
		price := 100.0
		for i := 0; i < 3000; i++ {
			price += rng.NormFloat64()
			vals = append(vals, price)
			v, ok := w.Add(price)
			if i < p-1 {
				if ok {
					t.Fatalf("period %d: ready after %d values", p, i+1)
				}
				continue
			}
			if !ok {
				t.Fatalf("period %d: not ready after %d values", p, i+1)
			}
			assertClose(t, "WMA vs naive", v, naiveWMA(vals, p), 1e-7)
			if w.Len() > p {
				t.Fatalf("period %d: len %d exceeds period", p, w.Len())
			}
		}
	}
}

func TestWMA_Reset(t *testing.T) {
	w := NewWeightedWindow(3)
	for _, p := range []float64{1, 2, 3, 4} {
		w.Add(p)
	}
	w.Reset()
	if w.Ready() || w.Len() != 0 {
		t.Fatalf("expected empty window after reset, ready=%v len=%d", w.Ready(), w.Len())
	}
	w.Add(10)
	w.Add(10)
	v, _ := w.Add(10)
	assertClose(t, "WMA after reset", v, 10, 1e-12)
}

// ────────────────────────────────────────────────────────────
// Hull Correctness
// ────────────────────────────────────────────────────────────

func TestHull_EagerNotReady(t *testing.T) {
	// period 9: A=4, B=9, C=3 → first value at sample 9+3-1 = 11
	h := NewHull(9)
	if h.Warmup() != 11 {
		t.Fatalf("Warmup()=%d, want 11", h.Warmup())
	}
	for i := 1; i <= 20; i++ {
		_, ok := h.Add(float64(100 + i))
		if want := i >= 11; ok != want {
			t.Errorf("sample %d: ok=%v, want %v", i, ok, want)
		}
	}
}

func TestHull_MatchesComposition(t *testing.T) {
	const p = 16
	h := NewHull(p)
	var raw, inter []float64
	rng := rand.New(rand.NewSource(3))
	price := 50.0
	for i := 0; i < 200; i++ {
		price += rng.NormFloat64() * 0.3
		raw = append(raw, price)
		got, ok := h.Add(price)
		if len(raw) < p {
			continue
		}
		inter = append(inter, 2*naiveWMA(raw, p/2)-naiveWMA(raw, p))
		if len(inter) < 4 {
			if ok {
				t.Fatalf("sample %d: Hull ready before smoothing window filled", i+1)
			}
			continue
		}
		if !ok {
			t.Fatalf("sample %d: Hull not ready", i+1)
		}
		assertClose(t, "Hull(16)", got, naiveWMA(inter, 4), 1e-7)
	}
}

func TestHull_LinearSeriesHasNoLag(t *testing.T) {
	// On a straight line the Hull average tracks the latest value closely,
	// while the plain weighted average lags behind.
	h := NewHull(20)
	w := NewWeightedWindow(20)
	var last float64
	for i := 0; i < 60; i++ {
		last = 100 + float64(i)
		h.Add(last)
		w.Add(last)
	}
	if math.Abs(h.Value()-last) >= math.Abs(w.Value()-last) {
		t.Errorf("Hull should lag less than WMA: hull=%.4f wma=%.4f last=%.4f", h.Value(), w.Value(), last)
	}
}

// ────────────────────────────────────────────────────────────
// Slope
// ────────────────────────────────────────────────────────────

func TestSlopeLookback_Clamped(t *testing.T) {
	cases := []struct{ period, want int }{
		{1, 3}, {5, 3}, {6, 3}, {10, 5}, {20, 10}, {40, 20}, {200, 20},
	}
	for _, c := range cases {
		if got := SlopeLookback(c.period); got != c.want {
			t.Errorf("SlopeLookback(%d)=%d, want %d", c.period, got, c.want)
		}
	}
}

func TestSlopeTracker_Linear(t *testing.T) {
	s := NewSlopeTracker(5)
	var got float64
	for i := 0; i < 10; i++ {
		got = s.Add(3*float64(i) + 7)
	}
	assertClose(t, "slope of 3x+7", got, 3, 1e-9)
	if s.Len() != 5 {
		t.Errorf("Len()=%d, want 5", s.Len())
	}
}

func TestSlopeTracker_RobustToSingleSpike(t *testing.T) {
	// A spike in the middle of a flat window moves a regression slope much
	// less than a two-point difference would.
	s := NewSlopeTracker(9)
	for i := 0; i < 9; i++ {
		v := 100.0
		if i == 4 {
			v = 110
		}
		s.Add(v)
	}
	assertClose(t, "spike slope", s.Slope(), 0, 1e-9)
}

func TestPercentOf_Degenerate(t *testing.T) {
	assertClose(t, "zero ref", PercentOf(1, 0), 0, 0)
	assertClose(t, "inf ref", PercentOf(1, math.Inf(1)), 0, 0)
	assertClose(t, "normal", PercentOf(1, 200), 0.5, 1e-12)
}

// ────────────────────────────────────────────────────────────
// Crossover
// ────────────────────────────────────────────────────────────

func TestCrossover_Basic(t *testing.T) {
	var c Crossover
	steps := []struct {
		fast, slow float64
		want       int
	}{
		{1, 2, 0},  // first update only records
		{1, 2, 0},  // still below
		{2, 2, 0},  // touching keeps previous sign
		{3, 2, 1},  // crosses up
		{4, 2, 0},  // stays above
		{1, 2, -1}, // crosses down
		{1, 2, 0},
	}
	for i, s := range steps {
		if got := c.Update(s.fast, s.slow); got != s.want {
			t.Errorf("step %d: got %d, want %d", i, got, s.want)
		}
	}
}

// ────────────────────────────────────────────────────────────
// SMA / EMA / SMMA Correctness
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// Prices: 100, 102, 104, 103, 105
	// SMA after 3: 102, after 4: 103, after 5: 104
	sma := NewSMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 103.0, 104.0}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		sma.Add(p)
		if sma.Ready() != ready[i] {
			t.Errorf("value %d: Ready()=%v, want %v", i, sma.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "SMA(3)", sma.Value(), expected[i], 0.0001)
		}
	}
}

func TestSMA_Variance(t *testing.T) {
	sma := NewSMA(4)
	for _, p := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		sma.Add(p)
	}
	// last four: 5,5,7,9 → mean 6.5, population variance 2.75
	assertClose(t, "SMA(4) mean", sma.Value(), 6.5, 1e-9)
	assertClose(t, "SMA(4) variance", sma.Variance(), 2.75, 1e-9)

	flat := NewSMA(3)
	for i := 0; i < 5; i++ {
		flat.Add(1e6 + 0.1)
	}
	if v := flat.Variance(); v < 0 || math.IsNaN(v) {
		t.Errorf("flat variance must be non-negative, got %v", v)
	}
}

func TestEMA_Correctness_Period3(t *testing.T) {
	// EMA(3): multiplier = 0.5
	// seed = (100+102+104)/3 = 102
	// 103 → 102.5, 105 → 103.75
	ema := NewEMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 102.5, 103.75}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		ema.Add(p)
		if ema.Ready() != ready[i] {
			t.Errorf("value %d: Ready()=%v, want %v", i, ema.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "EMA(3)", ema.Value(), expected[i], 0.0001)
		}
	}
}

func TestSMMA_Correctness_Period3(t *testing.T) {
	// seed = 102, then (102*2+103)/3 = 102.3333, (102.3333*2+105)/3 = 103.2222
	smma := NewSMMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 102.3333, 103.2222}

	for i, p := range prices {
		smma.Add(p)
		if i >= 2 {
			assertClose(t, "SMMA(3)", smma.Value(), expected[i], 0.001)
		}
	}
}

// ────────────────────────────────────────────────────────────
// RSI Correctness (Wilder's Method)
// ────────────────────────────────────────────────────────────

func TestRSI_Correctness_Period5(t *testing.T) {
	// Prices: 44, 44.34, 44.09, 43.61, 44.33, 44.83, 45.10, 45.42, 45.84
	// First RSI after 6 values: avgGain 0.312, avgLoss 0.146 → 68.112
	// Then Wilder smoothing: 72.219, 76.658, 81.509
	prices := []float64{44, 44.34, 44.09, 43.61, 44.33, 44.83, 45.10, 45.42, 45.84}

	rsi := NewRSI(5)
	for i := 0; i <= 5; i++ {
		rsi.Add(prices[i])
	}
	assertClose(t, "RSI(5) value 6", rsi.Value(), 68.112, 0.1)

	rsi.Add(prices[6])
	assertClose(t, "RSI(5) value 7", rsi.Value(), 72.219, 0.1)

	rsi.Add(prices[7])
	assertClose(t, "RSI(5) value 8", rsi.Value(), 76.658, 0.1)

	rsi.Add(prices[8])
	assertClose(t, "RSI(5) value 9", rsi.Value(), 81.509, 0.2)
}

func TestRSI_Extremes(t *testing.T) {
	tests := []struct {
		name string
		step float64
		want float64
	}{
		{"all up", 1, 100},
		{"all down", -1, 0},
		{"flat", 0, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsi := NewRSI(5)
			for i := 0; i < 10; i++ {
				rsi.Add(100 + tt.step*float64(i))
			}
			assertClose(t, "RSI", rsi.Value(), tt.want, 0.001)
		})
	}
}

// ────────────────────────────────────────────────────────────
// Cross-indicator: same data → correct ordering
// ────────────────────────────────────────────────────────────

func TestIndicators_TrendingUp_Ordering(t *testing.T) {
	// With steadily rising prices, faster averages sit above slower ones and
	// weighted averages above simple ones.
	sma20 := NewSMA(20)
	wma20 := NewWeightedWindow(20)
	wma5 := NewWeightedWindow(5)

	for i := 0; i < 30; i++ {
		p := 100 + float64(i)
		sma20.Add(p)
		wma20.Add(p)
		wma5.Add(p)
	}

	if wma5.Value() <= wma20.Value() {
		t.Errorf("WMA(5) should be > WMA(20) in uptrend: %.2f vs %.2f", wma5.Value(), wma20.Value())
	}
	if wma20.Value() <= sma20.Value() {
		t.Errorf("WMA(20) should be > SMA(20) in uptrend: %.2f vs %.2f", wma20.Value(), sma20.Value())
	}
}
