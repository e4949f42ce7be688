package aggregate

import (
	"math"
	"testing"
	"time"

	"trend-signals/internal/indicator"
	"trend-signals/internal/model"
)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f)", label, got, want, tol)
	}
}

func TestROC_ReadyAfterLongLookback(t *testing.T) {
	r := NewROC(ROCConfig{ShortLookback: 5, LongLookback: 20, AlignmentMargin: 0.1})
	var got model.ROCReading
	for i := 0; i < 21; i++ {
		got = r.Add(100 + float64(i))
		if i < 20 && got.Ready {
			t.Fatalf("ready after %d prices", i+1)
		}
	}
	if !got.Ready {
		t.Fatal("not ready after 21 prices")
	}
	// 120 vs 115 and 120 vs 100
	assertClose(t, "short ROC", got.Short, 5.0/115*100, 1e-9)
	assertClose(t, "long ROC", got.Long, 20, 1e-9)
	// A steady climb has the long horizon ahead of the short one.
	if got.Alignment != model.Neutral {
		t.Errorf("alignment=%v, want NEUTRAL", got.Alignment)
	}
}

// dipThenBreak returns 21 prices that move from 100 to 100+swing at index 15
// and then to 100-swing at index 20.
func dipThenBreak(swing float64) []float64 {
	out := make([]float64, 21)
	for i := range out {
		if i <= 15 {
			out[i] = 100 + swing*float64(i)/15
		} else {
			out[i] = 100 + swing - 2*swing*float64(i-15)/5
		}
	}
	return out
}

func TestROC_ShortLeadsAfterReversal(t *testing.T) {
	tests := []struct {
		name  string
		swing float64
		short float64
		long  float64
		want  model.Direction
	}{
		// 100 -> 90 -> 110: short 20/90, long 10/100
		{"breakout after dip", -10, 20.0 / 90 * 100, 10, model.Bullish},
		// 100 -> 110 -> 90: short -20/110, long -10/100
		{"breakdown after rally", 10, -20.0 / 110 * 100, -10, model.Bearish},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewROC(DefaultConfig().ROC)
			var got model.ROCReading
			for _, p := range dipThenBreak(tt.swing) {
				got = r.Add(p)
			}
			assertClose(t, "short ROC", got.Short, tt.short, 1e-9)
			assertClose(t, "long ROC", got.Long, tt.long, 1e-9)
			if got.Alignment != tt.want {
				t.Errorf("alignment=%v, want %v", got.Alignment, tt.want)
			}
		})
	}
}

func TestROC_LinearRampIsNeutral(t *testing.T) {
	r := NewROC(DefaultConfig().ROC)
	for i := 0; i < 30; i++ {
		got := r.Add(100 + 2*float64(i))
		if got.Ready && got.Alignment != model.Neutral {
			t.Fatalf("sample %d: short=%.3f long=%.3f alignment=%v", i, got.Short, got.Long, got.Alignment)
		}
	}
}

func TestAlignment(t *testing.T) {
	tests := []struct {
		name        string
		short, long float64
		want        model.Direction
	}{
		{"both up, short leads", 6, 5, model.Bullish},
		{"both up, lead inside margin", 5.05, 5, model.Neutral},
		{"both up, short lags", 2, 5, model.Neutral},
		{"both down, short leads", -6, -5, model.Bearish},
		{"both down, lead inside margin", -5.05, -5, model.Neutral},
		{"both down, short lags", -2, -5, model.Neutral},
		{"mixed", 2, -5, model.Neutral},
		{"zero", 0, 0, model.Neutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Alignment(tt.short, tt.long, 0.1); got != tt.want {
				t.Errorf("Alignment(%v,%v)=%v, want %v", tt.short, tt.long, got, tt.want)
			}
		})
	}
}

func hull(period int, slope float64) model.IndicatorResult {
	return model.IndicatorResult{Period: period, HullReady: true, HullSlope: slope}
}

func TestHierarchy_Periods_DivideHistory(t *testing.T) {
	cfg := DefaultConfig().Hierarchy
	cfg.Short = append(cfg.Short, 7) // 240 % 7 != 0
	for _, p := range cfg.Periods() {
		if 240%p != 0 {
			t.Errorf("period %d does not divide 240", p)
		}
	}
	if len(cfg.Periods()) != 12 {
		t.Errorf("got %d periods, want 12", len(cfg.Periods()))
	}
}

func TestClassify_AllAligned(t *testing.T) {
	cfg := DefaultConfig().Hierarchy
	var results []model.IndicatorResult
	for _, p := range cfg.Periods() {
		results = append(results, hull(p, 0.5))
	}
	h := Classify(cfg, results)
	if !h.Ready || h.Dominant != model.Bullish || !h.AllAligned {
		t.Fatalf("expected aligned bullish hierarchy, got %+v", h)
	}
	assertClose(t, "alignment", h.AlignmentPct, 100, 1e-9)
	assertClose(t, "strength capped", h.Strength, 100, 1e-9)
}

func TestClassify_PartialAlignment(t *testing.T) {
	cfg := DefaultConfig().Hierarchy
	var results []model.IndicatorResult
	for _, p := range cfg.Short {
		results = append(results, hull(p, -0.5))
	}
	for _, p := range cfg.Medium {
		results = append(results, hull(p, 0.5))
	}
	for _, p := range cfg.Long {
		results = append(results, hull(p, 0.5))
	}
	h := Classify(cfg, results)
	if h.Dominant != model.Bullish || h.AllAligned {
		t.Fatalf("got %+v", h)
	}
	assertClose(t, "alignment", h.AlignmentPct, 200.0/3, 1e-9)
	// vote sum 1/3 → 33.33, scaled by 2/3 alignment, no bonus
	assertClose(t, "strength", h.Strength, 100.0/3*2/3, 1e-9)
	if h.Short.Direction != model.Bearish {
		t.Errorf("short tier=%v", h.Short.Direction)
	}
}

func TestClassify_WeightsFavourLongerPeriods(t *testing.T) {
	cfg := DefaultConfig().Hierarchy
	// Split the short tier: 6 and 8 down, 10 and 12 up. Longer periods weigh more.
	results := []model.IndicatorResult{hull(6, -1), hull(8, -1), hull(10, 1), hull(12, 1)}
	h := Classify(cfg, results)
	if !h.Short.Ready || h.Short.Vote <= 0 {
		t.Errorf("short vote %.4f should lean bullish", h.Short.Vote)
	}
	if h.Ready {
		t.Error("hierarchy must not be ready without medium and long tiers")
	}
}

func TestClassify_IgnoresUnreadyHull(t *testing.T) {
	cfg := DefaultConfig().Hierarchy
	results := []model.IndicatorResult{{Period: 6, HullSlope: 5}}
	if h := Classify(cfg, results); h.Short.Ready {
		t.Error("unready Hull must not count")
	}
}

func TestAggregator_WithEngine(t *testing.T) {
	cfg := DefaultConfig()
	engine := indicator.NewEngine(indicator.Config{Periods: cfg.Hierarchy.Periods()})
	agg := New(cfg, engine)

	t0 := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	var roc model.ROCReading
	for i := 0; i < 120; i++ {
		o := model.Observation{Symbol: "H", Open: 100, Close: 100 + float64(i), TS: t0.Add(time.Duration(i) * time.Minute)}
		engine.Update(o)
		roc = agg.Observe(o)
	}
	if !roc.Ready || roc.Short <= 0 || roc.Long <= 0 || roc.Alignment != model.Neutral {
		t.Fatalf("steady climb: roc=%+v", roc)
	}
	if agg.ROC("H") != roc {
		t.Error("ROC() should return the last reading")
	}
	h := agg.Hierarchy("H")
	if !h.Ready || h.Dominant != model.Bullish || !h.AllAligned {
		t.Fatalf("hierarchy=%+v", h)
	}

	agg.Evict("H")
	if agg.ROC("H").Ready {
		t.Error("evicted symbol still has ROC")
	}
}
