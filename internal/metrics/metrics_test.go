package metrics

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"trend-signals/internal/model"
	"trend-signals/internal/pipeline"
)

var _ pipeline.Hooks = (*Metrics)(nil)

func TestMetrics_Hooks(t *testing.T) {
	m := NewMetrics()
	m.EventProcessed(model.EventCandle, time.Millisecond)
	m.EventProcessed(model.EventCandle, time.Millisecond)
	m.EventProcessed(model.EventTick, time.Millisecond)
	m.EventRejected(model.EventTick)
	m.SignalTransition(model.StateNoSignal, model.StatePending)
	m.Recommendation(model.RecommendBuy)
	m.SymbolsTracked(7)
	m.SymbolsEvicted(2)
	m.SymbolsEvicted(1)

	if got := testutil.ToFloat64(m.EventsTotal.WithLabelValues("candle")); got != 2 {
		t.Errorf("candle events=%v, want 2", got)
	}
	if got := testutil.ToFloat64(m.EventsRejected.WithLabelValues("tick")); got != 1 {
		t.Errorf("rejected=%v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SignalTransitions.WithLabelValues("NO_SIGNAL", "PENDING")); got != 1 {
		t.Errorf("transitions=%v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Recommendations.WithLabelValues("BUY")); got != 1 {
		t.Errorf("recommendations=%v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TrackedSymbols); got != 7 {
		t.Errorf("tracked=%v, want 7", got)
	}
	if got := testutil.ToFloat64(m.EvictionsTotal); got != 3 {
		t.Errorf("evictions=%v, want 3", got)
	}
}

func TestServer_MetricsAndHealth(t *testing.T) {
	m := NewMetrics()
	m.Recommendation(model.RecommendHold)
	health := NewHealthStatus()
	srv := NewServer(":0", health, m, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `signalengine_recommendations_total{recommendation="HOLD"} 1`) {
		t.Errorf("/metrics missing recommendation counter:\n%s", body)
	}

	resp, err = http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("health before redis connect: %d", resp.StatusCode)
	}
	resp.Body.Close()

	health.SetRedisConnected(true)
	health.SetSQLite(false, false)
	health.SetWarmupDone()
	resp, err = http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var st struct {
		Status string `json:"status"`
	}
	json.NewDecoder(resp.Body).Decode(&st)
	if resp.StatusCode != http.StatusOK || st.Status != "healthy" {
		t.Errorf("health: %d %q", resp.StatusCode, st.Status)
	}
}

func TestHealth_SQLiteDegrades(t *testing.T) {
	h := NewHealthStatus()
	h.SetRedisConnected(true)
	h.SetWarmupDone()
	h.SetSQLite(true, false)
	if st, code := h.status(); st != "degraded" || code != http.StatusServiceUnavailable {
		t.Errorf("got %s %d", st, code)
	}
	h.ObserveEvent(time.Unix(100, 0), 3)
	h.ObserveEvent(time.Unix(50, 0), 4)
	if !h.LastEventTime.Equal(time.Unix(100, 0)) || h.Symbols != 4 {
		t.Errorf("ObserveEvent: %v %d", h.LastEventTime, h.Symbols)
	}
}
