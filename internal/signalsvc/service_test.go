package signalsvc

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"trend-signals/config"
	"trend-signals/internal/gateway"
	"trend-signals/internal/model"
	"trend-signals/internal/scanner"
	sqlitestore "trend-signals/internal/store/sqlite"
	"trend-signals/internal/tuning"
)

var t0 = time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)

func newTestService(t *testing.T, cfg *config.Config) *Service {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	if cfg.RingSize == 0 {
		cfg.RingSize = 64
	}
	cfg.HTTPAddr = "127.0.0.1:0"
	return newService(cfg, tuning.Default(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func candle(sym string, i int, price float64) model.Candle {
	return model.Candle{
		Symbol: sym, Open: price, High: price + 0.5, Low: price - 0.5, Close: price,
		TS: t0.Add(time.Duration(i) * time.Minute),
	}
}

// feed pushes n rising candles for sym through the ring and processes them.
func feed(t *testing.T, svc *Service, sym string, n int) {
	t.Helper()
	batch := make([]model.Event, drainBatch)
	for i := 0; i < n; i++ {
		if !svc.accept(model.CandleEvent(candle(sym, i, 100+float64(i)))) {
			t.Fatalf("ring rejected event %d", i)
		}
		if svc.ring.Len() == svc.ring.Cap() {
			svc.drain(context.Background(), batch)
		}
	}
	svc.drain(context.Background(), batch)
}

func drainRecords(svc *Service) []model.TrendAnalysis {
	var out []model.TrendAnalysis
	for {
		select {
		case rec := <-svc.records:
			out = append(out, rec)
		default:
			return out
		}
	}
}

func TestService_ProcessEmitsRecordsAndCandles(t *testing.T) {
	svc := newTestService(t, nil)
	feed(t, svc, "X", 40)

	recs := drainRecords(svc)
	if len(recs) != 40 {
		t.Fatalf("emitted %d records, want 40", len(recs))
	}
	if recs[39].Symbol != "X" || !recs[39].UpdatedAt.Equal(t0.Add(39*time.Minute)) {
		t.Errorf("last record %+v", recs[39])
	}
	if len(svc.candles) != 40 {
		t.Errorf("queued %d candles for archive, want 40", len(svc.candles))
	}
	if got := testutil.ToFloat64(svc.prom.EventsTotal.WithLabelValues("candle")); got != 40 {
		t.Errorf("events_total=%v", got)
	}
}

func TestService_RejectsInvalidEvent(t *testing.T) {
	svc := newTestService(t, nil)
	ev := model.CandleEvent(model.Candle{Symbol: "X", TS: t0})
	if svc.handle(context.Background(), ev) {
		t.Fatal("invalid candle should be rejected")
	}
	if len(drainRecords(svc)) != 0 {
		t.Error("rejected event emitted a record")
	}
	if got := testutil.ToFloat64(svc.prom.EventsRejected.WithLabelValues("candle")); got != 1 {
		t.Errorf("events_rejected=%v", got)
	}
}

func TestService_AcceptRejectsWhenRingFull(t *testing.T) {
	svc := newTestService(t, &config.Config{RingSize: 2})
	ev := model.TickEvent(model.Tick{Symbol: "X", Quote: 1, Epoch: t0.Unix()})
	if !svc.accept(ev) || !svc.accept(ev) {
		t.Fatal("ring should accept two events")
	}
	if svc.accept(ev) {
		t.Fatal("full ring accepted an event")
	}
	if got := testutil.ToFloat64(svc.prom.RingBufOverflow); got != 1 {
		t.Errorf("ringbuf overflow=%v", got)
	}
}

type memHistory map[string][]model.Candle

func (m memHistory) Symbols() ([]string, error) {
	var out []string
	for s := range m {
		out = append(out, s)
	}
	return out, nil
}

func (m memHistory) ReadCandles(symbol string, limit int) ([]model.Candle, error) {
	c := m[symbol]
	if limit > 0 && len(c) > limit {
		c = c[len(c)-limit:]
	}
	return c, nil
}

func (m memHistory) Close() error { return nil }

func TestService_WarmUp(t *testing.T) {
	svc := newTestService(t, &config.Config{WarmupBars: 30})
	hist := memHistory{}
	for _, sym := range []string{"A", "B"} {
		for i := 0; i < 50; i++ {
			hist[sym] = append(hist[sym], candle(sym, i, 100+float64(i)))
		}
	}
	svc.history = hist

	if err := svc.warmUp(context.Background()); err != nil {
		t.Fatal(err)
	}
	recs := drainRecords(svc)
	if len(recs) != 2 {
		t.Fatalf("warm-up emitted %d records, want one per symbol", len(recs))
	}
	if _, ok := svc.engine.GetLatestIndicator("A", 20); !ok {
		t.Error("WMA_20 should be ready after 30 warm-up bars")
	}
	if got := testutil.ToFloat64(svc.prom.WarmupCandles); got != 60 {
		t.Errorf("warmup_candles=%v, want 60", got)
	}
	if len(svc.candles) != 0 {
		t.Error("warm-up candles must not be re-archived")
	}
}

func TestService_AdvanceEvictsAndScans(t *testing.T) {
	svc := newTestService(t, nil)
	feed(t, svc, "X", 30)
	drainRecords(svc)

	svc.advance(context.Background(), t0.Add(30*time.Minute))
	recs := drainRecords(svc)
	if len(recs) != 1 || recs[0].Symbol != "X" {
		t.Fatalf("advance records %+v", recs)
	}
	if svc.hub.GetChannelSeq(gateway.ScanChannel) != 1 {
		t.Error("advance should push a scan to the hub")
	}

	svc.advance(context.Background(), t0.Add(4*time.Hour))
	if len(drainRecords(svc)) != 0 {
		t.Error("evicted symbol should not be re-emitted")
	}
	if len(svc.engine.Symbols()) != 0 {
		t.Errorf("symbols after idle timeout: %v", svc.engine.Symbols())
	}
	if svc.hub.GetChannelSeq(gateway.AnalysisChannel("X")) != 0 {
		t.Error("hub should forget evicted symbol")
	}
}

type fakeAnalysis []sqlitestore.AnalysisEntry

func (f fakeAnalysis) ReadAnalysis(symbol string, limit int) ([]sqlitestore.AnalysisEntry, error) {
	return f, nil
}

func TestService_HTTP(t *testing.T) {
	svc := newTestService(t, nil)
	feed(t, svc, "X", 30)
	h := svc.http.Handler()

	get := func(path string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		return rr
	}

	tests := []struct {
		path string
		code int
	}{
		{"/analysis?symbol=X", http.StatusOK},
		{"/analysis?symbol=NOPE", http.StatusNotFound},
		{"/analysis", http.StatusOK},
		{"/indicator?symbol=X&period=10", http.StatusOK},
		{"/indicator?symbol=X&period=abc", http.StatusBadRequest},
		{"/indicator?symbol=X&period=480", http.StatusNotFound},
		{"/scan?symbols=X,NOPE", http.StatusOK},
		{"/history?symbol=X", http.StatusServiceUnavailable},
		{"/metrics", http.StatusOK},
		{"/ws/stats", http.StatusOK},
	}
	for _, tt := range tests {
		if rr := get(tt.path); rr.Code != tt.code {
			t.Errorf("GET %s = %d, want %d (%s)", tt.path, rr.Code, tt.code, rr.Body.String())
		}
	}

	var rec model.TrendAnalysis
	if err := json.Unmarshal(get("/analysis?symbol=X").Body.Bytes(), &rec); err != nil || rec.Symbol != "X" {
		t.Errorf("analysis body %+v (%v)", rec, err)
	}

	var res scanner.Result
	if err := json.Unmarshal(get("/scan?symbols=X,NOPE").Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Scanned != 1 {
		t.Errorf("scanned=%d, want 1 (NOPE has no record)", res.Scanned)
	}

	svc.analysis = fakeAnalysis{{Symbol: "X", Recommendation: "BUY"}}
	if rr := get("/history?symbol=X"); rr.Code != http.StatusOK {
		t.Errorf("history status %d", rr.Code)
	}
}

func TestNewAlerter_OnlyWhenConfigured(t *testing.T) {
	if svc := newTestService(t, nil); svc.alerter != nil {
		t.Fatal("alerter should be off without notifiers")
	}
	svc := newTestService(t, &config.Config{AlertLog: true, AlertMinScore: 60})
	if svc.alerter == nil {
		t.Fatal("ALERT_LOG should enable the alerter")
	}
}
