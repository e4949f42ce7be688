package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"trend-signals/internal/model"
)

// envelope is the parsed WS message structure.
type envelope struct {
	Channel    string          `json:"channel"`
	Data       json.RawMessage `json:"data"`
	TS         string          `json:"ts"`
	Seq        int64           `json:"seq"`
	ChannelSeq int64           `json:"channel_seq"`
	Initial    bool            `json:"initial"`
}

var testNow = time.Date(2026, 3, 2, 10, 0, 1, 0, time.UTC)

func newTestHub() *Hub {
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.now = func() time.Time { return testNow }
	return h
}

func testRecord(sym string, score float64) model.TrendAnalysis {
	return model.TrendAnalysis{
		Symbol:         sym,
		Recommendation: model.RecommendBuy,
		Score:          score,
		UpdatedAt:      testNow.Add(-250 * time.Millisecond),
	}
}

func TestBuildEnvelopeFormat(t *testing.T) {
	channel := "analysis:NIFTY"
	data := []byte(`{"symbol":"NIFTY","score":81.5,"nested":{"a":[1,2]}}`)

	buf := buildEnvelope(channel, data, testNow, 42, 7)

	var env envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		t.Fatalf("envelope is not valid JSON: %v\nraw: %s", err, buf)
	}
	if env.Channel != channel || env.Seq != 42 || env.ChannelSeq != 7 {
		t.Errorf("got %+v", env)
	}
	var payload struct {
		Symbol string  `json:"symbol"`
		Score  float64 `json:"score"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("data is not valid JSON: %v", err)
	}
	if payload.Symbol != "NIFTY" || payload.Score != 81.5 {
		t.Errorf("payload %+v", payload)
	}
	parsed, err := time.Parse(time.RFC3339Nano, env.TS)
	if err != nil || !parsed.Equal(testNow) {
		t.Errorf("ts: got %q (%v)", env.TS, err)
	}
}

func TestHub_PerChannelSeq(t *testing.T) {
	h := newTestHub()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		h.Publish(ctx, testRecord("A", float64(i)))
	}
	for i := 0; i < 2; i++ {
		h.Publish(ctx, testRecord("B", float64(i)))
	}

	if got := h.GetChannelSeq(AnalysisChannel("A")); got != 3 {
		t.Errorf("A seq=%d, want 3", got)
	}
	if got := h.GetChannelSeq(AnalysisChannel("B")); got != 2 {
		t.Errorf("B seq=%d, want 2", got)
	}

	msgs, truncated := h.GetReplayRange(AnalysisChannel("B"), 1, 2)
	if len(msgs) != 2 || truncated {
		t.Fatalf("replay B: %d msgs truncated=%v", len(msgs), truncated)
	}
	var env envelope
	json.Unmarshal(msgs[1], &env)
	if env.Seq != 5 || env.ChannelSeq != 2 {
		t.Errorf("last B envelope seq=%d channel_seq=%d, want 5/2", env.Seq, env.ChannelSeq)
	}

	latest := h.GetLatestAll()
	var rec model.TrendAnalysis
	if err := json.Unmarshal(latest[AnalysisChannel("A")], &rec); err != nil || rec.Score != 2 {
		t.Errorf("latest A = %s (%v)", latest[AnalysisChannel("A")], err)
	}

	if s := h.Ages.Summary(); s.Samples != 5 || s.MaxMs != 250 {
		t.Errorf("ages %+v", s)
	}

	h.Forget("A")
	if h.GetChannelSeq(AnalysisChannel("A")) != 0 {
		t.Error("Forget should drop channel state")
	}
}

func TestClient_MatchesChannel(t *testing.T) {
	c := newClient(newTestHub(), nil)
	tests := []struct {
		name    string
		subs    []string
		channel string
		want    bool
	}{
		{"no subs receives all", nil, "analysis:NIFTY", true},
		{"subscribed symbol", []string{"NIFTY"}, "analysis:NIFTY", true},
		{"other symbol", []string{"NIFTY"}, "analysis:BANK", false},
		{"scan always", []string{"NIFTY"}, ScanChannel, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.symbols = make(map[string]bool)
			for _, s := range tt.subs {
				c.symbols[s] = true
			}
			if got := c.matchesChannel(tt.channel); got != tt.want {
				t.Errorf("matchesChannel(%q) = %v, want %v", tt.channel, got, tt.want)
			}
		})
	}
}

// readEnvelopes reads one frame and splits coalesced messages.
func readEnvelopes(t *testing.T, conn *websocket.Conn) []map[string]json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var out []map[string]json.RawMessage
	for _, line := range strings.Split(string(raw), "\n") {
		var m map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad message %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestHub_WebsocketSubscribeAndPush(t *testing.T) {
	h := newTestHub()
	mux := http.NewServeMux()
	RegisterRoutes(mux, h)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer h.Close()

	// Initial state is sent on connect.
	h.Publish(context.Background(), testRecord("OLD", 1))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	initial := readEnvelopes(t, conn)
	if string(initial[0]["channel"]) != `"analysis:OLD"` || string(initial[0]["initial"]) != "true" {
		t.Fatalf("initial %v", initial)
	}

	if err := conn.WriteJSON(controlMsg{Type: "SUBSCRIBE", Symbols: []string{"NIFTY"}, ReqID: "r1"}); err != nil {
		t.Fatal(err)
	}
	ack := readEnvelopes(t, conn)
	if string(ack[0]["type"]) != `"subscribed"` || string(ack[0]["req_id"]) != `"r1"` {
		t.Fatalf("ack %v", ack)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	h.Publish(context.Background(), testRecord("BANK", 1)) // filtered out
	h.Publish(context.Background(), testRecord("NIFTY", 77))

	got := readEnvelopes(t, conn)
	if string(got[0]["channel"]) != `"analysis:NIFTY"` {
		t.Fatalf("expected NIFTY push only, got %v", got)
	}
	var rec model.TrendAnalysis
	if err := json.Unmarshal(got[0]["data"], &rec); err != nil || rec.Score != 77 {
		t.Errorf("pushed record %s (%v)", got[0]["data"], err)
	}
}

func TestMissedEndpoint(t *testing.T) {
	h := newTestHub()
	for i := 0; i < 3; i++ {
		h.Publish(context.Background(), testRecord("A", float64(i)))
	}
	mux := http.NewServeMux()
	RegisterRoutes(mux, h)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ws/missed?channel=analysis:A&from=2&to=3", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var body struct {
		ChannelSeq int64             `json:"channel_seq"`
		Truncated  bool              `json:"truncated"`
		Messages   []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.ChannelSeq != 3 || body.Truncated || len(body.Messages) != 2 {
		t.Errorf("body %+v", body)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ws/missed?channel=analysis:A", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing range: status %d", rr.Code)
	}
}
