package redis

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"trend-signals/internal/model"
)

func TestDecodeEvent(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	tests := []struct {
		name    string
		stream  string
		data    string
		want    model.Event
		wantErr bool
	}{
		{
			name:   "candle",
			stream: "candle:NIFTY",
			data:   `{"symbol":"NIFTY","open":100,"high":102,"low":99,"close":101,"ts":"2026-03-02T09:15:00Z"}`,
			want:   model.CandleEvent(model.Candle{Symbol: "NIFTY", Open: 100, High: 102, Low: 99, Close: 101, TS: ts}),
		},
		{
			name:   "candle symbol from stream",
			stream: "candle:BANK",
			data:   `{"open":1,"high":1,"low":1,"close":1,"ts":"2026-03-02T09:15:00Z"}`,
			want:   model.CandleEvent(model.Candle{Symbol: "BANK", Open: 1, High: 1, Low: 1, Close: 1, TS: ts}),
		},
		{
			name:   "tick",
			stream: "tick:NIFTY",
			data:   `{"symbol":"NIFTY","quote":101.5,"epoch":1772442900}`,
			want:   model.TickEvent(model.Tick{Symbol: "NIFTY", Quote: 101.5, Epoch: 1772442900}),
		},
		{name: "missing data", stream: "tick:NIFTY", data: "", wantErr: true},
		{name: "bad json", stream: "candle:NIFTY", data: "{", wantErr: true},
		{name: "unknown prefix", stream: "quote:NIFTY", data: "{}", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeEvent(tt.stream, tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.Kind != tt.want.Kind || got.Tick != tt.want.Tick ||
				got.Candle.Symbol != tt.want.Candle.Symbol || !got.Candle.TS.Equal(tt.want.Candle.TS) ||
				got.Candle.Close != tt.want.Candle.Close {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeEvent_UnknownPrefixIsTyped(t *testing.T) {
	_, err := decodeEvent("foo:X", "{}")
	if !errors.Is(err, errUnknownStream) {
		t.Errorf("err=%v", err)
	}
}

func TestStreamsFor(t *testing.T) {
	got := StreamsFor([]string{"A", "B"})
	want := []string{"candle:A", "tick:A", "candle:B", "tick:B"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
