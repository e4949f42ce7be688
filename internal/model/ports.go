package model

import "context"

// ── Port interfaces ──
// These decouple the pipeline and service wiring from concrete transports
// (Redis, SQLite, WebSocket).

// EventSource delivers inbound candles and ticks.
type EventSource interface {
	// Consume pushes events to out until ctx is cancelled or the source
	// fails. An event for which out returns false was not accepted and may
	// be redelivered.
	Consume(ctx context.Context, out func(Event) bool) error

	// Close releases underlying resources.
	Close() error
}

// AnalysisSink receives each replaced analysis record.
type AnalysisSink interface {
	// Publish hands one record to the sink. It must not block the caller for long.
	Publish(ctx context.Context, a TrendAnalysis)
}

// CandleHistory reads stored candles for warm-up replay.
type CandleHistory interface {
	// Symbols lists the instruments that have stored candles.
	Symbols() ([]string, error)

	// ReadCandles returns up to limit most recent candles, oldest first.
	ReadCandles(symbol string, limit int) ([]Candle, error)

	// Close releases underlying resources.
	Close() error
}
