// Package replay feeds stored candles back through the engine, either as
// fast as possible for warm-up or at a scaled wall-clock speed.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"trend-signals/internal/model"
)

// maxGap caps the simulated sleep between two candles.
const maxGap = 5 * time.Second

// Replayer reads candle history and replays it in timestamp order.
type Replayer struct {
	history model.CandleHistory
	log     *slog.Logger
}

// New creates a Replayer backed by a candle history.
func New(history model.CandleHistory, log *slog.Logger) *Replayer {
	if log == nil {
		log = slog.Default()
	}
	return &Replayer{history: history, log: log}
}

// Run loads up to limit recent candles per symbol (every stored symbol when
// symbols is empty), merges them by timestamp and hands each to emit.
// speed controls the playback rate: 1.0 = real-time, 10.0 = 10x, 0 = as
// fast as possible. A rejected candle is logged and skipped.
func (r *Replayer) Run(ctx context.Context, symbols []string, limit int, speed float64, emit func(model.Candle) error) (int, error) {
	if len(symbols) == 0 {
		var err error
		if symbols, err = r.history.Symbols(); err != nil {
			return 0, fmt.Errorf("replay symbols: %w", err)
		}
	}

	var all []model.Candle
	for _, sym := range symbols {
		candles, err := r.history.ReadCandles(sym, limit)
		if err != nil {
			return 0, fmt.Errorf("replay read %s: %w", sym, err)
		}
		all = append(all, candles...)
	}
	if len(all) == 0 {
		r.log.Info("replay: no stored candles", "symbols", len(symbols))
		return 0, nil
	}

	sortCandles(all)
	r.log.Info("replay started", "candles", len(all), "symbols", len(symbols), "speed", speed)

	var prevTS time.Time
	emitted := 0
	for _, c := range all {
		if err := ctx.Err(); err != nil {
			r.log.Info("replay cancelled", "emitted", emitted)
			return emitted, err
		}

		if speed > 0 && !prevTS.IsZero() {
			if gap := c.TS.Sub(prevTS); gap > 0 {
				scaled := time.Duration(float64(gap) / speed)
				if scaled > maxGap {
					scaled = maxGap
				}
				select {
				case <-ctx.Done():
					return emitted, ctx.Err()
				case <-time.After(scaled):
				}
			}
		}
		prevTS = c.TS

		if err := emit(c); err != nil {
			r.log.Warn("replay: candle rejected", "symbol", c.Symbol, "ts", c.TS, "err", err)
			continue
		}
		emitted++
	}

	r.log.Info("replay completed", "emitted", emitted)
	return emitted, nil
}

// sortCandles orders candles by timestamp, then symbol, keeping per-symbol
// order stable.
func sortCandles(candles []model.Candle) {
	sort.SliceStable(candles, func(i, j int) bool {
		if !candles[i].TS.Equal(candles[j].TS) {
			return candles[i].TS.Before(candles[j].TS)
		}
		return candles[i].Symbol < candles[j].Symbol
	})
}
