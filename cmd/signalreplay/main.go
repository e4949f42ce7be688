// cmd/signalreplay replays stored candles from SQLite through the signal
// pipeline offline and prints every actionable record as a JSON line,
// followed by a final market scan.
//
// Usage:
//
//	go run ./cmd/signalreplay --db=data/candles.db --symbols=NIFTY,BANKNIFTY --speed=0
package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"trend-signals/internal/logger"
	"trend-signals/internal/marketdata/replay"
	"trend-signals/internal/model"
	"trend-signals/internal/pipeline"
	sqlitestore "trend-signals/internal/store/sqlite"
	"trend-signals/internal/tuning"
)

func main() {
	speed := flag.Float64("speed", 0, "Playback speed multiplier (0=max, 1=realtime, 100=100x)")
	dbPath := flag.String("db", "data/candles.db", "Path to SQLite database")
	symbols := flag.String("symbols", "", "Comma-separated symbols (default: every stored symbol)")
	limit := flag.Int("limit", 0, "Latest candles per symbol to replay (0=all)")
	tuningFile := flag.String("tuning", "", "Tuning YAML file")
	all := flag.Bool("all", false, "Print every record, not only actionable ones")
	level := flag.String("log-level", "info", "Log level")
	flag.Parse()

	// Records go to stdout; logs to stderr.
	log := logger.New(os.Stderr, "signalreplay", logger.ParseLevel(*level))

	tune, err := tuning.Load(*tuningFile)
	if err != nil {
		log.Error("tuning load failed", "err", err)
		os.Exit(1)
	}

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Error("sqlite open failed", "path", *dbPath, "err", err)
		os.Exit(1)
	}
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	engine := pipeline.New(tune.Pipeline(), pipeline.WithLogger(log))
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	var syms []string
	for _, s := range strings.Split(*symbols, ",") {
		if s = strings.TrimSpace(s); s != "" {
			syms = append(syms, s)
		}
	}

	actionable := 0
	n, err := replay.New(reader, log).Run(ctx, syms, *limit, *speed, func(c model.Candle) error {
		rec, err := engine.OnCandle(c)
		if err != nil {
			return err
		}
		if rec.Actionable() {
			actionable++
		}
		if *all || rec.Actionable() {
			out.Write(rec.JSON())
			out.WriteByte('\n')
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		log.Error("replay failed", "err", err)
		os.Exit(1)
	}

	res := engine.ScanMarket(engine.Instruments())
	out.Write(res.JSON())
	out.WriteByte('\n')

	log.Info("replay summary", "candles", n, "symbols", len(engine.Symbols()), "actionable", actionable, "ranked", len(res.Entries))
}
