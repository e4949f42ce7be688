package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"trend-signals/config"
	"trend-signals/internal/logger"
	"trend-signals/internal/signalsvc"
	"trend-signals/internal/tuning"
)

func main() {
	cfg := config.Load()

	log, closer := logger.Init("signalengine", logger.Options{
		Level:     logger.ParseLevel(cfg.LogLevel),
		File:      cfg.LogFile,
		MaxSizeMB: cfg.LogMaxSizeMB,
	})
	defer closer.Close()

	tune, err := tuning.Load(cfg.TuningFile)
	if err != nil {
		log.Error("tuning load failed", "file", cfg.TuningFile, "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("signal received", "signal", sig.String())
		cancel()
	}()

	svc, err := signalsvc.New(ctx, cfg, tune, log)
	if err != nil {
		log.Error("init failed", "err", err)
		os.Exit(1)
	}

	if err := svc.Run(ctx); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}
