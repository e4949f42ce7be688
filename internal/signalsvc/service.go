// Package signalsvc hosts the trend-signal pipeline as a long-running
// service: Redis stream ingest, SQLite warm-up and archive, Redis and
// websocket output, and the HTTP query surface.
package signalsvc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	goredis "github.com/go-redis/redis/v8"

	"trend-signals/config"
	"trend-signals/internal/gateway"
	"trend-signals/internal/marketdata/bus"
	"trend-signals/internal/marketdata/replay"
	"trend-signals/internal/metrics"
	"trend-signals/internal/model"
	"trend-signals/internal/notification"
	"trend-signals/internal/pipeline"
	"trend-signals/internal/ringbuf"
	redisstore "trend-signals/internal/store/redis"
	sqlitestore "trend-signals/internal/store/sqlite"
	"trend-signals/internal/tuning"
)

const (
	fanoutBuffer  = 1024
	archiveBuffer = 4096
	drainBatch    = 256
)

// analysisHistory reads archived recommendation changes.
type analysisHistory interface {
	ReadAnalysis(symbol string, limit int) ([]sqlitestore.AnalysisEntry, error)
}

// Service is the top-level orchestrator for the signal engine.
// It wires all dependencies, manages lifecycle, and coordinates goroutines.
type Service struct {
	cfg *config.Config
	log *slog.Logger

	engine *pipeline.Engine
	prom   *metrics.Metrics
	health *metrics.HealthStatus
	http   *metrics.Server

	rdb       *goredis.Client
	source    model.EventSource
	publisher *redisstore.Publisher

	history  model.CandleHistory
	analysis analysisHistory
	archive  *sqlitestore.Writer

	hub     *gateway.Hub
	alerter *notification.Alerter
	ring    *ringbuf.Ring
	fan  *bus.FanOut

	records chan model.TrendAnalysis
	candles chan model.Candle
}

// New connects Redis, opens SQLite (optional) and builds the pipeline.
func New(ctx context.Context, cfg *config.Config, tune tuning.File, log *slog.Logger) (*Service, error) {
	svc := newService(cfg, tune, log)

	// ---- Connect to Redis ----
	rdb, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, log)
	if err != nil {
		return nil, err
	}
	svc.rdb = rdb
	svc.health.SetRedisConnected(true)

	var streams []string
	if len(cfg.Symbols) > 0 {
		streams = redisstore.StreamsFor(cfg.Symbols)
	}
	reader := redisstore.NewReader(rdb, redisstore.ReaderConfig{
		ConsumerGroup: cfg.ConsumerGroup,
		ConsumerName:  cfg.ConsumerName,
		Streams:       streams,
		PELInterval:   cfg.PELInterval,
		PELMinIdle:    cfg.PELMinIdle,
	}, log)
	reader.OnReclaim = func(n int) { svc.prom.PELMessagesReclaimed.Add(float64(n)) }
	svc.source = reader

	svc.publisher = redisstore.NewPublisher(rdb, redisstore.PublisherConfig{
		RatePerSymbol: cfg.PublishRate,
		Burst:         cfg.PublishBurst,
	}, log)
	svc.wirePublisherMetrics()

	// ---- Open SQLite ----
	if cfg.SQLitePath == "" {
		svc.health.SetSQLite(false, false)
		return svc, nil
	}
	if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
		os.MkdirAll(dir, 0o755)
	}
	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath, Logger: log})
	if err != nil {
		log.Warn("sqlite writer init failed, continuing without warm-up and archive", "err", err)
		svc.health.SetSQLite(true, false)
		return svc, nil
	}
	sqlReader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		writer.Close()
		log.Warn("sqlite reader init failed, continuing without warm-up and archive", "err", err)
		svc.health.SetSQLite(true, false)
		return svc, nil
	}
	svc.archive = writer
	svc.history = sqlReader
	svc.analysis = sqlReader
	svc.health.SetSQLite(true, true)
	return svc, nil
}

// newService builds the transport-independent part of the service.
func newService(cfg *config.Config, tune tuning.File, log *slog.Logger) *Service {
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()

	svc := &Service{
		cfg:     cfg,
		log:     log,
		prom:    prom,
		health:  health,
		engine:  pipeline.New(tune.Pipeline(), pipeline.WithLogger(log), pipeline.WithHooks(prom)),
		hub:     gateway.NewHub(log),
		ring:    ringbuf.New(cfg.RingSize),
		fan:     bus.New(fanoutBuffer),
		records: make(chan model.TrendAnalysis, fanoutBuffer),
		candles: make(chan model.Candle, archiveBuffer),
	}
	svc.fan.OnDrop = func(sink string) { prom.FanoutDropsTotal.WithLabelValues(sink).Inc() }
	svc.hub.OnClients = func(n int) { prom.WSClients.Set(float64(n)) }
	svc.alerter = newAlerter(cfg, prom, log)

	svc.http = metrics.NewServer(cfg.HTTPAddr, health, prom, log)
	svc.routes(svc.http.Mux())
	gateway.RegisterRoutes(svc.http.Mux(), svc.hub)
	return svc
}

// newAlerter builds the recommendation-change alerter from the configured
// notifiers, or returns nil when none is configured.
func newAlerter(cfg *config.Config, prom *metrics.Metrics, log *slog.Logger) *notification.Alerter {
	var notifiers notification.Multi
	if cfg.AlertLog {
		notifiers = append(notifiers, notification.NewLogNotifier(log))
	}
	if cfg.AlertWebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.AlertWebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if len(notifiers) == 0 {
		return nil
	}
	a := notification.NewAlerter(notifiers, notification.AlerterConfig{
		MinScore:    cfg.AlertMinScore,
		AlertOnHold: cfg.AlertOnHold,
		RatePerSec:  1,
		Burst:       5,
	}, log)
	a.OnSent = func() { prom.AlertsTotal.WithLabelValues("sent").Inc() }
	a.OnFailure = func() { prom.AlertsTotal.WithLabelValues("failed").Inc() }
	return a
}

func (svc *Service) wirePublisherMetrics() {
	p := svc.publisher
	p.OnThrottle = func() { svc.prom.PublishThrottled.Inc() }
	p.OnFailure = func() { svc.prom.PublishFailures.Inc() }
	p.OnBuffer = func() { svc.prom.RedisBufferedWrites.Inc() }
	p.Breaker().OnStateChange = func(from, to redisstore.State) {
		svc.prom.RedisCircuitBreakerState.Set(float64(to))
		if to == redisstore.StateOpen {
			svc.prom.RedisCircuitBreakerTrips.Inc()
		}
		svc.log.Warn("redis circuit breaker state change", "from", from.String(), "to", to.String())
	}
}

// Run starts all subsystems and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	svc.log.Info("starting signal engine",
		"http", svc.cfg.HTTPAddr,
		"symbols", len(svc.cfg.Symbols),
		"advance_interval", svc.cfg.AdvanceInterval,
		"sqlite", svc.history != nil,
	)

	var sinks sync.WaitGroup
	svc.startSinks(ctx, &sinks)
	svc.http.Start()

	var sqlDB *sql.DB
	if svc.archive != nil {
		sqlDB = svc.archive.DB()
	}
	svc.health.StartLivenessChecker(ctx, svc.rdb, sqlDB, 10*time.Second)

	// ---- Warm up from stored candles ----
	if err := svc.warmUp(ctx); err != nil && !errors.Is(err, context.Canceled) {
		svc.log.Warn("warm-up incomplete", "err", err)
	}
	svc.health.SetWarmupDone()

	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		svc.ingest(ctx)
	}()
	go func() {
		defer workers.Done()
		svc.processLoop(ctx)
	}()

	svc.log.Info("all systems running")
	<-ctx.Done()

	workers.Wait()
	// The process loop was the only writer.
	close(svc.records)
	close(svc.candles)
	sinks.Wait()
	svc.shutdown()
	return nil
}

// startSinks launches the fan-out and every record consumer.
func (svc *Service) startSinks(ctx context.Context, wg *sync.WaitGroup) {
	hubCh := svc.fan.Subscribe("ws")
	var pubCh, archCh, alertCh <-chan model.TrendAnalysis
	if svc.alerter != nil {
		alertCh = svc.fan.Subscribe("alerts")
	}
	if svc.publisher != nil {
		pubCh = svc.fan.Subscribe("redis")
	}
	if svc.archive != nil {
		archCh = svc.fan.Subscribe("sqlite")
	}

	// Sinks drain until their input closes, so records emitted during
	// shutdown still reach them.
	run := func(f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}
	run(func() { svc.fan.Run(context.Background(), svc.records) })
	run(func() { svc.hub.Run(context.Background(), hubCh) })
	if pubCh != nil {
		run(func() { svc.publisher.Run(context.Background(), pubCh, time.Second) })
	}
	if alertCh != nil {
		run(func() { svc.alerter.Run(context.Background(), alertCh) })
	}
	if archCh != nil {
		run(func() { svc.archive.RunAnalysis(context.Background(), archCh) })
	}
	if svc.archive != nil && svc.cfg.ArchiveCandles {
		run(func() { svc.archive.Run(context.Background(), svc.candles) })
	} else {
		run(func() {
			for range svc.candles {
			}
		})
	}
}

// warmUp replays the stored candles of every configured symbol (every
// stored symbol when none is configured) through the engine, then emits the
// resulting records once.
func (svc *Service) warmUp(ctx context.Context) error {
	if svc.history == nil || svc.cfg.WarmupBars <= 0 {
		return nil
	}
	start := time.Now()
	r := replay.New(svc.history, svc.log)
	n, err := r.Run(ctx, svc.cfg.Symbols, svc.cfg.WarmupBars, 0, func(c model.Candle) error {
		_, err := svc.engine.OnCandle(c)
		return err
	})
	svc.prom.WarmupCandles.Add(float64(n))
	if err != nil {
		return fmt.Errorf("warm-up: %w", err)
	}

	for _, sym := range svc.engine.Symbols() {
		if rec, ok := svc.engine.GetTrendAnalysis(sym); ok {
			svc.emit(ctx, rec)
		}
	}
	svc.log.Info("warm-up done", "candles", n, "symbols", len(svc.engine.Symbols()), "took", time.Since(start))
	return nil
}

// ingest runs the event source, restarting it with exponential backoff when
// it fails, until ctx is cancelled.
func (svc *Service) ingest(ctx context.Context) {
	if svc.source == nil {
		return
	}
	eb := backoff.NewExponentialBackOff()
	eb.MaxInterval = 30 * time.Second
	eb.MaxElapsedTime = 0 // retry forever

	op := func() error {
		err := svc.source.Consume(ctx, svc.accept)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		svc.log.Error("event source failed, restarting", "err", err, "next", next)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(eb, ctx), notify); err != nil && !errors.Is(err, context.Canceled) {
		svc.log.Error("event source stopped", "err", err)
	}
}

// accept hands one inbound event to the ring. A full ring rejects the event
// so the source leaves it unacknowledged for redelivery.
func (svc *Service) accept(ev model.Event) bool {
	if svc.ring.Push(ev) {
		return true
	}
	svc.prom.RingBufOverflow.Inc()
	return false
}

// shutdown closes connections.
func (svc *Service) shutdown() {
	svc.log.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.http.Stop(shutCtx); err != nil {
		svc.log.Warn("http shutdown", "err", err)
	}
	svc.hub.Close()

	if svc.history != nil {
		svc.history.Close()
	}
	if svc.archive != nil {
		svc.archive.Close()
	}
	if svc.source != nil {
		svc.source.Close()
	}
	svc.log.Info("shutdown complete")
}
