package signalsvc

import (
	"context"
	"time"

	"trend-signals/internal/logger"
	"trend-signals/internal/model"
)

// processLoop is the single consumer of the ring and the single writer of
// the record stream. It also drives re-evaluation on a wall-clock ticker.
func (svc *Service) processLoop(ctx context.Context) {
	interval := svc.cfg.AdvanceInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	batch := make([]model.Event, drainBatch)
	for {
		select {
		case <-ctx.Done():
			return
		case <-svc.ring.Ready():
			svc.drain(ctx, batch)
		case now := <-ticker.C:
			svc.advance(ctx, now.UTC())
		}
	}
}

// drain processes ring events until the ring is empty.
func (svc *Service) drain(ctx context.Context, batch []model.Event) {
	for {
		n := svc.ring.Drain(batch)
		if n == 0 {
			return
		}
		var last time.Time
		for i := 0; i < n; i++ {
			if svc.handle(ctx, batch[i]) {
				last = batch[i].Time()
			}
			batch[i] = model.Event{}
		}
		if !last.IsZero() {
			svc.health.ObserveEvent(last, len(svc.engine.Symbols()))
		}
	}
}

// handle runs one event through the pipeline and emits the replaced record.
// Rejected events are logged and dropped.
func (svc *Service) handle(ctx context.Context, ev model.Event) bool {
	rec, err := svc.engine.OnEvent(ev)
	if err != nil {
		tctx := logger.WithTraceID(ctx, logger.GenerateTraceID(ev.Symbol(), ev.Time()))
		svc.log.Warn("event rejected", append(logger.LogWithTrace(tctx), "kind", ev.Kind.String(), "err", err)...)
		return false
	}
	if ev.Kind == model.EventCandle {
		select {
		case svc.candles <- ev.Candle:
		default:
			svc.prom.FanoutDropsTotal.WithLabelValues("candles").Inc()
		}
	}
	svc.emit(ctx, rec)
	return true
}

// advance re-evaluates every symbol at now, forgets evicted symbols in the
// sinks and publishes a market scan.
func (svc *Service) advance(ctx context.Context, now time.Time) {
	rep := svc.engine.Advance(now)
	for _, sym := range rep.Evicted {
		svc.hub.Forget(sym)
		if svc.publisher != nil {
			svc.publisher.Forget(sym)
		}
		if svc.alerter != nil {
			svc.alerter.Forget(sym)
		}
	}
	for _, rec := range rep.Records {
		svc.emit(ctx, rec)
	}
	if len(rep.Expired) > 0 {
		svc.log.Debug("signals expired", "count", len(rep.Expired))
	}

	res := svc.engine.ScanMarket(svc.instruments())
	svc.hub.PublishScan(res)
	if svc.publisher != nil {
		if err := svc.publisher.PublishScan(ctx, res); err != nil {
			svc.log.Warn("scan publish failed", "err", err)
		}
	}
}

// emit hands a record to the fan-out.
func (svc *Service) emit(ctx context.Context, rec model.TrendAnalysis) {
	select {
	case svc.records <- rec:
	case <-ctx.Done():
	}
}

// instruments returns the configured symbols, or every tracked symbol when
// none is configured.
func (svc *Service) instruments() []model.Instrument {
	if len(svc.cfg.Symbols) == 0 {
		return svc.engine.Instruments()
	}
	out := make([]model.Instrument, len(svc.cfg.Symbols))
	for i, s := range svc.cfg.Symbols {
		out[i] = model.Instrument{Symbol: s, DisplayName: s}
	}
	return out
}
