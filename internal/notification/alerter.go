package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"trend-signals/internal/model"
)

// AlerterConfig controls which changes raise alerts and how fast they go out.
type AlerterConfig struct {
	MinScore    float64 // actionable records scoring below this are not alerted
	AlertOnHold bool    // also alert when a BUY/SELL falls back to HOLD
	RatePerSec  float64 // outbound alert rate; 0 means unlimited
	Burst       int
	SendTimeout time.Duration
}

// Alerter watches the record stream and raises an alert whenever a
// symbol's recommendation changes.
type Alerter struct {
	cfg      AlerterConfig
	notifier Notifier
	limiter  *rate.Limiter
	log      *slog.Logger

	mu   sync.Mutex
	last map[string]model.Recommendation

	// OnSent and OnFailure are called after each delivery attempt.
	OnSent    func()
	OnFailure func()
}

// NewAlerter creates an alerter delivering through n.
func NewAlerter(n Notifier, cfg AlerterConfig, log *slog.Logger) *Alerter {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	lim := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst)
	}
	return &Alerter{
		cfg:      cfg,
		notifier: n,
		limiter:  lim,
		log:      log,
		last:     make(map[string]model.Recommendation),
	}
}

// Observe records rec and returns the alert it triggers, if any.
// The first record seen for a symbol only sets the baseline unless it is
// already actionable.
func (a *Alerter) Observe(rec model.TrendAnalysis) (Alert, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev, seen := a.last[rec.Symbol]
	if !seen {
		prev = model.RecommendHold
	}
	a.last[rec.Symbol] = rec.Recommendation
	if prev == rec.Recommendation {
		return Alert{}, false
	}
	if rec.Actionable() {
		if rec.Score < a.cfg.MinScore {
			// Do not remember a sub-threshold call as alerted.
			a.last[rec.Symbol] = prev
			return Alert{}, false
		}
		return AlertFor(prev, rec), true
	}
	if !a.cfg.AlertOnHold || !seen {
		return Alert{}, false
	}
	return AlertFor(prev, rec), true
}

// Forget drops the baseline of an evicted symbol.
func (a *Alerter) Forget(symbol string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.last, symbol)
}

// Run consumes records until in closes. Alerts are delivered in order;
// delivery waits on the rate limiter, and a failed alert is logged and
// dropped.
func (a *Alerter) Run(ctx context.Context, in <-chan model.TrendAnalysis) {
	for rec := range in {
		alert, ok := a.Observe(rec)
		if !ok {
			continue
		}
		if err := a.limiter.Wait(ctx); err != nil {
			a.log.Warn("alert dropped", "symbol", alert.Symbol, "err", err)
			continue
		}
		a.deliver(ctx, alert)
	}
}

func (a *Alerter) deliver(ctx context.Context, alert Alert) {
	sendCtx, cancel := context.WithTimeout(ctx, a.cfg.SendTimeout)
	defer cancel()
	if err := a.notifier.Send(sendCtx, alert); err != nil {
		a.log.Error("alert delivery failed", "symbol", alert.Symbol, "title", alert.Title, "err", err)
		if a.OnFailure != nil {
			a.OnFailure()
		}
		return
	}
	if a.OnSent != nil {
		a.OnSent()
	}
}
