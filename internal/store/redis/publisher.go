package redis

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
	"unsafe"

	goredis "github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"

	"trend-signals/internal/model"
	"trend-signals/internal/scanner"
)

const (
	defaultLatestTTL    = 30 * time.Minute
	defaultStreamMaxLen = 2000
	publishTimeout      = 2 * time.Second

	// ScanLatestKey holds the last market scan.
	ScanLatestKey = "scan:latest"
	// ScanChannel carries every market scan.
	ScanChannel = "pub:scan"
)

// AnalysisLatestKey is the key holding the current record of symbol.
func AnalysisLatestKey(symbol string) string { return "analysis:latest:" + symbol }

// AnalysisStreamKey is the stream holding the record history of symbol.
func AnalysisStreamKey(symbol string) string { return "analysis:" + symbol }

// AnalysisChannel is the PubSub channel carrying records of symbol.
func AnalysisChannel(symbol string) string { return "pub:analysis:" + symbol }

// PublisherConfig configures the analysis publisher.
type PublisherConfig struct {
	RatePerSymbol float64       // max publishes per second per symbol (0 = unlimited)
	Burst         int           // limiter burst (default 1)
	LatestTTL     time.Duration // TTL of the latest-record key (default 30m)
	StreamMaxLen  int64         // approximate stream trim length (default 2000)
	MaxFailures   int           // consecutive failures before the breaker opens (default 5)
	ResetTimeout  time.Duration // breaker open duration before a probe (default 10s)
}

// Publisher writes analysis records to Redis: SET latest, XADD history and
// PUBLISH, in one pipeline per record. Publishes above the per-symbol rate,
// or while the circuit breaker is open, are coalesced to the newest record
// per symbol and written by Flush.
type Publisher struct {
	client  *goredis.Client
	breaker *CircuitBreaker
	pending *pendingLatest
	log     *slog.Logger

	ttl    time.Duration
	maxLen int64
	limit  rate.Limit
	burst  int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	// send writes one record; replaced in tests.
	send func(ctx context.Context, rec model.TrendAnalysis) error

	OnThrottle func()          // a publish was deferred by the rate limiter
	OnFailure  func()          // a write failed
	OnBuffer   func()          // a record was deferred while the breaker was open
	OnFlush    func(count int) // deferred records were written
}

// NewPublisher creates a Publisher over an already connected client.
func NewPublisher(client *goredis.Client, cfg PublisherConfig, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.LatestTTL <= 0 {
		cfg.LatestTTL = defaultLatestTTL
	}
	if cfg.StreamMaxLen <= 0 {
		cfg.StreamMaxLen = defaultStreamMaxLen
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSymbol > 0 {
		limit = rate.Limit(cfg.RatePerSymbol)
	}

	p := &Publisher{
		client:   client,
		breaker:  NewCircuitBreaker(cfg.MaxFailures, cfg.ResetTimeout),
		pending:  newPendingLatest(),
		log:      log,
		ttl:      cfg.LatestTTL,
		maxLen:   cfg.StreamMaxLen,
		limit:    limit,
		burst:    cfg.Burst,
		limiters: make(map[string]*rate.Limiter),
	}
	p.send = p.write
	return p
}

// Breaker exposes the circuit breaker for state callbacks.
func (p *Publisher) Breaker() *CircuitBreaker { return p.breaker }

// Pending returns the number of deferred records.
func (p *Publisher) Pending() int { return p.pending.len() }

// Publish writes rec or defers it. It implements model.AnalysisSink.
func (p *Publisher) Publish(ctx context.Context, rec model.TrendAnalysis) {
	if !p.limiter(rec.Symbol).Allow() {
		p.pending.put(rec)
		if p.OnThrottle != nil {
			p.OnThrottle()
		}
		return
	}
	p.publish(ctx, rec)
}

func (p *Publisher) publish(ctx context.Context, rec model.TrendAnalysis) bool {
	err := p.breaker.Execute(func() error { return p.send(ctx, rec) })
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrCircuitOpen):
		p.pending.put(rec)
		if p.OnBuffer != nil {
			p.OnBuffer()
		}
	default:
		p.pending.put(rec)
		p.log.Warn("analysis publish failed", "symbol", rec.Symbol, "err", err)
		if p.OnFailure != nil {
			p.OnFailure()
		}
	}
	return false
}

// Flush writes deferred records. Records still throttled or rejected stay
// deferred. It returns the number written.
func (p *Publisher) Flush(ctx context.Context) int {
	written := 0
	for _, rec := range p.pending.take() {
		if !p.limiter(rec.Symbol).Allow() {
			p.pending.put(rec)
			continue
		}
		if p.publish(ctx, rec) {
			written++
		}
	}
	if written > 0 {
		p.log.Debug("flushed deferred analysis records", "count", written)
		if p.OnFlush != nil {
			p.OnFlush(written)
		}
	}
	return written
}

// Run publishes records from in and flushes deferred ones every flushEvery
// until in closes or ctx is cancelled, then makes a last flush attempt.
func (p *Publisher) Run(ctx context.Context, in <-chan model.TrendAnalysis, flushEvery time.Duration) {
	if flushEvery <= 0 {
		flushEvery = time.Second
	}
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	defer func() {
		fctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		p.Flush(fctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-in:
			if !ok {
				return
			}
			p.Publish(ctx, rec)
		case <-ticker.C:
			p.Flush(ctx)
		}
	}
}

// PublishScan stores the scan as the latest and broadcasts it.
func (p *Publisher) PublishScan(ctx context.Context, res scanner.Result) error {
	return p.breaker.Execute(func() error {
		data := res.JSON()
		pipe := p.client.Pipeline()
		pipe.Set(ctx, ScanLatestKey, data, p.ttl)
		pipe.Publish(ctx, ScanChannel, data)
		_, err := pipe.Exec(ctx)
		return err
	})
}

func (p *Publisher) limiter(symbol string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[symbol]
	if !ok {
		l = rate.NewLimiter(p.limit, p.burst)
		p.limiters[symbol] = l
	}
	return l
}

// Forget drops the limiter of an evicted symbol.
func (p *Publisher) Forget(symbol string) {
	p.mu.Lock()
	delete(p.limiters, symbol)
	p.mu.Unlock()
}

// write performs the pipelined SET + XADD + PUBLISH for one record.
func (p *Publisher) write(ctx context.Context, rec model.TrendAnalysis) error {
	jsonBytes := rec.JSON()
	// Zero-copy []byte→string (safe: jsonBytes is not mutated after this)
	data := *(*string)(unsafe.Pointer(&jsonBytes))

	wctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	pipe := p.client.Pipeline()
	pipe.Set(wctx, AnalysisLatestKey(rec.Symbol), data, p.ttl)
	pipe.XAdd(wctx, &goredis.XAddArgs{
		Stream: AnalysisStreamKey(rec.Symbol),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{"data": data},
	})
	pipe.Publish(wctx, AnalysisChannel(rec.Symbol), data)
	_, err := pipe.Exec(wctx)
	return err
}
