package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"trend-signals/internal/model"
)

// Stream key prefixes. Each instrument has one candle stream and one tick
// stream, e.g. "candle:NIFTY" and "tick:NIFTY", carrying the JSON event in
// the "data" field.
const (
	CandleStreamPrefix = "candle:"
	TickStreamPrefix   = "tick:"
)

const (
	readCount       = 100
	readBlock       = 2 * time.Second
	reclaimBatch    = 50
	errBusyGroupMsg = "BUSYGROUP Consumer Group name already exists"
)

// errUnknownStream is returned by decodeEvent for keys outside the known prefixes.
var errUnknownStream = errors.New("unknown stream prefix")

// ReaderConfig configures the stream consumer.
type ReaderConfig struct {
	ConsumerGroup string        // consumer group name, e.g. "signalengine"
	ConsumerName  string        // unique consumer name, e.g. hostname
	Streams       []string      // explicit streams; discovered from Redis when empty
	PELInterval   time.Duration // how often idle pending entries are reclaimed
	PELMinIdle    time.Duration // minimum idle time before an entry is reclaimed
}

// Reader consumes candle and tick streams through a consumer group. It
// implements model.EventSource. All reads, pending recovery and reclaims
// run on the goroutine that calls Consume.
type Reader struct {
	client   *goredis.Client
	group    string
	consumer string
	streams  []string
	interval time.Duration
	minIdle  time.Duration
	log      *slog.Logger

	OnReclaim func(count int) // called after a reclaim pass redelivered entries
}

// NewReader creates a Reader over an already connected client.
func NewReader(client *goredis.Client, cfg ReaderConfig, log *slog.Logger) *Reader {
	if log == nil {
		log = slog.Default()
	}
	group := cfg.ConsumerGroup
	if group == "" {
		group = "signalengine"
	}
	consumer := cfg.ConsumerName
	if consumer == "" {
		consumer = "worker-1"
	}
	interval := cfg.PELInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	minIdle := cfg.PELMinIdle
	if minIdle <= 0 {
		minIdle = time.Minute
	}
	return &Reader{
		client:   client,
		group:    group,
		consumer: consumer,
		streams:  cfg.Streams,
		interval: interval,
		minIdle:  minIdle,
		log:      log,
	}
}

// StreamsFor returns the candle and tick stream keys of symbols.
func StreamsFor(symbols []string) []string {
	out := make([]string, 0, 2*len(symbols))
	for _, s := range symbols {
		out = append(out, CandleStreamPrefix+s, TickStreamPrefix+s)
	}
	return out
}

// DiscoverStreams scans Redis for existing candle and tick streams.
func (r *Reader) DiscoverStreams(ctx context.Context) ([]string, error) {
	var streams []string
	for _, prefix := range []string{CandleStreamPrefix, TickStreamPrefix} {
		var cursor uint64
		for {
			keys, next, err := r.client.ScanType(ctx, cursor, prefix+"*", 500, "stream").Result()
			if err != nil {
				return nil, fmt.Errorf("scan %s*: %w", prefix, err)
			}
			streams = append(streams, keys...)
			if next == 0 {
				break
			}
			cursor = next
		}
	}
	sort.Strings(streams)
	return streams, nil
}

// EnsureConsumerGroup creates the consumer group on the given streams if it
// doesn't exist. Fresh groups start at "$" (only new messages).
func (r *Reader) EnsureConsumerGroup(ctx context.Context, streams []string) error {
	for _, stream := range streams {
		err := r.client.XGroupCreateMkStream(ctx, stream, r.group, "$").Err()
		if err != nil && err.Error() != errBusyGroupMsg {
			return fmt.Errorf("xgroup create %s: %w", stream, err)
		}
	}
	return nil
}

// Consume delivers events to out until ctx is cancelled. Pending entries
// left by a previous run are redelivered first. An entry is acknowledged
// once out accepts it; rejected entries stay pending and are reclaimed
// after PELMinIdle.
func (r *Reader) Consume(ctx context.Context, out func(model.Event) bool) error {
	streams := r.streams
	if len(streams) == 0 {
		var err error
		if streams, err = r.DiscoverStreams(ctx); err != nil {
			return err
		}
	}
	if len(streams) == 0 {
		return fmt.Errorf("redis consume: no candle or tick streams found")
	}
	if err := r.EnsureConsumerGroup(ctx, streams); err != nil {
		return err
	}

	if n, err := r.RecoverPending(ctx, streams, out); err != nil {
		return err
	} else if n > 0 {
		r.log.Info("recovered pending entries", "count", n)
	}
	r.log.Info("consuming streams", "streams", len(streams), "group", r.group, "consumer", r.consumer)

	// Build stream args: [stream1, stream2, ..., ">", ">", ...]
	args := make([]string, len(streams)*2)
	for i, s := range streams {
		args[i] = s
		args[len(streams)+i] = ">"
	}

	nextReclaim := time.Now().Add(r.interval)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if time.Now().After(nextReclaim) {
			if n := r.reclaim(ctx, streams, out); n > 0 && r.OnReclaim != nil {
				r.OnReclaim(n)
			}
			nextReclaim = time.Now().Add(r.interval)
		}

		results, err := r.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    r.group,
			Consumer: r.consumer,
			Streams:  args,
			Count:    readCount,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) || ctx.Err() != nil {
				continue
			}
			r.log.Warn("xreadgroup failed", "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}

		for _, stream := range results {
			for _, msg := range stream.Messages {
				r.deliver(ctx, stream.Stream, msg, out)
			}
		}
	}
}

// RecoverPending redelivers entries this consumer read but never
// acknowledged, e.g. before a crash. It returns the number delivered.
func (r *Reader) RecoverPending(ctx context.Context, streams []string, out func(model.Event) bool) (int, error) {
	delivered := 0
	for _, stream := range streams {
		start := "0"
		for {
			msgs, err := r.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
				Group:    r.group,
				Consumer: r.consumer,
				Streams:  []string{stream, start},
				Count:    readCount,
			}).Result()
			if err != nil {
				if errors.Is(err, goredis.Nil) {
					break
				}
				return delivered, fmt.Errorf("recover pending %s: %w", stream, err)
			}
			if len(msgs) == 0 || len(msgs[0].Messages) == 0 {
				break
			}
			for _, msg := range msgs[0].Messages {
				if r.deliver(ctx, stream, msg, out) {
					delivered++
				}
				start = msg.ID
			}
		}
	}
	return delivered, nil
}

// reclaim claims entries idle longer than minIdle from any consumer of the
// group, including this one, and redelivers them.
func (r *Reader) reclaim(ctx context.Context, streams []string, out func(model.Event) bool) int {
	total := 0
	for _, stream := range streams {
		pending, err := r.client.XPendingExt(ctx, &goredis.XPendingExtArgs{
			Stream: stream,
			Group:  r.group,
			Start:  "-",
			End:    "+",
			Count:  reclaimBatch,
			Idle:   r.minIdle,
		}).Result()
		if err != nil || len(pending) == 0 {
			if err != nil && !errors.Is(err, goredis.Nil) {
				r.log.Warn("xpending failed", "stream", stream, "err", err)
			}
			continue
		}

		ids := make([]string, len(pending))
		for i, p := range pending {
			ids[i] = p.ID
		}
		claimed, err := r.client.XClaim(ctx, &goredis.XClaimArgs{
			Stream:   stream,
			Group:    r.group,
			Consumer: r.consumer,
			MinIdle:  r.minIdle,
			Messages: ids,
		}).Result()
		if err != nil {
			r.log.Warn("xclaim failed", "stream", stream, "err", err)
			continue
		}
		for _, msg := range claimed {
			if r.deliver(ctx, stream, msg, out) {
				total++
			}
		}
	}
	if total > 0 {
		r.log.Info("reclaimed idle pending entries", "count", total)
	}
	return total
}

// deliver decodes msg and hands it to out, acknowledging it when accepted.
// Undecodable entries are acknowledged and dropped so they cannot poison
// the group.
func (r *Reader) deliver(ctx context.Context, stream string, msg goredis.XMessage, out func(model.Event) bool) bool {
	data, _ := msg.Values["data"].(string)
	ev, err := decodeEvent(stream, data)
	if err != nil {
		r.log.Warn("dropping undecodable entry", "stream", stream, "id", msg.ID, "err", err)
		r.client.XAck(ctx, stream, r.group, msg.ID)
		return false
	}
	if !out(ev) {
		return false
	}
	r.client.XAck(ctx, stream, r.group, msg.ID)
	return true
}

// decodeEvent parses one stream entry. The stream prefix selects the event
// kind; a missing symbol is taken from the stream key.
func decodeEvent(stream, data string) (model.Event, error) {
	if data == "" {
		return model.Event{}, fmt.Errorf("%s: missing data field", stream)
	}
	switch {
	case strings.HasPrefix(stream, CandleStreamPrefix):
		var c model.Candle
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return model.Event{}, fmt.Errorf("%s: unmarshal candle: %w", stream, err)
		}
		if c.Symbol == "" {
			c.Symbol = strings.TrimPrefix(stream, CandleStreamPrefix)
		}
		c.TS = c.TS.UTC()
		return model.CandleEvent(c), nil
	case strings.HasPrefix(stream, TickStreamPrefix):
		var t model.Tick
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return model.Event{}, fmt.Errorf("%s: unmarshal tick: %w", stream, err)
		}
		if t.Symbol == "" {
			t.Symbol = strings.TrimPrefix(stream, TickStreamPrefix)
		}
		return model.TickEvent(t), nil
	default:
		return model.Event{}, fmt.Errorf("%s: %w", stream, errUnknownStream)
	}
}

// Close closes the Redis client.
func (r *Reader) Close() error {
	return r.client.Close()
}
