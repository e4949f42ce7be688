// Package bus fans analysis records out from the single pipeline writer to
// independent sinks (Redis publisher, WebSocket hub, archive).
package bus

import (
	"context"
	"log/slog"
	"sync"

	"trend-signals/internal/model"
)

// FanOut broadcasts analysis records from a single input channel to N named
// output channels. If an output channel is full, the record is dropped for
// that sink so a slow sink cannot block the pipeline.
type FanOut struct {
	mu      sync.RWMutex
	names   []string
	outputs []chan model.TrendAnalysis
	bufSize int

	// OnDrop is called when a record is dropped for a sink.
	OnDrop func(sink string)
}

// New creates a FanOut with the given buffer size for output channels.
func New(outputBufferSize int) *FanOut {
	return &FanOut{
		bufSize: outputBufferSize,
	}
}

// Subscribe creates and returns a new output channel for the named sink.
// Subscribe must be called before Run.
func (f *FanOut) Subscribe(name string) <-chan model.TrendAnalysis {
	ch := make(chan model.TrendAnalysis, f.bufSize)
	f.mu.Lock()
	f.names = append(f.names, name)
	f.outputs = append(f.outputs, ch)
	f.mu.Unlock()
	return ch
}

// Run reads from the input channel and fans out to all sinks. Output
// channels are closed when Run returns. Blocks until ctx is cancelled or
// input is closed.
func (f *FanOut) Run(ctx context.Context, input <-chan model.TrendAnalysis) {
	defer func() {
		f.mu.RLock()
		for _, ch := range f.outputs {
			close(ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-input:
			if !ok {
				return
			}
			f.mu.RLock()
			for i, ch := range f.outputs {
				select {
				case ch <- rec:
				default:
					if f.OnDrop != nil {
						f.OnDrop(f.names[i])
					} else {
						slog.Warn("bus sink full, dropping record", "sink", f.names[i], "symbol", rec.Symbol)
					}
				}
			}
			f.mu.RUnlock()
		}
	}
}

// ChannelStat reports the fill level of one sink channel.
type ChannelStat struct {
	Name string
	Len  int
	Cap  int
}

// ChannelStats returns the fill level of each sink channel.
func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, ch := range f.outputs {
		stats[i] = ChannelStat{Name: f.names[i], Len: len(ch), Cap: cap(ch)}
	}
	return stats
}
