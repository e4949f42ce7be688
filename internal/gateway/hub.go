// Package gateway pushes analysis records and market scans to websocket
// clients.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trend-signals/internal/model"
	"trend-signals/internal/scanner"
)

// ScanChannel carries every market scan.
const ScanChannel = "scan"

// AnalysisChannel is the websocket channel carrying records of symbol.
func AnalysisChannel(symbol string) string { return "analysis:" + symbol }

const (
	clientSendBuffer = 256
	replayCapacity   = 500
)

// Hub manages websocket clients and fans analysis records out to them.
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64

	// Per-channel monotonic sequence numbers for gap detection
	channelSeqs map[string]int64

	// Per-channel replay buffers for gap backfill
	replayBufs map[string]*ReplayBuffer

	// Record age at push time, from the record timestamp to the broadcast.
	Ages *AgeTracker

	// OnClients is called with the client count after every connect or
	// disconnect.
	OnClients func(n int)

	now func() time.Time
}

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
	Seq  int64 // per-channel seq for gap detection
}

// NewHub creates an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:         log,
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
		Ages:        NewAgeTracker(10000),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run broadcasts every record received on in until in closes or ctx is
// cancelled.
func (h *Hub) Run(ctx context.Context, in <-chan model.TrendAnalysis) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-in:
			if !ok {
				return
			}
			h.Publish(ctx, rec)
		}
	}
}

// Publish broadcasts one record on its symbol channel. It implements
// model.AnalysisSink.
func (h *Hub) Publish(_ context.Context, rec model.TrendAnalysis) {
	h.broadcast(AnalysisChannel(rec.Symbol), rec.JSON(), rec.UpdatedAt)
}

// PublishScan broadcasts a market scan to every client.
func (h *Hub) PublishScan(res scanner.Result) {
	h.broadcast(ScanChannel, res.JSON(), res.At)
}

// Forget drops the cached state of an evicted symbol.
func (h *Hub) Forget(symbol string) {
	ch := AnalysisChannel(symbol)
	h.mu.Lock()
	delete(h.latest, ch)
	delete(h.replayBufs, ch)
	delete(h.channelSeqs, ch)
	h.mu.Unlock()
}

// HandleConn registers an upgraded connection and starts its pumps. Clients
// receive the latest message of every channel changed after lastTS first.
func (h *Hub) HandleConn(conn *websocket.Conn, lastTS string) *Client {
	client := newClient(h, conn)
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Info("ws client connected", "clients", count)
	if h.OnClients != nil {
		h.OnClients(count)
	}

	client.sendInitialState(lastTS)
	go client.writePump()
	go client.readPump()
	return client
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()

	h.log.Info("ws client disconnected", "clients", count)
	if h.OnClients != nil {
		h.OnClients(count)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		h.RemoveClient(c)
	}
}

// GetLatestAll returns snapshot of all latest channel data.
func (h *Hub) GetLatestAll() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Data
	}
	return cp
}

// GetReplayRange returns buffered envelopes for a channel in [fromSeq, toSeq].
// truncated reports that part of the range was already overwritten.
func (h *Hub) GetReplayRange(channel string, fromSeq, toSeq int64) (envelopes [][]byte, truncated bool) {
	h.mu.RLock()
	rb, exists := h.replayBufs[channel]
	h.mu.RUnlock()
	if !exists {
		return nil, false
	}
	if oldest, ok := rb.Oldest(); ok && fromSeq < oldest {
		truncated = true
	}
	entries := rb.Range(fromSeq, toSeq)
	envelopes = make([][]byte, len(entries))
	for i, e := range entries {
		envelopes[i] = e.Data
	}
	return envelopes, truncated
}

// GetChannelSeq returns the current sequence number for a channel.
func (h *Hub) GetChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
