package gateway

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 4096
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Subscribed symbols. Empty means every symbol.
	subMu   sync.RWMutex
	symbols map[string]bool
}

// controlMsg is a client request.
//
//	{"type":"SUBSCRIBE","symbols":["NIFTY"]}
//	{"type":"UNSUBSCRIBE","symbols":["NIFTY"]}
//	{"ping":1700000000000}
type controlMsg struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
	ReqID   string   `json:"req_id,omitempty"`
	Ping    int64    `json:"ping"`
}

type ackMsg struct {
	Type    string   `json:"type"`
	ReqID   string   `json:"req_id,omitempty"`
	Symbols []string `json:"symbols"`
}

type errorMsg struct {
	Type  string `json:"type"`
	ReqID string `json:"req_id,omitempty"`
	Error string `json:"error"`
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan []byte, clientSendBuffer),
		hub:     h,
		symbols: make(map[string]bool),
	}
}

func (c *Client) sendInitialState(lastTS string) {
	var cutoff time.Time
	if lastTS != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, lastTS); err == nil {
			cutoff = parsed
		}
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	for channel, entry := range c.hub.latest {
		if !cutoff.IsZero() && !entry.TS.After(cutoff) {
			continue
		}
		envelope, _ := json.Marshal(map[string]interface{}{
			"channel":     channel,
			"data":        entry.Data,
			"ts":          entry.TS.Format(time.RFC3339Nano),
			"channel_seq": entry.Seq,
			"initial":     true,
		})
		select {
		case c.send <- envelope:
		default:
		}
	}
}

// sendJSON queues v for the client, dropping it if the queue is full or the
// client is gone.
func (c *Client) sendJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			// Write coalescing: batch queued messages into a single frame
			// with newline separators.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(next)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg controlMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendJSON(errorMsg{Type: "error", Error: "invalid message: " + err.Error()})
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg controlMsg) {
	switch strings.ToUpper(msg.Type) {
	case "SUBSCRIBE":
		if len(msg.Symbols) == 0 {
			c.sendJSON(errorMsg{Type: "error", ReqID: msg.ReqID, Error: "symbols are required"})
			return
		}
		c.subMu.Lock()
		for _, s := range msg.Symbols {
			c.symbols[s] = true
		}
		c.subMu.Unlock()
		c.sendJSON(ackMsg{Type: "subscribed", ReqID: msg.ReqID, Symbols: c.Symbols()})

	case "UNSUBSCRIBE":
		c.subMu.Lock()
		for _, s := range msg.Symbols {
			delete(c.symbols, s)
		}
		c.subMu.Unlock()
		c.sendJSON(ackMsg{Type: "unsubscribed", ReqID: msg.ReqID, Symbols: c.Symbols()})

	default:
		if msg.Ping > 0 {
			c.sendJSON(map[string]interface{}{
				"type":      "pong",
				"ping":      msg.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
			return
		}
		c.sendJSON(errorMsg{Type: "error", ReqID: msg.ReqID, Error: "unknown type " + msg.Type})
	}
}

// Symbols returns the subscribed symbols, sorted.
func (c *Client) Symbols() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	out := make([]string, 0, len(c.symbols))
	for s := range c.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// matchesChannel reports whether the client should receive a message on
// channel. Scans and unknown channels always pass.
func (c *Client) matchesChannel(channel string) bool {
	symbol, ok := strings.CutPrefix(channel, "analysis:")
	if !ok {
		return true
	}
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if len(c.symbols) == 0 {
		return true
	}
	return c.symbols[symbol]
}
