// Package realtime implements the Realtime Hub: the WebSocket
// connection registry, per-requestId subscription/backlog management,
// heartbeat, and backpressure policy the Pipeline Orchestrator publishes
// progress and terminal frames through.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Close codes used when tearing down a connection.
const (
	CloseNormal        = 1000
	CloseServerShutdown = 1001
	ClosePolicy        = 1008
	CloseMessageTooBig = 1009
	CloseInternal      = 1011
	CloseUnauthorized  = 4401
	CloseTicketExpired = 4408
)

const (
	defaultOutboundQueueMax = 256
	defaultHeartbeatInterval = 30 * time.Second
	defaultBacklogSize       = 64
)

// frame is one message queued for delivery to a connection.
type frame struct {
	critical bool
	payload  []byte
}

// Connection is a single WebSocket client bound to an authenticated
// identity. All reads/writes to subscriptions happen on the owning
// goroutine (HandleUpgrade's read loop and its deferred cleanup), mirroring
// the single-writer discipline the Hub relies on.
type Connection struct {
	ID            string
	SessionID     string
	Conn          *websocket.Conn
	subscriptions map[string]bool
	outbound      chan frame
	awaitingPong  bool
	ctx           context.Context
	cancel        context.CancelFunc
}

// backlogRing is a bounded FIFO of previously published frames for one
// requestId, replayed oldest-first to late subscribers.
type backlogRing struct {
	messages []map[string]interface{}
	max      int
}

func (b *backlogRing) append(msg map[string]interface{}) {
	b.messages = append(b.messages, msg)
	if len(b.messages) > b.max {
		b.messages = b.messages[len(b.messages)-b.max:]
	}
}

// Hub manages WebSocket connections and per-requestId subscriptions.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection

	subMu   sync.RWMutex
	subs    map[string]map[string]bool // requestId -> connection IDs
	backlog map[string]*backlogRing

	outboundQueueMax int
	heartbeatInterval time.Duration

	dropped int64 // dropped-message metric, accessed via DroppedCount
	droppedMu sync.Mutex
}

// NewHub constructs a Hub with the given backpressure bound and
// heartbeat interval; zero values fall back to package defaults.
func NewHub(outboundQueueMax int, heartbeatInterval time.Duration) *Hub {
	if outboundQueueMax == 0 {
		outboundQueueMax = defaultOutboundQueueMax
	}
	if heartbeatInterval == 0 {
		heartbeatInterval = defaultHeartbeatInterval
	}
	return &Hub{
		connections:       make(map[string]*Connection),
		subs:              make(map[string]map[string]bool),
		backlog:           make(map[string]*backlogRing),
		outboundQueueMax:  outboundQueueMax,
		heartbeatInterval: heartbeatInterval,
	}
}

// HandleUpgrade registers a newly-upgraded connection bound to
// sessionID and blocks, driving its write loop, until the connection
// closes. Callers validate the WS ticket before calling this.
func (h *Hub) HandleUpgrade(parentCtx context.Context, conn *websocket.Conn, sessionID string) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &Connection{
		ID:            uuid.New().String(),
		SessionID:     sessionID,
		Conn:          conn,
		subscriptions: make(map[string]bool),
		outbound:      make(chan frame, h.outboundQueueMax),
		ctx:           ctx,
		cancel:        cancel,
	}

	h.mu.Lock()
	h.connections[c.ID] = c
	h.mu.Unlock()

	defer h.removeConnection(c)

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *Connection) {
	for {
		_, data, err := c.Conn.Read(c.ctx)
		if err != nil {
			return
		}
		var msg struct {
			Action    string `json:"action"`
			RequestID string `json:"requestId"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Action {
		case "subscribe":
			h.Subscribe(c, msg.RequestID)
		case "unsubscribe":
			h.Unsubscribe(c, msg.RequestID)
		case "pong":
			c.awaitingPong = false
		}
	}
}

func (h *Hub) writeLoop(c *Connection) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case f, ok := <-c.outbound:
			if !ok {
				return
			}
			if err := c.Conn.Write(c.ctx, websocket.MessageText, f.payload); err != nil {
				return
			}
		}
	}
}

// Subscribe adds connection to requestId's subscriber set and replays
// the backlog oldest-first; if the job is already terminal and the
// backlog has expired, callers are expected to have already sent a
// one-shot terminal frame via Publish before backlog eviction.
func (h *Hub) Subscribe(c *Connection, requestID string) {
	h.subMu.Lock()
	if _, ok := h.subs[requestID]; !ok {
		h.subs[requestID] = make(map[string]bool)
	}
	h.subs[requestID][c.ID] = true
	ring := h.backlog[requestID]
	h.subMu.Unlock()

	c.subscriptions[requestID] = true

	if ring != nil {
		for _, msg := range ring.messages {
			h.deliverOne(c, msg, false)
		}
	}
}

func (h *Hub) Unsubscribe(c *Connection, requestID string) {
	h.subMu.Lock()
	if set, ok := h.subs[requestID]; ok {
		delete(set, c.ID)
		if len(set) == 0 {
			delete(h.subs, requestID)
		}
	}
	h.subMu.Unlock()
	delete(c.subscriptions, requestID)
}

// HasActiveSubscribers reports whether any connection currently
// subscribes to requestId. The Job Store consults this before
// stale-marking a RUNNING job whose owner disconnected.
func (h *Hub) HasActiveSubscribers(requestID string) bool {
	h.subMu.RLock()
	defer h.subMu.RUnlock()
	return len(h.subs[requestID]) > 0
}

// Publish appends message to requestId's backlog and delivers it to
// every live subscriber in FIFO order. message must be JSON-marshalable.
func (h *Hub) Publish(requestID string, message interface{}) error {
	msg, ok := message.(map[string]interface{})
	if !ok {
		b, err := json.Marshal(message)
		if err != nil {
			return err
		}
		msg = map[string]interface{}{}
		_ = json.Unmarshal(b, &msg)
	}

	h.subMu.Lock()
	ring, ok := h.backlog[requestID]
	if !ok {
		ring = &backlogRing{max: defaultBacklogSize}
		h.backlog[requestID] = ring
	}
	ring.append(msg)
	connIDs := make([]string, 0, len(h.subs[requestID]))
	for id := range h.subs[requestID] {
		connIDs = append(connIDs, id)
	}
	h.subMu.Unlock()

	critical := msg["type"] == "terminal" || msg["type"] == "assist"

	h.mu.RLock()
	conns := make([]*Connection, 0, len(connIDs))
	for _, id := range connIDs {
		if c, ok := h.connections[id]; ok {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range conns {
		h.deliverOne(c, msg, critical)
	}
	return nil
}

// deliverOne enqueues msg on c's outbound queue, applying the
// backpressure policy: progress updates are dropped (not coalesced
// in-place, since the channel doesn't support peeking) ahead of critical
// frames; if a critical frame itself cannot be enqueued, the connection
// is closed with 1009.
func (h *Hub) deliverOne(c *Connection, msg map[string]interface{}, critical bool) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.outbound <- frame{critical: critical, payload: payload}:
		return
	default:
	}

	if !critical {
		h.droppedMu.Lock()
		h.dropped++
		h.droppedMu.Unlock()
		slog.Warn("realtime: dropped non-critical frame under backpressure", "connection_id", c.ID)
		return
	}

	h.CloseConnection(c, CloseMessageTooBig)
}

// DroppedCount reports the cumulative number of non-critical frames
// dropped under backpressure, for metrics/testing.
func (h *Hub) DroppedCount() int64 {
	h.droppedMu.Lock()
	defer h.droppedMu.Unlock()
	return h.dropped
}

// Close removes requestId's subscriber set and its backlog. It sends no
// frame to the subscribers.
func (h *Hub) Close(requestID string) {
	h.subMu.Lock()
	delete(h.subs, requestID)
	delete(h.backlog, requestID)
	h.subMu.Unlock()
}

// CloseConnection closes c with the given close code and unregisters it.
func (h *Hub) CloseConnection(c *Connection, code websocket.StatusCode) {
	_ = c.Conn.Close(code, "")
	c.cancel()
}

func (h *Hub) removeConnection(c *Connection) {
	h.mu.Lock()
	delete(h.connections, c.ID)
	h.mu.Unlock()

	h.subMu.Lock()
	for requestID := range c.subscriptions {
		if set, ok := h.subs[requestID]; ok {
			delete(set, c.ID)
			if len(set) == 0 {
				delete(h.subs, requestID)
			}
		}
	}
	h.subMu.Unlock()
}

// RunHeartbeat pings every connection every heartbeatInterval; a
// connection still awaitingPong at the next tick is closed with 1011.
// Intended to be launched once as its own goroutine for the Hub's
// lifetime.
func (h *Hub) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.mu.RLock()
			conns := make([]*Connection, 0, len(h.connections))
			for _, c := range h.connections {
				conns = append(conns, c)
			}
			h.mu.RUnlock()

			for _, c := range conns {
				if c.awaitingPong {
					h.CloseConnection(c, CloseInternal)
					continue
				}
				c.awaitingPong = true
				_ = c.Conn.Ping(c.ctx)
			}
		}
	}
}
