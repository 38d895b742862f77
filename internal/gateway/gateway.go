// Package gateway implements the Event Gateway (§4.9): a WebSocket
// multiplexer that broadcasts domain events to every connected observer
// and serves a small read-only/control RPC surface over the same
// connection.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/haasonsaas/stark/pkg/models"
)

// DefaultSendQueueCapacity bounds each connection's outbound frame buffer
// (§4.9: "bounded per-connection send queue, default 256").
const DefaultSendQueueCapacity = 256

// DefaultRPCTimeout is the deadline applied to every client RPC call (§4.9).
const DefaultRPCTimeout = 30 * time.Second

const (
	writeWait = 10 * time.Second
	pongWait  = 45 * time.Second
	pingEvery = (pongWait * 9) / 10
)

// Hub is the gateway's connection registry and event bus. It implements
// agent.Publisher, so a Dispatcher can be wired directly to a Hub without
// either package importing the other.
type Hub struct {
	logger *slog.Logger
	rpc    *RPCRouter

	queueCapacity int

	mu    sync.Mutex
	conns map[*Conn]struct{}
	seq   uint64
}

// NewHub returns a Hub ready to accept connections. rpc may be nil, in
// which case every client RPC call fails with method_not_found.
func NewHub(rpc *RPCRouter, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if rpc == nil {
		rpc = NewRPCRouter()
	}
	return &Hub{logger: logger, rpc: rpc, queueCapacity: DefaultSendQueueCapacity, conns: make(map[*Conn]struct{})}
}

// nextSeq assigns the next monotonically increasing frame sequence number.
func (h *Hub) nextSeq() uint64 {
	return atomic.AddUint64(&h.seq, 1)
}

// register adds conn to the broadcast set. Newly connected observers never
// see events published before they registered (§4.9: "no replay").
func (h *Hub) register(c *Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

// unregister removes conn from the broadcast set.
func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// snapshot returns the currently connected set without holding the lock
// during delivery (§5: "the Event Gateway's subscriber list is protected
// by a single mutex held only to add/remove subscribers; publishes copy
// the snapshot").
func (h *Hub) snapshot() []*Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		out = append(out, c)
	}
	return out
}

// Publish implements agent.Publisher: it fans name/payload out to every
// connected observer as an unsolicited event frame. A connection whose send
// queue is already full is dropped, and an observer.dropped event is
// published announcing the drop (§4.9, §7 ObserverBackpressure).
func (h *Hub) Publish(ctx context.Context, sessionID string, name models.EventName, payload any) {
	h.broadcast(name, map[string]any{"session_id": sessionID, "data": payload})
}

func (h *Hub) broadcast(name models.EventName, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("gateway: failed to marshal event payload", "event", name, "error", err)
		return
	}
	frame := models.Frame{Type: "event", Event: name, Payload: raw, Seq: h.nextSeq()}
	body, err := json.Marshal(frame)
	if err != nil {
		h.logger.Warn("gateway: failed to marshal event frame", "event", name, "error", err)
		return
	}

	for _, c := range h.snapshot() {
		if !c.enqueue(body) {
			h.dropConnection(c)
		}
	}
}

// dropConnection removes and closes a connection whose send queue
// overflowed, then announces the drop to the remaining observers.
func (h *Hub) dropConnection(c *Conn) {
	h.unregister(c)
	c.close()
	h.logger.Warn("gateway: dropped slow connection", "connection_id", c.id)
	h.broadcast(models.EventObserverDropped, map[string]string{"connection_id": c.id})
}

// Conn is one authenticated WebSocket observer connection.
type Conn struct {
	hub  *Hub
	conn *websocket.Conn

	id     string
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

func newConn(hub *Hub, ws *websocket.Conn, parent context.Context) *Conn {
	ctx, cancel := context.WithCancel(parent)
	return &Conn{
		hub:    hub,
		conn:   ws,
		id:     uuid.NewString(),
		send:   make(chan []byte, hub.queueCapacity),
		ctx:    ctx,
		cancel: cancel,
	}
}

// enqueue places body on the connection's outbound queue without blocking.
// It reports false when the queue is already full.
func (c *Conn) enqueue(body []byte) bool {
	select {
	case c.send <- body:
		return true
	default:
		return false
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		_ = c.conn.Close()
	})
}

// serve drives one connection's lifetime: a write loop draining the send
// queue and a read loop dispatching inbound RPC frames, until either side
// closes (disconnect is silent; §4.9).
func (c *Conn) serve() {
	defer func() {
		c.hub.unregister(c)
		c.close()
	}()

	c.hub.register(c)

	go c.writeLoop()
	c.readLoop()
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case body, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) readLoop() {
	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var frame models.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.replyError("", "invalid_frame", err.Error())
			continue
		}
		c.handleRequest(frame)
	}
}

func (c *Conn) handleRequest(frame models.Frame) {
	ctx, cancel := context.WithTimeout(c.ctx, DefaultRPCTimeout)
	defer cancel()

	result, err := c.hub.rpc.Dispatch(ctx, frame.Method, frame.Params)
	if err != nil {
		c.replyError(frame.ID, "rpc_failed", err.Error())
		return
	}
	c.replyOK(frame.ID, result)
}

func (c *Conn) replyOK(id string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		c.replyError(id, "encode_failed", err.Error())
		return
	}
	ok := true
	c.sendFrame(models.Frame{Type: "res", ID: id, OK: &ok, Payload: raw})
}

func (c *Conn) replyError(id, code, message string) {
	ok := false
	c.sendFrame(models.Frame{Type: "res", ID: id, OK: &ok, Error: code + ": " + message})
}

func (c *Conn) sendFrame(frame models.Frame) {
	body, err := json.Marshal(frame)
	if err != nil {
		return
	}
	if !c.enqueue(body) {
		c.hub.dropConnection(c)
	}
}
