package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"volumestate/internal/wire"
)

// ============================================================================
// State WebSocket
// ============================================================================
//
// Every connected client sees the volume flag: one state_init frame taken
// from the daemon loop on connect, then a volume_changed frame per toggle.
// Clients may send {"type":"toggle_volume"}; nothing else is accepted.
//
// Frames are serialized once by the broadcaster and fanned out by the Hub.
// A client whose outbox is full when a change arrives is evicted; it can
// reconnect and resync from state_init.
//
// ============================================================================

// Hub tracks the clients watching the volume flag.
type Hub struct {
	logger *slog.Logger

	changes chan []byte
	leave   chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	outboxSize int
}

type HubConfig struct {
	// SendBuf is the number of frames queued per client before it is evicted.
	SendBuf int

	// BroadcastBuf is the number of change frames queued ahead of the fan-out.
	BroadcastBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	h := &Hub{
		logger:     logger,
		leave:      make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		outboxSize: orDefault(cfg.SendBuf, defaultWSSendBuf),
	}
	h.changes = make(chan []byte, orDefault(cfg.BroadcastBuf, defaultWSBroadcastBuf))
	return h
}

func orDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

// Run serves leaves and change frames until ctx is canceled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("ws hub starting")
	defer h.evictAll()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("ws hub stopping (context canceled)")
			return
		case c := <-h.leave:
			h.evict(c, "unregister")
		case frame := <-h.changes:
			for _, c := range h.fanOut(frame) {
				h.evict(c, "slow_client")
			}
		}
	}
}

// Publish queues a change frame for every client. It never blocks the
// caller; when the queue is full the frame is dropped and clients rely on
// seq to notice the gap.
func (h *Hub) Publish(frame []byte) {
	select {
	case h.changes <- frame:
	default:
		h.logger.Warn("ws hub change queue full, dropping frame", "bytes", len(frame))
	}
}

// ClientCount returns the number of watching clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Join adds c to the hub. It takes effect before Join returns, so every
// change published afterwards reaches c.
func (h *Hub) Join(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	wsClientsGauge.Set(float64(n))
	h.logger.Info("ws client registered", "client_id", c.id, "remote_addr", c.remoteAddr, "clients", n)
}

// fanOut offers frame to every client and returns those whose outbox was full.
func (h *Hub) fanOut(frame []byte) []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	var full []*Client
	for c := range h.clients {
		select {
		case c.outbox <- frame:
		default:
			full = append(full, c)
		}
	}
	return full
}

func (h *Hub) evict(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.disconnect()
	wsClientsGauge.Set(float64(n))
	h.logger.Info("ws client disconnected", "client_id", c.id, "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
}

func (h *Hub) evictAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.disconnect()
		delete(h.clients, c)
	}
	wsClientsGauge.Set(0)
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// outbox holds serialized frames for the write loop; closing it ends the connection.
	outbox    chan []byte
	closeOnce sync.Once

	// events receives toggles requested by this client. Nil makes the client read-only.
	events chan<- Event

	id         string
	remoteAddr string
	logger     *slog.Logger
}

// NewClient creates a client with an outbox sized by the hub and a random id.
func NewClient(hub *Hub, conn *websocket.Conn, events chan<- Event, remoteAddr string, logger *slog.Logger) *Client {
	size := defaultWSSendBuf
	if hub != nil {
		size = hub.outboxSize
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		outbox:     make(chan []byte, size),
		events:     events,
		id:         uuid.NewString(),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second

	// Clients only ever send toggle commands.
	maxInboundMessageBytes = 4096
)

// disconnect closes the socket and the outbox. Safe to call more than once.
func (c *Client) disconnect() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		close(c.outbox)
	})
}

// offer queues a frame that must reach this client before any later change,
// such as state_init. A client that cannot take it is evicted.
func (c *Client) offer(frame []byte) {
	defer func() {
		_ = recover() // outbox closed by a concurrent eviction
	}()
	select {
	case c.outbox <- frame:
	default:
		c.hub.leave <- c
	}
}

// writeLoop sends queued frames and keepalive pings until the outbox is closed
// or a write fails.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		var (
			kind  = websocket.PingMessage
			frame []byte
		)
		select {
		case f, ok := <-c.outbox:
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			kind, frame = websocket.TextMessage, f
		case <-ticker.C:
		}

		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(kind, frame); err != nil {
			c.logExit("write", err)
			return
		}
	}
}

// readLoop forwards toggle commands until the peer goes away, then asks the
// hub to drop this client.
func (c *Client) readLoop() {
	c.conn.SetReadLimit(maxInboundMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.logExit("read", err)
			if c.hub != nil {
				c.hub.leave <- c
			}
			return
		}
		c.handleInbound(msg)
	}
}

// handleInbound forwards a toggle_volume command to the daemon loop.
// Anything else, including get_state, is ignored: state arrives by push.
func (c *Client) handleInbound(msg []byte) {
	ev, err := UnmarshalEvent(msg)
	if err != nil {
		c.logger.Debug("ws ignoring client message", "client_id", c.id, "error", err)
		return
	}
	if _, ok := ev.(ToggleVolume); !ok || c.events == nil {
		c.logger.Debug("ws ignoring client command", "client_id", c.id, "type", eventName(ev))
		return
	}

	select {
	case c.events <- TimedEvent{Event: ev, At: time.Now()}:
	default:
		c.logger.Warn("ws client toggle dropped (event queue full)", "client_id", c.id)
	}
}

func (c *Client) logExit(side string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	log := c.logger.With("client_id", c.id, "remote_addr", c.remoteAddr, "side", side)

	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		log.Info("ws client closed", "code", ce.Code, "reason", ce.Text)
		return
	}
	log.Info("ws client connection ended", "error", err)
}

// ============================================================================
// HTTP Handler
// ============================================================================

type Server struct {
	logger *slog.Logger
	hub    *Hub

	// Carries snapshot requests for state_init and client toggles.
	events chan<- Event
}

type ServerConfig struct {
	Hub HubConfig
}

// NewServer constructs the state websocket server. Register it on a mux,
// then start Hub().Run(ctx) and RunBroadcaster.
func NewServer(logger *slog.Logger, events chan<- Event, cfg ServerConfig) *Server {
	return &Server{
		logger: logger,
		hub:    NewHub(logger, cfg.Hub),
		events: events,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Register mounts the state websocket on mux at path.
func (s *Server) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handleStateWS)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStateWS upgrades the connection, joins the client to the hub and
// then sends state_init. Joining first means no toggle can fall between the
// snapshot and the first volume_changed; clients order the two by seq.
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, s.events, r.RemoteAddr, s.logger)
	s.hub.Join(client)

	// The loops outlive this handler; the hub ends them through disconnect.
	go client.writeLoop()
	go client.readLoop()

	if s.events == nil {
		return
	}

	snap, err := requestSnapshot(r.Context(), s.events, snapshotTimeout)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("ws snapshot request failed", "client_id", client.id, "error", err)
		}
		return
	}

	frame, err := stateFrame(wire.TypeStateInit, snap.IsVolumeOn, snap.Seq, time.Now())
	if err != nil {
		s.logger.Warn("ws state_init marshal failed", "error", err)
		return
	}
	client.offer(frame)
}

// ============================================================================
// Broadcaster
// ============================================================================

// RunBroadcaster turns the daemon's StateBroadcasts into volume_changed frames
// and publishes them on hub. Run a single instance so frames keep seq order.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan StateBroadcast, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case b, ok := <-src:
			if !ok {
				logger.Info("ws broadcaster stopping (source ended)")
				return
			}
			env, ok := convertBroadcast(b)
			if !ok {
				continue
			}
			frame, err := json.Marshal(env)
			if err != nil {
				logger.Warn("ws broadcaster marshal failed", "error", err, "type", env.Type)
				continue
			}
			hub.Publish(frame)
		}
	}
}

func convertBroadcast(b StateBroadcast) (wire.Envelope, bool) {
	ev, ok := b.(BroadcastVolumeChanged)
	if !ok {
		return wire.Envelope{}, false
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	return stateEnvelope(wire.TypeVolumeChanged, ev.IsVolumeOn, ev.Seq, at), true
}

func stateEnvelope(typ string, on bool, seq uint64, at time.Time) wire.Envelope {
	ts := at.UTC()
	return wire.Envelope{
		Type: typ,
		Ts:   &ts,
		Data: wire.StatePayload{IsVolumeOn: on, Seq: seq},
	}
}

func stateFrame(typ string, on bool, seq uint64, at time.Time) ([]byte, error) {
	return json.Marshal(stateEnvelope(typ, on, seq, at))
}
