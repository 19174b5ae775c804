package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// Menu WebSocket feed
// ============================================================================
//
// Clients receive JSON text frames shaped {type, ts, data}:
//   - "state_init"      once on connect, built from a reducer snapshot
//   - "menu_changed"    the same payload, at most once per wsMenuCoalesceWindow
//   - "round_completed" after each ranked scan round
//   - "connect_result"  when an association attempt finishes
//
// The daemon state never leaves the daemon goroutine. Snapshots are requested
// through the event channel and every frame comes from a reducer broadcast.
// A client whose send queue is full is dropped.
//
// ============================================================================

// wsNetwork is one menu row as seen by websocket clients.
type wsNetwork struct {
	SSID      string `json:"ssid"`
	BSSID     string `json:"bssid"`
	SignalDBM int    `json:"signal_dbm"`
	Bars      int    `json:"bars"`
	Auth      string `json:"auth"`
	AuthLabel string `json:"auth_label"`
}

// wsMenuData is the payload of "state_init" and "menu_changed".
type wsMenuData struct {
	Networks     []wsNetwork  `json:"networks"`
	Cursor       int          `json:"cursor"`
	HasSelection bool         `json:"has_selection"`
	ScrollOffset float64      `json:"scroll_offset"`
	Scanning     bool         `json:"scanning"`
	Round        uint64       `json:"round"`
	NextScanAt   time.Time    `json:"next_scan_at"`
	Connect      ConnectState `json:"connect"`
}

type wsRoundCompletedData struct {
	Round      uint64 `json:"round"`
	Networks   int    `json:"networks"`
	DurationMS int64  `json:"duration_ms"`
}

type wsConnectResultData struct {
	SSID  string `json:"ssid"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func menuData(snap StateSnapshot) wsMenuData {
	nets := make([]wsNetwork, 0, len(snap.Records))
	for _, r := range snap.Records {
		nets = append(nets, wsNetwork{
			SSID:      r.Name,
			BSSID:     r.HardwareAddr.String(),
			SignalDBM: r.SignalDBM,
			Bars:      SignalBars(r.SignalDBM),
			Auth:      r.Auth.String(),
			AuthLabel: r.Auth.Label(),
		})
	}
	return wsMenuData{
		Networks:     nets,
		Cursor:       snap.Selection.Cursor,
		HasSelection: snap.HasSelect,
		ScrollOffset: snap.Selection.ScrollOffset,
		Scanning:     snap.Scanning,
		Round:        snap.Round,
		NextScanAt:   snap.NextScanAt,
		Connect:      snap.Connect,
	}
}

// wsFrame is a typed message waiting to be encoded.
type wsFrame struct {
	Type string
	Data any
	At   time.Time // zero means now
}

// envelope is the wire shape of every message.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

func (f wsFrame) encode() ([]byte, error) {
	ts := f.At
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()
	return json.Marshal(envelope{Type: f.Type, Ts: &ts, Data: f.Data})
}

// ============================================================================
// Hub
// ============================================================================

// Hub fans encoded frames out to every registered client.
type Hub struct {
	logger *slog.Logger

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

type HubConfig struct {
	SendBuf      int // per-client queue, default 32
	BroadcastBuf int // hub inbound queue, default 128
}

func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	if cfg.SendBuf <= 0 {
		cfg.SendBuf = 32
	}
	if cfg.BroadcastBuf <= 0 {
		cfg.BroadcastBuf = 128
	}
	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, cfg.BroadcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    cfg.SendBuf,
	}
}

// Run serves registrations and broadcasts until ctx is canceled, then
// disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("ws hub starting")
	defer h.logger.Info("ws hub stopped")

	for {
		select {
		case <-ctx.Done():
			h.dropAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client connected", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.drop(c, "unregister")

		case msg := <-h.broadcast:
			for _, c := range h.fanout(msg) {
				h.drop(c, "slow_client")
			}
		}
	}
}

// fanout queues msg on every client and returns the ones that had no room.
func (h *Hub) fanout(msg []byte) []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	var slow []*Client
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	return slow
}

func (h *Hub) drop(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}

	c.shutdown()
	h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
}

func (h *Hub) dropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.shutdown()
		delete(h.clients, c)
	}
}

// BroadcastBytes queues an encoded frame. It drops the frame if the hub is behind.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub *Hub

	conn *websocket.Conn
	send chan []byte
	once sync.Once

	remoteAddr string
	logger     *slog.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *Client {
	sendBuf := 32
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

// shutdown closes the socket and the send queue exactly once.
func (c *Client) shutdown() {
	c.once.Do(func() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		close(c.send)
	})
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// wsMenuCoalesceWindow bounds how often "menu_changed" is sent while the
// menu animates. The latest menu in each window wins.
const wsMenuCoalesceWindow = 50 * time.Millisecond

func (c *Client) logExit(pump string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		c.logger.Info("ws "+pump+" exiting (close)", "remote_addr", c.remoteAddr, "code", ce.Code, "reason", ce.Text)
		return
	}
	c.logger.Info("ws "+pump+" exiting", "remote_addr", c.remoteAddr, "error", err)
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("writePump", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("writePump", err)
				return
			}
		}
	}
}

// readPump discards client frames, extending the deadline on every pong.
// A read error unregisters the client.
func (c *Client) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("readPump", err)
			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
	}
}

// ============================================================================
// HTTP handler
// ============================================================================

type Server struct {
	logger *slog.Logger
	hub    *Hub

	// events carries the snapshot request for state_init into the daemon loop.
	events chan<- Event

	// snapshotTimeout bounds the state_init round-trip.
	snapshotTimeout time.Duration
}

type ServerConfig struct {
	Hub HubConfig
}

func NewServer(logger *slog.Logger, events chan<- Event, cfg ServerConfig) *Server {
	return &Server{
		logger:          logger,
		hub:             NewHub(logger, cfg.Hub),
		events:          events,
		snapshotTimeout: time.Second,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Register mounts the websocket endpoint on mux.
func (s *Server) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handleMenuWS)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleMenuWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, r.RemoteAddr, s.logger)
	s.hub.register <- client

	// The pumps outlive this handler, so they are not tied to r.Context().
	go client.writePump()
	go client.readPump()

	snap, ok := s.requestSnapshot(r.Context())
	if !ok {
		return
	}
	msg, err := wsFrame{Type: "state_init", Data: menuData(snap)}.encode()
	if err != nil {
		s.logger.Warn("ws state_init marshal failed", "error", err)
		return
	}
	select {
	case client.send <- msg:
	default:
		s.hub.unregister <- client
	}
}

// requestSnapshot asks the daemon loop for the current menu.
func (s *Server) requestSnapshot(ctx context.Context) (StateSnapshot, bool) {
	if s.events == nil {
		return StateSnapshot{}, false
	}

	reply := make(chan StateSnapshot, 1)
	select {
	case <-ctx.Done():
		return StateSnapshot{}, false
	case s.events <- RequestStateSnapshot{Reply: reply}:
	}

	ctx, cancel := context.WithTimeout(ctx, s.snapshotTimeout)
	defer cancel()
	select {
	case snap := <-reply:
		return snap, true
	case <-ctx.Done():
		if !errors.Is(ctx.Err(), context.Canceled) {
			s.logger.Warn("ws snapshot request failed", "error", ctx.Err())
		}
		return StateSnapshot{}, false
	}
}

// ============================================================================
// Broadcaster
// ============================================================================

// RunBroadcaster encodes reducer broadcasts and hands them to the hub. It runs
// as a single goroutine until ctx is canceled or src is closed.
//
// "menu_changed" is held back and flushed at most once per
// wsMenuCoalesceWindow while updates keep coming. Any other frame flushes the
// held menu first so clients see frames in order.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan StateBroadcast, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}

	var (
		pending *wsFrame
		timer   *time.Timer
		timerC  <-chan time.Time
	)

	send := func(f wsFrame) {
		msg, err := f.encode()
		if err != nil {
			logger.Warn("ws broadcaster marshal failed", "error", err, "type", f.Type)
			return
		}
		hub.BroadcastBytes(msg)
	}
	flush := func() {
		if pending != nil {
			send(*pending)
			pending = nil
		}
	}
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, timerC = nil, nil
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			stopTimer()
			return

		case <-timerC:
			timer, timerC = nil, nil
			flush()

		case b, ok := <-src:
			if !ok {
				flush()
				stopTimer()
				logger.Info("ws broadcaster stopping (source ended)")
				return
			}

			f, ok := convertBroadcast(b)
			if !ok {
				continue
			}
			if f.Type == "menu_changed" {
				pending = &f
				if timer == nil {
					timer = time.NewTimer(wsMenuCoalesceWindow)
					timerC = timer.C
				}
				continue
			}

			flush()
			stopTimer()
			send(f)
		}
	}
}

func convertBroadcast(b StateBroadcast) (wsFrame, bool) {
	switch ev := b.(type) {
	case BroadcastMenuChanged:
		return wsFrame{Type: "menu_changed", Data: menuData(ev.Snapshot), At: ev.At}, true

	case BroadcastRoundCompleted:
		return wsFrame{
			Type: "round_completed",
			Data: wsRoundCompletedData{
				Round:      ev.Round,
				Networks:   ev.Networks,
				DurationMS: ev.Duration.Milliseconds(),
			},
			At: ev.At,
		}, true

	case BroadcastConnectResult:
		return wsFrame{
			Type: "connect_result",
			Data: wsConnectResultData{SSID: ev.Name, OK: ev.OK, Error: ev.Error},
			At:   ev.At,
		}, true

	default:
		return wsFrame{}, false
	}
}
