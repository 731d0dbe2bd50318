// Package devserver is a scripted local game server. It speaks the same
// websocket protocol as the production server, which makes it useful for
// playing offline and for integration tests of the client.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Flgjfvevdk/pilot-together/internal/config"
	"github.com/Flgjfvevdk/pilot-together/internal/input"
	"github.com/Flgjfvevdk/pilot-together/internal/metrics"
	"github.com/Flgjfvevdk/pilot-together/internal/protocol"
)

// MaxReceived bounds the inbound message history kept for inspection
const MaxReceived = 1024

var ErrStopped = errors.New("devserver: hub stopped")

// Config configures the hub.
type Config struct {
	TickInterval time.Duration
	MaxClients   int
	Flattened    bool // send the ship in top-level snapshot fields
	Seed         uint64
	WriteTimeout time.Duration
}

// ConfigFrom derives the hub configuration from the application config.
func ConfigFrom(app config.AppConfig) Config {
	return Config{
		TickInterval: app.DevServer.TickInterval,
		MaxClients:   app.DevServer.MaxClients,
		Flattened:    app.DevServer.FlattenedSnapshots,
		Seed:         app.DevServer.Seed,
		WriteTimeout: time.Second,
	}
}

// Received is one inbound message as the hub saw it.
type Received struct {
	Client string          `json:"client"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type client struct {
	conn *websocket.Conn
	id   string
	name string
	ip   string
}

type inbound struct {
	client *client
	env    protocol.Envelope
}

// Hub owns every connection and the world. Run is its only writer.
type Hub struct {
	cfg   Config
	world *World

	clients []*client // join order

	register   chan *client
	unregister chan *client
	inbox      chan inbound
	calls      chan func()
	done       chan struct{}

	frames   *Throttle // inbound frames per address
	received []Received
	nextID   int
	count    atomic.Int32
	running  atomic.Bool
}

// NewHub creates a hub. Nothing runs until Run is called.
func NewHub(cfg Config) *Hub {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = config.DefaultDevServer().TickInterval
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = config.DefaultDevServer().MaxClients
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = time.Second
	}
	return &Hub{
		cfg:        cfg,
		world:      NewWorld(cfg.Seed),
		frames:     NewThrottle(FrameLimits),
		register:   make(chan *client),
		unregister: make(chan *client),
		inbox:      make(chan inbound, 256),
		calls:      make(chan func(), 16),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is cancelled. It closes every connection on
// the way out.
func (h *Hub) Run(ctx context.Context) {
	if !h.running.CompareAndSwap(false, true) {
		return
	}
	defer close(h.done)

	ticker := time.NewTicker(h.cfg.TickInterval)
	defer ticker.Stop()
	last := time.Now()

	log.Printf("🎮 Dev hub running (tick %v)", h.cfg.TickInterval)
	for {
		select {
		case <-ctx.Done():
			for _, c := range h.clients {
				c.conn.Close()
			}
			h.clients = nil
			h.count.Store(0)
			metrics.SetClients(0)
			log.Println("🛑 Dev hub stopped")
			return

		case c := <-h.register:
			h.join(c)

		case c := <-h.unregister:
			h.leave(c)

		case in := <-h.inbox:
			h.handle(in.client, in.env)

		case fn := <-h.calls:
			fn()

		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			h.step(dt)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

func (h *Hub) step(dt float64) {
	start := time.Now()
	hull := h.world.Step(dt)
	if len(h.clients) > 0 {
		h.broadcast(protocol.EventGameState, h.world.Snapshot(h.cfg.Flattened))
		if hull {
			h.broadcast(protocol.EventHealthUpdate, protocol.HealthUpdate{Health: h.world.Health()})
		}
	}
	metrics.RecordTick(time.Since(start))
}

func (h *Hub) join(c *client) {
	h.nextID++
	c.id = fmt.Sprintf("player-%d", h.nextID)
	c.name = fmt.Sprintf("Player %d", len(h.clients))
	h.clients = append(h.clients, c)
	h.count.Store(int32(len(h.clients)))
	metrics.SetClients(len(h.clients))
	log.Printf("📱 %s connected from %s (%d total)", c.id, c.ip, len(h.clients))

	h.sendTo(c, protocol.EventWelcome, protocol.Welcome{ID: c.id})
	h.broadcast(protocol.EventPlayerJoined, c.player())
	h.sendTo(c, protocol.EventPlayerList, h.players())
}

func (h *Hub) leave(c *client) {
	i := h.indexOf(c)
	if i < 0 {
		return
	}
	h.clients = append(h.clients[:i], h.clients[i+1:]...)
	h.count.Store(int32(len(h.clients)))
	metrics.SetClients(len(h.clients))
	c.conn.Close()
	h.world.Forget(c.id)
	log.Printf("📱 %s disconnected (%d remaining)", c.id, len(h.clients))

	h.broadcast(protocol.EventPlayerLeft, c.player())
}

func (h *Hub) indexOf(c *client) int {
	for i, other := range h.clients {
		if other == c {
			return i
		}
	}
	return -1
}

// handle applies one inbound message from c.
func (h *Hub) handle(c *client, env protocol.Envelope) {
	if h.indexOf(c) < 0 {
		return
	}
	h.record(c, env)

	switch env.Event {
	case protocol.EventSetName:
		var p protocol.NamePayload
		if !h.decode(c, env, &p) {
			return
		}
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return
		}
		c.name = name
		h.broadcast(protocol.EventPlayerUpdated, c.player())

	case protocol.EventRequestGameState:
		h.sendTo(c, protocol.EventGameState, h.world.Snapshot(h.cfg.Flattened))

	case protocol.EventKeyDown:
		var p protocol.KeyPayload
		if !h.decode(c, env, &p) {
			return
		}
		if err := h.world.Press(c.id, p.Key); err != nil {
			log.Printf("⚠️ %s: %v", c.id, err)
			return
		}
		if dir, ok := movement[p.Key]; ok {
			h.broadcast(protocol.EventPlayerAction, protocol.PlayerAction{Player: c.name, Direction: dir})
		}

	case protocol.EventKeyUp:
		var p protocol.KeyPayload
		if h.decode(c, env, &p) {
			h.world.Release(c.id, p.Key)
		}

	case protocol.EventRotateShoot:
		var p protocol.AimPayload
		if h.decode(c, env, &p) {
			h.world.Aim(p.Angle, p.Firing)
		}

	case protocol.EventWeaponSelect:
		var p protocol.WeaponPayload
		if h.decode(c, env, &p) && !h.world.SelectWeapon(p.Weapon) {
			log.Printf("⚠️ %s selected unavailable weapon %d", c.id, p.Weapon)
		}

	case protocol.EventRepair:
		h.world.Repair()
		h.broadcast(protocol.EventHealthUpdate, protocol.HealthUpdate{Health: h.world.Health()})

	default:
		log.Printf("⚠️ %s sent unknown event %q", c.id, env.Event)
	}
}

// movement maps movement keys to the direction shown to other players.
var movement = map[string]string{
	input.Up:    "up",
	input.Down:  "down",
	input.Left:  "left",
	input.Right: "right",
}

func (h *Hub) decode(c *client, env protocol.Envelope, v any) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		metrics.RecordRejected("invalid")
		log.Printf("⚠️ %s sent bad %s payload: %v", c.id, env.Event, err)
		return false
	}
	return true
}

func (h *Hub) record(c *client, env protocol.Envelope) {
	if len(h.received) >= MaxReceived {
		copy(h.received, h.received[1:])
		h.received = h.received[:MaxReceived-1]
	}
	h.received = append(h.received, Received{Client: c.id, Event: env.Event, Data: env.Data})
}

func (h *Hub) players() protocol.PlayerList {
	list := make(protocol.PlayerList, 0, len(h.clients))
	for _, c := range h.clients {
		list = append(list, c.player())
	}
	return list
}

func (c *client) player() protocol.PlayerData {
	return protocol.PlayerData{ID: c.id, Name: c.name}
}

// broadcast writes one event to every client.
func (h *Hub) broadcast(event string, payload any) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		log.Printf("⚠️ Encode %s: %v", event, err)
		return
	}
	for _, c := range h.clients {
		h.write(c, frame)
	}
}

func (h *Hub) sendTo(c *client, event string, payload any) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		log.Printf("⚠️ Encode %s: %v", event, err)
		return
	}
	h.write(c, frame)
}

// write sends a frame. A failed write closes the connection; the reader
// then unregisters the client.
func (h *Hub) write(c *client, frame []byte) {
	c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.conn.Close()
		return
	}
	metrics.RecordFrame("out")
}

// do runs fn on the hub loop and waits for it.
func (h *Hub) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	call := func() {
		fn()
		close(finished)
	}
	select {
	case h.calls <- call:
	case <-h.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-h.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Players returns the connected players in join order.
func (h *Hub) Players(ctx context.Context) (protocol.PlayerList, error) {
	var list protocol.PlayerList
	err := h.do(ctx, func() { list = h.players() })
	return list, err
}

// State returns the current world snapshot.
func (h *Hub) State(ctx context.Context) (*protocol.SnapshotMessage, error) {
	var msg *protocol.SnapshotMessage
	err := h.do(ctx, func() { msg = h.world.Snapshot(h.cfg.Flattened) })
	return msg, err
}

// Received returns the recorded inbound messages, oldest first.
func (h *Hub) Received(ctx context.Context) ([]Received, error) {
	var out []Received
	err := h.do(ctx, func() { out = append([]Received(nil), h.received...) })
	return out, err
}

// SetCannons changes the active weapon slot count and tells every client.
func (h *Hub) SetCannons(ctx context.Context, n int) (int, error) {
	var active int
	err := h.do(ctx, func() {
		h.world.SetCannons(n)
		active = h.world.Cannons()
		h.broadcast(protocol.EventUpdateCannons, protocol.CannonsUpdate{ActiveCannons: active})
	})
	return active, err
}

// SetPaused freezes or resumes the world and announces it.
func (h *Hub) SetPaused(ctx context.Context, paused bool) error {
	return h.do(ctx, func() {
		if h.world.Paused() == paused {
			return
		}
		h.world.SetPaused(paused)
		if paused {
			h.broadcast(protocol.EventGamePaused, nil)
		} else {
			h.broadcast(protocol.EventGameResumed, nil)
		}
	})
}

// Restart replaces the world with a fresh one and announces the new game.
func (h *Hub) Restart(ctx context.Context) error {
	return h.do(ctx, func() {
		h.world = NewWorld(h.cfg.Seed)
		h.broadcast(protocol.EventGameStarted, nil)
		h.broadcast(protocol.EventGameState, h.world.Snapshot(h.cfg.Flattened))
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if IsAllowedOrigin(origin) {
			return true
		}
		log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
		metrics.RecordRejected("origin")
		return false
	},
}

// IsAllowedOrigin accepts non-browser clients and pages served from the
// local machine.
func IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// HandleWebSocket upgrades the request and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	if n := h.ClientCount(); n >= h.cfg.MaxClients {
		log.Printf("⚠️ WebSocket connection rejected: limit reached (%d)", n)
		metrics.RecordRejected("ws_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	conn.SetReadLimit(protocol.MaxMessageSize)

	c := &client{conn: conn, ip: ip}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.readPump(c)
}

// readPump forwards a client's messages to the hub loop.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		metrics.RecordFrame("in")

		if !h.frames.Allow(c.ip) {
			continue
		}
		env, err := protocol.DecodeEnvelope(frame)
		if err != nil {
			metrics.RecordRejected("invalid")
			continue
		}

		select {
		case h.inbox <- inbound{client: c, env: env}:
		case <-h.done:
			return
		}
	}
}

// clientIP extracts the remote address without the port.
func clientIP(r *http.Request) string {
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host
}
