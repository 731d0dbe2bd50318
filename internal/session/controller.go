// Package session owns the connection to the game server and is the single
// entry point for world snapshots, roster events and outbound input.
//
// A Controller runs one loop goroutine. Network events, timer ticks and input
// calls are all serialized onto it, so the identity table and input state are
// never touched concurrently.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/Flgjfvevdk/pilot-together/internal/config"
	"github.com/Flgjfvevdk/pilot-together/internal/input"
	"github.com/Flgjfvevdk/pilot-together/internal/journal"
	"github.com/Flgjfvevdk/pilot-together/internal/metrics"
	"github.com/Flgjfvevdk/pilot-together/internal/protocol"
	"github.com/Flgjfvevdk/pilot-together/internal/roster"
	"github.com/Flgjfvevdk/pilot-together/internal/scene"
)

const (
	joinNoticeDuration   = 3 * time.Second
	actionNoticeDuration = 2 * time.Second
	callQueueSize        = 256
)

var ErrUnknownControl = errors.New("session: unknown control")

// Config tunes a Controller.
type Config struct {
	URL            string
	ReconnectDelay time.Duration
	WriteTimeout   time.Duration
	AimPeriod      time.Duration
	WeaponSlots    int
	Policy         ReconnectPolicy
	Scene          scene.Options
	FieldWidth     float64 // play field pixels, aim geometry only
	FieldHeight    float64
}

// ConfigFrom maps application configuration onto a controller config.
func ConfigFrom(app config.AppConfig) Config {
	cfg := Config{
		URL:            app.Connection.ServerURL,
		ReconnectDelay: app.Connection.ReconnectDelay,
		WriteTimeout:   app.Connection.WriteTimeout,
		AimPeriod:      app.Input.AimPeriod,
		WeaponSlots:    app.Input.WeaponSlots,
		Scene: scene.Options{
			DebugColliders:     app.Scene.DebugColliders,
			DefaultSizePercent: app.Scene.DefaultSizePercent,
		},
		FieldWidth:  float64(app.Scene.FieldWidth),
		FieldHeight: float64(app.Scene.FieldHeight),
	}
	if app.Connection.ResendHeld {
		cfg.Policy = ResendHeld
	}
	return cfg
}

// Deps are the collaborators of a Controller. Only Dialer is required.
type Deps struct {
	Dialer    Dialer
	Surface   scene.Surface    // defaults to a MemorySurface
	Self      scene.Handle     // host-owned self node on Surface
	Journal   *journal.Journal // optional protocol journal
	NewTicker input.TickerFunc // aim timer, defaults to time.Ticker
}

type netKind uint8

const (
	netConnecting netKind = iota
	netConnected
	netFrame
	netDisconnected
)

// netEvent is produced by the connection goroutine. gen identifies the
// connection attempt so frames of a dead connection can be told apart.
type netEvent struct {
	kind  netKind
	gen   uint64
	conn  Conn
	frame []byte
	err   error
}

// Controller is the client session. Create with New and drive with Run.
type Controller struct {
	cfg  Config
	deps Deps

	// Loop-owned state
	reconciler *scene.Reconciler
	edges      *input.EdgeTracker
	aim        *input.AimSampler
	weapons    *input.WeaponSelector
	roster     *roster.Roster
	status     Status
	conn       Conn
	gen        uint64
	wantJoin   bool
	health     *scene.Gauge
	connNotice *time.Timer
	gameNotice *time.Timer

	net       chan netEvent
	calls     chan func()
	done      chan struct{}
	closeDone sync.Once
	running   atomic.Bool
	published atomic.Pointer[Status]

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool

	state          atomic.Int32
	framesReceived atomic.Uint64
	snapshots      atomic.Uint64
	discarded      atomic.Uint64
	decodeErrors   atomic.Uint64
	sent           atomic.Uint64
	dropped        atomic.Uint64
	connects       atomic.Uint64
	reconnects     atomic.Uint64

	onStateChange func(Status)
	warn          rate.Sometimes
}

// New creates a controller. It does not connect until Run is called.
func New(cfg Config, deps Deps) *Controller {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = protocol.ReconnectDelay
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = protocol.WriteTimeout
	}
	if cfg.FieldWidth <= 0 {
		cfg.FieldWidth = 800
	}
	if cfg.FieldHeight <= 0 {
		cfg.FieldHeight = 600
	}
	if deps.Dialer == nil {
		deps.Dialer = WebsocketDialer{}
	}
	if deps.Surface == nil {
		ms := scene.NewMemorySurface()
		deps.Self = ms.Attach(scene.SelfID)
		deps.Surface = ms
	}

	c := &Controller{
		cfg:    cfg,
		deps:   deps,
		roster: roster.New(),
		status: Status{State: Disconnected, Connection: TextConnecting},
		net:    make(chan netEvent),
		calls:  make(chan func(), callQueueSize),
		done:   make(chan struct{}),
		warn:   rate.Sometimes{First: 5, Interval: 10 * time.Second},
	}
	c.reconciler = scene.NewReconciler(deps.Surface, deps.Self, cfg.Scene)
	c.edges = input.NewEdgeTracker(c.emitIntent)
	c.aim = input.NewAimSampler(cfg.AimPeriod, deps.NewTicker, c.emitIntent)
	c.weapons = input.NewWeaponSelector(cfg.WeaponSlots, c.emitIntent)
	c.publish()
	return c
}

// OnStateChange registers a callback invoked on the loop goroutine whenever
// the status changes. Set it before Run.
func (c *Controller) OnStateChange(fn func(Status)) {
	c.onStateChange = fn
}

// Run connects and processes events until ctx is cancelled or Close is
// called. It reconnects automatically.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.running.CompareAndSwap(false, true) {
		c.mu.Unlock()
		return errors.New("session: already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	// The connection outlives the loop until shutdown has sent its releases
	netCtx, stopNet := context.WithCancel(context.WithoutCancel(ctx))
	defer stopNet()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.connectionLoop(netCtx)
	}()

	log.Printf("📡 Session started, connecting to %s", c.cfg.URL)
	c.loop(ctx)

	c.shutdown()
	stopNet()
	wg.Wait()
	c.closeDone.Do(func() { close(c.done) })
	log.Println("📡 Session stopped")
	return nil
}

// Close stops the session. Safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		return
	}
	// Never started
	c.closeDone.Do(func() { close(c.done) })
}

// Done is closed once the controller has fully stopped.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// State returns the current connection state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Status returns the last published status.
func (c *Controller) Status() Status {
	return *c.published.Load()
}

// Stats returns cumulative counters.
func (c *Controller) Stats() Stats {
	return Stats{
		FramesReceived: c.framesReceived.Load(),
		Snapshots:      c.snapshots.Load(),
		Discarded:      c.discarded.Load(),
		DecodeErrors:   c.decodeErrors.Load(),
		Sent:           c.sent.Load(),
		Dropped:        c.dropped.Load(),
		Connects:       c.connects.Load(),
		Reconnects:     c.reconnects.Load(),
	}
}

// =============================================================================
// INPUT ENTRY POINTS (any goroutine)
// =============================================================================

// Press marks a boolean control as held.
func (c *Controller) Press(name string) error {
	if !input.IsControl(name) {
		return fmt.Errorf("%w: %q", ErrUnknownControl, name)
	}
	return c.post(func() { c.edges.SetControlState(name, true) })
}

// Release marks a boolean control as released.
func (c *Controller) Release(name string) error {
	if !input.IsControl(name) {
		return fmt.Errorf("%w: %q", ErrUnknownControl, name)
	}
	return c.post(func() { c.edges.SetControlState(name, false) })
}

// SelectWeapon switches to weapon slot k. Disabled slots are rejected.
func (c *Controller) SelectWeapon(k int) error {
	return c.post(func() {
		if err := c.weapons.Select(k); err != nil {
			c.warnf("⚠️ Weapon selection rejected: %v", err)
		}
	})
}

// Repair sends a repair request.
func (c *Controller) Repair() error {
	return c.post(func() { c.emitIntent(input.Intent{Kind: input.KindRepair}) })
}

// AimStart begins aiming at a play-field pixel position.
func (c *Controller) AimStart(x, y float64) error {
	return c.post(func() { c.aim.Start(c.bearingTo(x, y)) })
}

// AimMove resamples the aim target. Nothing is sent until the next tick.
func (c *Controller) AimMove(x, y float64) error {
	return c.post(func() { c.aim.Sample(c.bearingTo(x, y)) })
}

// AimEnd stops aiming and firing.
func (c *Controller) AimEnd() error {
	return c.post(func() { c.aim.Stop() })
}

// FocusLost releases every held control and stops aiming.
func (c *Controller) FocusLost() error {
	return c.post(func() {
		n := c.edges.ReleaseAll()
		c.aim.Stop()
		if n > 0 {
			log.Printf("⌨️ Focus lost, released %d controls", n)
		}
	})
}

// Join announces the player name. A blank name picks "Player NNN". If the
// connection is not up yet the join is sent once it is.
func (c *Controller) Join(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Player %d", rand.Intn(1000))
	}
	return c.post(func() {
		c.status.Name = name
		c.wantJoin = true
		if c.status.State == Connected {
			c.sendJoin()
			return
		}
		c.status.Connection = TextWaiting
		c.notify()
	})
}

const (
	callPending int32 = iota
	callRunning
	callAbandoned
)

// Do runs fn on the loop goroutine and waits for it. The View is only valid
// during fn. If ctx ends before the loop picks fn up, fn never runs; once it
// has started Do waits for it to finish.
func (c *Controller) Do(ctx context.Context, fn func(View)) error {
	var state atomic.Int32
	finished := make(chan struct{})
	if err := c.postCtx(ctx, func() {
		if !state.CompareAndSwap(callPending, callRunning) {
			return
		}
		defer close(finished)
		fn(View{c: c})
	}); err != nil {
		return err
	}

	var err error
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		err = ctx.Err()
	case <-c.done:
		err = ErrClosed
	}
	if state.CompareAndSwap(callPending, callAbandoned) {
		return err
	}
	<-finished
	return nil
}

func (c *Controller) post(fn func()) error {
	return c.postCtx(context.Background(), fn)
}

func (c *Controller) postCtx(ctx context.Context, fn func()) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.calls <- fn:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// LOOP
// =============================================================================

func (c *Controller) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.net:
			c.handleNet(ev)
		case fn := <-c.calls:
			fn()
		case <-c.aim.C():
			c.aim.Tick()
		case <-timerC(c.connNotice):
			c.connNotice = nil
			if c.status.State == Connected {
				c.status.Connection = TextConnected
				c.notify()
			}
		case <-timerC(c.gameNotice):
			c.gameNotice = nil
			c.status.Game = TextGameInProgress
			c.notify()
		}
	}
}

// shutdown releases held input while the connection can still carry the
// key_up frames, then drops it.
func (c *Controller) shutdown() {
	c.drainCalls()
	c.aim.Stop()
	if n := c.edges.ReleaseAll(); n > 0 {
		log.Printf("⌨️ Released %d controls on shutdown", n)
	}
	c.conn = nil
	c.status.Joined = false
	stopTimer(c.connNotice)
	stopTimer(c.gameNotice)
	c.connNotice, c.gameNotice = nil, nil
	c.setState(Disconnected, TextDisconnected)
}

// drainCalls runs calls posted before shutdown, such as the releases a
// quitting UI sends right before Close.
func (c *Controller) drainCalls() {
	for {
		select {
		case fn := <-c.calls:
			fn()
		default:
			return
		}
	}
}

func (c *Controller) handleNet(ev netEvent) {
	switch ev.kind {
	case netConnecting:
		if c.status.State == Disconnected {
			c.setState(Connecting, c.status.Connection)
		}

	case netConnected:
		c.conn = ev.conn
		c.gen = ev.gen
		c.connects.Add(1)
		c.record(journal.Lifecycle, "connected", nil)
		c.setState(Connected, TextConnected)
		if c.wantJoin {
			c.sendJoin()
		}

	case netDisconnected:
		if ev.gen != c.gen || c.conn == nil {
			return
		}
		c.conn = nil
		c.status.Joined = false
		c.record(journal.Lifecycle, "disconnected", nil)
		c.setState(Disconnected, TextDisconnected)

		c.aim.Stop()
		if c.cfg.Policy == ReleaseOnDisconnect {
			c.edges.ReleaseAll()
		}

	case netFrame:
		c.framesReceived.Add(1)
		switch {
		case c.status.State != Connected:
			c.discard(metrics.ReasonNotConnected)
		case ev.gen != c.gen:
			c.discard(metrics.ReasonStale)
		default:
			c.dispatch(ev.frame)
		}
	}
}

func (c *Controller) discard(reason string) {
	c.discarded.Add(1)
	metrics.RecordDiscarded(reason)
}

// =============================================================================
// INBOUND
// =============================================================================

func (c *Controller) dispatch(frame []byte) {
	env, err := protocol.DecodeEnvelope(frame)
	if err != nil {
		c.decodeErrors.Add(1)
		metrics.RecordDiscarded(metrics.ReasonDecode)
		c.warnf("⚠️ Failed to decode frame: %v", err)
		return
	}
	c.record(journal.Inbound, env.Event, frame)

	msg, err := protocol.Decode(env)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownEvent) {
			c.warnf("⚠️ Ignoring %v", err)
			return
		}
		c.decodeErrors.Add(1)
		metrics.RecordDiscarded(metrics.ReasonDecode)
		c.warnf("⚠️ Failed to decode %s: %v", env.Event, err)
		return
	}

	switch m := msg.(type) {
	case *protocol.SnapshotMessage:
		c.applySnapshot(m.ToSnapshot())

	case []protocol.PlayerData:
		players := make([]roster.Player, len(m))
		for i, p := range m {
			players[i] = roster.Player{ID: p.ID, Name: p.Name}
		}
		c.roster.Replace(players)

	case protocol.PlayerData:
		c.handlePlayer(env.Event, roster.Player{ID: m.ID, Name: m.Name})

	case protocol.HealthUpdate:
		g := m.ToGauge()
		c.health = &g

	case protocol.CannonsUpdate:
		c.weapons.SetActiveCount(m.ActiveCannons)

	case protocol.PlayerAction:
		c.showGameNotice(fmt.Sprintf("%s moved the ship %s!", m.Player, m.Direction), actionNoticeDuration)

	case protocol.Welcome:
		c.roster.SetSelf(m.ID)
		c.status.PlayerID = m.ID
		c.notify()

	case protocol.Notice:
		switch m.Event {
		case protocol.EventGameStarted:
			c.status.Game = TextGameStarted
		case protocol.EventGamePaused:
			c.status.Game = TextGamePaused
		case protocol.EventGameResumed:
			c.status.Game = TextGameResumed
		}
		c.notify()
	}
}

func (c *Controller) applySnapshot(snap scene.Snapshot) {
	start := time.Now()
	res := c.reconciler.Reconcile(snap)
	metrics.RecordReconcile(time.Since(start), res, c.reconciler.Len())
	c.snapshots.Add(1)

	if self, ok := c.reconciler.Self(); ok {
		if self.ActiveWeaponCount != nil {
			c.weapons.SetActiveCount(*self.ActiveWeaponCount)
		}
		if self.Health != nil {
			g := *self.Health
			c.health = &g
		}
	}
}

func (c *Controller) handlePlayer(event string, p roster.Player) {
	switch event {
	case protocol.EventPlayerJoined:
		c.roster.Join(p)
		c.showConnNotice(p.Name + " has joined the game!")
	case protocol.EventPlayerLeft:
		if left, ok := c.roster.Leave(p.ID); ok && p.Name == "" {
			p.Name = left.Name
		}
		c.showConnNotice(p.Name + " has left the game!")
	case protocol.EventPlayerUpdated:
		c.roster.Update(p)
	}
}

func (c *Controller) showConnNotice(text string) {
	stopTimer(c.connNotice)
	c.connNotice = time.NewTimer(joinNoticeDuration)
	c.status.Connection = text
	c.notify()
}

func (c *Controller) showGameNotice(text string, d time.Duration) {
	stopTimer(c.gameNotice)
	c.gameNotice = time.NewTimer(d)
	c.status.Game = text
	c.notify()
}

// =============================================================================
// OUTBOUND
// =============================================================================

// emitIntent forwards input only while connected and joined. The trackers
// keep their local state either way.
func (c *Controller) emitIntent(i input.Intent) {
	if !c.status.Joined {
		c.drop()
		return
	}
	event, payload, err := protocol.IntentEvent(i)
	if err != nil {
		c.warnf("⚠️ %v", err)
		return
	}
	c.send(event, payload)
}

func (c *Controller) sendJoin() {
	if err := c.send(protocol.EventSetName, protocol.NamePayload{Name: c.status.Name}); err != nil {
		return
	}
	if err := c.send(protocol.EventRequestGameState, nil); err != nil {
		return
	}
	wasJoined := c.status.Joined
	c.status.Joined = true
	c.status.Connection = TextConnected
	if c.status.Game == "" {
		c.status.Game = TextGameInProgress
	}
	log.Printf("🚀 Joined as %s", c.status.Name)
	c.notify()

	if !wasJoined && c.cfg.Policy == ResendHeld {
		for _, name := range c.edges.Pressed() {
			c.send(protocol.EventKeyDown, protocol.KeyPayload{Key: name})
		}
	}
}

// send writes one frame. A failed write closes the connection; the reader
// then reports the disconnect.
func (c *Controller) send(event string, payload any) error {
	if c.conn == nil || c.status.State != Connected {
		c.drop()
		return ErrNotConnected
	}
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}
	if err := c.conn.WriteMessage(frame, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		c.warnf("⚠️ Write %s failed: %v", event, err)
		c.conn.Close()
		c.drop()
		return err
	}
	c.sent.Add(1)
	metrics.RecordSent(event)
	c.record(journal.Outbound, event, frame)
	return nil
}

func (c *Controller) drop() {
	c.dropped.Add(1)
	metrics.RecordDropped()
}

func (c *Controller) record(dir journal.Direction, event string, frame []byte) {
	if c.deps.Journal != nil {
		c.deps.Journal.Record(dir, event, frame)
	}
}

// bearingTo converts a play-field pixel target into an aim angle from the
// last known self position, or the field center before the first snapshot.
func (c *Controller) bearingTo(x, y float64) float64 {
	sx, sy, ok := c.reconciler.SelfPosition()
	if !ok {
		sx, sy = 50, 50
	}
	return input.Bearing(sx/100*c.cfg.FieldWidth, sy/100*c.cfg.FieldHeight, x, y)
}

// =============================================================================
// STATE
// =============================================================================

func (c *Controller) setState(s State, text string) {
	if s != Connected {
		stopTimer(c.connNotice)
		c.connNotice = nil
	}
	prev := c.status.State
	c.status.State = s
	c.status.Connection = text
	c.state.Store(int32(s))
	metrics.SetConnectionState(int(s))
	if prev != s {
		log.Printf("🔌 Session %s -> %s", prev, s)
	}
	c.notify()
}

func (c *Controller) notify() {
	c.publish()
	if c.onStateChange != nil {
		c.onStateChange(c.status)
	}
}

func (c *Controller) publish() {
	st := c.status
	c.published.Store(&st)
}

func (c *Controller) warnf(format string, args ...any) {
	c.warn.Do(func() {
		log.Printf(format, args...)
	})
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
