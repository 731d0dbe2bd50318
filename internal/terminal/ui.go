// Package terminal is the interactive front-end of the client. It maps
// keyboard and mouse events onto session controls and draws the scene with
// tcell.
package terminal

import (
	"context"
	"log"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/Flgjfvevdk/pilot-together/internal/config"
	"github.com/Flgjfvevdk/pilot-together/internal/render"
)

// Controller is the part of the session the UI drives.
type Controller interface {
	Press(name string) error
	Release(name string) error
	SelectWeapon(k int) error
	Repair() error
	AimStart(x, y float64) error
	AimMove(x, y float64) error
	AimEnd() error
	FocusLost() error
}

// FrameFunc reads what to draw.
type FrameFunc func(ctx context.Context) (render.Frame, error)

// Config configures the UI
type Config struct {
	KeyHold     time.Duration // release a control after this long without a repeat
	Redraw      time.Duration
	FieldWidth  float64 // play field size in pixels, for mouse aim
	FieldHeight float64
}

// ConfigFrom derives the UI config from the app config.
func ConfigFrom(app config.AppConfig) Config {
	return Config{
		KeyHold:     app.Input.KeyHold,
		Redraw:      50 * time.Millisecond,
		FieldWidth:  float64(app.Scene.FieldWidth),
		FieldHeight: float64(app.Scene.FieldHeight),
	}
}

// UI owns the screen while running.
type UI struct {
	screen tcell.Screen
	ctrl   Controller
	frames FrameFunc
	cfg    Config

	hold   *HoldTracker
	aiming bool
	frame  render.Frame
}

// New creates a UI on an initialized screen.
func New(screen tcell.Screen, ctrl Controller, frames FrameFunc, cfg Config) *UI {
	d := Config{KeyHold: 180 * time.Millisecond, Redraw: 50 * time.Millisecond, FieldWidth: 800, FieldHeight: 600}
	if cfg.KeyHold <= 0 {
		cfg.KeyHold = d.KeyHold
	}
	if cfg.Redraw <= 0 {
		cfg.Redraw = d.Redraw
	}
	if cfg.FieldWidth <= 0 || cfg.FieldHeight <= 0 {
		cfg.FieldWidth, cfg.FieldHeight = d.FieldWidth, d.FieldHeight
	}
	return &UI{
		screen: screen,
		ctrl:   ctrl,
		frames: frames,
		cfg:    cfg,
		hold:   NewHoldTracker(cfg.KeyHold),
	}
}

// Run processes events and redraws until ctx is cancelled, the player quits
// or the screen is finalized. Held controls are released on exit.
func (u *UI) Run(ctx context.Context) error {
	u.screen.EnableMouse()
	u.screen.EnableFocus()

	done := make(chan struct{})
	defer close(done)

	// Async input reader; PollEvent returns nil once the screen is finalized.
	eventCh := make(chan tcell.Event, 32)
	go func() {
		for {
			ev := u.screen.PollEvent()
			if ev == nil {
				close(eventCh)
				return
			}
			select {
			case eventCh <- ev:
			case <-done:
				return
			}
		}
	}()

	holdTicker := time.NewTicker(u.cfg.KeyHold / 3)
	defer holdTicker.Stop()
	redraw := time.NewTicker(u.cfg.Redraw)
	defer redraw.Stop()

	defer u.releaseAll()

	u.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-eventCh:
			if !ok {
				return nil
			}
			if u.handle(ev, time.Now()) {
				return nil
			}
		case now := <-holdTicker.C:
			u.expire(now)
		case <-redraw.C:
			u.refresh(ctx)
		}
	}
}

// handle applies one event. It reports whether the player asked to quit.
func (u *UI) handle(ev tcell.Event, now time.Time) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		u.screen.Sync()
		u.draw()
	case *tcell.EventKey:
		return u.handleKey(ev, now)
	case *tcell.EventMouse:
		u.handleMouse(ev)
	case *tcell.EventFocus:
		if !ev.Focused {
			u.hold.Clear()
			u.aiming = false
			u.call(u.ctrl.FocusLost())
		}
	}
	return false
}

func (u *UI) handleKey(ev *tcell.EventKey, now time.Time) bool {
	if name := keyToControl(ev); name != "" {
		if u.hold.Touch(name, now) {
			u.call(u.ctrl.Press(name))
		}
		return false
	}

	cmd := keyToCommand(ev)
	switch {
	case cmd == CommandQuit:
		return true
	case cmd == CommandRepair:
		u.call(u.ctrl.Repair())
	case cmd.Weapon() > 0:
		u.call(u.ctrl.SelectWeapon(cmd.Weapon()))
	}
	return false
}

// handleMouse aims while the primary button is down.
func (u *UI) handleMouse(ev *tcell.EventMouse) {
	col, row := ev.Position()
	x, y := u.cellToField(col, row)

	if ev.Buttons()&tcell.Button1 != 0 {
		if !u.aiming {
			u.aiming = true
			u.call(u.ctrl.AimStart(x, y))
			return
		}
		u.call(u.ctrl.AimMove(x, y))
		return
	}
	if u.aiming {
		u.aiming = false
		u.call(u.ctrl.AimEnd())
	}
}

func (u *UI) expire(now time.Time) {
	for _, name := range u.hold.Expired(now) {
		u.call(u.ctrl.Release(name))
	}
}

func (u *UI) releaseAll() {
	for _, name := range u.hold.Clear() {
		u.call(u.ctrl.Release(name))
	}
	if u.aiming {
		u.aiming = false
		u.call(u.ctrl.AimEnd())
	}
}

// refresh pulls a new frame and draws it. On error the last frame is kept.
func (u *UI) refresh(ctx context.Context) {
	if u.frames != nil {
		ctx, cancel := context.WithTimeout(ctx, u.cfg.Redraw)
		f, err := u.frames(ctx)
		cancel()
		if err == nil {
			u.frame = f
		}
	}
	u.draw()
}

func (u *UI) call(err error) {
	if err != nil {
		log.Printf("⚠️ Input not delivered: %v", err)
	}
}
