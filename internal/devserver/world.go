package devserver

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/Flgjfvevdk/pilot-together/internal/input"
	"github.com/Flgjfvevdk/pilot-together/internal/protocol"
	"github.com/Flgjfvevdk/pilot-together/internal/scene"
)

// World tuning. Positions and sizes are percentages of the play field.
const (
	ShipSpeed        = 25.0 // percent per second
	ShipSize         = 8.0
	ProjectileSpeed  = 60.0
	ProjectileSize   = 1.5
	AsteroidSize     = 7.0
	AsteroidSpeed    = 12.0
	AsteroidDamage   = 10.0
	RepairValue      = 1.0
	MaxHealth        = 100.0
	MaxTemperature   = 100.0
	HeatPerShot      = 3.0
	HeatShield       = 20.0 // per second while shielding
	CoolRate         = 25.0 // per second while cooling
	PassiveCoolRate  = 5.0
	ReloadTime       = 0.3 // seconds between shots of one cannon
	AsteroidInterval = 1.5 // seconds between spawns
	DefaultCannons   = 4
)

// ErrUnknownKey is returned for key events naming no known control.
var ErrUnknownKey = errors.New("devserver: unknown key")

// Directions of the fixed cannons, in degrees (0 = right, 90 = down).
var cannonAngles = map[string]float64{
	input.ShootRight: 0,
	input.ShootDown:  90,
	input.ShootLeft:  180,
	input.ShootUp:    270,
}

var shieldAngles = map[string]float64{
	input.ShieldRight: 0,
	input.ShieldDown:  90,
	input.ShieldLeft:  180,
	input.ShieldUp:    270,
}

type body struct {
	id     string
	x, y   float64
	vx, vy float64
	size   float64
	health float64
	dead   bool
}

// World is a tiny deterministic arcade simulation: one shared ship, asteroids
// drifting in from the edges, projectiles fired by the cannons. It is not safe
// for concurrent use; the hub loop owns it.
type World struct {
	rng *rand.Rand

	shipX, shipY float64
	health       float64
	temperature  float64
	overheated   bool

	// held[control] holds the players pressing it
	held map[string]map[string]bool

	aimAngle  float64
	aimFiring bool
	weapon    int
	cannons   int
	reload    map[string]float64

	asteroids   []*body
	projectiles []*body
	projGrid    *grid
	spawnIn     float64
	nextID      int

	paused bool
	tick   uint64
}

// NewWorld creates a world seeded for reproducible asteroid waves.
func NewWorld(seed uint64) *World {
	return &World{
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		shipX:    50,
		shipY:    50,
		health:   MaxHealth,
		held:     make(map[string]map[string]bool),
		weapon:   1,
		cannons:  DefaultCannons,
		reload:   make(map[string]float64),
		projGrid: newGrid(),
		spawnIn:  AsteroidInterval,
	}
}

// Press records that player holds control. Unknown controls are rejected.
func (w *World) Press(player, control string) error {
	if !input.IsControl(control) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, control)
	}
	set := w.held[control]
	if set == nil {
		set = make(map[string]bool)
		w.held[control] = set
	}
	set[player] = true
	return nil
}

// Release records that player let go of control.
func (w *World) Release(player, control string) {
	if set := w.held[control]; set != nil {
		delete(set, player)
	}
}

// Forget drops everything a departed player was holding.
func (w *World) Forget(player string) {
	for _, set := range w.held {
		delete(set, player)
	}
}

// Aim updates the turret angle and trigger.
func (w *World) Aim(angle float64, firing bool) {
	w.aimAngle = input.NormalizeDegrees(angle)
	w.aimFiring = firing
}

// SelectWeapon picks the turret weapon. Slots beyond the active count are refused.
func (w *World) SelectWeapon(k int) bool {
	if k < 1 || k > w.cannons {
		return false
	}
	w.weapon = k
	return true
}

// SetCannons changes the number of usable weapon slots. With 0 the aimed
// turret stays silent.
func (w *World) SetCannons(n int) {
	w.cannons = max(0, min(n, input.DefaultWeaponSlots))
	if w.cannons > 0 && w.weapon > w.cannons {
		w.weapon = 1
	}
}

// Repair restores a little hull.
func (w *World) Repair() {
	w.health = math.Min(MaxHealth, w.health+RepairValue)
}

// SetPaused freezes or resumes the simulation.
func (w *World) SetPaused(p bool) { w.paused = p }

// Paused reports whether the simulation is frozen.
func (w *World) Paused() bool { return w.paused }

// Cannons returns the active weapon slot count.
func (w *World) Cannons() int { return w.cannons }

// Health returns the ship hull gauge.
func (w *World) Health() protocol.GaugeData {
	m := MaxHealth
	return protocol.GaugeData{Current: w.health, Max: &m}
}

// Ship returns the ship position.
func (w *World) Ship() (x, y float64) { return w.shipX, w.shipY }

// Tick returns the number of simulation steps taken.
func (w *World) Tick() uint64 { return w.tick }

func (w *World) holding(control string) bool {
	return len(w.held[control]) > 0
}

func (w *World) shielding() (float64, bool) {
	for _, c := range []string{input.ShieldUp, input.ShieldDown, input.ShieldLeft, input.ShieldRight} {
		if w.holding(c) {
			return shieldAngles[c], true
		}
	}
	if w.holding(input.Shield) {
		return w.aimAngle, true
	}
	return 0, false
}

// Step advances the simulation by dt seconds and reports whether the hull
// changed.
func (w *World) Step(dt float64) (hullChanged bool) {
	if w.paused || dt <= 0 {
		return false
	}
	w.tick++

	w.moveShip(dt)
	w.heat(dt)
	w.fire(dt)

	for _, p := range w.projectiles {
		p.x += p.vx * dt
		p.y += p.vy * dt
	}
	for _, a := range w.asteroids {
		a.x += a.vx * dt
		a.y += a.vy * dt
	}

	w.spawnIn -= dt
	if w.spawnIn <= 0 {
		w.spawnAsteroid()
		w.spawnIn = AsteroidInterval
	}

	hullChanged = w.collide()
	w.projectiles = prune(w.projectiles)
	w.asteroids = prune(w.asteroids)
	return hullChanged
}

func (w *World) moveShip(dt float64) {
	var dx, dy float64
	if w.holding(input.Up) {
		dy--
	}
	if w.holding(input.Down) {
		dy++
	}
	if w.holding(input.Left) {
		dx--
	}
	if w.holding(input.Right) {
		dx++
	}
	if dx == 0 && dy == 0 {
		return
	}
	n := math.Hypot(dx, dy)
	w.shipX = clamp(w.shipX+dx/n*ShipSpeed*dt, 0, 100)
	w.shipY = clamp(w.shipY+dy/n*ShipSpeed*dt, 0, 100)
}

func (w *World) heat(dt float64) {
	if _, on := w.shielding(); on && !w.overheated {
		w.temperature += HeatShield * dt
	}
	rate := PassiveCoolRate
	if w.holding(input.Cool) {
		rate = CoolRate
	}
	w.temperature = math.Max(0, w.temperature-rate*dt)
	if w.temperature >= MaxTemperature {
		w.temperature = MaxTemperature
		w.overheated = true
	}
	if w.overheated && w.temperature <= MaxTemperature/2 {
		w.overheated = false
	}
}

func (w *World) fire(dt float64) {
	for k := range w.reload {
		w.reload[k] -= dt
	}
	if w.overheated {
		return
	}

	shoot := func(key string, angle float64) {
		if w.reload[key] > 0 {
			return
		}
		w.reload[key] = ReloadTime
		w.temperature += HeatPerShot
		rad := angle * math.Pi / 180
		w.nextID++
		w.projectiles = append(w.projectiles, &body{
			id:   fmt.Sprintf("projectile-%d", w.nextID),
			x:    w.shipX,
			y:    w.shipY,
			vx:   math.Cos(rad) * ProjectileSpeed,
			vy:   math.Sin(rad) * ProjectileSpeed,
			size: ProjectileSize,
		})
	}

	for _, c := range sortedKeys(cannonAngles) {
		if w.holding(c) {
			shoot(c, cannonAngles[c])
		}
	}
	if w.aimFiring && w.cannons > 0 {
		shoot(fmt.Sprintf("turret-%d", w.weapon), w.aimAngle)
	}
}

func (w *World) spawnAsteroid() {
	w.nextID++
	a := &body{
		id:     fmt.Sprintf("asteroid-%d", w.nextID),
		size:   AsteroidSize,
		health: 10,
	}
	// Enter from a random edge, heading roughly at the centre
	switch w.rng.IntN(4) {
	case 0:
		a.x, a.y = -5, w.rng.Float64()*100
	case 1:
		a.x, a.y = 105, w.rng.Float64()*100
	case 2:
		a.x, a.y = w.rng.Float64()*100, -5
	default:
		a.x, a.y = w.rng.Float64()*100, 105
	}
	tx, ty := 30+w.rng.Float64()*40, 30+w.rng.Float64()*40
	n := math.Hypot(tx-a.x, ty-a.y)
	a.vx = (tx - a.x) / n * AsteroidSpeed
	a.vy = (ty - a.y) / n * AsteroidSpeed
	w.asteroids = append(w.asteroids, a)
}

func (w *World) collide() bool {
	hull := false
	shieldAngle, shielded := w.shielding()

	w.projGrid.rebuild(w.projectiles)
	for _, a := range w.asteroids {
		if a.dead {
			continue
		}
		for _, i := range w.projGrid.near(a.x, a.y, (a.size+ProjectileSize)/2) {
			p := w.projectiles[i]
			if p.dead || !touching(a, p) {
				continue
			}
			p.dead = true
			a.health -= 5
			if a.health <= 0 {
				a.dead = true
				break
			}
		}
		if a.dead {
			continue
		}

		if math.Hypot(a.x-w.shipX, a.y-w.shipY) > (a.size+ShipSize)/2 {
			continue
		}
		bearing := input.Bearing(w.shipX, w.shipY, a.x, a.y)
		a.dead = true
		if shielded && angleDiff(bearing, shieldAngle) <= 45 {
			continue
		}
		w.health -= AsteroidDamage
		if w.health <= 0 {
			w.health = MaxHealth
		}
		hull = true
	}
	return hull
}

// Snapshot renders the world as a game_state_update payload. With flattened
// set, the ship travels in the top-level fields instead of gameObjects.
func (w *World) Snapshot(flattened bool) *protocol.SnapshotMessage {
	maxTemp := MaxTemperature
	cannons := w.cannons
	ship := protocol.EntityData{
		ID:     scene.SelfID,
		X:      w.shipX,
		Y:      w.shipY,
		ZIndex: 10,
		Image: &protocol.ImageData{
			URL:             "/static/images/spaceship.png",
			Width:           ShipSize,
			Height:          ShipSize,
			UseRelativeSize: true,
		},
		Health:            ptr(w.Health()),
		Temperature:       &protocol.GaugeData{Current: w.temperature, Max: &maxTemp},
		ActiveWeaponCount: &cannons,
		Colliders: []protocol.ColliderData{
			{Width: ShipSize, Height: ShipSize},
		},
	}

	msg := &protocol.SnapshotMessage{GameObjects: make([]protocol.EntityData, 0, len(w.asteroids)+len(w.projectiles)+2)}
	if flattened {
		msg.ShipX = &ship.X
		msg.ShipY = &ship.Y
		msg.Image = ship.Image
		msg.Health = ship.Health
		msg.Temperature = &protocol.GaugeData{Current: w.temperature}
		msg.MaxTemperature = &maxTemp
		msg.ActiveWeaponCount = &cannons
	} else {
		msg.GameObjects = append(msg.GameObjects, ship)
	}

	angle, on := w.shielding()
	msg.GameObjects = append(msg.GameObjects, protocol.EntityData{
		ID:     "shield",
		X:      w.shipX,
		Y:      w.shipY,
		ZIndex: 11,
		Active: &on,
		Image: &protocol.ImageData{
			URL:             "/static/images/shield.png",
			Width:           ShipSize * 1.6,
			Height:          ShipSize * 1.6,
			Angle:           angle * math.Pi / 180,
			UseRelativeSize: true,
		},
	})

	for _, a := range w.asteroids {
		msg.GameObjects = append(msg.GameObjects, protocol.EntityData{
			ID:     a.id,
			X:      a.x,
			Y:      a.y,
			ZIndex: 5,
			Image: &protocol.ImageData{
				URL:             "/static/images/asteroid.png",
				Width:           a.size,
				Height:          a.size,
				UseRelativeSize: true,
			},
			Colliders: []protocol.ColliderData{{Width: a.size, Height: a.size}},
		})
	}
	for _, p := range w.projectiles {
		msg.GameObjects = append(msg.GameObjects, protocol.EntityData{
			ID:     p.id,
			X:      p.x,
			Y:      p.y,
			ZIndex: 6,
			Image: &protocol.ImageData{
				URL:             "/static/images/projectile.png",
				Width:           p.size,
				Height:          p.size,
				Angle:           math.Atan2(p.vy, p.vx),
				UseRelativeSize: true,
			},
		})
	}
	return msg
}

// prune removes destroyed bodies and those that left the field.
func prune(bodies []*body) []*body {
	out := bodies[:0]
	for _, b := range bodies {
		if b.dead || b.x < -10 || b.x > 110 || b.y < -10 || b.y > 110 {
			continue
		}
		out = append(out, b)
	}
	clear(bodies[len(out):])
	return out
}

func touching(a, b *body) bool {
	return math.Hypot(a.x-b.x, a.y-b.y) <= (a.size+b.size)/2
}

func angleDiff(a, b float64) float64 {
	d := math.Abs(input.NormalizeDegrees(a) - input.NormalizeDegrees(b))
	return math.Min(d, 360-d)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func ptr[T any](v T) *T { return &v }
