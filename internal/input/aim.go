package input

import "time"

// DefaultAimPeriod is the fixed emission period while firing.
const DefaultAimPeriod = 200 * time.Millisecond

// Ticker is the periodic timer driving aim emission. time.Ticker satisfies
// it through TimeTicker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a ticker for the given period.
type TickerFunc func(period time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// TimeTicker wraps time.NewTicker.
func TimeTicker(period time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(period)}
}

// AimSampler decouples pointer sampling from network emission. Samples only
// overwrite the last angle; the owner calls Tick whenever the ticker channel
// fires and the sampler emits the freshest angle. Not safe for concurrent use;
// the owning loop serializes Start, Sample, Tick and Stop.
type AimSampler struct {
	period    time.Duration
	newTicker TickerFunc
	emit      Emitter

	ticker Ticker
	angle  float64
	firing bool
}

// NewAimSampler creates a stopped sampler. A nil newTicker uses TimeTicker.
func NewAimSampler(period time.Duration, newTicker TickerFunc, emit Emitter) *AimSampler {
	if period <= 0 {
		period = DefaultAimPeriod
	}
	if newTicker == nil {
		newTicker = TimeTicker
	}
	return &AimSampler{
		period:    period,
		newTicker: newTicker,
		emit:      emit,
	}
}

// Start begins a drag at the given angle. The first direction is emitted
// immediately. Starting an active drag just resamples.
func (a *AimSampler) Start(angle float64) {
	a.angle = NormalizeDegrees(angle)
	if a.firing {
		return
	}
	a.firing = true
	a.ticker = a.newTicker(a.period)
	a.emit(Intent{Kind: KindAim, Angle: a.angle, Firing: true})
}

// Sample overwrites the last angle. No I/O.
func (a *AimSampler) Sample(angle float64) {
	if !a.firing {
		return
	}
	a.angle = NormalizeDegrees(angle)
}

// Tick emits the most recent sample while firing.
func (a *AimSampler) Tick() {
	if !a.firing {
		return
	}
	a.emit(Intent{Kind: KindAim, Angle: a.angle, Firing: true})
}

// Stop cancels the timer and emits firing=false exactly once per drag.
// It reports whether a drag was active.
func (a *AimSampler) Stop() bool {
	if !a.firing {
		return false
	}
	a.firing = false
	if a.ticker != nil {
		a.ticker.Stop()
		a.ticker = nil
	}
	a.emit(Intent{Kind: KindAim, Angle: a.angle, Firing: false})
	return true
}

// C returns the tick channel, or nil while stopped so a select on it blocks.
func (a *AimSampler) C() <-chan time.Time {
	if a.ticker == nil {
		return nil
	}
	return a.ticker.C()
}

// Firing reports whether a drag is active.
func (a *AimSampler) Firing() bool { return a.firing }

// Angle returns the last sampled angle.
func (a *AimSampler) Angle() float64 { return a.angle }

// Period returns the emission period.
func (a *AimSampler) Period() time.Duration { return a.period }
