package devserver

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/Flgjfvevdk/pilot-together/internal/metrics"
)

// Limits bound how fast one remote address may act.
type Limits struct {
	Rate  rate.Limit
	Burst int
	Idle  time.Duration // buckets unused this long are forgotten
}

var (
	// AdminLimits guard the HTTP admin API
	AdminLimits = Limits{Rate: 20, Burst: 40, Idle: 10 * time.Minute}

	// FrameLimits bound websocket frames from one address, all tabs together
	FrameLimits = Limits{Rate: 60, Burst: 120, Idle: 10 * time.Minute}
)

type bucket struct {
	*rate.Limiter
	seen time.Time
}

// Throttle keeps one token bucket per remote address. Idle buckets are swept
// from Allow, so a Throttle has no goroutine to stop.
type Throttle struct {
	limits Limits
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time

	allowed  atomic.Uint64
	rejected atomic.Uint64
}

// NewThrottle creates a throttle with the given limits.
func NewThrottle(l Limits) *Throttle {
	return &Throttle{
		limits:  l,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow takes a token from addr's bucket. Rejections are counted in metrics.
func (t *Throttle) Allow(addr string) bool {
	now := t.now()

	t.mu.Lock()
	b, ok := t.buckets[addr]
	if !ok {
		b = &bucket{Limiter: rate.NewLimiter(t.limits.Rate, t.limits.Burst)}
		t.buckets[addr] = b
	}
	b.seen = now
	ok = b.AllowN(now, 1)
	if now.Sub(t.lastSweep) >= t.limits.Idle {
		t.sweep(now)
	}
	t.mu.Unlock()

	if ok {
		t.allowed.Add(1)
		return true
	}
	t.rejected.Add(1)
	metrics.RecordRejected("rate_limit")
	return false
}

// sweep drops idle buckets. Caller holds mu.
func (t *Throttle) sweep(now time.Time) {
	for addr, b := range t.buckets {
		if now.Sub(b.seen) >= t.limits.Idle {
			delete(t.buckets, addr)
		}
	}
	t.lastSweep = now
}

// Len returns the number of tracked addresses.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets)
}

// Counts returns how many actions were allowed and rejected.
func (t *Throttle) Counts() (allowed, rejected uint64) {
	return t.allowed.Load(), t.rejected.Load()
}

// Middleware answers 429 once the caller's address is over its limit.
func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
