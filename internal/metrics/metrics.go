// Package metrics exposes Prometheus metrics for the client and the
// development server. All labels have bounded value sets.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Flgjfvevdk/pilot-together/internal/scene"
)

// Discard reasons
const (
	ReasonNotConnected = "not_connected"
	ReasonStale        = "stale"
	ReasonDecode       = "decode"
)

var (
	snapshotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "client_snapshots_total",
		Help: "World snapshots reconciled",
	})

	snapshotsDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "client_snapshots_discarded_total",
		Help: "Inbound frames discarded before dispatch",
	}, []string{"reason"}) // Bounded: "not_connected", "stale", "decode"

	reconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "client_reconcile_duration_seconds",
		Help:    "Time spent reconciling one snapshot",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})

	entitiesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "client_entities_created_total",
		Help: "Visual nodes created by the reconciler",
	})

	entitiesRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "client_entities_removed_total",
		Help: "Visual nodes destroyed by the reconciler",
	})

	entitiesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "client_entities_skipped_total",
		Help: "Descriptors skipped during reconciliation",
	}, []string{"reason"}) // Bounded: "malformed", "missing", "duplicate"

	sceneEntities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "client_scene_entities",
		Help: "Entities currently in the identity table",
	})

	intentsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "client_intents_sent_total",
		Help: "Outbound messages written to the server",
	}, []string{"event"}) // Bounded: outbound protocol events

	intentsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "client_intents_dropped_total",
		Help: "Outbound messages dropped while disconnected or not joined",
	})

	connectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "client_connection_state",
		Help: "0 disconnected, 1 connecting, 2 connected",
	})

	reconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "client_reconnects_total",
		Help: "Connection attempts after the first",
	})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "client_render_duration_seconds",
		Help:    "Time spent rendering a debug frame",
		Buckets: []float64{0.005, 0.01, 0.02, 0.033, 0.05, 0.1},
	})

	// Development server
	devTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "devserver_tick_duration_seconds",
		Help:    "Time spent in one simulation step and broadcast",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})

	devClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devserver_clients_active",
		Help: "Currently connected websocket clients",
	})

	devFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devserver_frames_total",
		Help: "Websocket frames handled by the development server",
	}, []string{"direction"}) // Bounded: "in", "out"

	devRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devserver_rejected_total",
		Help: "Connections or frames rejected by the development server",
	}, []string{"reason"}) // Bounded: "origin", "ws_limit", "rate_limit", "invalid"
)

// RecordReconcile records one reconciled snapshot.
func RecordReconcile(d time.Duration, res scene.Result, entities int) {
	snapshotsTotal.Inc()
	reconcileDuration.Observe(d.Seconds())
	entitiesCreated.Add(float64(len(res.Created)))
	entitiesRemoved.Add(float64(len(res.Removed)))
	if res.Malformed > 0 {
		entitiesSkipped.WithLabelValues("malformed").Add(float64(res.Malformed))
	}
	if res.Missing > 0 {
		entitiesSkipped.WithLabelValues("missing").Add(float64(res.Missing))
	}
	if res.Duplicates > 0 {
		entitiesSkipped.WithLabelValues("duplicate").Add(float64(res.Duplicates))
	}
	sceneEntities.Set(float64(entities))
}

// RecordDiscarded increments the discard counter.
// reason must be one of ReasonNotConnected, ReasonStale, ReasonDecode.
func RecordDiscarded(reason string) {
	snapshotsDiscarded.WithLabelValues(reason).Inc()
}

// RecordSent counts an outbound message.
func RecordSent(event string) {
	intentsSent.WithLabelValues(event).Inc()
}

// RecordDropped counts an outbound message that was not sent.
func RecordDropped() {
	intentsDropped.Inc()
}

// SetConnectionState updates the connection state gauge.
func SetConnectionState(state int) {
	connectionState.Set(float64(state))
}

// RecordReconnect counts a reconnection attempt.
func RecordReconnect() {
	reconnectsTotal.Inc()
}

// RecordRender records debug frame render time.
func RecordRender(d time.Duration) {
	renderDuration.Observe(d.Seconds())
}

// RecordTick records one development server tick.
func RecordTick(d time.Duration) {
	devTickDuration.Observe(d.Seconds())
}

// SetClients updates the connected client gauge.
func SetClients(n int) {
	devClients.Set(float64(n))
}

// RecordFrame counts a frame; direction is "in" or "out".
func RecordFrame(direction string) {
	devFrames.WithLabelValues(direction).Inc()
}

// RecordRejected counts a rejected connection or frame.
// reason must be one of "origin", "ws_limit", "rate_limit", "invalid".
func RecordRejected(reason string) {
	devRejected.WithLabelValues(reason).Inc()
}
