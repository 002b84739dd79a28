package mesh

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every mesh Prometheus collector on an isolated registry,
// so mesh metrics never collide with a process-global default registry
// (each test, and each embedding application, gets its own instance).
type Metrics struct {
	Registry *prometheus.Registry

	StateTransitionsTotal *prometheus.CounterVec
	TopologyEventsTotal   *prometheus.CounterVec
	HandshakeResultsTotal *prometheus.CounterVec
	FloodDroppedTotal     prometheus.Counter
	ScanRateLimitedTotal  prometheus.Counter
	AudioFramesDroppedTotal prometheus.Counter
	StarvationGuardTrippedTotal prometheus.Counter

	PeerCount      prometheus.Gauge
	HopsToRoot     prometheus.Gauge
	ControlQueueDepth prometheus.Gauge
	AudioQueueDepth   prometheus.Gauge
}

// NewMetrics creates a Metrics instance with every collector registered
// on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		StateTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mesh_state_transitions_total",
			Help: "Count of Mesh Controller state transitions by destination state.",
		}, []string{"state"}),
		TopologyEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mesh_topology_events_total",
			Help: "Count of topology engine outcomes (changed, downgraded, unchanged).",
		}, []string{"result"}),
		HandshakeResultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mesh_handshake_results_total",
			Help: "Count of handshake outcomes by role and result.",
		}, []string{"role", "result"}),
		FloodDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mesh_flood_dropped_total",
			Help: "Count of inbound frames dropped as already-seen by the flood dedup cache.",
		}),
		ScanRateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mesh_scan_rate_limited_total",
			Help: "Count of scan-start attempts rejected by the scan rate limiter.",
		}),
		AudioFramesDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mesh_audio_frames_dropped_total",
			Help: "Count of audio frames head-dropped due to queue overflow.",
		}),
		StarvationGuardTrippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mesh_starvation_guard_tripped_total",
			Help: "Count of times the BLE operation queue forced an audio op past the starvation threshold.",
		}),
		PeerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mesh_peer_count",
			Help: "Current number of registered peer connections.",
		}),
		HopsToRoot: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mesh_hops_to_root",
			Help: "Current hop distance to the believed root of this node's island.",
		}),
		ControlQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mesh_control_queue_depth",
			Help: "Current depth of the control lane across all link operation queues.",
		}),
		AudioQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mesh_audio_queue_depth",
			Help: "Current depth of the audio lane across all link operation queues.",
		}),
	}

	reg.MustRegister(
		m.StateTransitionsTotal,
		m.TopologyEventsTotal,
		m.HandshakeResultsTotal,
		m.FloodDroppedTotal,
		m.ScanRateLimitedTotal,
		m.AudioFramesDroppedTotal,
		m.StarvationGuardTrippedTotal,
		m.PeerCount,
		m.HopsToRoot,
		m.ControlQueueDepth,
		m.AudioQueueDepth,
	)

	return m
}
