// Package telemetry implements mesh.Recorder on an isolated Prometheus
// registry, grounded on the teacher's pkg/p2pnet/metrics.go pattern.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every mesh-node Prometheus collector on its own
// registry, so mesh metrics never collide with the process default
// registry (each test also gets its own instance).
type Metrics struct {
	Registry *prometheus.Registry

	FramesDecodedTotal  *prometheus.CounterVec
	FramesDroppedTotal  *prometheus.CounterVec
	FramesRelayedTotal  *prometheus.CounterVec
	PeerCount           prometheus.Gauge
	DedupCacheSize      prometheus.Gauge
	RelayLatencySeconds prometheus.Histogram

	BuildInfo *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with all collectors
// registered. version/goVersion are recorded as labels on the build-info
// gauge, matching the teacher's BuildInfo convention.
func NewMetrics(version, goVersion string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		FramesDecodedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mesh_frames_decoded_total",
				Help: "Total number of mesh frames successfully decoded, by type.",
			},
			[]string{"frame_type"},
		),
		FramesDroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mesh_frames_dropped_total",
				Help: "Total number of mesh frames dropped, by reason.",
			},
			[]string{"reason"},
		),
		FramesRelayedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mesh_frames_relayed_total",
				Help: "Total number of mesh frames enqueued for relay, by type.",
			},
			[]string{"frame_type"},
		),
		PeerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mesh_peer_count",
			Help: "Number of peers currently known to this node.",
		}),
		DedupCacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mesh_dedup_cache_size",
			Help: "Current number of entries in the dedup cache.",
		}),
		RelayLatencySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mesh_relay_latency_seconds",
			Help:    "Time spent inside Advertiser.Broadcast for a relayed frame.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		}),
		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mesh_info",
				Help: "Build information for the running mesh node.",
			},
			[]string{"version", "go_version"},
		),
	}

	reg.MustRegister(
		m.FramesDecodedTotal,
		m.FramesDroppedTotal,
		m.FramesRelayedTotal,
		m.PeerCount,
		m.DedupCacheSize,
		m.RelayLatencySeconds,
		m.BuildInfo,
	)
	m.BuildInfo.WithLabelValues(version, goVersion).Set(1)
	return m
}

// Handler serves the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// The following methods satisfy mesh.Recorder without this package
// importing pkg/mesh, keeping the dependency direction one-way.

func (m *Metrics) IncDecoded(frameType string) { m.FramesDecodedTotal.WithLabelValues(frameType).Inc() }

func (m *Metrics) IncDropped(reason string) { m.FramesDroppedTotal.WithLabelValues(reason).Inc() }

func (m *Metrics) IncRelayed(frameType string) { m.FramesRelayedTotal.WithLabelValues(frameType).Inc() }

func (m *Metrics) SetPeerCount(n int) { m.PeerCount.Set(float64(n)) }

func (m *Metrics) SetDedupCacheSize(n int) { m.DedupCacheSize.Set(float64(n)) }

func (m *Metrics) ObserveRelayLatency(d time.Duration) { m.RelayLatencySeconds.Observe(d.Seconds()) }
