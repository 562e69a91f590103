package mesh

import "time"

// Recorder is the narrow metrics sink THE CORE reports through. It is
// satisfied by internal/telemetry.Metrics (Prometheus-backed, mirroring
// the teacher's nil-safe *Metrics parameter convention in
// pkg/p2pnet/peermanager.go and peerrelay.go) but kept as an interface
// here so the core engine package never imports the Prometheus client
// directly. A nil Recorder is valid; every call site nil-checks first.
type Recorder interface {
	IncDecoded(frameType string)
	IncDropped(reason string)
	IncRelayed(frameType string)
	SetPeerCount(n int)
	SetDedupCacheSize(n int)
	ObserveRelayLatency(d time.Duration)
}
