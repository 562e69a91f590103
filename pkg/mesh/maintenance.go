package mesh

import (
	"context"
	"log/slog"
	"time"
)

// maintenanceInterval is how often the periodic sweep runs (spec §4.7).
const maintenanceInterval = 60 * time.Second

// maintenanceDeps bundles every cache the periodic sweep prunes. All
// fields except metrics are required (a nil metrics is skipped);
// Engine constructs this from its own state.
type maintenanceDeps struct {
	dedup         *DedupCache
	relayStamps   *RelayTimestampCache
	announceCool  *announcementCooldown
	peers         *PeerTable
	log           *MessageLog
	metrics       Recorder
}

// runMaintenance drives the 60-second periodic sweep described in spec
// §4.7: evict expired dedup entries, expired relay-spacing timestamps,
// expired announcement cooldowns, offline peers, and message-log
// entries older than their retention window. Grounded on the teacher's
// ticker-driven GC pass in store_gc.go, generalized from "one cache" to
// "every bounded cache the engine owns."
func runMaintenance(ctx context.Context, deps maintenanceDeps) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(deps, time.Now())
		}
	}
}

func sweepOnce(deps maintenanceDeps, now time.Time) {
	dedupPruned := deps.dedup.PruneExpired(now)
	relayPruned := deps.relayStamps.PruneExpired(now)
	cooldownPruned := deps.announceCool.PruneExpired(now)
	offlinePruned := deps.peers.PruneOffline(now)
	logPruned := deps.log.PruneExpired(now)

	slog.Debug("mesh: maintenance sweep complete",
		"dedup_pruned", dedupPruned,
		"relay_stamps_pruned", relayPruned,
		"cooldowns_pruned", cooldownPruned,
		"peers_pruned", offlinePruned,
		"log_pruned", logPruned,
	)

	if deps.metrics != nil {
		deps.metrics.SetDedupCacheSize(deps.dedup.Len())
		deps.metrics.SetPeerCount(len(deps.peers.Snapshot()))
	}
}
