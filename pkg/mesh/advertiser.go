package mesh

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	// advertiseQuiesceWait is how long Advertiser waits for the radio
	// to settle after stopping an in-flight advertisement before
	// starting a new one (spec §4.3 step 2).
	advertiseQuiesceWait = 150 * time.Millisecond

	// advertisePreJitterMin/Max bound the desync delay before starting
	// a new advertisement (spec §4.3 step 3).
	advertisePreJitterMin = 0
	advertisePreJitterMax = 200 * time.Millisecond

	// DefaultBroadcastWindow is how long an advertisement is held on
	// air before being stopped (spec §4.3 step 5).
	DefaultBroadcastWindow = 1500 * time.Millisecond
)

// Advertiser serializes all transmissions through a single busy flag,
// since BLE peripheral advertising is a single-slot resource (spec
// §4.3). Grounded on the teacher's atomic.Bool-gated enable/disable in
// peerrelay.go, generalized from "relay on/off" to "one advertisement
// at a time."
type Advertiser struct {
	radio           Radio
	metrics         Recorder
	errorsOut       *broadcaster[string]
	broadcastWindow time.Duration

	busy atomic.Bool
}

func newAdvertiser(radio Radio, metrics Recorder, errorsOut *broadcaster[string], window time.Duration) *Advertiser {
	if window <= 0 {
		window = DefaultBroadcastWindow
	}
	return &Advertiser{radio: radio, metrics: metrics, errorsOut: errorsOut, broadcastWindow: window}
}

// Broadcast attempts to transmit payload as manufacturer data. It
// returns false without side effects if an advertisement is already in
// flight (spec §4.3 step 1) — callers (the relay scheduler, the
// announcer) are expected to silently retry later.
func (a *Advertiser) Broadcast(ctx context.Context, payload []byte) bool {
	if !a.busy.CompareAndSwap(false, true) {
		return false
	}
	defer a.busy.Store(false)

	// Step 2: if something is already running, the radio StopAdvertising
	// is idempotent when nothing is running, so always stop-then-wait to
	// guarantee quiescence before starting the new window.
	if err := a.radio.StopAdvertising(); err != nil {
		slog.Debug("mesh: advertiser stop-before-start failed (continuing)", "error", err)
	}
	if !sleepCtx(ctx, advertiseQuiesceWait) {
		return false
	}

	if !sleepCtx(ctx, jitter(advertisePreJitterMin, advertisePreJitterMax)) {
		return false
	}

	if err := a.radio.StartAdvertising(ctx, ManufacturerID, payload); err != nil {
		slog.Warn("mesh: failed to start advertising", "error", err)
		a.publishError("advertise start failed: " + err.Error())
		return false
	}

	if !sleepCtx(ctx, a.broadcastWindow) {
		// Shutting down: still try to stop cleanly below.
	}

	if err := a.radio.StopAdvertising(); err != nil {
		slog.Warn("mesh: failed to stop advertising", "error", err)
		a.publishError("advertise stop failed: " + err.Error())
		return false
	}

	return true
}

// InFlight reports whether an advertisement is currently in progress.
func (a *Advertiser) InFlight() bool {
	return a.busy.Load()
}

func (a *Advertiser) publishError(msg string) {
	if a.errorsOut != nil {
		a.errorsOut.Publish(msg)
	}
}
