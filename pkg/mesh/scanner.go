package mesh

import (
	"context"
	"log/slog"
	"time"
)

const (
	// scanWindow is the duration of one scan cycle before the radio is
	// restarted (spec §4.8).
	scanWindow = 10 * time.Second

	// scanRestartJitterMin/Max bound the delay between successive scan
	// windows, desyncing restarts across nearby nodes (spec §4.8).
	scanRestartJitterMin = 500 * time.Millisecond
	scanRestartJitterMax = 1000 * time.Millisecond

	// scanErrorBackoff is used when StartScan itself fails, so a broken
	// radio doesn't spin the loop.
	scanErrorBackoff = 1 * time.Second
)

// scanner drives the continuous self-restarting scan loop (spec §4.8):
// scan for scanWindow, let the radio stop the window, jitter-wait, scan
// again, forever. Grounded on the teacher's reconnect-loop shape in
// dialer.go, generalized from "redial a lost peer" to "restart a scan
// window."
type scanner struct {
	radio   Radio
	metrics Recorder
	mode    ScanMode
}

func newScanner(radio Radio, metrics Recorder, mode ScanMode) *scanner {
	return &scanner{radio: radio, metrics: metrics, mode: mode}
}

// Run blocks until ctx is canceled, invoking onResult for every
// manufacturer-data advertisement seen with ManufacturerID present
// (spec §4.8 step 2, §6.1).
func (s *scanner) Run(ctx context.Context, onResult func(ScanResult)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		results, stopped, err := s.radio.StartScan(ctx, scanWindow, s.mode)
		if err != nil {
			slog.Warn("mesh: scan start failed, backing off", "error", err)
			if !sleepCtx(ctx, scanErrorBackoff) {
				return
			}
			continue
		}

		s.drain(ctx, results, stopped, onResult)

		if !sleepCtx(ctx, jitter(scanRestartJitterMin, scanRestartJitterMax)) {
			return
		}
	}
}

func (s *scanner) drain(ctx context.Context, results <-chan ScanResult, stopped <-chan struct{}, onResult func(ScanResult)) {
	for {
		select {
		case <-ctx.Done():
			s.radio.StopScan()
			return
		case <-stopped:
			return
		case r, ok := <-results:
			if !ok {
				return
			}
			if _, present := r.ManufacturerData[ManufacturerID]; !present {
				continue
			}
			onResult(r)
		}
	}
}

// ExtractMeshPayload returns the manufacturer-data bytes addressed to
// ManufacturerID, if any (spec §6.1).
func ExtractMeshPayload(data map[uint16][]byte) ([]byte, bool) {
	payload, ok := data[ManufacturerID]
	return payload, ok
}
