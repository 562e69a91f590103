package mesh

import (
	"context"
	"time"
)

// ScanMode selects the radio's scan power/latency tradeoff (spec §6.1
// "mode" parameter to startScan).
type ScanMode int

const (
	ScanModeBalanced ScanMode = iota
	ScanModeLowLatency
)

// ScanResult is a single advertisement observed by the radio (spec
// §6.1).
type ScanResult struct {
	ManufacturerData map[uint16][]byte
	RSSI             int
	PeerAddress      string
}

// Radio is the external radio collaborator (spec §6.1, §1 "Explicitly
// OUT of scope"). THE CORE never talks to BLE hardware directly; it
// only depends on this interface, satisfied by internal/bleradio's
// adapters. A Radio's scan produces a result stream and a stopped
// signal (closed when the scan ends, whether due to timeout, error, or
// StopScan), mirroring the teacher's host/network collaborator
// boundary (pkg/p2pnet components take a libp2p host.Host, never touch
// sockets directly).
type Radio interface {
	// StartScan begins scanning for up to timeout (0 = no timeout) in
	// the given mode. It returns a channel of observed advertisements
	// and a channel that is closed when scanning stops for any reason.
	StartScan(ctx context.Context, timeout time.Duration, mode ScanMode) (results <-chan ScanResult, stopped <-chan struct{}, err error)

	// StopScan ends any in-progress scan.
	StopScan()

	// StartAdvertising begins advertising data as manufacturer-specific
	// data under manufacturerID. It runs until StopAdvertising is
	// called or ctx is canceled.
	StartAdvertising(ctx context.Context, manufacturerID uint16, data []byte) error

	// StopAdvertising ends any in-progress advertisement.
	StopAdvertising() error
}
