//go:build !linux

package bleradio

import (
	"context"
	"fmt"
	"time"

	"github.com/Hardikr439/BLE-communication/pkg/mesh"
)

// LinuxRadio is unavailable on this platform; NewLinuxRadio always
// fails so non-Linux builds of cmd/meshnode still compile and can fall
// back to --simulate. Its methods satisfy mesh.Radio so the stub type
// checks identically to the real linux.go adapter.
type LinuxRadio struct{}

func NewLinuxRadio() (*LinuxRadio, error) {
	return nil, fmt.Errorf("bleradio: real BLE radio is only supported on linux; use --simulate")
}

func (r *LinuxRadio) StartScan(ctx context.Context, timeout time.Duration, mode mesh.ScanMode) (<-chan mesh.ScanResult, <-chan struct{}, error) {
	return nil, nil, fmt.Errorf("bleradio: real BLE radio is only supported on linux")
}

func (r *LinuxRadio) StopScan() {}

func (r *LinuxRadio) StartAdvertising(ctx context.Context, manufacturerID uint16, data []byte) error {
	return fmt.Errorf("bleradio: real BLE radio is only supported on linux")
}

func (r *LinuxRadio) StopAdvertising() error { return nil }
