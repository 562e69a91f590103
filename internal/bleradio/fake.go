package bleradio

import (
	"context"
	"sync"
	"time"

	"github.com/Hardikr439/BLE-communication/pkg/mesh"
)

// FakeRadio is an in-memory mesh.Radio used by tests and --simulate
// runs: advertised payloads are published on a shared Medium so
// multiple FakeRadio instances attached to it can hear each other,
// mimicking a shared BLE air interface without real hardware.
type FakeRadio struct {
	mu        sync.Mutex
	medium    *Medium
	addr      string
	scanning  bool
	advSub    func()
	advActive bool
}

// Medium is a shared in-process broadcast bus every FakeRadio
// subscribes to, standing in for the physical BLE channel.
type Medium struct {
	mu        sync.Mutex
	subs      map[int]chan mesh.ScanResult
	nextSub   int
	nextAdv   int
}

// NewMedium returns a new empty shared medium.
func NewMedium() *Medium {
	return &Medium{subs: make(map[int]chan mesh.ScanResult)}
}

func (m *Medium) subscribe() (int, chan mesh.ScanResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan mesh.ScanResult, 64)
	m.subs[id] = ch
	return id, ch
}

// nextAdvertiserID hands out a stable tag identifying one FakeRadio's
// advertisements, independent of (and never colliding with) the
// subscriber-id space, so a released subscriber id can never be
// mistaken for this advertiser's identity.
func (m *Medium) nextAdvertiserID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextAdv
	m.nextAdv++
	return -id - 1
}

func (m *Medium) unsubscribe(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.subs[id]; ok {
		delete(m.subs, id)
		close(ch)
	}
}

func (m *Medium) publish(from int, r mesh.ScanResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.subs {
		// Advertiser ids are negative and subscriber ids are not, so this
		// never skips a subscriber: a radio that is scanning also hears
		// its own advertisements.
		if id == from {
			continue
		}
		select {
		case ch <- r:
		default:
		}
	}
}

// NewFakeRadio returns a radio attached to medium, identified by addr
// in emitted ScanResults.
func NewFakeRadio(medium *Medium, addr string) *FakeRadio {
	return &FakeRadio{medium: medium, addr: addr, advSub: func() {}}
}

// StartScan subscribes to the medium and forwards everything any
// FakeRadio on it advertises (this radio's own advertisements included)
// until ctx is canceled or timeout elapses.
func (r *FakeRadio) StartScan(ctx context.Context, timeout time.Duration, mode mesh.ScanMode) (<-chan mesh.ScanResult, <-chan struct{}, error) {
	id, sub := r.medium.subscribe()
	out := make(chan mesh.ScanResult, 64)
	stopped := make(chan struct{})

	scanCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		scanCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	go func() {
		defer close(stopped)
		defer r.medium.unsubscribe(id)
		if cancel != nil {
			defer cancel()
		}
		for {
			select {
			case <-scanCtx.Done():
				return
			case r, ok := <-sub:
				if !ok {
					return
				}
				select {
				case out <- r:
				default:
				}
			}
		}
	}()

	return out, stopped, nil
}

// StopScan is a no-op; the scan goroutine tears itself down on context
// cancellation. Included to satisfy mesh.Radio.
func (r *FakeRadio) StopScan() {}

// StartAdvertising publishes data on the medium every 10ms until ctx is
// canceled or StopAdvertising is called, approximating a continuously
// broadcasting peripheral without a real radio's timing.
func (r *FakeRadio) StartAdvertising(ctx context.Context, manufacturerID uint16, data []byte) error {
	r.mu.Lock()
	if r.advActive {
		r.mu.Unlock()
		return nil
	}
	r.advActive = true
	advCtx, cancel := context.WithCancel(ctx)
	r.advSub = cancel
	r.mu.Unlock()

	id := r.medium.nextAdvertiserID()
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-advCtx.Done():
				return
			case <-ticker.C:
				r.medium.publish(id, mesh.ScanResult{
					ManufacturerData: map[uint16][]byte{manufacturerID: data},
					PeerAddress:      r.addr,
				})
			}
		}
	}()
	return nil
}

// StopAdvertising cancels the advertising goroutine started by
// StartAdvertising.
func (r *FakeRadio) StopAdvertising() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.advActive {
		return nil
	}
	r.advActive = false
	r.advSub()
	return nil
}
