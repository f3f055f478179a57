// Package devices implements the Device Enumeration seam: tracking local
// audio input/output and video input devices and emitting change events.
// The browser's own `navigator.mediaDevices` is an external collaborator
// (spec.md §1 treats it as assumed, not the Room Client's responsibility);
// this package is the Go-side interface a concrete host-platform adapter
// plugs into, plus a polling Watcher that turns periodic List calls into
// change events the way the browser's `devicechange` event does.
package devices

import (
	"context"
	"sync"
	"time"

	"github.com/pion/logging"
)

// Kind mirrors MediaDeviceKind: the three device classes the Room Client
// cares about.
type Kind string

const (
	KindAudioInput  Kind = "audioinput"
	KindAudioOutput Kind = "audiooutput"
	KindVideoInput  Kind = "videoinput"
)

// Device is one enumerated input/output device.
type Device struct {
	ID    string
	Label string
	Kind  Kind
}

// Lister enumerates the devices currently available on the host. A
// concrete platform adapter (e.g. a JS interop shim, a cgo ALSA/v4l2
// binding) implements this; no such binding exists in the example corpus,
// so this package ships only NullLister alongside the interface.
type Lister interface {
	List(ctx context.Context) ([]Device, error)
}

// NullLister always reports no devices. It is the default Lister so a
// RoomClient can be constructed before a real platform adapter exists.
type NullLister struct{}

func (NullLister) List(context.Context) ([]Device, error) { return nil, nil }

// Watcher polls a Lister on an interval and notifies registered listeners
// whenever the reported device set changes, mirroring the browser's
// `devicechange` event without requiring OS-level notification support.
type Watcher struct {
	lister   Lister
	interval time.Duration
	log      logging.LeveledLogger

	mu        sync.Mutex
	last      []Device
	listeners []func([]Device)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher builds a Watcher around lister, polling every interval (a
// zero or negative interval defaults to 3s).
func NewWatcher(lister Lister, interval time.Duration, log logging.LeveledLogger) *Watcher {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if log == nil {
		log = logging.NewDefaultLoggerFactory().NewLogger("devices")
	}
	return &Watcher{lister: lister, interval: interval, log: log}
}

// OnChange registers fn to run with the full new device list whenever a
// poll's result differs from the previous one.
func (w *Watcher) OnChange(fn func([]Device)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Snapshot returns the most recently observed device list.
func (w *Watcher) Snapshot() []Device {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Device{}, w.last...)
}

// Start does an initial enumeration, then polls on a ticker until ctx is
// canceled or Stop is called. It returns after the first enumeration
// completes (or fails); the poll loop continues in the background.
func (w *Watcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	if err := w.poll(ctx); err != nil {
		w.log.Warnf("initial device enumeration failed: %v", err)
	}

	go w.run(ctx)
	return nil
}

// Stop cancels the poll loop and waits for it to exit.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.done != nil {
		<-w.done
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.poll(ctx); err != nil {
				w.log.Warnf("device enumeration failed: %v", err)
			}
		}
	}
}

func (w *Watcher) poll(ctx context.Context) error {
	list, err := w.lister.List(ctx)
	if err != nil {
		return err
	}

	w.mu.Lock()
	changed := !equalDevices(w.last, list)
	if changed {
		w.last = list
	}
	listeners := append([]func([]Device){}, w.listeners...)
	w.mu.Unlock()

	if !changed {
		return nil
	}
	for _, fn := range listeners {
		fn(list)
	}
	return nil
}

func equalDevices(a, b []Device) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
