package cmdq

import (
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/cmdq/internal/dispatch"
)

// DeviceProvider gives the runtime access to a host application's shared
// GPU context. cmdq RECEIVES the host device; it never creates one. The
// alias keeps the full gpucontext ecosystem compatible while giving the
// integration point a local name.
type DeviceProvider = gpucontext.DeviceProvider

// Option configures a Device at creation.
type Option func(*Device)

// WithLabel sets the device's debug label.
func WithLabel(label string) Option {
	return func(d *Device) { d.label = label }
}

// WithDispatchWorkers sets the number of goroutines delivering handler
// and listener notifications. 0 or less selects GOMAXPROCS.
func WithDispatchWorkers(n int) Option {
	return func(d *Device) { d.dispatchWorkers = n }
}

// WithDeviceProvider attaches a host application's shared GPU context.
// The core does not require one; transport- or hardware-backed layers
// reach the host device through Device.HostProvider.
func WithDeviceProvider(p DeviceProvider) Option {
	return func(d *Device) { d.provider = p }
}

// Device is the factory and execution boundary of the runtime: it creates
// queues, heaps, synchronization primitives and resources, and owns the
// goroutines that execute committed work.
//
// Devices are created explicitly with New; there is no ambient default
// device. Tests inject fake workloads through compute pipeline functions
// rather than a fake device.
//
// Thread safety: Device is safe for concurrent use.
type Device struct {
	label           string
	provider        DeviceProvider
	dispatchWorkers int

	pool  *dispatch.Pool
	epoch time.Time

	mu     sync.Mutex
	lost   bool
	reason string
	lostC  chan struct{}

	fences []*Fence
	queues []*CommandQueue
}

// New creates a device.
func New(opts ...Option) (*Device, error) {
	d := &Device{
		epoch: time.Now(),
		lostC: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.pool = dispatch.New(d.dispatchWorkers)
	Logger().Info("device created", "label", d.label,
		"dispatchWorkers", d.pool.Workers(), "hostProvider", d.provider != nil)
	return d, nil
}

// Label returns the debug label of the device.
func (d *Device) Label() string { return d.label }

// HostProvider returns the host application's shared GPU context, or nil
// when the device runs standalone.
func (d *Device) HostProvider() DeviceProvider { return d.provider }

// Destroy tears the device down: queues stop accepting work, committed
// buffers drain, and notification delivery shuts down after the backlog.
// Destroy is safe to call multiple times.
func (d *Device) Destroy() {
	d.mu.Lock()
	queues := d.queues
	d.queues = nil
	d.mu.Unlock()

	for _, q := range queues {
		q.destroy()
	}
	d.pool.Close()
	Logger().Info("device destroyed", "label", d.label)
}

// NewBuffer allocates a buffer directly from the device, bypassing heaps.
func (d *Device) NewBuffer(length uint64, usage gputypes.BufferUsage, opts ResourceOptions) (*Buffer, error) {
	if err := d.failIfLost("NewBuffer"); err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, errorf(KindInvalidUsage, "buffer length must be non-zero")
	}
	backing := make([]byte, length)
	return newBuffer(d, nil, length, usage, opts.StorageMode,
		resolveHazard(opts.HazardTracking, HazardTrackingModeTracked), 0, backing), nil
}

// NewTexture allocates a texture directly from the device, bypassing
// heaps.
func (d *Device) NewTexture(desc TextureDescriptor) (*Texture, error) {
	if err := d.failIfLost("NewTexture"); err != nil {
		return nil, err
	}
	if err := desc.validate(); err != nil {
		return nil, err
	}
	n := desc.normalize()
	backing := make([]byte, n.allocationSize())
	return newTexture(d, nil, n, n.StorageMode,
		resolveHazard(n.HazardTracking, HazardTrackingModeTracked), 0, backing), nil
}

// now returns seconds since device creation, the time base of command
// buffer timing queries.
func (d *Device) now() float64 {
	return time.Since(d.epoch).Seconds()
}

// trackFence registers a fence for interruption on device loss.
func (d *Device) trackFence(f *Fence) {
	d.mu.Lock()
	d.fences = append(d.fences, f)
	d.mu.Unlock()
}

// trackQueue registers a queue for teardown on Destroy.
func (d *Device) trackQueue(q *CommandQueue) {
	d.mu.Lock()
	d.queues = append(d.queues, q)
	d.mu.Unlock()
}

// isLost reports whether the device is gone.
func (d *Device) isLost() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lost
}

// lostCh returns a channel closed when the device is lost.
func (d *Device) lostCh() <-chan struct{} {
	return d.lostC
}

// failIfLost returns the uniform device-lost failure for op.
func (d *Device) failIfLost(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return errorf(KindDeviceLost, "%s: device lost: %s", op, d.reason)
	}
	return nil
}

// lose marks the device gone and wakes everything blocked on it. All
// subsequent operations on the device and objects derived from it fail
// with KindDeviceLost; the caller must recreate the device and every
// derived object.
func (d *Device) lose(reason string) {
	d.mu.Lock()
	if d.lost {
		d.mu.Unlock()
		return
	}
	d.lost = true
	d.reason = reason
	fences := d.fences
	close(d.lostC)
	d.mu.Unlock()

	for _, f := range fences {
		f.interrupt()
	}
	Logger().Warn("device lost", "label", d.label, "reason", reason)
}
