package cmdq

import (
	"sync"
	"time"

	"github.com/gogpu/cmdq/internal/dispatch"
)

// Event is a monotonically increasing 64-bit counter used for ordering
// across queues. Signals and waits against a plain Event are device-side
// commands encoded on command buffers; SharedEvent adds the CPU-side
// surface and cross-process export.
type Event interface {
	// Label returns the debug label of the event.
	Label() string

	// SetLabel sets the debug label of the event.
	SetLabel(label string)

	// Device returns the device the event was created from.
	Device() *Device

	// state exposes the counter; it also closes the interface to the
	// package's own event kinds.
	state() *eventState
}

// eventState is the counter shared by Event and SharedEvent.
type eventState struct {
	dev *Device

	mu    sync.Mutex
	label string
	value uint64

	// waiters are blocked streams and CPU waits, each satisfied (channel
	// closed) once value reaches its target.
	waiters []*eventWaiter

	// notifications fire at most once each, even when a single signal
	// jumps the counter past several thresholds.
	notifications []*eventNotification
}

type eventWaiter struct {
	target uint64
	ch     chan struct{}
}

type eventNotification struct {
	target   uint64
	listener *SharedEventListener
	owner    *SharedEvent
	fn       func(*SharedEvent, uint64)
}

func (e *eventState) state() *eventState { return e }

func (e *eventState) Label() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.label
}

func (e *eventState) SetLabel(label string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.label = label
}

func (e *eventState) Device() *Device { return e.dev }

// signal raises the counter to max(current, value). Signaling a value at
// or below the current counter is legal and a no-op. Satisfied waiters
// wake; crossed notification thresholds fire exactly once each, delivered
// on their listener.
func (e *eventState) signal(value uint64) {
	e.mu.Lock()
	if value <= e.value {
		e.mu.Unlock()
		return
	}
	e.value = value

	var wake []*eventWaiter
	remaining := e.waiters[:0]
	for _, w := range e.waiters {
		if w.target <= value {
			wake = append(wake, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	e.waiters = remaining

	var fire []*eventNotification
	keep := e.notifications[:0]
	for _, n := range e.notifications {
		if n.target <= value {
			fire = append(fire, n)
		} else {
			keep = append(keep, n)
		}
	}
	e.notifications = keep
	e.mu.Unlock()

	for _, w := range wake {
		close(w.ch)
	}
	for _, n := range fire {
		n.listener.deliver(n, value)
	}
}

// signaled returns the current counter.
func (e *eventState) signaled() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// waiter registers interest in the counter reaching target. The returned
// channel is already closed when the target has been reached.
func (e *eventState) waiter(target uint64) *eventWaiter {
	e.mu.Lock()
	defer e.mu.Unlock()
	w := &eventWaiter{target: target, ch: make(chan struct{})}
	if e.value >= target {
		close(w.ch)
		return w
	}
	e.waiters = append(e.waiters, w)
	return w
}

// removeWaiter drops a timed-out waiter so it cannot leak.
func (e *eventState) removeWaiter(w *eventWaiter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, x := range e.waiters {
		if x == w {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			return
		}
	}
}

// awaitValue blocks the executing stream until the counter reaches
// target, or fails if the device is lost.
func (e *eventState) awaitValue(target uint64) error {
	w := e.waiter(target)
	select {
	case <-w.ch:
		return nil
	case <-e.dev.lostCh():
		e.removeWaiter(w)
		return errorf(KindDeviceLost, "device lost while waiting for event %q", e.Label())
	}
}

// NewEvent creates a device-scoped event. Its counter starts at zero and
// is driven only by device-side signals encoded on command buffers.
func (d *Device) NewEvent() Event {
	return &eventState{dev: d}
}

// SharedEvent is an Event with a CPU-side surface: the host can signal and
// wait directly, register listeners, and export an opaque handle another
// process can import to reach the same counter.
type SharedEvent struct {
	eventState

	handleMu sync.Mutex
	handleID uint64
}

// NewSharedEvent creates a shareable device-scoped event.
func (d *Device) NewSharedEvent() *SharedEvent {
	return &SharedEvent{eventState: eventState{dev: d}}
}

// SignaledValue returns the current counter.
func (e *SharedEvent) SignaledValue() uint64 { return e.signaled() }

// SetSignaledValue signals the event from the CPU, raising the counter to
// max(current, value).
func (e *SharedEvent) SetSignaledValue(value uint64) { e.signal(value) }

// WaitUntilSignaledValue blocks the calling goroutine until the counter
// reaches value, up to timeout. It reports whether the value was reached
// before the timeout. A zero timeout polls without blocking.
func (e *SharedEvent) WaitUntilSignaledValue(value uint64, timeout time.Duration) bool {
	w := e.waiter(value)
	select {
	case <-w.ch:
		return true
	default:
	}
	if timeout <= 0 {
		e.removeWaiter(w)
		return false
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-w.ch:
		return true
	case <-t.C:
		e.removeWaiter(w)
		return false
	case <-e.dev.lostCh():
		e.removeWaiter(w)
		return false
	}
}

// NotifyListener registers fn to run once the counter reaches value. The
// callback is delivered on the listener's goroutine, at most once, even if
// a single signal jumps the counter past several registered thresholds.
// Registrations for a value already reached fire immediately.
func (e *SharedEvent) NotifyListener(l *SharedEventListener, value uint64, fn func(*SharedEvent, uint64)) {
	if l == nil || fn == nil {
		invalidUsage("NotifyListener requires a listener and a callback")
	}
	n := &eventNotification{target: value, listener: l, owner: e, fn: fn}
	e.mu.Lock()
	if e.value >= value {
		current := e.value
		e.mu.Unlock()
		l.deliver(n, current)
		return
	}
	e.notifications = append(e.notifications, n)
	e.mu.Unlock()
}

// SharedEventListener owns the goroutine that delivers event
// notifications. One listener may serve any number of events and
// registrations; deliveries on one listener are serialized.
type SharedEventListener struct {
	pool *dispatch.Pool
	once sync.Once
}

// NewSharedEventListener creates a listener with its own delivery
// goroutine. Close it when no further notifications are expected.
func NewSharedEventListener() *SharedEventListener {
	return &SharedEventListener{pool: dispatch.New(1)}
}

// Close stops the delivery goroutine after draining pending
// notifications. Close is safe to call multiple times.
func (l *SharedEventListener) Close() {
	l.once.Do(func() { l.pool.Close() })
}

// deliver hands a fired notification to the listener's goroutine.
func (l *SharedEventListener) deliver(n *eventNotification, value uint64) {
	l.pool.Submit(func() { n.fn(n.owner, value) })
}

// SharedEventHandle is an opaque, serializable token referring to a
// SharedEvent's counter. It is the only state that crosses a process
// boundary; the importing side resolves it through the device runtime's
// event table.
type SharedEventHandle struct {
	// ID identifies the counter in the runtime's event table.
	ID uint64

	// Label carries the event's debug label at export time.
	Label string
}

// sharedEventTable resolves exported handles. The software device keeps it
// process-local; a transport-backed device maps IDs across its IPC
// channel.
var sharedEventTable = struct {
	sync.Mutex
	next   uint64
	events map[uint64]*SharedEvent
}{events: make(map[uint64]*SharedEvent)}

// NewSharedEventHandle exports the event. Handles are stable: exporting
// twice returns tokens with the same ID.
func (e *SharedEvent) NewSharedEventHandle() *SharedEventHandle {
	e.handleMu.Lock()
	defer e.handleMu.Unlock()
	if e.handleID == 0 {
		sharedEventTable.Lock()
		sharedEventTable.next++
		e.handleID = sharedEventTable.next
		sharedEventTable.events[e.handleID] = e
		sharedEventTable.Unlock()
	}
	return &SharedEventHandle{ID: e.handleID, Label: e.Label()}
}

// ImportSharedEventHandle resolves a handle to the SharedEvent it was
// exported from. Signaling and waiting through the imported event observe
// the same counter.
func (d *Device) ImportSharedEventHandle(h *SharedEventHandle) (*SharedEvent, error) {
	if err := d.failIfLost("ImportSharedEventHandle"); err != nil {
		return nil, err
	}
	if h == nil {
		return nil, errorf(KindInvalidUsage, "nil shared event handle")
	}
	sharedEventTable.Lock()
	e, ok := sharedEventTable.events[h.ID]
	sharedEventTable.Unlock()
	if !ok {
		return nil, errorf(KindInvalidUsage, "shared event handle %d does not resolve", h.ID)
	}
	return e, nil
}
