package cmdq

import "sync"

// Status is the lifecycle state of a command buffer.
//
// Transitions are monotonic and one-directional:
//
//	NotEnqueued -> Enqueued -> Committed -> Scheduled -> Executing -> Completed
//	                                                               \> Error
//
// The caller drives the first two (Enqueue is optional; Commit implies
// it); the device runtime drives the rest. StatusCompleted and StatusError
// are terminal.
type Status int

const (
	// StatusNotEnqueued is the state of a freshly created buffer.
	StatusNotEnqueued Status = iota

	// StatusEnqueued marks the buffer as queued ahead of Commit. The state
	// exists for API symmetry; only commit order determines execution
	// order.
	StatusEnqueued

	// StatusCommitted means the buffer's commands are final and handed to
	// the device.
	StatusCommitted

	// StatusScheduled means the queue has given the buffer its execution
	// slot; buffers of one queue reach this state in commit order.
	StatusScheduled

	// StatusExecuting means the device is running the buffer's commands.
	StatusExecuting

	// StatusCompleted is the terminal success state.
	StatusCompleted

	// StatusError is the terminal failure state; Err carries the capture.
	StatusError
)

// statusNames maps Status values to their string representation.
var statusNames = [...]string{
	StatusNotEnqueued: "NotEnqueued",
	StatusEnqueued:    "Enqueued",
	StatusCommitted:   "Committed",
	StatusScheduled:   "Scheduled",
	StatusExecuting:   "Executing",
	StatusCompleted:   "Completed",
	StatusError:       "Error",
}

// String returns the string representation of a Status.
func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "Unknown"
}

// Handler observes a command buffer transition. Handlers run at most once
// each, on a runtime-owned goroutine, strictly after the transition they
// observe; they must not assume any particular goroutine identity.
type Handler func(*CommandBuffer)

// CommandBuffer is an ordered container of encoded GPU work with an
// explicit lifecycle and asynchronous completion notification.
//
// Encoding is single-goroutine: one encoder at a time, all on the
// goroutine that owns the buffer. Everything after Commit is asynchronous;
// Commit itself never blocks.
type CommandBuffer struct {
	queue   *CommandQueue
	dev     *Device
	retains bool

	mu     sync.Mutex
	cond   *sync.Cond
	status Status
	label  string
	err    *Error

	commands    []command
	encoderOpen bool

	// refs keeps the resources and pipelines a retaining buffer touches
	// alive until execution finishes.
	refs []any

	scheduledHandlers []Handler
	completedHandlers []Handler

	// handlerMu serializes handler delivery for this buffer so handlers
	// observe registration order even across pool workers.
	handlerMu sync.Mutex

	kernelStart, kernelEnd float64
	gpuStart, gpuEnd       float64
}

func newCommandBuffer(q *CommandQueue, retains bool) *CommandBuffer {
	cb := &CommandBuffer{queue: q, dev: q.dev, retains: retains}
	cb.cond = sync.NewCond(&cb.mu)
	return cb
}

// Queue returns the command queue that created the buffer.
func (cb *CommandBuffer) Queue() *CommandQueue { return cb.queue }

// Device returns the device the buffer executes on.
func (cb *CommandBuffer) Device() *Device { return cb.dev }

// RetainedReferences reports whether the buffer keeps its resources alive
// until execution finishes.
func (cb *CommandBuffer) RetainedReferences() bool { return cb.retains }

// Label returns the debug label of the buffer.
func (cb *CommandBuffer) Label() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.label
}

// SetLabel sets the debug label of the buffer.
func (cb *CommandBuffer) SetLabel(label string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.label = label
}

// Status returns the buffer's current lifecycle state.
func (cb *CommandBuffer) Status() Status {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.status
}

// Err returns the captured execution error, or nil. Before a terminal
// state the answer is "no error yet", not a final one.
func (cb *CommandBuffer) Err() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.err == nil {
		return nil
	}
	return cb.err
}

// KernelStartTime returns the time, in seconds since device creation,
// when the runtime began scheduling the buffer. Zero before that.
func (cb *CommandBuffer) KernelStartTime() float64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.kernelStart
}

// KernelEndTime returns the time the runtime finished scheduling the
// buffer. Zero before that.
func (cb *CommandBuffer) KernelEndTime() float64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.kernelEnd
}

// GPUStartTime returns the time execution began. Zero before that.
func (cb *CommandBuffer) GPUStartTime() float64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.gpuStart
}

// GPUEndTime returns the time execution finished. Zero before that.
func (cb *CommandBuffer) GPUEndTime() float64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.gpuEnd
}

// Enqueue reserves the buffer's place in its queue's submission order
// without committing it. Enqueue may be called once, before Commit;
// anything else is a fatal usage error.
func (cb *CommandBuffer) Enqueue() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.status != StatusNotEnqueued {
		invalidUsage("Enqueue on %s command buffer %q", cb.status, cb.label)
	}
	cb.status = StatusEnqueued
	cb.cond.Broadcast()
}

// Commit finalizes the buffer and hands it to the device. Committing
// implies Enqueue if the caller skipped it. Commit never blocks; the
// buffer executes asynchronously. Committing twice, committing with an
// open encoder, or encoding afterwards are fatal usage errors.
func (cb *CommandBuffer) Commit() {
	cb.mu.Lock()
	if cb.status > StatusEnqueued {
		invalidUsage("Commit on %s command buffer %q", cb.status, cb.label)
	}
	if cb.encoderOpen {
		invalidUsage("Commit with an open encoder on command buffer %q", cb.label)
	}
	cb.status = StatusCommitted
	cb.cond.Broadcast()
	n := len(cb.commands)
	cb.mu.Unlock()

	Logger().Debug("command buffer committed", "label", cb.label, "commands", n)
	cb.queue.submit(cb)
}

// BlitCommandEncoder opens a blit encoder on the buffer.
// Only one encoder may be open at a time.
func (cb *CommandBuffer) BlitCommandEncoder() *BlitCommandEncoder {
	cb.beginEncoder("blit")
	return &BlitCommandEncoder{commandEncoder{cb: cb, name: "blit"}}
}

// ComputeCommandEncoder opens a compute encoder on the buffer.
// Only one encoder may be open at a time.
func (cb *CommandBuffer) ComputeCommandEncoder() *ComputeCommandEncoder {
	cb.beginEncoder("compute")
	return &ComputeCommandEncoder{commandEncoder: commandEncoder{cb: cb, name: "compute"}}
}

func (cb *CommandBuffer) beginEncoder(kind string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.status > StatusEnqueued {
		invalidUsage("new %s encoder on %s command buffer %q", kind, cb.status, cb.label)
	}
	if cb.encoderOpen {
		invalidUsage("new %s encoder while another encoder is open on command buffer %q", kind, cb.label)
	}
	cb.encoderOpen = true
}

func (cb *CommandBuffer) encoderDidEnd() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.encoderOpen = false
}

// appendCommand adds an encoded command to the stream.
func (cb *CommandBuffer) appendCommand(c command) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.status > StatusEnqueued {
		invalidUsage("encoding on %s command buffer %q", cb.status, cb.label)
	}
	cb.commands = append(cb.commands, c)
}

// retain keeps an object alive until execution finishes, when the buffer
// was created with retained references.
func (cb *CommandBuffer) retain(obj any) {
	if !cb.retains {
		return
	}
	cb.mu.Lock()
	cb.refs = append(cb.refs, obj)
	cb.mu.Unlock()
}

// SignalEvent encodes a device-side signal that raises the event counter
// to max(current, value) when the stream reaches this point. Legal only
// between encoders, before Commit.
func (cb *CommandBuffer) SignalEvent(e Event, value uint64) {
	if e == nil {
		invalidUsage("SignalEvent with nil event")
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.status > StatusEnqueued {
		invalidUsage("SignalEvent on %s command buffer %q", cb.status, cb.label)
	}
	if cb.encoderOpen {
		invalidUsage("SignalEvent while an encoder is open on command buffer %q", cb.label)
	}
	cb.commands = append(cb.commands, &signalEventCmd{event: e, value: value})
}

// WaitForEvent encodes a device-side wait: the stream holds at this point
// until the event counter reaches value. Only this buffer's stream blocks.
// Legal only between encoders, before Commit.
func (cb *CommandBuffer) WaitForEvent(e Event, value uint64) {
	if e == nil {
		invalidUsage("WaitForEvent with nil event")
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.status > StatusEnqueued {
		invalidUsage("WaitForEvent on %s command buffer %q", cb.status, cb.label)
	}
	if cb.encoderOpen {
		invalidUsage("WaitForEvent while an encoder is open on command buffer %q", cb.label)
	}
	cb.commands = append(cb.commands, &waitEventCmd{event: e, value: value})
}

// AddScheduledHandler registers a handler for the Scheduled transition.
// A handler registered after the transition still fires, exactly once.
func (cb *CommandBuffer) AddScheduledHandler(h Handler) {
	if h == nil {
		invalidUsage("AddScheduledHandler with nil handler")
	}
	cb.mu.Lock()
	fired := cb.status >= StatusScheduled
	if !fired {
		cb.scheduledHandlers = append(cb.scheduledHandlers, h)
	}
	cb.mu.Unlock()
	if fired {
		cb.dispatchHandlers([]Handler{h})
	}
}

// AddCompletedHandler registers a handler for the terminal transition
// (Completed or Error). A handler registered after the transition still
// fires, exactly once.
func (cb *CommandBuffer) AddCompletedHandler(h Handler) {
	if h == nil {
		invalidUsage("AddCompletedHandler with nil handler")
	}
	cb.mu.Lock()
	fired := cb.status >= StatusCompleted
	if !fired {
		cb.completedHandlers = append(cb.completedHandlers, h)
	}
	cb.mu.Unlock()
	if fired {
		cb.dispatchHandlers([]Handler{h})
	}
}

// WaitUntilScheduled blocks the calling goroutine until the buffer has
// been scheduled (or has already failed). The buffer must be committed
// first, or the wait could never end.
func (cb *CommandBuffer) WaitUntilScheduled() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.status < StatusCommitted {
		invalidUsage("WaitUntilScheduled on %s command buffer %q", cb.status, cb.label)
	}
	for cb.status < StatusScheduled {
		cb.cond.Wait()
	}
}

// WaitUntilCompleted blocks the calling goroutine until the buffer
// reaches a terminal state. The buffer must be committed first.
func (cb *CommandBuffer) WaitUntilCompleted() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.status < StatusCommitted {
		invalidUsage("WaitUntilCompleted on %s command buffer %q", cb.status, cb.label)
	}
	for cb.status < StatusCompleted {
		cb.cond.Wait()
	}
}

// markScheduled is called by the queue scheduler, in commit order.
func (cb *CommandBuffer) markScheduled() {
	cb.mu.Lock()
	cb.status = StatusScheduled
	cb.kernelStart = cb.dev.now()
	cb.kernelEnd = cb.kernelStart
	handlers := cb.scheduledHandlers
	cb.scheduledHandlers = nil
	cb.cond.Broadcast()
	cb.mu.Unlock()

	cb.dispatchHandlers(handlers)
}

// markExecuting is called by the executor as its first action.
func (cb *CommandBuffer) markExecuting() {
	cb.mu.Lock()
	cb.status = StatusExecuting
	cb.gpuStart = cb.dev.now()
	cb.cond.Broadcast()
	cb.mu.Unlock()
}

// finish drives the buffer to its terminal state and fires completion
// handlers. err nil means Completed; non-nil means Error with capture.
func (cb *CommandBuffer) finish(err error) {
	cb.mu.Lock()
	if err != nil {
		cb.status = StatusError
		if e, ok := err.(*Error); ok {
			cb.err = e
		} else {
			cb.err = errorf(KindExecutionError, "%v", err)
		}
	} else {
		cb.status = StatusCompleted
	}
	cb.gpuEnd = cb.dev.now()
	handlers := cb.completedHandlers
	cb.completedHandlers = nil
	cb.refs = nil
	cb.cond.Broadcast()
	cb.mu.Unlock()

	if err != nil {
		Logger().Warn("command buffer failed", "label", cb.Label(), "err", err)
	}
	cb.dispatchHandlers(handlers)
}

// dispatchHandlers delivers handlers on the device's dispatch pool,
// serialized per buffer so registration order is preserved.
func (cb *CommandBuffer) dispatchHandlers(handlers []Handler) {
	if len(handlers) == 0 {
		return
	}
	cb.dev.pool.Submit(func() {
		cb.handlerMu.Lock()
		defer cb.handlerMu.Unlock()
		for _, h := range handlers {
			cb.callHandler(h)
		}
	})
}

// callHandler runs one handler, keeping a panicking application callback
// from killing the delivery worker.
func (cb *CommandBuffer) callHandler(h Handler) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Warn("command buffer handler panicked", "label", cb.Label(), "panic", r)
		}
	}()
	h(cb)
}
