package cmdq

import "sync"

// defaultMaxCommandBuffers is the default cap on in-flight command
// buffers per queue.
const defaultMaxCommandBuffers = 64

// CommandQueue is a submission-order channel for command buffers.
//
// Buffers committed to one queue begin device-side execution in commit
// order; completion order may diverge once fences and events permit it.
// Buffers on different queues have no mutual order unless the application
// connects them with a fence or event.
//
// Thread safety: CommandQueue is safe for concurrent use. Distinct command
// buffers from the same queue may be encoded concurrently on different
// goroutines; only commit order matters.
type CommandQueue struct {
	dev *Device

	mu      sync.Mutex
	cond    *sync.Cond
	label   string
	pending []*CommandBuffer
	closed  bool

	// slots caps in-flight buffers: acquired at creation, released when a
	// buffer reaches a terminal state.
	slots chan struct{}
}

// NewCommandQueue creates a queue with the default in-flight buffer cap.
func (d *Device) NewCommandQueue() *CommandQueue {
	return d.NewCommandQueueWithMaxCount(defaultMaxCommandBuffers)
}

// NewCommandQueueWithMaxCount creates a queue that keeps at most maxCount
// command buffers in flight. CommandBuffer blocks once the cap is reached,
// until an earlier buffer completes. maxCount of 0 or less selects the
// default.
func (d *Device) NewCommandQueueWithMaxCount(maxCount int) *CommandQueue {
	if maxCount <= 0 {
		maxCount = defaultMaxCommandBuffers
	}
	q := &CommandQueue{
		dev:   d,
		slots: make(chan struct{}, maxCount),
	}
	q.cond = sync.NewCond(&q.mu)
	d.trackQueue(q)
	go q.run()
	Logger().Info("command queue started", "maxInFlight", maxCount)
	return q
}

// Label returns the debug label of the queue.
func (q *CommandQueue) Label() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.label
}

// SetLabel sets the debug label of the queue.
func (q *CommandQueue) SetLabel(label string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.label = label
}

// Device returns the device that owns the queue.
func (q *CommandQueue) Device() *Device { return q.dev }

// CommandBuffer creates a command buffer that retains the resources its
// commands touch until execution finishes. Blocks while the queue's
// in-flight cap is reached.
func (q *CommandQueue) CommandBuffer() *CommandBuffer {
	q.slots <- struct{}{}
	return newCommandBuffer(q, true)
}

// CommandBufferUnretained creates a command buffer that does not keep its
// resources alive; the caller must guarantee every referenced resource
// outlives execution. Used to break reference cycles and shed retention
// overhead on hot paths.
func (q *CommandQueue) CommandBufferUnretained() *CommandBuffer {
	q.slots <- struct{}{}
	return newCommandBuffer(q, false)
}

// InsertDebugCaptureBoundary marks a capture boundary for tooling. It has
// no effect on execution order.
func (q *CommandQueue) InsertDebugCaptureBoundary() {
	Logger().Debug("debug capture boundary", "queue", q.Label())
}

// submit appends a committed buffer to the queue's schedule.
func (q *CommandQueue) submit(cb *CommandBuffer) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		// The queue is torn down; fail the buffer instead of leaving its
		// waiters hanging.
		cb.markScheduled()
		cb.markExecuting()
		cb.finish(errorf(KindDeviceLost, "queue destroyed before execution"))
		q.release()
		return
	}
	q.pending = append(q.pending, cb)
	q.mu.Unlock()
	q.cond.Signal()
}

// run is the scheduler goroutine: it stamps buffers Scheduled strictly in
// commit order, resolves fence generations in that order, then hands each
// buffer to its own executor goroutine.
func (q *CommandQueue) run() {
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		cb := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.schedule(cb)
	}
}

// schedule resolves the buffer's fence positions and releases it for
// execution. Runs on the scheduler goroutine only, so buffers of this
// queue resolve and transition in commit order.
func (q *CommandQueue) schedule(cb *CommandBuffer) {
	for _, c := range cb.commands {
		switch c := c.(type) {
		case *updateFenceCmd:
			c.generation = c.fence.assignUpdate()
		case *waitFenceCmd:
			c.target = c.fence.assignWait()
		}
	}
	cb.markScheduled()
	go q.execute(cb)
}

// execute runs one buffer's command stream to a terminal state.
func (q *CommandQueue) execute(cb *CommandBuffer) {
	defer q.release()

	cb.markExecuting()
	for _, c := range cb.commands {
		if q.dev.isLost() {
			cb.finish(errorf(KindDeviceLost, "device lost during execution"))
			return
		}
		if err := q.dev.execute(c); err != nil {
			cb.finish(err)
			return
		}
	}
	cb.finish(nil)
}

// release frees one in-flight slot.
func (q *CommandQueue) release() {
	select {
	case <-q.slots:
	default:
	}
}

// destroy stops the scheduler once pending buffers have drained.
func (q *CommandQueue) destroy() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
