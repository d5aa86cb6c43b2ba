package cmdq

// commandType identifies the kind of an encoded command.
type commandType uint8

const (
	// Blit commands
	cmdCopyBuffer commandType = iota // Copy a byte range between buffers
	cmdFillBuffer                    // Fill a byte range with a value

	// Compute commands
	cmdDispatch // Run a bound compute pipeline

	// Synchronization commands
	cmdUpdateFence   // Signal a fence at this point of the stream
	cmdWaitFence     // Hold the stream until a fence update retires
	cmdSignalEvent   // Raise an event counter
	cmdWaitEvent     // Hold the stream until an event counter value
	cmdMemoryBarrier // Order prior and subsequent commands in-encoder

	// Debug commands
	cmdSignpost       // Tooling marker, no execution effect
	cmdPushDebugGroup // Open a named group in captures
	cmdPopDebugGroup  // Close the innermost group
)

// commandTypeNames maps commandType values to their string representation.
var commandTypeNames = [...]string{
	cmdCopyBuffer:     "CopyBuffer",
	cmdFillBuffer:     "FillBuffer",
	cmdDispatch:       "Dispatch",
	cmdUpdateFence:    "UpdateFence",
	cmdWaitFence:      "WaitFence",
	cmdSignalEvent:    "SignalEvent",
	cmdWaitEvent:      "WaitEvent",
	cmdMemoryBarrier:  "MemoryBarrier",
	cmdSignpost:       "Signpost",
	cmdPushDebugGroup: "PushDebugGroup",
	cmdPopDebugGroup:  "PopDebugGroup",
}

// String returns the string representation of a commandType.
func (c commandType) String() string {
	if int(c) < len(commandTypeNames) {
		return commandTypeNames[c]
	}
	return "Unknown"
}

// command is one encoded operation in a command buffer's stream.
// The executor walks commands in encode order; hazard sets tell it which
// tracked resources each command reads and writes.
type command interface {
	kind() commandType
	hazards() (reads, writes []Resource)
}

// noHazards is embedded by commands that touch no resources.
type noHazards struct{}

func (noHazards) hazards() (reads, writes []Resource) { return nil, nil }

type copyBufferCmd struct {
	src, dst       *Buffer
	srcOff, dstOff uint64
	size           uint64
}

func (c *copyBufferCmd) kind() commandType { return cmdCopyBuffer }

func (c *copyBufferCmd) hazards() (reads, writes []Resource) {
	return []Resource{c.src}, []Resource{c.dst}
}

type fillBufferCmd struct {
	dst   *Buffer
	off   uint64
	size  uint64
	value byte
}

func (c *fillBufferCmd) kind() commandType { return cmdFillBuffer }

func (c *fillBufferCmd) hazards() (reads, writes []Resource) {
	return nil, []Resource{c.dst}
}

type dispatchCmd struct {
	pipeline *ComputePipelineState
	x, y, z  uint32

	// declaredReads/declaredWrites snapshot the encoder's UseResource
	// declarations at encode time.
	declaredReads  []Resource
	declaredWrites []Resource
}

func (c *dispatchCmd) kind() commandType { return cmdDispatch }

func (c *dispatchCmd) hazards() (reads, writes []Resource) {
	return c.declaredReads, c.declaredWrites
}

type updateFenceCmd struct {
	noHazards
	fence *Fence

	// generation is assigned by the queue scheduler, in commit order.
	generation uint64
}

func (c *updateFenceCmd) kind() commandType { return cmdUpdateFence }

type waitFenceCmd struct {
	noHazards
	fence *Fence

	// target is the update generation this wait observes, assigned by the
	// queue scheduler.
	target uint64
}

func (c *waitFenceCmd) kind() commandType { return cmdWaitFence }

type signalEventCmd struct {
	noHazards
	event Event
	value uint64
}

func (c *signalEventCmd) kind() commandType { return cmdSignalEvent }

type waitEventCmd struct {
	noHazards
	event Event
	value uint64
}

func (c *waitEventCmd) kind() commandType { return cmdWaitEvent }

type memoryBarrierCmd struct {
	noHazards
	scope BarrierScope
}

func (c *memoryBarrierCmd) kind() commandType { return cmdMemoryBarrier }

type signpostCmd struct {
	noHazards
	name string
}

func (c *signpostCmd) kind() commandType { return cmdSignpost }

type pushDebugGroupCmd struct {
	noHazards
	name string
}

func (c *pushDebugGroupCmd) kind() commandType { return cmdPushDebugGroup }

type popDebugGroupCmd struct {
	noHazards
}

func (c *popDebugGroupCmd) kind() commandType { return cmdPopDebugGroup }
