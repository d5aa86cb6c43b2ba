package cmdq

import "github.com/gogpu/gputypes"

// Buffer is a linear allocation of device memory.
//
// Buffers are created by Device.NewBuffer or sub-allocated from a Heap.
// A buffer's length never changes after creation.
type Buffer struct {
	resourceState

	length uint64
	usage  gputypes.BufferUsage
}

// newBuffer wires up the shared resource bookkeeping for a buffer.
func newBuffer(dev *Device, heap *Heap, length uint64, usage gputypes.BufferUsage,
	storage StorageMode, hazard HazardTrackingMode, offset uint64, backing []byte) *Buffer {
	return &Buffer{
		resourceState: resourceState{
			dev:       dev,
			heap:      heap,
			seq:       resourceSeq.Add(1),
			storage:   storage,
			hazard:    hazard,
			purgeable: PurgeableStateNonVolatile,
			offset:    offset,
			size:      length,
			backing:   backing,
		},
		length: length,
		usage:  usage,
	}
}

// Length returns the buffer's size in bytes.
func (b *Buffer) Length() uint64 { return b.length }

// Usage returns the usage flags the buffer was created with.
func (b *Buffer) Usage() gputypes.BufferUsage { return b.usage }

// Contents returns the host-addressable bytes of the buffer.
//
// Only buffers with StorageModeShared or StorageModeManaged are
// host-addressable; Contents returns nil for private and memoryless
// buffers, and for destroyed buffers.
//
// The slice aliases device memory. Writing it concurrently with executing
// commands that access the same buffer is a data race unless the buffer is
// tracked or the application orders the accesses itself.
func (b *Buffer) Contents() []byte {
	if b.storage != StorageModeShared && b.storage != StorageModeManaged {
		return nil
	}
	return b.bytes()
}

// DidModifyRange informs the device that the host changed a range of a
// managed buffer. Shared buffers need no notification. Calling it with a
// range outside the buffer is a fatal usage error.
func (b *Buffer) DidModifyRange(offset, length uint64) {
	if offset+length > b.length || offset+length < offset {
		invalidUsage("DidModifyRange [%d, %d) outside buffer of length %d",
			offset, offset+length, b.length)
	}
	// The software device shares one allocation between host and device
	// copies, so the flush itself is a no-op.
}
