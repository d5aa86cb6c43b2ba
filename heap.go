package cmdq

import (
	"sort"
	"sync"

	"github.com/gogpu/gputypes"
)

// heapMinAlignment is the placement granularity for automatic
// sub-allocation.
const heapMinAlignment = 16

// HeapDescriptor describes a heap allocation.
type HeapDescriptor struct {
	// Label is an optional debug label for the heap.
	Label string

	// Size is the heap capacity in bytes. Must be non-zero.
	Size uint64

	// StorageMode places the heap; every resource allocated from the heap
	// shares it.
	StorageMode StorageMode

	// HazardTracking is the mode resources inherit unless they override
	// it at allocation. The zero value resolves to Tracked.
	HazardTracking HazardTrackingMode

	// Type selects the placement policy.
	Type HeapType
}

// Heap is a pre-reserved memory arena that sub-allocates buffers and
// textures.
//
// Heaps own the aliasing and purgeability policy of their resources: a
// resource made aliasable returns its bytes to the heap for future
// allocations while the (now poisoned) handle stays alive.
//
// Thread safety: Heap is safe for concurrent use.
type Heap struct {
	dev *Device

	mu        sync.Mutex
	label     string
	size      uint64
	storage   StorageMode
	hazard    HazardTrackingMode
	typ       HeapType
	backing   []byte
	purgeable PurgeableState
	destroyed bool

	// spans are the live, non-aliasable allocations, sorted by offset.
	// Placement heaps may hold overlapping spans when the caller aliases
	// deliberately; bookkeeping uses union coverage so the heap invariant
	// usedSize <= currentAllocatedSize <= size always holds.
	spans []heapSpan

	// usedSize is the union coverage of live spans.
	usedSize uint64

	// highWater is the largest end offset ever occupied. It only grows.
	highWater uint64
}

// heapSpan is a half-open byte range [off, end).
type heapSpan struct {
	off, end uint64
}

// NewHeap creates a heap of the given capacity, storage mode, hazard mode
// and placement policy. It fails with KindOutOfMemory if the arena cannot
// be reserved and KindInvalidUsage if the descriptor is malformed.
func (d *Device) NewHeap(desc HeapDescriptor) (*Heap, error) {
	if err := d.failIfLost("NewHeap"); err != nil {
		return nil, err
	}
	if desc.Size == 0 {
		return nil, errorf(KindInvalidUsage, "heap size must be non-zero")
	}
	h := &Heap{
		dev:       d,
		label:     desc.Label,
		size:      desc.Size,
		storage:   desc.StorageMode,
		hazard:    resolveHazard(desc.HazardTracking, HazardTrackingModeTracked),
		typ:       desc.Type,
		backing:   make([]byte, desc.Size),
		purgeable: PurgeableStateNonVolatile,
	}
	Logger().Info("heap created", "label", desc.Label, "size", desc.Size,
		"storage", h.storage, "type", h.typ)
	return h, nil
}

// Label returns the debug label of the heap.
func (h *Heap) Label() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.label
}

// SetLabel sets the debug label of the heap.
func (h *Heap) SetLabel(label string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.label = label
}

// Device returns the device the heap was created from.
func (h *Heap) Device() *Device { return h.dev }

// Size returns the heap capacity in bytes.
func (h *Heap) Size() uint64 { return h.size }

// StorageMode returns the heap's storage mode.
func (h *Heap) StorageMode() StorageMode { return h.storage }

// HazardTrackingMode returns the mode resources inherit from the heap.
func (h *Heap) HazardTrackingMode() HazardTrackingMode { return h.hazard }

// Type returns the heap's placement policy.
func (h *Heap) Type() HeapType { return h.typ }

// UsedSize returns the bytes covered by live allocations.
func (h *Heap) UsedSize() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.usedSize
}

// CurrentAllocatedSize returns the heap's memory footprint: the largest
// extent the allocator has ever handed out. It never exceeds Size and
// never understates UsedSize.
func (h *Heap) CurrentAllocatedSize() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.highWater
}

// MaxAvailableSize returns the largest single allocation that would
// currently succeed with the given alignment, accounting for
// fragmentation. It never overstates: an allocation of the returned size
// with the same alignment succeeds barring concurrent allocations.
func (h *Heap) MaxAvailableSize(alignment uint64) uint64 {
	if alignment == 0 {
		alignment = 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	var best uint64
	for _, gap := range h.gaps() {
		start := alignUp(gap.off, alignment)
		if start < gap.end && gap.end-start > best {
			best = gap.end - start
		}
	}
	return best
}

// NewBuffer sub-allocates a buffer, choosing the offset automatically.
// Only HeapTypeAutomatic and HeapTypeSparse heaps choose offsets; use
// NewBufferWithOffset on placement heaps.
func (h *Heap) NewBuffer(length uint64, usage gputypes.BufferUsage, hazard HazardTrackingMode) (*Buffer, error) {
	if err := h.dev.failIfLost("Heap.NewBuffer"); err != nil {
		return nil, err
	}
	if h.typ == HeapTypePlacement {
		return nil, errorf(KindInvalidUsage, "automatic allocation on placement heap %q", h.Label())
	}
	if length == 0 {
		return nil, errorf(KindInvalidUsage, "buffer length must be non-zero")
	}
	off, err := h.allocAuto(length, heapMinAlignment)
	if err != nil {
		return nil, err
	}
	return newBuffer(h.dev, h, length, usage, h.storage,
		resolveHazard(hazard, h.hazard), off, h.view(off, length)), nil
}

// NewBufferWithOffset sub-allocates a buffer at a caller-chosen offset on
// a placement heap. The caller is responsible for non-overlap with live
// resources unless those bytes have been made aliasable.
func (h *Heap) NewBufferWithOffset(length uint64, usage gputypes.BufferUsage,
	hazard HazardTrackingMode, offset uint64) (*Buffer, error) {
	if err := h.dev.failIfLost("Heap.NewBufferWithOffset"); err != nil {
		return nil, err
	}
	if h.typ != HeapTypePlacement {
		return nil, errorf(KindInvalidUsage, "placement allocation on %s heap %q", h.typ, h.Label())
	}
	if length == 0 {
		return nil, errorf(KindInvalidUsage, "buffer length must be non-zero")
	}
	if err := h.allocAt(offset, length); err != nil {
		return nil, err
	}
	return newBuffer(h.dev, h, length, usage, h.storage,
		resolveHazard(hazard, h.hazard), offset, h.view(offset, length)), nil
}

// NewTexture sub-allocates a texture, choosing the offset automatically.
func (h *Heap) NewTexture(desc TextureDescriptor) (*Texture, error) {
	if err := h.dev.failIfLost("Heap.NewTexture"); err != nil {
		return nil, err
	}
	if h.typ == HeapTypePlacement {
		return nil, errorf(KindInvalidUsage, "automatic allocation on placement heap %q", h.Label())
	}
	if err := desc.validate(); err != nil {
		return nil, err
	}
	n := desc.normalize()
	size := n.allocationSize()
	off, err := h.allocAuto(size, heapMinAlignment)
	if err != nil {
		return nil, err
	}
	return newTexture(h.dev, h, n, h.storage,
		resolveHazard(n.HazardTracking, h.hazard), off, h.view(off, size)), nil
}

// NewTextureWithOffset sub-allocates a texture at a caller-chosen offset
// on a placement heap.
func (h *Heap) NewTextureWithOffset(desc TextureDescriptor, offset uint64) (*Texture, error) {
	if err := h.dev.failIfLost("Heap.NewTextureWithOffset"); err != nil {
		return nil, err
	}
	if h.typ != HeapTypePlacement {
		return nil, errorf(KindInvalidUsage, "placement allocation on %s heap %q", h.typ, h.Label())
	}
	if err := desc.validate(); err != nil {
		return nil, err
	}
	n := desc.normalize()
	size := n.allocationSize()
	if err := h.allocAt(offset, size); err != nil {
		return nil, err
	}
	return newTexture(h.dev, h, n, h.storage,
		resolveHazard(n.HazardTracking, h.hazard), offset, h.view(offset, size)), nil
}

// SetPurgeableState sets the discardability of the whole heap and returns
// the previous state.
func (h *Heap) SetPurgeableState(state PurgeableState) PurgeableState {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.purgeable
	if state == PurgeableStateKeepCurrent {
		return prev
	}
	h.purgeable = state
	if state == PurgeableStateEmpty {
		for i := range h.backing {
			h.backing[i] = 0
		}
	}
	return prev
}

// Destroy releases the heap's arena. Destroying a heap with live
// resources leaves those resources with dangling contents; the caller
// owns that ordering.
func (h *Heap) Destroy() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return
	}
	h.destroyed = true
	h.spans = nil
	h.usedSize = 0
	Logger().Debug("heap destroyed", "label", h.label)
}

// view returns the arena slice for an allocation, capacity-clamped so a
// resource cannot append past its span.
func (h *Heap) view(off, size uint64) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.backing[off : off+size : off+size]
}

// allocAuto finds the first gap that fits size at the given alignment.
func (h *Heap) allocAuto(size, alignment uint64) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return 0, errorf(KindInvalidUsage, "allocation from destroyed heap %q", h.label)
	}
	for _, gap := range h.gaps() {
		start := alignUp(gap.off, alignment)
		if start < gap.end && gap.end-start >= size {
			h.insertSpan(heapSpan{off: start, end: start + size})
			return start, nil
		}
	}
	return 0, errorf(KindOutOfMemory,
		"heap %q cannot fit %d bytes (capacity %d, used %d)", h.label, size, h.size, h.usedSize)
}

// allocAt reserves [offset, offset+size) on a placement heap. Bounds are
// validated; overlap is the caller's contract.
func (h *Heap) allocAt(offset, size uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return errorf(KindInvalidUsage, "allocation from destroyed heap %q", h.label)
	}
	end := offset + size
	if end < offset || end > h.size {
		return errorf(KindOutOfMemory,
			"placement [%d, %d) outside heap %q of size %d", offset, end, h.label, h.size)
	}
	h.insertSpan(heapSpan{off: offset, end: end})
	return nil
}

// release returns [off, end) to the heap. Called when a resource is
// destroyed or made aliasable.
func (h *Heap) release(off, end uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.spans {
		if s.off == off && s.end == end {
			h.spans = append(h.spans[:i], h.spans[i+1:]...)
			break
		}
	}
	h.recount()
}

// insertSpan records a live allocation and refreshes the bookkeeping.
// Caller holds h.mu.
func (h *Heap) insertSpan(s heapSpan) {
	i := sort.Search(len(h.spans), func(i int) bool { return h.spans[i].off >= s.off })
	h.spans = append(h.spans, heapSpan{})
	copy(h.spans[i+1:], h.spans[i:])
	h.spans[i] = s
	if s.end > h.highWater {
		h.highWater = s.end
	}
	h.recount()
}

// recount recomputes usedSize as the union coverage of live spans.
// Caller holds h.mu.
func (h *Heap) recount() {
	var used, coverEnd uint64
	for _, s := range h.spans {
		if s.off > coverEnd {
			used += s.end - s.off
			coverEnd = s.end
		} else if s.end > coverEnd {
			used += s.end - coverEnd
			coverEnd = s.end
		}
	}
	h.usedSize = used
}

// gaps returns the free ranges between the union of live spans, in order.
// Caller holds h.mu.
func (h *Heap) gaps() []heapSpan {
	var out []heapSpan
	var coverEnd uint64
	for _, s := range h.spans {
		if s.off > coverEnd {
			out = append(out, heapSpan{off: coverEnd, end: s.off})
		}
		if s.end > coverEnd {
			coverEnd = s.end
		}
	}
	if coverEnd < h.size {
		out = append(out, heapSpan{off: coverEnd, end: h.size})
	}
	return out
}

// alignUp rounds v up to the next multiple of alignment.
func alignUp(v, alignment uint64) uint64 {
	rem := v % alignment
	if rem == 0 {
		return v
	}
	return v + alignment - rem
}
