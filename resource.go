package cmdq

import (
	"sync"
	"sync/atomic"
)

// resourceSeq hands out creation-order identities. The executor sorts
// hazard locks by identity so concurrent streams never deadlock.
var resourceSeq atomic.Uint64

// Resource is an allocated memory object: a Buffer or a Texture.
//
// Resources are created by a Device or sub-allocated from a Heap. A
// heap-backed resource shares its heap's storage mode and, unless
// overridden at allocation, its hazard tracking mode.
type Resource interface {
	// Label returns the debug label of the resource.
	Label() string

	// SetLabel sets the debug label of the resource.
	SetLabel(label string)

	// Device returns the device that owns the resource.
	Device() *Device

	// StorageMode returns where the resource's memory lives.
	StorageMode() StorageMode

	// HazardTrackingMode returns who orders accesses to the resource.
	// The returned mode is always resolved: never HazardTrackingModeDefault.
	HazardTrackingMode() HazardTrackingMode

	// SetPurgeableState sets the discardability of the resource's contents
	// and returns the previous state. Pass PurgeableStateKeepCurrent to
	// query without changing.
	//
	// The call is synchronous CPU-side bookkeeping only. Commands already
	// enqueued against a resource that becomes Empty read undefined, not
	// unsafe, content.
	SetPurgeableState(state PurgeableState) PurgeableState

	// Heap returns the heap the resource was allocated from, or nil.
	Heap() *Heap

	// HeapOffset returns the byte offset inside the owning heap, or 0 for
	// resources not backed by a heap.
	HeapOffset() uint64

	// AllocatedSize returns the number of heap or device bytes reserved
	// for the resource, including alignment padding.
	AllocatedSize() uint64

	// MakeAliasable irreversibly allows future heap allocations to reuse
	// the resource's bytes. Encoding commands against the resource after
	// this call is a fatal usage error.
	MakeAliasable()

	// IsAliasable reports whether MakeAliasable has been called.
	IsAliasable() bool

	// Destroy releases the resource's memory. Using the resource after
	// Destroy is a fatal usage error.
	Destroy()

	// state exposes the shared bookkeeping; it also closes the interface
	// to the package's own resource kinds.
	state() *resourceState
}

// resourceState is the bookkeeping shared by buffers and textures.
type resourceState struct {
	dev  *Device
	heap *Heap
	seq  uint64

	mu        sync.Mutex
	label     string
	storage   StorageMode
	hazard    HazardTrackingMode
	purgeable PurgeableState
	offset    uint64
	size      uint64
	aliasable bool
	destroyed bool

	// backing is the software device's memory for the resource. For
	// heap-backed resources it aliases the heap's arena at offset.
	backing []byte

	// hz orders accesses to tracked resources across concurrently
	// executing command buffers. Readers share, writers exclude.
	hz sync.RWMutex
}

func (r *resourceState) state() *resourceState { return r }

func (r *resourceState) Label() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.label
}

func (r *resourceState) SetLabel(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.label = label
}

func (r *resourceState) Device() *Device { return r.dev }

func (r *resourceState) StorageMode() StorageMode { return r.storage }

func (r *resourceState) HazardTrackingMode() HazardTrackingMode { return r.hazard }

func (r *resourceState) Heap() *Heap { return r.heap }

func (r *resourceState) HeapOffset() uint64 { return r.offset }

func (r *resourceState) AllocatedSize() uint64 { return r.size }

func (r *resourceState) SetPurgeableState(state PurgeableState) PurgeableState {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.purgeable
	if state == PurgeableStateKeepCurrent {
		return prev
	}
	r.purgeable = state
	if state == PurgeableStateEmpty {
		// Software reclaim: the bytes are gone, reads after this point
		// observe whatever the arena holds.
		for i := range r.backing {
			r.backing[i] = 0
		}
		Logger().Debug("resource contents discarded", "label", r.label, "size", r.size)
	}
	return prev
}

func (r *resourceState) MakeAliasable() {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		invalidUsage("MakeAliasable on destroyed resource %q", r.label)
	}
	if r.aliasable {
		r.mu.Unlock()
		return
	}
	r.aliasable = true
	r.mu.Unlock()

	if r.heap != nil {
		r.heap.release(r.offset, r.offset+r.size)
	}
}

func (r *resourceState) IsAliasable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aliasable
}

func (r *resourceState) Destroy() {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	r.destroyed = true
	aliasable := r.aliasable
	r.backing = nil
	r.mu.Unlock()

	// An aliasable resource already returned its bytes to the heap.
	if r.heap != nil && !aliasable {
		r.heap.release(r.offset, r.offset+r.size)
	}
}

// checkEncodable panics unless the resource may still appear in newly
// encoded commands.
func (r *resourceState) checkEncodable(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		invalidUsage("%s: resource %q has been destroyed", op, r.label)
	}
	if r.aliasable {
		invalidUsage("%s: resource %q has been made aliasable", op, r.label)
	}
}

// bytes returns the backing slice, or nil once destroyed.
func (r *resourceState) bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backing
}

// resolveHazard maps HazardTrackingModeDefault onto the mode inherited
// from the heap, or Tracked for direct device allocations.
func resolveHazard(requested, inherited HazardTrackingMode) HazardTrackingMode {
	if requested != HazardTrackingModeDefault {
		return requested
	}
	if inherited != HazardTrackingModeDefault {
		return inherited
	}
	return HazardTrackingModeTracked
}
