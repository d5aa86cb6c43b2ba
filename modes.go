package cmdq

// StorageMode describes where a resource's memory lives and who can see it.
type StorageMode int

const (
	// StorageModeShared places the resource in memory visible to both the
	// host and the device. Contents() is available on shared buffers.
	StorageModeShared StorageMode = iota

	// StorageModeManaged keeps a host-managed copy alongside the device
	// copy. The host is responsible for flushing modified ranges.
	StorageModeManaged

	// StorageModePrivate places the resource in device-only memory. The
	// host cannot address its contents.
	StorageModePrivate

	// StorageModeMemoryless is device-only transient memory with no
	// backing store; contents do not persist between command buffers.
	StorageModeMemoryless
)

// storageModeNames maps StorageMode values to their string representation.
var storageModeNames = [...]string{
	StorageModeShared:     "Shared",
	StorageModeManaged:    "Managed",
	StorageModePrivate:    "Private",
	StorageModeMemoryless: "Memoryless",
}

// String returns the string representation of a StorageMode.
func (m StorageMode) String() string {
	if m >= 0 && int(m) < len(storageModeNames) {
		return storageModeNames[m]
	}
	return "Unknown"
}

// HazardTrackingMode selects who orders accesses to a resource.
type HazardTrackingMode int

const (
	// HazardTrackingModeDefault inherits the mode of the parent heap, or
	// resolves to Tracked for resources allocated directly from a device.
	HazardTrackingModeDefault HazardTrackingMode = iota

	// HazardTrackingModeUntracked leaves ordering entirely to the
	// application. Conflicting accesses without an intervening fence,
	// event or barrier are a silent data race, not a reported error.
	HazardTrackingModeUntracked

	// HazardTrackingModeTracked makes the runtime insert whatever ordering
	// is needed so that program order is observably correct, at a
	// scheduling cost the application accepts by choosing this mode.
	HazardTrackingModeTracked
)

// hazardModeNames maps HazardTrackingMode values to their string representation.
var hazardModeNames = [...]string{
	HazardTrackingModeDefault:   "Default",
	HazardTrackingModeUntracked: "Untracked",
	HazardTrackingModeTracked:   "Tracked",
}

// String returns the string representation of a HazardTrackingMode.
func (m HazardTrackingMode) String() string {
	if m >= 0 && int(m) < len(hazardModeNames) {
		return hazardModeNames[m]
	}
	return "Unknown"
}

// PurgeableState is the discardability flag that lets the runtime reclaim
// a resource's contents under memory pressure.
type PurgeableState int

const (
	// PurgeableStateKeepCurrent queries the current state without
	// changing it.
	PurgeableStateKeepCurrent PurgeableState = iota

	// PurgeableStateNonVolatile pins the contents; they may not be
	// discarded.
	PurgeableStateNonVolatile

	// PurgeableStateVolatile allows the runtime to discard the contents
	// at any time.
	PurgeableStateVolatile

	// PurgeableStateEmpty marks the contents as discarded. Reads return
	// undefined data until the state is restored and the contents
	// rewritten.
	PurgeableStateEmpty
)

// purgeableStateNames maps PurgeableState values to their string representation.
var purgeableStateNames = [...]string{
	PurgeableStateKeepCurrent: "KeepCurrent",
	PurgeableStateNonVolatile: "NonVolatile",
	PurgeableStateVolatile:    "Volatile",
	PurgeableStateEmpty:       "Empty",
}

// String returns the string representation of a PurgeableState.
func (s PurgeableState) String() string {
	if s >= 0 && int(s) < len(purgeableStateNames) {
		return purgeableStateNames[s]
	}
	return "Unknown"
}

// HeapType selects the placement policy of a heap.
type HeapType int

const (
	// HeapTypeAutomatic lets the heap choose offsets for each allocation.
	HeapTypeAutomatic HeapType = iota

	// HeapTypePlacement lets the caller choose offsets. The caller is
	// responsible for non-overlap unless prior resources at those bytes
	// have been made aliasable.
	HeapTypePlacement

	// HeapTypeSparse backs resources lazily. Bookkeeping behaves like
	// HeapTypeAutomatic; residency management is left to the device.
	HeapTypeSparse
)

// heapTypeNames maps HeapType values to their string representation.
var heapTypeNames = [...]string{
	HeapTypeAutomatic: "Automatic",
	HeapTypePlacement: "Placement",
	HeapTypeSparse:    "Sparse",
}

// String returns the string representation of a HeapType.
func (t HeapType) String() string {
	if t >= 0 && int(t) < len(heapTypeNames) {
		return heapTypeNames[t]
	}
	return "Unknown"
}

// ResourceUsage declares how an encoder will access a resource.
// Usages combine with bitwise OR; UsageRead|UsageWrite declares ReadWrite.
type ResourceUsage uint8

const (
	// UsageRead declares read-only access.
	UsageRead ResourceUsage = 1 << iota

	// UsageWrite declares write access.
	UsageWrite
)

// ResourceOptions carries the allocation-time knobs shared by buffers and
// textures created outside a texture descriptor.
type ResourceOptions struct {
	// StorageMode places the allocation. The zero value is
	// StorageModeShared.
	StorageMode StorageMode

	// HazardTracking selects automatic or manual ordering. The zero value
	// inherits from the heap, or Tracked for device allocations.
	HazardTracking HazardTrackingMode
}
