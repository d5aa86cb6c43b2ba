package cmdq

import "github.com/gogpu/gputypes"

// TextureDescriptor describes a texture allocation.
//
// Format, dimension and extent types come from gogpu/gputypes so that
// descriptors interoperate with the rest of the gogpu ecosystem. The core
// does not interpret texel contents; the descriptor exists to size and
// place the allocation.
type TextureDescriptor struct {
	// Label is an optional debug label for the texture.
	Label string

	// Dimension is the texture dimensionality. The zero value is treated
	// as TextureDimension2D.
	Dimension gputypes.TextureDimension

	// Size is the extent in texels. DepthOrArrayLayers of 0 is treated
	// as 1.
	Size gputypes.Extent3D

	// Format is the texel format. Must not be TextureFormatUndefined.
	Format gputypes.TextureFormat

	// MipLevelCount is the number of mip levels. 0 is treated as 1.
	MipLevelCount uint32

	// SampleCount is the multisample count. 0 is treated as 1.
	SampleCount uint32

	// Usage specifies how the texture may be used.
	Usage gputypes.TextureUsage

	// StorageMode places the allocation. Ignored for heap textures, which
	// inherit the heap's mode.
	StorageMode StorageMode

	// HazardTracking selects automatic or manual ordering. The zero value
	// inherits from the heap, or Tracked for device allocations.
	HazardTracking HazardTrackingMode
}

// normalize fills in the defaulted fields.
func (d *TextureDescriptor) normalize() TextureDescriptor {
	n := *d
	if n.Size.Width == 0 {
		n.Size.Width = 1
	}
	if n.Size.Height == 0 {
		n.Size.Height = 1
	}
	if n.Size.DepthOrArrayLayers == 0 {
		n.Size.DepthOrArrayLayers = 1
	}
	if n.MipLevelCount == 0 {
		n.MipLevelCount = 1
	}
	if n.SampleCount == 0 {
		n.SampleCount = 1
	}
	return n
}

// validate reports a descriptor the device cannot allocate.
func (d *TextureDescriptor) validate() error {
	if d.Format == gputypes.TextureFormatUndefined {
		return errorf(KindInvalidUsage, "texture descriptor has undefined format")
	}
	return nil
}

// allocationSize returns the bytes the device reserves for the texture:
// every mip level of every layer, plus multisample storage.
func (d *TextureDescriptor) allocationSize() uint64 {
	texel := texelSize(d.Format)
	var total uint64
	w, h := uint64(d.Size.Width), uint64(d.Size.Height)
	for level := uint32(0); level < d.MipLevelCount; level++ {
		total += w * h * texel
		if w > 1 {
			w /= 2
		}
		if h > 1 {
			h /= 2
		}
	}
	return total * uint64(d.Size.DepthOrArrayLayers) * uint64(d.SampleCount)
}

// texelSize returns the bytes per texel for the formats the bookkeeping
// distinguishes. Unknown formats are costed at four bytes.
func texelSize(f gputypes.TextureFormat) uint64 {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureFormatDepth24PlusStencil8:
		return 4
	default:
		return 4
	}
}

// Texture is a dimensioned allocation of device memory.
type Texture struct {
	resourceState

	dimension gputypes.TextureDimension
	extent    gputypes.Extent3D
	format    gputypes.TextureFormat
	mipLevels uint32
	samples   uint32
	usage     gputypes.TextureUsage
}

// newTexture wires up the shared resource bookkeeping for a texture.
func newTexture(dev *Device, heap *Heap, desc TextureDescriptor,
	storage StorageMode, hazard HazardTrackingMode, offset uint64, backing []byte) *Texture {
	return &Texture{
		resourceState: resourceState{
			dev:       dev,
			heap:      heap,
			seq:       resourceSeq.Add(1),
			label:     desc.Label,
			storage:   storage,
			hazard:    hazard,
			purgeable: PurgeableStateNonVolatile,
			offset:    offset,
			size:      desc.allocationSize(),
			backing:   backing,
		},
		dimension: desc.Dimension,
		extent:    desc.Size,
		format:    desc.Format,
		mipLevels: desc.MipLevelCount,
		samples:   desc.SampleCount,
		usage:     desc.Usage,
	}
}

// Dimension returns the texture dimensionality.
func (t *Texture) Dimension() gputypes.TextureDimension { return t.dimension }

// Width returns the texture width in texels.
func (t *Texture) Width() uint32 { return t.extent.Width }

// Height returns the texture height in texels.
func (t *Texture) Height() uint32 { return t.extent.Height }

// DepthOrArrayLayers returns the depth or layer count.
func (t *Texture) DepthOrArrayLayers() uint32 { return t.extent.DepthOrArrayLayers }

// Format returns the texel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// MipLevelCount returns the number of mip levels.
func (t *Texture) MipLevelCount() uint32 { return t.mipLevels }

// SampleCount returns the multisample count.
func (t *Texture) SampleCount() uint32 { return t.samples }

// Usage returns the usage flags the texture was created with.
func (t *Texture) Usage() gputypes.TextureUsage { return t.usage }
