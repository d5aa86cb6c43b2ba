package cmdq

// BlitCommandEncoder encodes memory movement commands: buffer copies and
// fills. It carries the shared encoder contract for fences, debug groups
// and resource declarations.
type BlitCommandEncoder struct {
	commandEncoder
}

// CopyBuffer copies size bytes from src at srcOffset to dst at dstOffset.
// Ranges are validated when the command executes; a range outside either
// buffer faults the command buffer with KindExecutionError.
func (e *BlitCommandEncoder) CopyBuffer(src *Buffer, srcOffset uint64, dst *Buffer, dstOffset uint64, size uint64) {
	if src == nil || dst == nil {
		invalidUsage("CopyBuffer with nil buffer")
	}
	src.checkEncodable("CopyBuffer")
	dst.checkEncodable("CopyBuffer")
	e.cb.retain(src)
	e.cb.retain(dst)
	e.encode("CopyBuffer", &copyBufferCmd{
		src: src, dst: dst,
		srcOff: srcOffset, dstOff: dstOffset,
		size: size,
	})
}

// FillBuffer sets size bytes of dst starting at offset to value.
// The range is validated when the command executes.
func (e *BlitCommandEncoder) FillBuffer(dst *Buffer, offset, size uint64, value byte) {
	if dst == nil {
		invalidUsage("FillBuffer with nil buffer")
	}
	dst.checkEncodable("FillBuffer")
	e.cb.retain(dst)
	e.encode("FillBuffer", &fillBufferCmd{
		dst: dst, off: offset, size: size, value: value,
	})
}
