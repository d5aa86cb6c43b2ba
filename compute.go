package cmdq

// ComputeCommandEncoder encodes compute dispatches against opaque pipeline
// handles. It carries the shared encoder contract for fences, debug groups
// and resource declarations.
type ComputeCommandEncoder struct {
	commandEncoder

	pipeline *ComputePipelineState
}

// SetComputePipelineState binds the pipeline subsequent dispatches run.
func (e *ComputeCommandEncoder) SetComputePipelineState(p *ComputePipelineState) {
	if p == nil {
		invalidUsage("SetComputePipelineState with nil pipeline")
	}
	e.checkOpen("SetComputePipelineState")
	e.pipeline = p
}

// DispatchThreadgroups runs the bound pipeline over an x×y×z grid.
// Dispatching without a bound pipeline is a fatal usage error.
//
// The dispatch's hazard set is the encoder's UseResource declarations at
// this point; the runtime orders the dispatch against other streams for
// the tracked resources among them.
func (e *ComputeCommandEncoder) DispatchThreadgroups(x, y, z uint32) {
	if e.pipeline == nil {
		invalidUsage("DispatchThreadgroups without a bound pipeline on encoder %q", e.label)
	}
	reads := make([]Resource, len(e.declaredReads))
	copy(reads, e.declaredReads)
	writes := make([]Resource, len(e.declaredWrites))
	copy(writes, e.declaredWrites)
	e.encode("DispatchThreadgroups", &dispatchCmd{
		pipeline: e.pipeline,
		x:        x, y: y, z: z,
		declaredReads:  reads,
		declaredWrites: writes,
	})
}

// MemoryBarrier orders commands encoded before it against commands encoded
// after it, for the given resource scope, within this encoder only.
// Ordering across encoders or queues is the business of fences and events.
func (e *ComputeCommandEncoder) MemoryBarrier(scope BarrierScope) {
	if scope == 0 {
		invalidUsage("MemoryBarrier with empty scope")
	}
	e.encode("MemoryBarrier", &memoryBarrierCmd{scope: scope})
}
