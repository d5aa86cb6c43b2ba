package cmdq

// ComputePipelineState is an opaque handle to compiled compute work.
//
// The core never inspects pipeline contents; it binds and dispatches them.
// On the software device a pipeline is backed by a host function invoked
// once per dispatch with the threadgroup grid, which is also the injection
// point for fake workloads in tests.
type ComputePipelineState struct {
	dev   *Device
	label string
	fn    func(gridX, gridY, gridZ uint32)
}

// NewComputePipelineState wraps compiled work in a pipeline handle.
// Compilation itself happens outside this module; fn is the executable
// form the device runs.
func (d *Device) NewComputePipelineState(label string, fn func(gridX, gridY, gridZ uint32)) (*ComputePipelineState, error) {
	if err := d.failIfLost("NewComputePipelineState"); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, errorf(KindInvalidUsage, "compute pipeline %q has no executable function", label)
	}
	return &ComputePipelineState{dev: d, label: label, fn: fn}, nil
}

// Label returns the debug label of the pipeline.
func (p *ComputePipelineState) Label() string { return p.label }

// Device returns the device the pipeline was created from.
func (p *ComputePipelineState) Device() *Device { return p.dev }
