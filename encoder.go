package cmdq

// BarrierScope selects the resource classes a memory barrier orders.
// Scopes combine with bitwise OR.
type BarrierScope uint8

const (
	// BarrierScopeBuffers orders buffer accesses.
	BarrierScopeBuffers BarrierScope = 1 << iota

	// BarrierScopeTextures orders texture accesses.
	BarrierScopeTextures

	// BarrierScopeRenderTargets orders render target accesses.
	BarrierScopeRenderTargets
)

// CommandEncoder is the contract shared by every encoder kind.
//
// Exactly one encoder may be open on a command buffer at a time; opening
// the next requires EndEncoding on the previous. Encoders are write-only
// cursors: every method appends to the owning buffer's command stream and
// returns immediately. None of the methods are safe for concurrent use —
// encoding a command buffer is single-goroutine by contract.
type CommandEncoder interface {
	// Label returns the debug label of the encoder.
	Label() string

	// SetLabel sets the debug label of the encoder.
	SetLabel(label string)

	// EndEncoding closes the encoder. Every encoder must be ended before
	// the next one opens and before the buffer commits. Ending twice is a
	// fatal usage error, as is ending with unbalanced debug groups.
	EndEncoding()

	// PushDebugGroup opens a named group in captures. Groups nest and
	// must be balanced by EndEncoding.
	PushDebugGroup(name string)

	// PopDebugGroup closes the innermost group.
	PopDebugGroup()

	// InsertDebugSignpost records a tooling marker with no execution
	// effect.
	InsertDebugSignpost(name string)

	// UpdateFence signals the fence at this point of the encoder's
	// stream. A fence may be updated at most once per encoder.
	UpdateFence(f *Fence)

	// WaitForFence holds commands encoded after this point — not prior
	// ones — until the fence's observed update has retired.
	WaitForFence(f *Fence)

	// UseResource declares how subsequent commands in this encoder access
	// a resource. Mandatory for untracked resources that the commands do
	// not name directly; a hint for tracked ones.
	UseResource(r Resource, usage ResourceUsage)
}

// commandEncoder is the state shared by the concrete encoder kinds.
type commandEncoder struct {
	cb    *CommandBuffer
	name  string // encoder kind, for failure messages
	label string
	ended bool

	debugDepth int

	// fenceUpdated enforces the one-update-per-encoder contract.
	fenceUpdated map[*Fence]bool

	// declaredReads/declaredWrites accumulate UseResource declarations;
	// dispatch commands snapshot them as their hazard sets.
	declaredReads  []Resource
	declaredWrites []Resource
}

func (e *commandEncoder) Label() string { return e.label }

func (e *commandEncoder) SetLabel(label string) { e.label = label }

// checkOpen panics unless the encoder can still accept commands.
func (e *commandEncoder) checkOpen(op string) {
	if e.ended {
		invalidUsage("%s on ended %s encoder %q", op, e.name, e.label)
	}
}

// encode appends a command to the owning buffer's stream.
func (e *commandEncoder) encode(op string, c command) {
	e.checkOpen(op)
	e.cb.appendCommand(c)
}

func (e *commandEncoder) EndEncoding() {
	if e.ended {
		invalidUsage("EndEncoding called twice on %s encoder %q", e.name, e.label)
	}
	if e.debugDepth != 0 {
		invalidUsage("%s encoder %q ended with %d unbalanced debug groups",
			e.name, e.label, e.debugDepth)
	}
	e.ended = true
	e.cb.encoderDidEnd()
}

func (e *commandEncoder) PushDebugGroup(name string) {
	e.debugDepth++
	e.encode("PushDebugGroup", &pushDebugGroupCmd{name: name})
}

func (e *commandEncoder) PopDebugGroup() {
	if e.debugDepth == 0 {
		invalidUsage("PopDebugGroup without matching push on %s encoder %q", e.name, e.label)
	}
	e.debugDepth--
	e.encode("PopDebugGroup", &popDebugGroupCmd{})
}

func (e *commandEncoder) InsertDebugSignpost(name string) {
	e.encode("InsertDebugSignpost", &signpostCmd{name: name})
}

func (e *commandEncoder) UpdateFence(f *Fence) {
	if f == nil {
		invalidUsage("UpdateFence with nil fence")
	}
	if e.fenceUpdated[f] {
		invalidUsage("fence %q updated twice by %s encoder %q", f.Label(), e.name, e.label)
	}
	if e.fenceUpdated == nil {
		e.fenceUpdated = make(map[*Fence]bool)
	}
	e.fenceUpdated[f] = true
	e.encode("UpdateFence", &updateFenceCmd{fence: f})
}

func (e *commandEncoder) WaitForFence(f *Fence) {
	if f == nil {
		invalidUsage("WaitForFence with nil fence")
	}
	e.encode("WaitForFence", &waitFenceCmd{fence: f})
}

func (e *commandEncoder) UseResource(r Resource, usage ResourceUsage) {
	if r == nil || usage == 0 {
		invalidUsage("UseResource requires a resource and a usage")
	}
	e.checkOpen("UseResource")
	r.state().checkEncodable("UseResource")
	e.cb.retain(r)
	if usage&UsageWrite != 0 {
		e.declaredWrites = append(e.declaredWrites, r)
	} else {
		e.declaredReads = append(e.declaredReads, r)
	}
}
