// Package cmdq implements an explicit GPU command submission and
// synchronization core for Go.
//
// # Overview
//
// cmdq models the submission layer that sits underneath explicit graphics
// and compute APIs: command queues, command buffers, command encoders,
// fences, counter events and memory heaps. Work is encoded on application
// goroutines, committed to a queue, and executed asynchronously by the
// device runtime. Completion is reported through handlers and blocking
// waits, never by blocking the committing goroutine.
//
// # Quick Start
//
//	dev, err := cmdq.New()
//	if err != nil {
//	    // no device available
//	}
//	defer dev.Destroy()
//
//	q := dev.NewCommandQueue()
//	cb := q.CommandBuffer()
//
//	enc := cb.BlitCommandEncoder()
//	enc.FillBuffer(buf, 0, buf.Length(), 0xff)
//	enc.EndEncoding()
//
//	cb.AddCompletedHandler(func(cb *cmdq.CommandBuffer) {
//	    // runs on a runtime-owned goroutine after execution
//	})
//	cb.Commit()
//	cb.WaitUntilCompleted()
//
// # Ordering
//
// Command buffers committed to the same queue begin execution in commit
// order. Completion order may diverge once fences or events allow it.
// Fences order encoder streams that share a device; events are monotonic
// 64-bit counters that additionally support CPU-side waits, listener
// notification and export across process boundaries.
//
// # Memory model
//
// Heaps are pre-reserved arenas that sub-allocate buffers and textures,
// either automatically or at caller-chosen offsets. Resources carry a
// storage mode, a hazard tracking mode and a purgeable state. For tracked
// resources the runtime inserts the ordering required to make program
// order observable; untracked resources are ordered only by the fences,
// events and barriers the application supplies.
//
// # Architecture
//
// The library is organized into:
//   - Public API: Device, CommandQueue, CommandBuffer, encoders,
//     Fence, Event, SharedEvent, Heap, Buffer, Texture
//   - Internal: dispatch (handler delivery worker pool)
//
// Pipeline state objects are opaque handles: the core accepts and binds
// them but never inspects their contents. Shader compilation, pipeline
// construction and pixel format semantics live outside this module.
package cmdq
