package cmdq

import "sync"

// Fence is a queue-local ordering token without a carried value.
//
// A fence is updated by at most one encoder per pass and waited on by any
// number of later-opened encoders on any queue of the same device. Update
// and wait are encoded commands, never blocking calls: the encoding
// goroutine proceeds immediately, and the device refuses to run the
// waiting stream past the wait until the observed update has retired.
//
// A wait observes the most recent update scheduled before it. A wait with
// no prior update stays unsatisfied until the first future update retires.
type Fence struct {
	dev *Device

	mu    sync.Mutex
	cond  *sync.Cond
	label string

	// enqueued counts updates assigned a position in device schedule
	// order; retired counts updates whose producing stream has executed
	// past the update point.
	enqueued uint64
	retired  uint64
}

// NewFence creates a fence scoped to the device.
func (d *Device) NewFence() *Fence {
	f := &Fence{dev: d}
	f.cond = sync.NewCond(&f.mu)
	d.trackFence(f)
	return f
}

// Label returns the debug label of the fence.
func (f *Fence) Label() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.label
}

// SetLabel sets the debug label of the fence.
func (f *Fence) SetLabel(label string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.label = label
}

// Device returns the device the fence was created from.
func (f *Fence) Device() *Device { return f.dev }

// assignUpdate gives an update command its position in schedule order.
// Called by the queue scheduler, in commit order.
func (f *Fence) assignUpdate() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued++
	return f.enqueued
}

// assignWait captures the update generation a wait command must observe.
// A wait scheduled before any update waits for the first one; a wait never
// depends on an update scheduled after it.
func (f *Fence) assignWait() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueued == 0 {
		return 1
	}
	return f.enqueued
}

// retire marks an update as executed and wakes waiting streams.
func (f *Fence) retire(generation uint64) {
	f.mu.Lock()
	if generation > f.retired {
		f.retired = generation
	}
	f.mu.Unlock()
	f.cond.Broadcast()
}

// awaitRetired blocks the executing stream until the target update has
// retired, or fails if the device is lost.
func (f *Fence) awaitRetired(target uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.retired < target {
		if f.dev.isLost() {
			return errorf(KindDeviceLost, "device lost while waiting for fence %q", f.label)
		}
		f.cond.Wait()
	}
	return nil
}

// interrupt wakes blocked streams so they can observe device loss.
func (f *Fence) interrupt() {
	f.cond.Broadcast()
}
