package cmdq

import "sort"

// execute runs one command of a buffer's stream on the executor
// goroutine. Streams are in-order: a command returns only when its effects
// are visible to the rest of this stream.
func (d *Device) execute(c command) error {
	switch c := c.(type) {
	case *copyBufferCmd:
		return d.execCopy(c)

	case *fillBufferCmd:
		return d.execFill(c)

	case *dispatchCmd:
		unlock := lockHazards(c.hazards())
		c.pipeline.fn(c.x, c.y, c.z)
		unlock()
		return nil

	case *updateFenceCmd:
		Logger().Debug("fence update retired", "fence", c.fence.Label(), "generation", c.generation)
		c.fence.retire(c.generation)
		return nil

	case *waitFenceCmd:
		return c.fence.awaitRetired(c.target)

	case *signalEventCmd:
		Logger().Debug("event signaled", "event", c.event.Label(), "value", c.value)
		c.event.state().signal(c.value)
		return nil

	case *waitEventCmd:
		return c.event.state().awaitValue(c.value)

	case *memoryBarrierCmd:
		// Streams execute in order, so in-encoder ordering already holds;
		// the command remains in the stream for captures.
		return nil

	case *signpostCmd:
		Logger().Debug("signpost", "name", c.name)
		return nil

	case *pushDebugGroupCmd:
		Logger().Debug("debug group push", "name", c.name)
		return nil

	case *popDebugGroupCmd:
		Logger().Debug("debug group pop")
		return nil

	default:
		return errorf(KindExecutionError, "unknown command %s", c.kind())
	}
}

func (d *Device) execCopy(c *copyBufferCmd) error {
	if c.srcOff+c.size > c.src.Length() || c.srcOff+c.size < c.srcOff {
		return errorf(KindExecutionError,
			"copy source [%d, %d) outside buffer %q of length %d",
			c.srcOff, c.srcOff+c.size, c.src.Label(), c.src.Length())
	}
	if c.dstOff+c.size > c.dst.Length() || c.dstOff+c.size < c.dstOff {
		return errorf(KindExecutionError,
			"copy destination [%d, %d) outside buffer %q of length %d",
			c.dstOff, c.dstOff+c.size, c.dst.Label(), c.dst.Length())
	}
	srcB, dstB := c.src.bytes(), c.dst.bytes()
	if srcB == nil || dstB == nil {
		return errorf(KindExecutionError, "copy touches a destroyed buffer")
	}

	unlock := lockHazards(c.hazards())
	copy(dstB[c.dstOff:c.dstOff+c.size], srcB[c.srcOff:c.srcOff+c.size])
	unlock()
	return nil
}

func (d *Device) execFill(c *fillBufferCmd) error {
	if c.off+c.size > c.dst.Length() || c.off+c.size < c.off {
		return errorf(KindExecutionError,
			"fill [%d, %d) outside buffer %q of length %d",
			c.off, c.off+c.size, c.dst.Label(), c.dst.Length())
	}
	dstB := c.dst.bytes()
	if dstB == nil {
		return errorf(KindExecutionError, "fill touches a destroyed buffer")
	}

	unlock := lockHazards(c.hazards())
	for i := c.off; i < c.off+c.size; i++ {
		dstB[i] = c.value
	}
	unlock()
	return nil
}

// lockHazards orders a command against concurrently executing streams for
// its tracked resources: readers share, writers exclude. Untracked
// resources are skipped — ordering them is the application's business.
// Locks are taken in resource creation order so overlapping streams never
// deadlock.
func lockHazards(reads, writes []Resource) (unlock func()) {
	type hazard struct {
		st    *resourceState
		write bool
	}

	byState := make(map[*resourceState]bool, len(reads)+len(writes))
	for _, r := range writes {
		if r.HazardTrackingMode() == HazardTrackingModeTracked {
			byState[r.state()] = true
		}
	}
	for _, r := range reads {
		if r.HazardTrackingMode() != HazardTrackingModeTracked {
			continue
		}
		st := r.state()
		if _, seen := byState[st]; !seen {
			byState[st] = false
		}
	}
	if len(byState) == 0 {
		return func() {}
	}

	ordered := make([]hazard, 0, len(byState))
	for st, write := range byState {
		ordered = append(ordered, hazard{st: st, write: write})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].st.seq < ordered[j].st.seq })

	for _, h := range ordered {
		if h.write {
			h.st.hz.Lock()
		} else {
			h.st.hz.RLock()
		}
	}
	return func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			if ordered[i].write {
				ordered[i].st.hz.Unlock()
			} else {
				ordered[i].st.hz.RUnlock()
			}
		}
	}
}
