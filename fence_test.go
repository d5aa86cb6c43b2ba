package cmdq

import (
	"testing"
	"time"
)

func TestFenceOrdersProducerConsumer(t *testing.T) {
	dev := newTestDevice(t)
	producerQ := dev.NewCommandQueue()
	consumerQ := dev.NewCommandQueue()

	f := dev.NewFence()
	f.SetLabel("upload")
	if f.Label() != "upload" {
		t.Errorf("Label() = %q, want %q", f.Label(), "upload")
	}
	if f.Device() != dev {
		t.Error("Device() should return the creating device")
	}

	shared, err := dev.NewBuffer(8, 0, ResourceOptions{})
	if err != nil {
		t.Fatalf("NewBuffer() error = %v", err)
	}
	out, err := dev.NewBuffer(8, 0, ResourceOptions{})
	if err != nil {
		t.Fatalf("NewBuffer() error = %v", err)
	}

	// Run the rendezvous repeatedly; the consumer must always observe the
	// producer's bytes regardless of goroutine interleaving.
	for round := range 50 {
		value := byte(round + 1)

		producer := producerQ.CommandBuffer()
		penc := producer.BlitCommandEncoder()
		penc.FillBuffer(shared, 0, 8, value)
		penc.UpdateFence(f)
		penc.EndEncoding()

		consumer := consumerQ.CommandBuffer()
		cenc := consumer.BlitCommandEncoder()
		cenc.WaitForFence(f)
		cenc.CopyBuffer(shared, 0, out, 0, 8)
		cenc.EndEncoding()

		// The wait observes the most recent update scheduled before it, so
		// schedule the producer before committing the consumer.
		producer.Commit()
		producer.WaitUntilScheduled()
		consumer.Commit()

		consumer.WaitUntilCompleted()
		if consumer.Status() != StatusCompleted {
			t.Fatalf("round %d: consumer status = %v, err = %v",
				round, consumer.Status(), consumer.Err())
		}
		for i, b := range out.Contents() {
			if b != value {
				t.Fatalf("round %d: out[%d] = %#x, want %#x", round, i, b, value)
			}
		}
		producer.WaitUntilCompleted()
	}
}

func TestFenceWaitWithoutUpdateHolds(t *testing.T) {
	dev := newTestDevice(t)
	q := dev.NewCommandQueue()

	f := dev.NewFence()

	// A wait scheduled before any update holds its stream until the first
	// update retires.
	waiter := q.CommandBuffer()
	enc := waiter.BlitCommandEncoder()
	enc.WaitForFence(f)
	enc.EndEncoding()
	waiter.Commit()

	waiter.WaitUntilScheduled()
	time.Sleep(10 * time.Millisecond)
	if s := waiter.Status(); s >= StatusCompleted {
		t.Fatalf("waiter reached %v with no fence update", s)
	}

	updater := q.CommandBuffer()
	uenc := updater.BlitCommandEncoder()
	uenc.UpdateFence(f)
	uenc.EndEncoding()
	updater.Commit()

	waiter.WaitUntilCompleted()
	if waiter.Status() != StatusCompleted {
		t.Fatalf("waiter status = %v, err = %v", waiter.Status(), waiter.Err())
	}
}

func TestFenceWaitObservesPriorUpdateOnly(t *testing.T) {
	dev := newTestDevice(t)
	q := dev.NewCommandQueue()

	f := dev.NewFence()
	gate := dev.NewSharedEvent()

	// First buffer updates the fence behind an event gate; second waits on
	// the fence. The wait targets the first update even though that update
	// has not retired at commit time.
	updater := q.CommandBuffer()
	updater.WaitForEvent(gate, 1)
	uenc := updater.BlitCommandEncoder()
	uenc.UpdateFence(f)
	uenc.EndEncoding()
	updater.Commit()

	waiter := q.CommandBuffer()
	wenc := waiter.BlitCommandEncoder()
	wenc.WaitForFence(f)
	wenc.EndEncoding()
	waiter.Commit()

	waiter.WaitUntilScheduled()
	time.Sleep(10 * time.Millisecond)
	if s := waiter.Status(); s >= StatusCompleted {
		t.Fatalf("waiter reached %v before the gated update retired", s)
	}

	gate.SetSignaledValue(1)
	waiter.WaitUntilCompleted()
	updater.WaitUntilCompleted()
}

func TestFenceReuse(t *testing.T) {
	dev := newTestDevice(t)
	q := dev.NewCommandQueue()

	f := dev.NewFence()
	b, err := dev.NewBuffer(4, 0, ResourceOptions{})
	if err != nil {
		t.Fatalf("NewBuffer() error = %v", err)
	}

	// update -> wait -> update -> wait on one fence is legal.
	for range 4 {
		cb := q.CommandBuffer()
		enc := cb.BlitCommandEncoder()
		enc.FillBuffer(b, 0, 4, 1)
		enc.UpdateFence(f)
		enc.EndEncoding()
		cb.Commit()

		waiter := q.CommandBuffer()
		wenc := waiter.BlitCommandEncoder()
		wenc.WaitForFence(f)
		wenc.EndEncoding()
		waiter.Commit()
		waiter.WaitUntilCompleted()
		if waiter.Status() != StatusCompleted {
			t.Fatalf("waiter status = %v, err = %v", waiter.Status(), waiter.Err())
		}
	}
}
