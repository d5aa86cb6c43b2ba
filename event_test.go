package cmdq

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSharedEventMonotonic(t *testing.T) {
	dev := newTestDevice(t)

	e := dev.NewSharedEvent()
	if e.SignaledValue() != 0 {
		t.Errorf("initial SignaledValue() = %d, want 0", e.SignaledValue())
	}

	e.SetSignaledValue(5)
	if e.SignaledValue() != 5 {
		t.Errorf("SignaledValue() = %d, want 5", e.SignaledValue())
	}

	// Signaling backwards is legal and a no-op.
	e.SetSignaledValue(3)
	if e.SignaledValue() != 5 {
		t.Errorf("SignaledValue() after lower signal = %d, want 5", e.SignaledValue())
	}

	// A wait for a value already reached returns immediately, even with a
	// zero timeout.
	if !e.WaitUntilSignaledValue(4, 0) {
		t.Error("WaitUntilSignaledValue(4, 0) = false, want true")
	}
	if e.WaitUntilSignaledValue(6, 0) {
		t.Error("WaitUntilSignaledValue(6, 0) = true, want false")
	}
}

func TestSharedEventWaitTimeout(t *testing.T) {
	dev := newTestDevice(t)

	e := dev.NewSharedEvent()
	start := time.Now()
	if e.WaitUntilSignaledValue(1, 10*time.Millisecond) {
		t.Error("WaitUntilSignaledValue() = true on an unsignaled event")
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("wait returned before the timeout elapsed")
	}
}

func TestSharedEventWaitWakesOnSignal(t *testing.T) {
	dev := newTestDevice(t)

	e := dev.NewSharedEvent()
	done := make(chan bool, 1)
	go func() {
		done <- e.WaitUntilSignaledValue(7, 5*time.Second)
	}()

	time.Sleep(time.Millisecond)
	e.SetSignaledValue(7)
	select {
	case ok := <-done:
		if !ok {
			t.Error("WaitUntilSignaledValue() = false, want true")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never woke")
	}
}

func TestNotifyListenerAtMostOnce(t *testing.T) {
	dev := newTestDevice(t)

	l := NewSharedEventListener()
	defer l.Close()

	e := dev.NewSharedEvent()

	var fired atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)
	for _, target := range []uint64{2, 4} {
		e.NotifyListener(l, target, func(_ *SharedEvent, value uint64) {
			if value < target {
				t.Errorf("notification at value %d before target %d", value, target)
			}
			fired.Add(1)
			wg.Done()
		})
	}

	// One signal jumps both thresholds; each notification fires once.
	e.SetSignaledValue(10)
	wg.Wait()
	if fired.Load() != 2 {
		t.Errorf("fired = %d, want 2", fired.Load())
	}

	// Further signals do not re-fire consumed notifications.
	e.SetSignaledValue(20)
	time.Sleep(5 * time.Millisecond)
	if fired.Load() != 2 {
		t.Errorf("fired after second signal = %d, want 2", fired.Load())
	}
}

func TestNotifyListenerAlreadyReached(t *testing.T) {
	dev := newTestDevice(t)

	l := NewSharedEventListener()
	defer l.Close()

	e := dev.NewSharedEvent()
	e.SetSignaledValue(9)

	done := make(chan uint64, 1)
	e.NotifyListener(l, 3, func(_ *SharedEvent, value uint64) {
		done <- value
	})
	select {
	case v := <-done:
		if v != 9 {
			t.Errorf("notification value = %d, want 9", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("notification for an already-reached value never fired")
	}
}

func TestSharedEventHandle(t *testing.T) {
	dev := newTestDevice(t)

	e := dev.NewSharedEvent()
	e.SetLabel("frame")

	h := e.NewSharedEventHandle()
	if h.ID == 0 {
		t.Error("handle ID = 0, want non-zero")
	}
	if h.Label != "frame" {
		t.Errorf("handle Label = %q, want %q", h.Label, "frame")
	}

	// Handles are stable across exports.
	if h2 := e.NewSharedEventHandle(); h2.ID != h.ID {
		t.Errorf("second export ID = %d, want %d", h2.ID, h.ID)
	}

	imported, err := dev.ImportSharedEventHandle(h)
	if err != nil {
		t.Fatalf("ImportSharedEventHandle() error = %v", err)
	}

	// Both sides observe one counter.
	e.SetSignaledValue(11)
	if imported.SignaledValue() != 11 {
		t.Errorf("imported SignaledValue() = %d, want 11", imported.SignaledValue())
	}
	imported.SetSignaledValue(12)
	if e.SignaledValue() != 12 {
		t.Errorf("exporter SignaledValue() = %d, want 12", e.SignaledValue())
	}
}

func TestImportUnknownHandle(t *testing.T) {
	dev := newTestDevice(t)

	if _, err := dev.ImportSharedEventHandle(&SharedEventHandle{ID: ^uint64(0)}); Kind(err) != KindInvalidUsage {
		t.Errorf("unknown handle error kind = %v, want InvalidUsage", Kind(err))
	}
	if _, err := dev.ImportSharedEventHandle(nil); Kind(err) != KindInvalidUsage {
		t.Errorf("nil handle error kind = %v, want InvalidUsage", Kind(err))
	}
}

func TestDeviceEventOrdersAcrossQueues(t *testing.T) {
	dev := newTestDevice(t)

	e := dev.NewEvent()
	producerQ := dev.NewCommandQueue()
	consumerQ := dev.NewCommandQueue()

	src, err := dev.NewBuffer(4, 0, ResourceOptions{})
	if err != nil {
		t.Fatalf("NewBuffer() error = %v", err)
	}
	dst, err := dev.NewBuffer(4, 0, ResourceOptions{})
	if err != nil {
		t.Fatalf("NewBuffer() error = %v", err)
	}

	// The consumer commits first but must not copy until the producer's
	// fill lands.
	consumer := consumerQ.CommandBuffer()
	consumer.WaitForEvent(e, 1)
	enc := consumer.BlitCommandEncoder()
	enc.CopyBuffer(src, 0, dst, 0, 4)
	enc.EndEncoding()
	consumer.Commit()

	producer := producerQ.CommandBuffer()
	penc := producer.BlitCommandEncoder()
	penc.FillBuffer(src, 0, 4, 0xAB)
	penc.EndEncoding()
	producer.SignalEvent(e, 1)
	producer.Commit()

	consumer.WaitUntilCompleted()
	if consumer.Status() != StatusCompleted {
		t.Fatalf("consumer status = %v, err = %v", consumer.Status(), consumer.Err())
	}
	for i, b := range dst.Contents() {
		if b != 0xAB {
			t.Errorf("dst[%d] = %#x, want 0xAB", i, b)
		}
	}
}
