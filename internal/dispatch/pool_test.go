package dispatch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsTasks(t *testing.T) {
	p := New(4)
	defer p.Close()

	if p.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", p.Workers())
	}
	if !p.Running() {
		t.Error("Running() = false for a fresh pool")
	}

	var count atomic.Int32
	var wg sync.WaitGroup
	const tasks = 100
	wg.Add(tasks)
	for range tasks {
		p.Submit(func() {
			count.Add(1)
			wg.Done()
		})
	}
	wg.Wait()
	if count.Load() != tasks {
		t.Errorf("ran %d tasks, want %d", count.Load(), tasks)
	}
}

func TestPoolDefaultWorkers(t *testing.T) {
	p := New(0)
	defer p.Close()
	if p.Workers() <= 0 {
		t.Errorf("Workers() = %d, want > 0", p.Workers())
	}
}

func TestPoolCloseDeliversBacklog(t *testing.T) {
	p := New(1)

	gate := make(chan struct{})
	var count atomic.Int32
	p.Submit(func() { <-gate })
	for range 5 {
		p.Submit(func() { count.Add(1) })
	}
	close(gate)
	p.Close()
	if count.Load() != 5 {
		t.Errorf("delivered %d queued tasks after Close, want 5", count.Load())
	}
	if p.Running() {
		t.Error("Running() = true after Close")
	}
}

func TestPoolSubmitAfterCloseRunsInline(t *testing.T) {
	p := New(2)
	p.Close()

	ran := false
	p.Submit(func() { ran = true })
	if !ran {
		t.Error("Submit after Close did not run the task")
	}
}

func TestPoolCloseIdempotent(t *testing.T) {
	p := New(2)
	p.Close()
	p.Close()
}

func TestPoolStealing(t *testing.T) {
	p := New(2)
	defer p.Close()

	// Block one worker; the other must still drain the backlog by
	// stealing.
	gate := make(chan struct{})
	defer close(gate)
	p.Submit(func() { <-gate })

	var wg sync.WaitGroup
	const tasks = 20
	wg.Add(tasks)
	for range tasks {
		p.Submit(func() { wg.Done() })
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tasks stalled behind a blocked worker")
	}
}

func TestPoolSubmitNil(t *testing.T) {
	p := New(1)
	defer p.Close()
	p.Submit(nil)
	if p.Backlog() != 0 {
		t.Errorf("Backlog() = %d after nil submit, want 0", p.Backlog())
	}
}
