// Package dispatch delivers runtime notifications asynchronously.
//
// The command buffer runtime must fire scheduled/completed handlers and
// event listener callbacks on goroutines it owns, without ever blocking
// the scheduler or executor goroutines on application code. Pool is a
// small work-stealing worker pool dedicated to that delivery.
package dispatch

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a pool of goroutines for notification delivery.
//
// Each worker has its own queue and steals from the others when idle, so a
// slow application callback on one worker does not starve delivery on the
// rest.
//
// Thread safety: Pool is safe for concurrent use.
type Pool struct {
	// workers is the number of worker goroutines.
	workers int

	// queues holds per-worker task queues.
	queues []chan func()

	// done signals workers to stop.
	done chan struct{}

	// wg waits for all workers to finish.
	wg sync.WaitGroup

	// running indicates whether the pool is accepting tasks.
	running atomic.Bool
}

// New creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
// Workers start immediately and wait for tasks.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Per-queue buffer: enough to absorb a burst of completions without
	// stalling the executor that submits them.
	queueSize := workers * 4
	if queueSize < 8 {
		queueSize = 8
	}

	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

// worker is the main loop for each worker goroutine.
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	mine := p.queues[id]
	for {
		select {
		case <-p.done:
			// Deliver everything already queued before exiting, so a
			// notification submitted before Close is never dropped.
			p.drain(mine)
			return

		case task := <-mine:
			if task != nil {
				task()
			}

		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
			} else {
				select {
				case <-p.done:
					p.drain(mine)
					return
				case task := <-mine:
					if task != nil {
						task()
					}
				}
			}
		}
	}
}

// drain runs all remaining tasks in a queue.
func (p *Pool) drain(queue chan func()) {
	for {
		select {
		case task := <-queue:
			if task != nil {
				task()
			}
		default:
			return
		}
	}
}

// steal attempts to take a task from another worker's queue.
// Returns nil if no task is available.
func (p *Pool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case task := <-p.queues[i]:
			return task
		default:
		}
	}
	return nil
}

// Submit queues a task for delivery on some worker.
// The task goes to the worker with the shortest queue.
// If the pool is closed, Submit runs the task on the calling goroutine so
// exactly-once notifications still hold during shutdown.
func (p *Pool) Submit(task func()) {
	if task == nil {
		return
	}
	if !p.running.Load() {
		task()
		return
	}

	minLen := len(p.queues[0])
	minIdx := 0
	for i := 1; i < p.workers; i++ {
		if n := len(p.queues[i]); n < minLen {
			minLen = n
			minIdx = i
		}
	}

	select {
	case p.queues[minIdx] <- task:
	case <-p.done:
		task()
	}
}

// Close gracefully shuts down the pool.
// It stops accepting new tasks, delivers everything already queued, and
// stops all workers. Close is safe to call multiple times.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *Pool) Workers() int {
	return p.workers
}

// Running reports whether the pool is still accepting tasks.
func (p *Pool) Running() bool {
	return p.running.Load()
}

// Backlog returns the total number of tasks currently queued.
// This is an approximation, as queues change while iterating.
func (p *Pool) Backlog() int {
	total := 0
	for _, q := range p.queues {
		total += len(q)
	}
	return total
}
