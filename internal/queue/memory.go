package queue

import (
	"context"
	"sync"
)

// MemoryQueue is an in-process FIFO. A job whose work is identical to one
// still pending is dropped, so redelivered config events do not grow the
// queue.
type MemoryQueue struct {
	mu     sync.Mutex
	jobs   []Job
	closed bool
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// Push appends job unless identical work is already pending.
func (q *MemoryQueue) Push(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	for _, pending := range q.jobs {
		if pending.sameWork(job) {
			return nil
		}
	}
	if err := assignID(&job); err != nil {
		return err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

// Pop removes and returns the oldest job.
func (q *MemoryQueue) Pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return Job{}, false
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true
}

// Len returns the number of pending jobs.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Pending returns a copy of the pending jobs, oldest first.
func (q *MemoryQueue) Pending() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Job(nil), q.jobs...)
}

// Drain pops and handles jobs until the queue is empty. Jobs pushed by
// handlers are handled in the same call. On error the failed job is dropped
// and the error returned; later jobs stay queued.
func (q *MemoryQueue) Drain(ctx context.Context, h Handler) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		job, ok := q.Pop()
		if !ok {
			return n, nil
		}
		if err := h(ctx, job); err != nil {
			return n, err
		}
		n++
	}
}

// Close rejects further pushes. Pending jobs can still be popped.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
