package system

import (
	"slices"
	"sync"
)

// CommandQueue carries world mutations from other goroutines onto the tick
// goroutine. Enqueue is safe from any goroutine; Drain must only be called
// by the tick.
type CommandQueue struct {
	mu      sync.Mutex
	pending []func()
}

func NewCommandQueue() *CommandQueue {
	return &CommandQueue{}
}

func (q *CommandQueue) Enqueue(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Take removes up to limit queued commands in FIFO order (all when
// limit <= 0). Commands enqueued after Take wait for the next call.
func (q *CommandQueue) Take(limit int) []func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.pending
	if limit > 0 && len(batch) > limit {
		q.pending = slices.Clone(batch[limit:])
		return batch[:limit]
	}
	q.pending = nil
	return batch
}

// Drain runs the commands returned by Take and reports how many ran.
func (q *CommandQueue) Drain(limit int) int {
	batch := q.Take(limit)
	for _, fn := range batch {
		fn()
	}
	return len(batch)
}
