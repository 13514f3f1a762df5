// Package tasks runs fire-and-forget background work on a bounded priority
// queue drained by a fixed pool of worker goroutines.
package tasks

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

var (
	// ErrQueueFull is returned by Submit when the queue is at capacity
	ErrQueueFull = errors.New("task queue is full")

	// ErrClosed is returned by Submit after Shutdown has begun
	ErrClosed = errors.New("task queue is shut down")
)

// Priorities used by the services. Any int is accepted.
const (
	PriorityLow    = 0
	PriorityNormal = 5
	PriorityHigh   = 10
)

// Task is a unit of background work
type Task struct {
	Name     string
	Priority int
	Run      func(ctx context.Context) error
}

type item struct {
	task Task
	seq  uint64
}

// taskHeap orders by priority, then submission order
type taskHeap []item

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x interface{}) { *h = append(*h, x.(item)) }
func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Stats is a snapshot of queue counters
type Stats struct {
	Pending   int    `json:"pending"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
}

// Queue is a bounded priority queue with workers
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    taskHeap
	seq      uint64
	capacity int
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	completed atomic.Uint64
	failed    atomic.Uint64
}

// New starts a queue with the given number of workers. capacity bounds the
// number of pending tasks.
func New(workers, capacity int) *Queue {
	if workers < 1 {
		workers = 1
	}
	if capacity < 1 {
		capacity = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		capacity: capacity,
		ctx:      ctx,
		cancel:   cancel,
	}
	q.cond = sync.NewCond(&q.mu)

	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}
	return q
}

// Submit enqueues t without blocking
func (q *Queue) Submit(t Task) error {
	if t.Run == nil {
		return fmt.Errorf("task %q has no Run function", t.Name)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if len(q.items) >= q.capacity {
		return ErrQueueFull
	}
	q.seq++
	heap.Push(&q.items, item{task: t, seq: q.seq})
	q.cond.Signal()
	return nil
}

// Len returns the number of pending tasks
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats returns the current counters
func (q *Queue) Stats() Stats {
	return Stats{
		Pending:   q.Len(),
		Completed: q.completed.Load(),
		Failed:    q.failed.Load(),
	}
}

// Shutdown stops intake and waits for the workers to drain the queue. If
// ctx ends first, running tasks see their context cancelled, pending tasks
// are dropped and ctx's error is returned.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.mu.Lock()
		dropped := len(q.items)
		q.items = nil
		q.mu.Unlock()
		q.cancel()
		<-done
		if dropped > 0 {
			log.Printf("tasks: dropped %d pending tasks on shutdown", dropped)
		}
		return ctx.Err()
	}
}

func (q *Queue) next() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Task{}, false
	}
	it := heap.Pop(&q.items).(item)
	return it.task, true
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		t, ok := q.next()
		if !ok {
			return
		}
		if err := q.run(t); err != nil {
			q.failed.Add(1)
			log.Printf("tasks: %s failed: %v", t.Name, err)
			continue
		}
		q.completed.Add(1)
	}
}

func (q *Queue) run(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.Run(q.ctx)
}
