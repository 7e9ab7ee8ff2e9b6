package broker

import "sync"

// Queue is an unbounded multi-producer/multi-consumer task queue.
// Workers are also producers (finishing a directory can ready its parent),
// so Push must never block; Pop blocks only while the queue is empty and
// not yet closed.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Task
	head   int
	closed bool
}

// NewQueue returns an empty open queue
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends t. It reports false if the queue was already closed.
func (q *Queue) Push(t Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, t)
	q.cond.Signal()
	return true
}

// Pop removes the oldest task, waiting for one if necessary.
// ok is false once the queue is closed and drained.
func (q *Queue) Pop() (t Task, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.head == len(q.items) && !q.closed {
		q.cond.Wait()
	}
	if q.head == len(q.items) {
		return Task{}, false
	}
	t = q.items[q.head]
	q.items[q.head] = Task{}
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 1024 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return t, true
}

// Close wakes every waiting Pop. Tasks already queued are still handed out.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued tasks
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
