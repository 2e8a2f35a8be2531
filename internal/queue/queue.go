package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrQueueClosed = errors.New("queue is closed")

// Task is one product URL waiting to be scraped. Higher priority pops first.
type Task struct {
	ID        string
	URL       string
	Store     string
	Priority  int
	Retries   int
	CreatedAt time.Time
}

type Queue interface {
	Push(task *Task) error
	Pop(ctx context.Context) (*Task, error)
	Size() int
	Close() error
}

// InMemoryQueue is a priority-ordered task queue for batch scraping runs.
// Waiters block on a broadcast channel that Push and Close rotate, so a
// cancelled Pop leaves no goroutine behind and steals no wakeup.
type InMemoryQueue struct {
	mu     sync.Mutex
	tasks  []*Task
	wake   chan struct{}
	closed bool
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		tasks: make([]*Task, 0),
		wake:  make(chan struct{}),
	}
}

func (q *InMemoryQueue) Push(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.tasks = append(q.tasks, task)
	sort.SliceStable(q.tasks, func(i, j int) bool {
		return q.tasks[i].Priority > q.tasks[j].Priority
	})
	q.broadcast()

	return nil
}

// Pop blocks until a task is available, the queue is closed and drained, or
// ctx is done.
func (q *InMemoryQueue) Pop(ctx context.Context) (*Task, error) {
	for {
		q.mu.Lock()
		if len(q.tasks) > 0 {
			task := q.tasks[0]
			q.tasks = q.tasks[1:]
			q.mu.Unlock()
			return task, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		}
	}
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		q.broadcast()
	}

	return nil
}

// broadcast wakes every waiter by closing the current wake channel and
// installing a fresh one. Callers must hold q.mu.
func (q *InMemoryQueue) broadcast() {
	close(q.wake)
	q.wake = make(chan struct{})
}
