package scraper

import (
	"context"
	"errors"
	"sync"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// Pool is a fixed-size worker pool. Every render job runs on one of its
// workers, which bounds how many browser sessions exist at once.
type Pool struct {
	jobs      chan func()
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}

	p := &Pool{
		jobs: make(chan func()),
		done: make(chan struct{}),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case job := <-p.jobs:
			job()
		}
	}
}

// Submit hands a job to the pool, blocking until a worker is free or the
// context is done.
func (p *Pool) Submit(ctx context.Context, job func()) error {
	select {
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	case p.jobs <- job:
		return nil
	}
}

// Close stops accepting jobs and waits for running jobs to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}
