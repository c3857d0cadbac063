// Package worker provides a bounded worker pool used to fan out granule
// downloads while an archive populates its local store.
package worker

import (
	"context"
	"sync"
)

// ProcessFunc handles one job. Returned errors are collected and reported by
// Wait; they do not stop the pool.
type ProcessFunc[T any] func(ctx context.Context, job T) error

// Pool runs jobs of type T on a fixed number of goroutines.
type Pool[T any] struct {
	numWorkers int
	jobs       chan T
	processor  ProcessFunc[T]
	wg         sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

// NewPool builds a pool with numWorkers goroutines and a buffered job queue.
func NewPool[T any](numWorkers, bufferSize int, processor ProcessFunc[T]) *Pool[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Pool[T]{
		numWorkers: numWorkers,
		jobs:       make(chan T, bufferSize),
		processor:  processor,
	}
}

// Start launches the workers. They drain the queue until Wait closes it or
// the context is cancelled.
func (p *Pool[T]) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := p.processor(ctx, job); err != nil {
				p.mu.Lock()
				p.errs = append(p.errs, err)
				p.mu.Unlock()
			}
		}
	}
}

// Submit queues one job. It blocks when the queue is full.
func (p *Pool[T]) Submit(job T) {
	p.jobs <- job
}

// Wait closes the queue, waits for the workers to drain it, and returns any
// errors the processor reported, in completion order.
func (p *Pool[T]) Wait() []error {
	close(p.jobs)
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errs
}
