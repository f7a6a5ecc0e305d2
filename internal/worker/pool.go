package worker

import (
	"context"
	"fmt"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// ErrorResult is produced when a job panics
type ErrorResult struct {
	Err error
}

// GetError returns the recovered error
func (r *ErrorResult) GetError() error {
	return r.Err
}

// Pool manages a pool of workers that execute jobs concurrently
type Pool struct {
	workers    int
	jobQueue   chan Job
	results    chan Result
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
	jobsOnce   sync.Once
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	return NewPoolWithContext(context.Background(), workers)
}

// NewPoolWithContext creates a pool whose jobs see a context derived from parent
func NewPoolWithContext(parent context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(parent)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2), // Buffered to prevent blocking
		results:    make(chan Result, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// worker is the worker goroutine that processes jobs
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := p.execute(job)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// execute runs a job, converting a panic into an ErrorResult
func (p *Pool) execute(job Job) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = &ErrorResult{Err: fmt.Errorf("job panicked: %v", r)}
		}
	}()
	return job.Execute(p.ctx)
}

// Submit submits a job to the pool for execution
func (p *Pool) Submit(job Job) {
	select {
	case <-p.ctx.Done():
		return
	case p.jobQueue <- job:
	}
}

// Wait waits for all jobs to complete and returns the results
func (p *Pool) Wait() []Result {
	p.closeJobs()
	return p.collect()
}

// Run starts the pool, submits every job and returns the results in
// completion order. Submission happens alongside collection, so any number
// of jobs can be run without filling the buffers.
func (p *Pool) Run(jobs []Job) []Result {
	p.Start()
	go func() {
		for _, job := range jobs {
			p.Submit(job)
		}
		p.closeJobs()
	}()
	return p.collect()
}

func (p *Pool) collect() []Result {
	// Use a goroutine to wait for workers and close results
	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	var results []Result
	for result := range p.results {
		results = append(results, result)
	}
	p.cancelFunc()

	return results
}

func (p *Pool) closeJobs() {
	p.jobsOnce.Do(func() {
		close(p.jobQueue)
	})
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
