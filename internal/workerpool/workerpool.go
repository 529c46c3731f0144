// Package workerpool bounds the number of downloads running at once. The bot
// keeps handling updates while deliveries run on pool workers; a panicking
// job takes down only its own delivery, not the polling loop.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

var ErrClosed = errors.New("worker pool closed")

// A Job is one unit of background work. The context is the pool's run
// context; jobs should stop promptly when it is cancelled.
type Job func(ctx context.Context) error

type task struct {
	job  Job
	done chan error
}

// Pool runs jobs on a fixed set of workers.
type Pool struct {
	name    string
	tasks   chan task
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closing sync.Once
	log     *zap.SugaredLogger
}

// New starts a pool with size workers. queue bounds how many submitted jobs
// can wait for a worker; Submit blocks once the queue is full.
func New(name string, size, queue int) *Pool {
	if size < 1 {
		size = 1
	}
	if queue < 0 {
		queue = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		name:   name,
		tasks:  make(chan task, queue),
		cancel: cancel,
		log:    zap.S().Named("workerpool").With("pool", name),
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(ctx, i)
	}
	return p
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for t := range p.tasks {
		err := p.run(ctx, t.job)
		if t.done != nil {
			t.done <- err
			close(t.done)
		} else if err != nil {
			p.log.Errorw("job failed", "worker", id, "error", err)
		}
	}
}

func (p *Pool) run(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("job panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job(ctx)
}

// Submit queues a job and returns a channel that yields its result. The
// channel receives exactly one value.
func (p *Pool) Submit(job Job) <-chan error {
	done := make(chan error, 1)
	defer func() {
		if r := recover(); r != nil {
			done <- ErrClosed
			close(done)
		}
	}()
	p.tasks <- task{job: job, done: done}
	return done
}

// Go queues a job whose result nobody waits for; failures are logged.
func (p *Pool) Go(job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Warnw("job dropped, pool closed")
		}
	}()
	p.tasks <- task{job: job}
}

// Close cancels the run context, stops accepting jobs and waits for in-flight
// jobs to finish.
func (p *Pool) Close() {
	p.closing.Do(func() {
		p.cancel()
		close(p.tasks)
	})
	p.wg.Wait()
}
