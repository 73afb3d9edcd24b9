package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rhuss/dojo/pkg/observability"
)

var (
	// ErrPoolFull is returned when the queue has no free slot.
	ErrPoolFull = errors.New("execution queue is full")

	// ErrPoolClosed is returned by Submit after Close.
	ErrPoolClosed = errors.New("execution pool is closed")
)

const (
	jobPending int32 = iota
	jobRunning
	jobAbandoned
)

type job struct {
	ctx   context.Context
	fn    func(context.Context)
	state atomic.Int32
	done  chan struct{}
}

// Pool runs jobs on a fixed set of workers fed by a bounded queue.
//
// Admission is decided by slots, one per worker plus one per queue entry,
// so an idle pool always accepts a job no matter where its workers are
// parked.
type Pool struct {
	slots  chan struct{}
	jobs   chan *job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines behind a queue of queueSize slots.
// Workers below 1 mean 1 and a negative queueSize means 0.
func NewPool(workers, queueSize int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	workers = max(workers, 1)
	capacity := workers + max(queueSize, 0)
	p := &Pool{
		slots:  make(chan struct{}, capacity),
		jobs:   make(chan *job, capacity),
		logger: logger,
	}
	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

// Submit enqueues fn and waits for it to finish. It returns ErrPoolFull
// without waiting when no queue slot is free, and ctx.Err() when ctx ends
// before a worker picks the job up. Once running, fn sees ctx and Submit
// waits for it to return.
func (p *Pool) Submit(ctx context.Context, fn func(context.Context)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	j := &job{ctx: ctx, fn: fn, done: make(chan struct{})}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	select {
	case p.slots <- struct{}{}:
	default:
		p.mu.RUnlock()
		return ErrPoolFull
	}
	// Never blocks: jobs has room for every slot.
	p.jobs <- j
	observability.ExecutionQueueDepth.Inc()
	p.mu.RUnlock()

	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		if j.state.CompareAndSwap(jobPending, jobAbandoned) {
			return ctx.Err()
		}
		<-j.done
		return nil
	}
}

// Close stops accepting jobs and waits for queued and running jobs.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		observability.ExecutionQueueDepth.Dec()
		if !j.state.CompareAndSwap(jobPending, jobRunning) {
			p.logger.Debug("skipping cancelled execution")
			<-p.slots
			continue
		}
		p.run(j)
		<-p.slots
	}
}

func (p *Pool) run(j *job) {
	observability.ExecutionsInFlight.Inc()
	defer func() {
		observability.ExecutionsInFlight.Dec()
		if r := recover(); r != nil {
			p.logger.Error("execution panicked", "panic", r)
		}
		close(j.done)
	}()
	j.fn(j.ctx)
}
