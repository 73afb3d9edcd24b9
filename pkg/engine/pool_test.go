package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// blockWorker occupies the pool's only worker until release is closed.
func blockWorker(t *testing.T, p *Pool) (release func()) {
	t.Helper()
	started := make(chan struct{})
	unblock := make(chan struct{})
	go func() {
		_ = p.Submit(context.Background(), func(context.Context) {
			close(started)
			<-unblock
		})
	}()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first job never started")
	}
	return func() { close(unblock) }
}

func waitQueued(t *testing.T, p *Pool, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(p.jobs) != n {
		if time.Now().After(deadline) {
			t.Fatalf("queue length = %d, want %d", len(p.jobs), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPoolRunsJobs(t *testing.T) {
	p := NewPool(2, 4, quietLogger())
	defer p.Close()

	var ran atomic.Int32
	for range 5 {
		if err := p.Submit(context.Background(), func(context.Context) { ran.Add(1) }); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if got := ran.Load(); got != 5 {
		t.Errorf("ran = %d, want 5", got)
	}
}

func TestPoolFull(t *testing.T) {
	p := NewPool(1, 1, quietLogger())
	release := blockWorker(t, p)

	queued := make(chan error, 1)
	go func() {
		queued <- p.Submit(context.Background(), func(context.Context) {})
	}()
	waitQueued(t, p, 1)

	if err := p.Submit(context.Background(), func(context.Context) {}); !errors.Is(err, ErrPoolFull) {
		t.Errorf("Submit on full queue = %v, want ErrPoolFull", err)
	}

	release()
	if err := <-queued; err != nil {
		t.Errorf("queued job: %v", err)
	}
	p.Close()
}

func TestPoolSkipsCancelledQueuedJobs(t *testing.T) {
	p := NewPool(1, 1, quietLogger())
	release := blockWorker(t, p)

	var ran atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- p.Submit(ctx, func(context.Context) { ran.Store(true) })
	}()
	waitQueued(t, p, 1)

	cancel()
	if err := <-result; !errors.Is(err, context.Canceled) {
		t.Errorf("Submit = %v, want context.Canceled", err)
	}

	release()
	p.Close()
	if ran.Load() {
		t.Error("cancelled job ran")
	}
}

func TestPoolRejectsDoneContext(t *testing.T) {
	p := NewPool(1, 1, quietLogger())
	defer p.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Submit(ctx, func(context.Context) { t.Error("job ran") }); !errors.Is(err, context.Canceled) {
		t.Errorf("Submit = %v, want context.Canceled", err)
	}
}

func TestPoolClosed(t *testing.T) {
	p := NewPool(1, 1, quietLogger())
	p.Close()
	p.Close()
	if err := p.Submit(context.Background(), func(context.Context) {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Submit after Close = %v, want ErrPoolClosed", err)
	}
}

func TestPoolRecoversPanics(t *testing.T) {
	p := NewPool(1, 1, quietLogger())
	defer p.Close()
	if err := p.Submit(context.Background(), func(context.Context) { panic("boom") }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	// The worker survives the panic.
	var ran atomic.Bool
	if err := p.Submit(context.Background(), func(context.Context) { ran.Store(true) }); err != nil || !ran.Load() {
		t.Errorf("second job: err=%v ran=%v", err, ran.Load())
	}
}

func TestPoolAcceptsImmediatelyWithoutQueue(t *testing.T) {
	p := NewPool(2, 0, quietLogger())
	defer p.Close()

	// No wait for the workers to reach their receive.
	for i := range 20 {
		if err := p.Submit(context.Background(), func(context.Context) {}); err != nil {
			t.Fatalf("Submit %d on idle pool: %v", i, err)
		}
	}
}

func TestPoolZeroQueueAdmitsOnlyWorkers(t *testing.T) {
	p := NewPool(1, 0, quietLogger())
	release := blockWorker(t, p)

	if err := p.Submit(context.Background(), func(context.Context) {}); !errors.Is(err, ErrPoolFull) {
		t.Errorf("Submit with busy worker and no queue = %v, want ErrPoolFull", err)
	}
	release()
	p.Close()
}

func TestEngineConfigDefaultsQueue(t *testing.T) {
	if got := (Config{}).withDefaults().QueueSize; got != 16 {
		t.Errorf("default QueueSize = %d, want 16", got)
	}
}
