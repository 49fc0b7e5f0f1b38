package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type testResult struct {
	value int
	err   error
}

func (r *testResult) GetError() error { return r.err }

type testJob struct {
	value int
	err   error
	runs  *int32
}

func (j *testJob) Execute(ctx context.Context) Result {
	if j.runs != nil {
		atomic.AddInt32(j.runs, 1)
	}
	return &testResult{value: j.value, err: j.err}
}

func TestPool_RunsAllJobs(t *testing.T) {
	pool := NewPool(3)
	pool.Start()

	var runs int32
	for i := 0; i < 10; i++ {
		pool.Submit(&testJob{value: i, runs: &runs})
	}

	results := pool.Wait()
	if len(results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(results))
	}
	if atomic.LoadInt32(&runs) != 10 {
		t.Fatalf("expected 10 executions, got %d", runs)
	}
}

func TestPool_CollectsErrors(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	boom := errors.New("block failed")
	pool.Submit(&testJob{value: 1})
	pool.Submit(&testJob{value: 2, err: boom})

	failed := 0
	for _, r := range pool.Wait() {
		if r.GetError() != nil {
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("expected 1 failed result, got %d", failed)
	}
}

func TestPool_ZeroWorkersClamped(t *testing.T) {
	pool := NewPool(0)
	pool.Start()
	pool.Submit(&testJob{value: 1})

	if results := pool.Wait(); len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestPool_Shutdown(t *testing.T) {
	pool := NewPool(1)
	pool.Start()
	pool.Shutdown()

	// Submitting after shutdown must not block or panic
	pool.Submit(&testJob{value: 1})
}
