package workerpool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func upperPool(t *testing.T, cfg Config) *Pool {
	t.Helper()
	pool, err := New(cfg, func(ctx context.Context, task *Task) *Result {
		s, ok := task.Payload.(string)
		if !ok {
			return &Result{TaskID: task.ID, Success: false, Err: errors.New("payload is not a string")}
		}
		return &Result{TaskID: task.ID, Success: true, Data: strings.ToUpper(s)}
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	pool.Start()
	t.Cleanup(pool.Stop)
	return pool
}

func TestDo(t *testing.T) {
	pool := upperPool(t, Config{Workers: 2, QueueSize: 8})

	result, err := pool.Do(context.Background(), "t1", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.Data != "HELLO" {
		t.Errorf("result = %+v", result)
	}
}

func TestMapPreservesOrder(t *testing.T) {
	pool := upperPool(t, Config{Workers: 4, QueueSize: 64})

	payloads := make([]any, 20)
	for i := range payloads {
		payloads[i] = fmt.Sprintf("msg-%d", i)
	}

	results := pool.Map(context.Background(), payloads)
	if len(results) != len(payloads) {
		t.Fatalf("got %d results, want %d", len(results), len(payloads))
	}
	for i, r := range results {
		want := fmt.Sprintf("MSG-%d", i)
		if !r.Success || r.Data != want {
			t.Errorf("slot %d = %+v, want %q", i, r, want)
		}
	}
}

func TestFailureCounted(t *testing.T) {
	pool := upperPool(t, Config{Workers: 1, QueueSize: 8})

	result, err := pool.Do(context.Background(), "bad", 42)
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Error("non-string payload must fail")
	}

	stats := pool.Stats()
	if stats.Failed != 1 {
		t.Errorf("failed = %d, want 1", stats.Failed)
	}
}

func TestPanicRecovered(t *testing.T) {
	pool, err := New(Config{Workers: 1, QueueSize: 4}, func(ctx context.Context, task *Task) *Result {
		panic("boom")
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	pool.Start()
	t.Cleanup(pool.Stop)

	result, err := pool.Do(context.Background(), "t1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Success || result.Err == nil {
		t.Errorf("panicking task must fail with an error, got %+v", result)
	}

	// The worker must survive for the next task.
	if _, err := pool.Do(context.Background(), "t2", nil); err != nil {
		t.Fatalf("pool unusable after panic: %v", err)
	}
}

func TestSubmitAfterStop(t *testing.T) {
	pool := upperPool(t, Config{Workers: 1, QueueSize: 2, ShutdownTimeout: time.Second})
	pool.Stop()

	if _, err := pool.Submit(&Task{ID: "late", Payload: "x"}); err == nil {
		t.Error("submit after stop must fail")
	}
}

func TestHealthy(t *testing.T) {
	pool := upperPool(t, Config{Workers: 2, QueueSize: 8})
	if !pool.Healthy() {
		t.Error("idle pool must be healthy")
	}
}

func TestSubmitConcurrentWithStop(t *testing.T) {
	pool := upperPool(t, Config{Workers: 2, QueueSize: 8})

	done := make(chan struct{})
	for g := 0; g < 4; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; ; i++ {
				_, err := pool.Submit(&Task{ID: fmt.Sprintf("g%d-%d", g, i), Payload: "x"})
				if err != nil && strings.Contains(err.Error(), "shutting down") {
					return
				}
			}
		}(g)
	}

	time.Sleep(5 * time.Millisecond)
	pool.Stop()

	// Every submitter must observe the shutdown error; a send on the closed
	// queue would panic instead.
	for g := 0; g < 4; g++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("submitter did not observe shutdown")
		}
	}
}
