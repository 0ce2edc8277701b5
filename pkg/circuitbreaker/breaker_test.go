package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig("test")
	cfg.FailureThreshold = 3
	cfg.MinRequests = 100 // keep the ratio rule out of these tests
	cfg.Timeout = 50 * time.Millisecond
	return cfg
}

func TestClosedOnSuccess(t *testing.T) {
	b, err := New(testConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		if err := b.Do(context.Background(), func() error { return nil }); err != nil {
			t.Fatal(err)
		}
	}
	if !b.Healthy() {
		t.Error("breaker should stay closed on success")
	}
}

func TestTripsAfterConsecutiveFailures(t *testing.T) {
	b, err := New(testConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("broker down")
	for i := 0; i < 3; i++ {
		if err := b.Do(context.Background(), func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}

	if b.Healthy() {
		t.Fatal("breaker should have tripped")
	}
	if b.State() != StateOpen {
		t.Errorf("state = %s, want open", b.State())
	}

	// While open, calls are rejected without invoking fn.
	called := false
	err = b.Do(context.Background(), func() error { called = true; return nil })
	if err == nil {
		t.Error("open breaker must reject")
	}
	if called {
		t.Error("open breaker must not invoke fn")
	}
}

func TestRecoversAfterTimeout(t *testing.T) {
	b, err := New(testConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("broker down")
	for i := 0; i < 3; i++ {
		b.Do(context.Background(), func() error { return boom })
	}
	if b.State() != StateOpen {
		t.Fatal("breaker did not trip")
	}

	time.Sleep(60 * time.Millisecond)

	// Half-open probe succeeds and the circuit closes again.
	for i := 0; i < 3; i++ {
		if err := b.Do(context.Background(), func() error { return nil }); err != nil {
			t.Fatalf("probe %d rejected: %v", i, err)
		}
	}
	if !b.Healthy() {
		t.Errorf("state = %s, want closed after successful probes", b.State())
	}
}

func TestFallbackOnOpen(t *testing.T) {
	b, err := New(testConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("broker down")
	for i := 0; i < 3; i++ {
		b.Do(context.Background(), func() error { return boom })
	}

	fallbackUsed := false
	err = b.DoWithFallback(context.Background(),
		func() error { return nil },
		func(error) error { fallbackUsed = true; return nil })
	if err != nil {
		t.Fatal(err)
	}
	if !fallbackUsed {
		t.Error("fallback must run while the circuit is open")
	}
}

func TestFallbackNotUsedForPlainFailure(t *testing.T) {
	b, err := New(testConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("validation failed downstream")
	fallbackUsed := false
	err = b.DoWithFallback(context.Background(),
		func() error { return boom },
		func(error) error { fallbackUsed = true; return nil })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want the downstream error", err)
	}
	if fallbackUsed {
		t.Error("fallback must not mask ordinary downstream failures")
	}
}
