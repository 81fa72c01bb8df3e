package breaker

import (
	"errors"
	"testing"
	"time"
)

func testConfig(t *testing.T, opts func(*ConfigBuilder) *ConfigBuilder) Config {
	t.Helper()
	b := NewConfigBuilder()
	if opts != nil {
		b = opts(b)
	}
	cfg, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return cfg
}

func TestNewPanicsOnEmptyName(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("New(\"\") did not panic")
		}
	}()
	New("", DefaultConfig())
}

func TestClosedStaysClosedUntilBufferFull(t *testing.T) {
	// scenario 1: 5-slot buffer, fewer than 5 outcomes never trips even
	// if every outcome so far is a failure.
	cfg := testConfig(t, func(b *ConfigBuilder) *ConfigBuilder {
		return b.WithRingBufferSizeInClosedState(5).WithFailureRateThreshold(50)
	})
	cb := New("svc", cfg)

	for i := 0; i < 4; i++ {
		if !cb.IsCallPermitted() {
			t.Fatalf("call %d: not permitted, want permitted", i)
		}
		cb.OnError(errors.New("boom"))
	}
	if cb.State() != StateClosed {
		t.Fatalf("State() = %v, want Closed (buffer not yet full)", cb.State())
	}
}

func TestExactlyAtThresholdTrips(t *testing.T) {
	// scenario 2: 10-slot buffer, exactly 50% threshold, 5 failures + 5
	// successes trips (>= threshold, not strictly greater).
	cfg := testConfig(t, func(b *ConfigBuilder) *ConfigBuilder {
		return b.WithRingBufferSizeInClosedState(10).WithFailureRateThreshold(50)
	})
	cb := New("svc", cfg)

	for i := 0; i < 5; i++ {
		cb.OnSuccess()
	}
	for i := 0; i < 4; i++ {
		cb.OnError(errors.New("boom"))
	}
	if cb.State() != StateClosed {
		t.Fatalf("State() = %v, want Closed before 10th call", cb.State())
	}
	cb.OnError(errors.New("boom")) // 10th call, 5/10 = 50%
	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want Open at exactly the threshold", cb.State())
	}
}

func TestOpenRejectsUntilWaitElapses(t *testing.T) {
	cfg := testConfig(t, func(b *ConfigBuilder) *ConfigBuilder {
		return b.WithRingBufferSizeInClosedState(1).
			WithFailureRateThreshold(50).
			WithWaitDurationInOpenState(50 * time.Millisecond)
	})
	cb := New("svc", cfg)
	cb.OnError(errors.New("boom")) // trips immediately, 1-slot buffer

	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want Open", cb.State())
	}
	if cb.IsCallPermitted() {
		t.Fatal("IsCallPermitted() = true immediately after trip, want false")
	}

	time.Sleep(70 * time.Millisecond)
	if !cb.IsCallPermitted() {
		t.Fatal("IsCallPermitted() = false after wait elapsed, want true")
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("State() = %v, want HalfOpen after probing", cb.State())
	}
}

func TestHalfOpenRecoveryClosesCircuit(t *testing.T) {
	cfg := testConfig(t, func(b *ConfigBuilder) *ConfigBuilder {
		return b.WithRingBufferSizeInClosedState(1).
			WithRingBufferSizeInHalfOpenState(3).
			WithFailureRateThreshold(50).
			WithWaitDurationInOpenState(time.Millisecond)
	})
	cb := New("svc", cfg)
	cb.OnError(errors.New("boom"))
	time.Sleep(5 * time.Millisecond)
	cb.IsCallPermitted() // triggers half-open probe

	cb.OnSuccess()
	cb.OnSuccess()
	cb.OnSuccess() // 3rd call fills the half-open buffer at 0% failure

	if cb.State() != StateClosed {
		t.Fatalf("State() = %v, want Closed after successful probe", cb.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cfg := testConfig(t, func(b *ConfigBuilder) *ConfigBuilder {
		return b.WithRingBufferSizeInClosedState(1).
			WithRingBufferSizeInHalfOpenState(2).
			WithFailureRateThreshold(50).
			WithWaitDurationInOpenState(time.Millisecond)
	})
	cb := New("svc", cfg)
	cb.OnError(errors.New("boom"))
	time.Sleep(5 * time.Millisecond)
	cb.IsCallPermitted()

	cb.OnSuccess()
	cb.OnError(errors.New("still broken")) // 2/2, 50% >= 50%

	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want Open after failed probe", cb.State())
	}
}

func TestIgnoredErrorNotRecorded(t *testing.T) {
	sentinel := errors.New("not our fault")
	cfg := testConfig(t, func(b *ConfigBuilder) *ConfigBuilder {
		return b.WithRingBufferSizeInClosedState(1).
			WithFailureRateThreshold(50).
			WithRecordFailurePredicate(func(cause error) bool {
				return !errors.Is(cause, sentinel)
			})
	})
	cb := New("svc", cfg)
	cb.OnError(sentinel)

	if cb.State() != StateClosed {
		t.Fatalf("State() = %v, want Closed (ignored error should not fill buffer)", cb.State())
	}
	if m := cb.Metrics(); m.NumberOfBufferedCalls != 0 {
		t.Fatalf("NumberOfBufferedCalls = %d, want 0", m.NumberOfBufferedCalls)
	}
}

func TestTransitionToClosedIsIdempotentWhenAlreadyClosed(t *testing.T) {
	cb := New("svc", DefaultConfig())
	sub := cb.EventStream().Subscribe()
	defer sub.Unsubscribe()

	cb.TransitionToClosedState()

	select {
	case evt := <-sub.C:
		t.Fatalf("unexpected event on no-op transition: %+v", evt)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestResetAlwaysEmitsEvent(t *testing.T) {
	cb := New("svc", DefaultConfig())
	sub := cb.EventStream().Subscribe()
	defer sub.Unsubscribe()

	cb.Reset()

	select {
	case evt := <-sub.C:
		if evt.Kind.String() != "state_transition" {
			t.Fatalf("Kind = %v, want state_transition", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("Reset() did not emit a transition event")
	}
}

func TestDiagnosticsWillTripNext(t *testing.T) {
	cfg := testConfig(t, func(b *ConfigBuilder) *ConfigBuilder {
		return b.WithRingBufferSizeInClosedState(3).WithFailureRateThreshold(50)
	})
	cb := New("svc", cfg)
	cb.OnSuccess()
	cb.OnSuccess() // 2/3 recorded, both successes: one more failure fills to 1/3 = 33% < 50%

	if cb.Diagnostics().WillTripNext {
		t.Fatal("WillTripNext = true, want false (33% projected)")
	}

	cb2 := New("svc2", cfg)
	cb2.OnError(errors.New("boom"))
	cb2.OnError(errors.New("boom")) // one more failure fills to 3/3 = 100% >= 50%
	if !cb2.Diagnostics().WillTripNext {
		t.Fatal("WillTripNext = false, want true (100% projected)")
	}
}
