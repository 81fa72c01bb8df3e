package breaker

import (
	"sync/atomic"
	"time"

	"github.com/ridgeline-dev/resilience/internal/events"
	"github.com/ridgeline-dev/resilience/internal/ringbuffer"
)

// snapshot is the critical data a state transition must swap atomically:
// the state tag, the live ring buffer backing it (nil while Open), and the
// deadline at which an Open breaker becomes eligible to probe.
type snapshot struct {
	state    State
	buffer   *ringbuffer.RingBitBuffer
	deadline int64 // UnixNano; only meaningful while state == StateOpen
}

// CircuitBreaker protects a collaborator from cascading failures by
// tracking a sliding window of outcomes and rejecting calls once the
// failure rate exceeds a threshold.
//
// The breaker itself never invokes the protected call; it only answers
// IsCallPermitted and records outcomes via OnSuccess/OnError. Wrapping a
// call (including panic recovery) is the job of the decorators in the
// root package, matching spec.md's scoping of the core to the state
// machine and statistics.
//
// CircuitBreaker is safe for concurrent use. The state lives in a single
// atomic.Pointer: transitions triggered by IsCallPermitted or by recorded
// outcomes are lock-free compare-and-swaps, while Reset and the explicit
// TransitionTo*State methods store the new snapshot unconditionally.
type CircuitBreaker struct {
	name string
	cfg  Config

	snap atomic.Pointer[snapshot]

	stream *events.Stream
}

// New constructs a CircuitBreaker in the Closed state with a fresh,
// empty ring buffer sized cfg.RingBufferSizeInClosedState. Panics with
// NullNameError if name is empty.
func New(name string, cfg Config) *CircuitBreaker {
	if name == "" {
		panic(NullNameError{})
	}
	if cfg.RecordFailurePredicate == nil || cfg.RingBufferSizeInClosedState == 0 || cfg.RingBufferSizeInHalfOpenState == 0 {
		panic(NullConfigError{})
	}
	cb := &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		stream: &events.Stream{},
	}
	cb.snap.Store(&snapshot{
		state:  StateClosed,
		buffer: ringbuffer.New(cfg.RingBufferSizeInClosedState),
	})
	return cb
}

// Name returns the circuit breaker's identifier.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Config returns the circuit breaker's configuration.
func (cb *CircuitBreaker) Config() Config { return cb.cfg }

// EventStream returns the publish-subscribe stream of state-transition and
// outcome events (C6).
func (cb *CircuitBreaker) EventStream() *events.Stream { return cb.stream }

// State returns the current state. The value is a point-in-time snapshot;
// it may be stale the instant this call returns.
func (cb *CircuitBreaker) State() State {
	return cb.snap.Load().state
}

// IsCallPermitted reports whether a call may proceed right now. In the
// Open state, if the wait duration has elapsed, this call itself performs
// the Open→HalfOpen transition (first caller past the deadline wins the
// CAS and emits the transition event; everyone else observes HalfOpen and
// proceeds without emitting a duplicate event).
func (cb *CircuitBreaker) IsCallPermitted() bool {
	cur := cb.snap.Load()
	switch cur.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Now().UnixNano() < cur.deadline {
			return false
		}
		next := &snapshot{
			state:  StateHalfOpen,
			buffer: ringbuffer.New(cb.cfg.RingBufferSizeInHalfOpenState),
		}
		if cb.snap.CompareAndSwap(cur, next) {
			cb.publishTransition(StateOpen, StateHalfOpen)
		}
		return true
	default:
		return false
	}
}

// OnSuccess records a successful call outcome and evaluates whether a
// HalfOpen probe run has recovered enough to close the circuit.
func (cb *CircuitBreaker) OnSuccess() {
	cb.record(false)
}

// OnError records a failed call outcome, subject to
// Config.RecordFailurePredicate, and evaluates whether the failure rate
// has crossed the threshold.
func (cb *CircuitBreaker) OnError(cause error) {
	if !cb.cfg.RecordFailurePredicate(cause) {
		cb.stream.Publish(events.Event{
			Name: cb.name,
			Kind: events.KindIgnoredError,
			Cause: cause,
		})
		return
	}
	cb.record(true)
}

// record writes one outcome into the live buffer and, once the buffer is
// full, evaluates the transition appropriate to the current state.
func (cb *CircuitBreaker) record(failure bool) {
	cur := cb.snap.Load()
	if cur.buffer == nil {
		// Open state: a stray record from a call that started before the
		// breaker tripped. Nothing to record against.
		return
	}
	rate := cur.buffer.Record(failure)
	if rate < 0 {
		cb.publishOutcome(failure)
		return
	}

	switch cur.state {
	case StateClosed:
		if rate >= cb.cfg.FailureRateThreshold {
			cb.tripFrom(cur, StateClosed)
		}
	case StateHalfOpen:
		if rate >= cb.cfg.FailureRateThreshold {
			cb.tripFrom(cur, StateHalfOpen)
		} else {
			cb.closeFrom(cur)
		}
	}
	cb.publishOutcome(failure)
}

// tripFrom attempts the CAS to Open from the given observed snapshot.
// Loses silently if another goroutine already transitioned.
func (cb *CircuitBreaker) tripFrom(cur *snapshot, from State) {
	next := &snapshot{
		state:    StateOpen,
		deadline: time.Now().Add(cb.cfg.WaitDurationInOpenState).UnixNano(),
	}
	if cb.snap.CompareAndSwap(cur, next) {
		cb.publishTransition(from, StateOpen)
	}
}

// closeFrom attempts the CAS to Closed (with a fresh buffer) from the
// given observed HalfOpen snapshot.
func (cb *CircuitBreaker) closeFrom(cur *snapshot) {
	next := &snapshot{
		state:  StateClosed,
		buffer: ringbuffer.New(cb.cfg.RingBufferSizeInClosedState),
	}
	if cb.snap.CompareAndSwap(cur, next) {
		cb.publishTransition(StateHalfOpen, StateClosed)
	}
}

// Reset forcibly returns the breaker to Closed with a fresh buffer,
// always emitting a transition event (even if already Closed), per
// spec.md's administrative reset semantics.
func (cb *CircuitBreaker) Reset() {
	cur := cb.snap.Load()
	next := &snapshot{
		state:  StateClosed,
		buffer: ringbuffer.New(cb.cfg.RingBufferSizeInClosedState),
	}
	cb.snap.Store(next)
	cb.publishTransition(cur.state, StateClosed)
}

// TransitionToOpenState forces an immediate transition to Open,
// regardless of the current state or buffered failure rate.
func (cb *CircuitBreaker) TransitionToOpenState() {
	cur := cb.snap.Load()
	next := &snapshot{
		state:    StateOpen,
		deadline: time.Now().Add(cb.cfg.WaitDurationInOpenState).UnixNano(),
	}
	cb.snap.Store(next)
	cb.publishTransition(cur.state, StateOpen)
}

// TransitionToClosedState forces an immediate transition to Closed with a
// fresh buffer. A no-op (no event emitted) if already Closed, per
// spec.md's idempotence invariant for this explicit administrative call.
func (cb *CircuitBreaker) TransitionToClosedState() {
	cur := cb.snap.Load()
	if cur.state == StateClosed {
		return
	}
	next := &snapshot{
		state:  StateClosed,
		buffer: ringbuffer.New(cb.cfg.RingBufferSizeInClosedState),
	}
	cb.snap.Store(next)
	cb.publishTransition(cur.state, StateClosed)
}

// TransitionToHalfOpenState forces an immediate transition to HalfOpen
// with a fresh probe buffer.
func (cb *CircuitBreaker) TransitionToHalfOpenState() {
	cur := cb.snap.Load()
	next := &snapshot{
		state:  StateHalfOpen,
		buffer: ringbuffer.New(cb.cfg.RingBufferSizeInHalfOpenState),
	}
	cb.snap.Store(next)
	cb.publishTransition(cur.state, StateHalfOpen)
}

func (cb *CircuitBreaker) publishTransition(from, to State) {
	cb.stream.Publish(events.Event{
		Name:      cb.name,
		Kind:      events.KindStateTransition,
		FromState: from,
		ToState:   to,
	})
}

func (cb *CircuitBreaker) publishOutcome(failure bool) {
	kind := events.KindSuccess
	if failure {
		kind = events.KindError
	}
	cb.stream.Publish(events.Event{Name: cb.name, Kind: kind})
}
