// Package resilience provides circuit breaker and rate limiter primitives
// for protecting calls to unreliable collaborators.
//
// # Circuit Breaker
//
// A CircuitBreaker tracks a sliding window of call outcomes and rejects
// calls once the failure rate crosses a threshold, giving a failing
// collaborator time to recover instead of piling on load:
//
//	cfg, err := resilience.NewCircuitBreakerConfig().
//	    WithFailureRateThreshold(50).
//	    WithWaitDurationInOpenState(30 * time.Second).
//	    Build()
//	cb := resilience.NewCircuitBreaker("payments-api", cfg)
//
//	result, err := resilience.Call(cb, func() (any, error) {
//	    return paymentsClient.Charge(req)
//	})
//	if errors.Is(err, resilience.ErrCallNotPermitted) {
//	    return cachedResponse, nil
//	}
//
// # Rate Limiter
//
// Two interchangeable implementations are provided: AtomicRateLimiter
// (precise, cycle-based permit accounting) and SemaphoreRateLimiter
// (simpler, tick-refreshed counted semaphore). Both implement RateLimiter.
//
//	rl := resilience.NewAtomicRateLimiter("search-api", resilience.DefaultRateLimiterConfig())
//	if !rl.AcquirePermission(ctx, 100*time.Millisecond) {
//	    return nil, resilience.ErrRequestNotPermitted
//	}
//
// # Registry
//
// Registry interns named instances, constructing a default on first miss,
// so callers throughout a process share one breaker/limiter per name
// without passing references around explicitly.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/ridgeline-dev/resilience/internal/breaker"
	"github.com/ridgeline-dev/resilience/internal/events"
	"github.com/ridgeline-dev/resilience/internal/ratelimiter"
	"github.com/sirupsen/logrus"
)

// --- Circuit breaker ---

// CircuitBreaker tracks a sliding window of call outcomes across a
// Closed/Open/HalfOpen state machine. See internal/breaker for the
// implementation.
type CircuitBreaker = breaker.CircuitBreaker

// CircuitBreakerState is one of CircuitBreakerClosed, CircuitBreakerOpen,
// or CircuitBreakerHalfOpen.
type CircuitBreakerState = breaker.State

// CircuitBreakerConfig is the immutable configuration built by
// CircuitBreakerConfigBuilder.
type CircuitBreakerConfig = breaker.Config

// CircuitBreakerConfigBuilder builds a validated CircuitBreakerConfig.
type CircuitBreakerConfigBuilder = breaker.ConfigBuilder

// RecordFailurePredicate classifies a call's error as recordable or
// ignored for the purposes of the circuit breaker's failure rate.
type RecordFailurePredicate = breaker.RecordFailurePredicate

// CircuitBreakerMetrics is the read-only statistics view (C3).
type CircuitBreakerMetrics = breaker.Metrics

// CircuitBreakerDiagnostics adds predictive fields to CircuitBreakerMetrics.
type CircuitBreakerDiagnostics = breaker.Diagnostics

const (
	CircuitBreakerClosed   = breaker.StateClosed
	CircuitBreakerOpen     = breaker.StateOpen
	CircuitBreakerHalfOpen = breaker.StateHalfOpen
)

// NewCircuitBreaker constructs a CircuitBreaker in the Closed state.
// Panics with breaker.NullNameError if name is empty, or
// breaker.NullConfigError if cfg was never built via
// NewCircuitBreakerConfig().Build().
var NewCircuitBreaker = breaker.New

// NewCircuitBreakerConfig returns a builder pre-populated with spec
// defaults (50% threshold, 100-call closed buffer, 10-call half-open
// buffer, 60s wait).
var NewCircuitBreakerConfig = breaker.NewConfigBuilder

// DefaultCircuitBreakerConfig returns a CircuitBreakerConfig populated
// entirely with defaults.
var DefaultCircuitBreakerConfig = breaker.DefaultConfig

// --- Rate limiter ---

// RateLimiter is the common surface both rate limiter implementations
// satisfy, for code that wants to accept either interchangeably.
type RateLimiter interface {
	Name() string
	AcquirePermission(ctx context.Context, timeout time.Duration) bool
	EventStream() *events.Stream
}

// AtomicRateLimiter implements precise permit accounting via a single
// atomic state cell updated in a CAS loop (C4).
type AtomicRateLimiter = ratelimiter.AtomicRateLimiter

// SemaphoreRateLimiter implements a simpler, tick-refreshed counted
// semaphore (C5).
type SemaphoreRateLimiter = ratelimiter.SemaphoreRateLimiter

// RateLimiterConfig is the immutable configuration shared by both rate
// limiter implementations.
type RateLimiterConfig = ratelimiter.Config

// RateLimiterConfigBuilder builds a validated RateLimiterConfig.
type RateLimiterConfigBuilder = ratelimiter.ConfigBuilder

// AtomicRateLimiterMetrics is the read-only view over an
// AtomicRateLimiter's live permit accounting.
type AtomicRateLimiterMetrics = ratelimiter.Metrics

// SemaphoreRateLimiterMetrics is the read-only view over a
// SemaphoreRateLimiter's live token count.
type SemaphoreRateLimiterMetrics = ratelimiter.SemaphoreMetrics

// NewAtomicRateLimiter constructs an AtomicRateLimiter.
var NewAtomicRateLimiter = ratelimiter.NewAtomicRateLimiter

// NewSemaphoreRateLimiter constructs a SemaphoreRateLimiter and starts its
// background refresh goroutine. Call Close when done with it.
var NewSemaphoreRateLimiter = ratelimiter.NewSemaphoreRateLimiter

// NewRateLimiterConfig returns a builder pre-populated with spec defaults
// (5s timeout, 500ns refresh period, 50 permits per period).
var NewRateLimiterConfig = ratelimiter.NewConfigBuilder

// DefaultRateLimiterConfig returns a RateLimiterConfig populated entirely
// with defaults.
var DefaultRateLimiterConfig = ratelimiter.DefaultConfig

// --- Events ---

// Event describes one outcome or state transition emitted by a
// CircuitBreaker or RateLimiter (C6).
type Event = events.Event

// EventKind tags the variant of an Event.
type EventKind = events.Kind

const (
	EventSuccess         = events.KindSuccess
	EventError           = events.KindError
	EventIgnoredError    = events.KindIgnoredError
	EventStateTransition = events.KindStateTransition
	EventPermitAcquired  = events.KindPermitAcquired
	EventPermitDenied    = events.KindPermitDenied
)

// EventStream is a hot (non-replaying) multi-subscriber broadcaster.
type EventStream = events.Stream

// EventSubscription is a handle returned by EventStream.Subscribe.
type EventSubscription = events.Subscription

// RingEventSubscriber retains the most recent N events published to a
// stream, for callers that want a bounded replay buffer rather than a raw
// channel.
type RingEventSubscriber = events.RingSubscriber

// NewRingEventSubscriber constructs a RingEventSubscriber over stream.
var NewRingEventSubscriber = events.NewRingSubscriber

// --- Errors ---

var (
	// ErrCallNotPermitted is returned by Call/CallContext when the
	// circuit breaker rejects the call because it is Open and its wait
	// duration has not yet elapsed. HalfOpen permits every call — see
	// breaker.CircuitBreaker.IsCallPermitted.
	ErrCallNotPermitted = breaker.ErrCallNotPermitted

	// ErrRequestNotPermitted is returned by Acquire when no rate limiter
	// permit becomes available within the given timeout.
	ErrRequestNotPermitted = errors.New("resilience: request not permitted")

	// errRecoveredPanic is the cause OnError records when Call/CallContext
	// recovers a panic from the wrapped function, before re-panicking.
	errRecoveredPanic = errors.New("resilience: recovered panic in protected call")
)

// ConfigurationError is returned by CircuitBreakerConfigBuilder.Build
// when a field fails validation, naming the offending field (C7).
type ConfigurationError = breaker.ConfigurationError

// RateLimiterConfigurationError is ConfigurationError's counterpart for
// RateLimiterConfigBuilder.Build. The two are distinct types (different
// Field domains), so a caller building a rate limiter config should type
// assert against this one, not ConfigurationError.
type RateLimiterConfigurationError = ratelimiter.ConfigurationError

// CircuitBreakerNullNameError and CircuitBreakerNullConfigError are the
// panic values from NewCircuitBreaker given an empty name or an unbuilt
// zero-value config, per spec.md §6/§7 (programmer error, not a runtime
// condition — hence panic rather than a returned error).
type CircuitBreakerNullNameError = breaker.NullNameError
type CircuitBreakerNullConfigError = breaker.NullConfigError

// RateLimiterNullNameError and RateLimiterNullConfigError are the panic
// values from NewAtomicRateLimiter/NewSemaphoreRateLimiter given an empty
// name or an unbuilt zero-value config.
type RateLimiterNullNameError = ratelimiter.NullNameError
type RateLimiterNullConfigError = ratelimiter.NullConfigError

// Logger is the structured logger interface used for ambient diagnostics
// (e.g. Registry's default-construction log line), satisfied by
// *logrus.Logger and *logrus.Entry.
type Logger = logrus.FieldLogger
