package ratelimiter

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ridgeline-dev/resilience/internal/events"
)

// state is the immutable snapshot atomically swapped by AtomicRateLimiter,
// matching spec.md §3's AtomicRateLimiter.State: {activeCycle,
// activePermissions, nanosToWait}. activePermissions may go negative when
// callers have reserved future permits.
type state struct {
	activeCycle       int64
	activePermissions int64
	nanosToWait       int64
}

// AtomicRateLimiter implements C4: permit accounting over time cycles via a
// single atomic state cell, following the same "copy → CAS over a single
// atomic reference" idiom the circuit breaker uses for its own state
// transitions (spec.md §9's "immutable state swap").
type AtomicRateLimiter struct {
	name string
	cfg  atomic.Pointer[Config] // runtime-updateable per ChangeLimitForPeriod/ChangeTimeoutDuration
	st   atomic.Pointer[state]

	startTime      int64 // UnixNano, cycle 0's epoch
	waitingThreads atomic.Int32

	stream *events.Stream

	now func() time.Time // overridable for tests
}

// NewAtomicRateLimiter constructs an AtomicRateLimiter with the given name
// and configuration, cycles anchored to the current time.
func NewAtomicRateLimiter(name string, cfg Config) *AtomicRateLimiter {
	if name == "" {
		panic(NullNameError{})
	}
	if cfg.LimitForPeriod == 0 || cfg.LimitRefreshPeriod == 0 {
		panic(NullConfigError{})
	}
	rl := &AtomicRateLimiter{
		name:      name,
		startTime: time.Now().UnixNano(),
		stream:    &events.Stream{},
		now:       time.Now,
	}
	rl.cfg.Store(&cfg)
	rl.st.Store(&state{activeCycle: 0, activePermissions: int64(cfg.LimitForPeriod), nanosToWait: 0})
	return rl
}

// Name returns the rate limiter's identifier.
func (rl *AtomicRateLimiter) Name() string { return rl.name }

// Config returns the current configuration snapshot.
func (rl *AtomicRateLimiter) Config() Config { return *rl.cfg.Load() }

// EventStream returns the publish-subscribe stream of permit events (C6).
func (rl *AtomicRateLimiter) EventStream() *events.Stream { return rl.stream }

// ChangeLimitForPeriod updates the number of permits granted per cycle.
// Takes effect starting the next cycle boundary evaluated by
// AcquirePermission.
func (rl *AtomicRateLimiter) ChangeLimitForPeriod(n int) {
	cur := *rl.cfg.Load()
	cur.LimitForPeriod = n
	rl.cfg.Store(&cur)
}

// ChangeTimeoutDuration updates how long a caller waits for a permit.
func (rl *AtomicRateLimiter) ChangeTimeoutDuration(d time.Duration) {
	cur := *rl.cfg.Load()
	cur.TimeoutDuration = d
	rl.cfg.Store(&cur)
}

func (rl *AtomicRateLimiter) cycle(now time.Time) int64 {
	period := rl.cfg.Load().LimitRefreshPeriod
	return int64(now.UnixNano()-rl.startTime) / int64(period)
}

// AcquirePermission implements spec.md §4.4's CAS-loop algorithm. It blocks
// the calling goroutine only for the computed nanosToWait (never longer than
// timeout), and is cancellable via ctx: on cancellation the reserved permit
// is NOT refunded, matching the documented (non-refunding) contract in
// spec.md §9.
func (rl *AtomicRateLimiter) AcquirePermission(ctx context.Context, timeout time.Duration) bool {
	for {
		prev := rl.st.Load()
		cfg := *rl.cfg.Load()
		now := rl.now()
		currentCycle := rl.cycle(now)
		elapsedCycles := currentCycle - prev.activeCycle

		var newPermissions int64
		if elapsedCycles > 0 {
			newPermissions = prev.activePermissions + elapsedCycles*int64(cfg.LimitForPeriod)
			if newPermissions > int64(cfg.LimitForPeriod) {
				newPermissions = int64(cfg.LimitForPeriod)
			}
		} else {
			newPermissions = prev.activePermissions
		}

		newPermissions--

		var nanosToWait int64
		if newPermissions >= 0 {
			nanosToWait = 0
		} else {
			cyclesNeeded := (-newPermissions + int64(cfg.LimitForPeriod) - 1) / int64(cfg.LimitForPeriod)
			periodStart := rl.startTime + currentCycle*int64(cfg.LimitRefreshPeriod)
			elapsedInCycle := now.UnixNano() - periodStart
			nanosToWait = cyclesNeeded*int64(cfg.LimitRefreshPeriod) - elapsedInCycle
			if nanosToWait < 0 {
				nanosToWait = 0
			}
		}

		if nanosToWait > timeout.Nanoseconds() {
			rl.publish(false)
			return false
		}

		next := &state{activeCycle: currentCycle, activePermissions: newPermissions, nanosToWait: nanosToWait}
		if !rl.st.CompareAndSwap(prev, next) {
			continue // lost the race, retry from the top
		}

		if nanosToWait == 0 {
			rl.publish(true)
			return true
		}

		if rl.park(ctx, time.Duration(nanosToWait)) {
			rl.publish(true)
			return true
		}
		rl.publish(false)
		return false
	}
}

// park blocks for d or until ctx is done, whichever comes first. Returns
// true if the full wait elapsed (permit usable), false if ctx fired first.
func (rl *AtomicRateLimiter) park(ctx context.Context, d time.Duration) bool {
	rl.waitingThreads.Add(1)
	defer rl.waitingThreads.Add(-1)

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (rl *AtomicRateLimiter) publish(granted bool) {
	kind := events.KindPermitDenied
	if granted {
		kind = events.KindPermitAcquired
	}
	rl.stream.Publish(events.Event{Name: rl.name, Kind: kind})
}

// Metrics is the read-only view over an AtomicRateLimiter's live state.
type Metrics struct {
	// AvailablePermissions is max(0, activePermissions); negative internal
	// state (future-cycle reservations) is reported as 0 to callers, per
	// spec.md §4.4.
	AvailablePermissions int64
	NumberOfWaitingThreads int32
}

// Metrics returns a snapshot of current permit accounting.
func (rl *AtomicRateLimiter) Metrics() Metrics {
	st := rl.st.Load()
	avail := st.activePermissions
	if avail < 0 {
		avail = 0
	}
	return Metrics{
		AvailablePermissions:   avail,
		NumberOfWaitingThreads: rl.waitingThreads.Load(),
	}
}
