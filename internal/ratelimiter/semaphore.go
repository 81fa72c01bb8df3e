package ratelimiter

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ridgeline-dev/resilience/internal/events"
)

// SemaphoreRateLimiter implements C5: an alternative rate limiter backed by
// a counted semaphore (a buffered channel of tokens) that a scheduled tick
// refreshes every LimitRefreshPeriod. Simpler than AtomicRateLimiter, but
// permit availability is only as precise as the tick, not the microsecond —
// the tradeoff spec.md §4.5 documents explicitly.
type SemaphoreRateLimiter struct {
	name string

	mu  sync.Mutex
	cfg Config

	tokens chan struct{} // counted semaphore
	waiting atomic.Int32

	stream *events.Stream

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSemaphoreRateLimiter constructs a SemaphoreRateLimiter and starts its
// background refresh goroutine, which ticks every cfg.LimitRefreshPeriod
// and calls refreshLimit.
func NewSemaphoreRateLimiter(name string, cfg Config) *SemaphoreRateLimiter {
	if name == "" {
		panic(NullNameError{})
	}
	if cfg.LimitForPeriod == 0 || cfg.LimitRefreshPeriod == 0 {
		panic(NullConfigError{})
	}
	rl := &SemaphoreRateLimiter{
		name:   name,
		cfg:    cfg,
		tokens: make(chan struct{}, cfg.LimitForPeriod),
		stream: &events.Stream{},
		stop:   make(chan struct{}),
	}
	for i := 0; i < cfg.LimitForPeriod; i++ {
		rl.tokens <- struct{}{}
	}
	go rl.refreshLoop()
	return rl
}

// Name returns the rate limiter's identifier.
func (rl *SemaphoreRateLimiter) Name() string { return rl.name }

// Config returns the current configuration snapshot.
func (rl *SemaphoreRateLimiter) Config() Config {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.cfg
}

// EventStream returns the publish-subscribe stream of permit events (C6).
func (rl *SemaphoreRateLimiter) EventStream() *events.Stream { return rl.stream }

// ChangeLimitForPeriod updates the permits released per refresh tick.
// Takes effect on the next tick; it does not resize the existing token
// channel mid-flight.
func (rl *SemaphoreRateLimiter) ChangeLimitForPeriod(n int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.cfg.LimitForPeriod = n
}

// ChangeTimeoutDuration updates how long a caller waits for a permit.
func (rl *SemaphoreRateLimiter) ChangeTimeoutDuration(d time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.cfg.TimeoutDuration = d
}

// AcquirePermission calls tryAcquire(timeout) on the underlying semaphore,
// returning its result, per spec.md §4.5.
func (rl *SemaphoreRateLimiter) AcquirePermission(ctx context.Context, timeout time.Duration) bool {
	rl.waiting.Add(1)
	defer rl.waiting.Add(-1)

	if timeout <= 0 {
		select {
		case <-rl.tokens:
			rl.publish(true)
			return true
		default:
			rl.publish(false)
			return false
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-rl.tokens:
		rl.publish(true)
		return true
	case <-timer.C:
		rl.publish(false)
		return false
	case <-ctx.Done():
		rl.publish(false)
		return false
	}
}

// refreshLoop ticks every LimitRefreshPeriod and calls refreshLimit.
func (rl *SemaphoreRateLimiter) refreshLoop() {
	rl.mu.Lock()
	period := rl.cfg.LimitRefreshPeriod
	rl.mu.Unlock()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.refreshLimit()
		case <-rl.stop:
			return
		}
	}
}

// refreshLimit releases up to limitForPeriod-availablePermits permits,
// never exceeding limitForPeriod, per spec.md §4.5.
func (rl *SemaphoreRateLimiter) refreshLimit() {
	rl.mu.Lock()
	limit := rl.cfg.LimitForPeriod
	rl.mu.Unlock()

	available := len(rl.tokens)
	toRelease := limit - available
	for i := 0; i < toRelease; i++ {
		select {
		case rl.tokens <- struct{}{}:
		default:
			return // another goroutine filled it concurrently
		}
	}
}

// Close stops the background refresh goroutine. A stopped limiter continues
// to serve AcquirePermission against whatever tokens remain, but the
// semaphore will never refill again.
func (rl *SemaphoreRateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *SemaphoreRateLimiter) publish(granted bool) {
	kind := events.KindPermitDenied
	if granted {
		kind = events.KindPermitAcquired
	}
	rl.stream.Publish(events.Event{Name: rl.name, Kind: kind})
}

// SemaphoreMetrics is the read-only view over a SemaphoreRateLimiter.
type SemaphoreMetrics struct {
	AvailablePermits       int
	NumberOfWaitingThreads int32
}

// Metrics returns a snapshot of available permits and waiters.
func (rl *SemaphoreRateLimiter) Metrics() SemaphoreMetrics {
	return SemaphoreMetrics{
		AvailablePermits:       len(rl.tokens),
		NumberOfWaitingThreads: rl.waiting.Load(),
	}
}
