package ratelimiter

import (
	"context"
	"testing"
	"time"
)

func TestAtomicGrantsLimitThenBlocks(t *testing.T) {
	// scenario 6 from spec: limit 2 / 100ms, timeout 0.
	cfg, err := NewConfigBuilder().
		WithLimitForPeriod(2).
		WithLimitRefreshPeriod(100 * time.Millisecond).
		WithTimeoutDuration(0).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	rl := NewAtomicRateLimiter("test", cfg)
	ctx := context.Background()

	if !rl.AcquirePermission(ctx, 0) {
		t.Fatal("1st acquire = false, want true")
	}
	if !rl.AcquirePermission(ctx, 0) {
		t.Fatal("2nd acquire = false, want true")
	}
	if rl.AcquirePermission(ctx, 0) {
		t.Fatal("3rd acquire = true, want false")
	}

	time.Sleep(110 * time.Millisecond)
	if !rl.AcquirePermission(ctx, 0) {
		t.Fatal("acquire after refresh = false, want true")
	}
}

func TestAtomicAcquireWaitsWithinTimeout(t *testing.T) {
	cfg, _ := NewConfigBuilder().
		WithLimitForPeriod(1).
		WithLimitRefreshPeriod(50 * time.Millisecond).
		Build()
	rl := NewAtomicRateLimiter("test", cfg)
	ctx := context.Background()

	if !rl.AcquirePermission(ctx, 0) {
		t.Fatal("first acquire should succeed immediately")
	}

	start := time.Now()
	ok := rl.AcquirePermission(ctx, 200*time.Millisecond)
	elapsed := time.Since(start)
	if !ok {
		t.Fatal("acquire with sufficient timeout should eventually succeed")
	}
	if elapsed < 10*time.Millisecond {
		t.Fatalf("acquire returned suspiciously fast: %v", elapsed)
	}
}

func TestAtomicContextCancellationReturnsFalse(t *testing.T) {
	// scenario 7 from spec: cancellation while parked returns false promptly.
	cfg, _ := NewConfigBuilder().
		WithLimitForPeriod(1).
		WithLimitRefreshPeriod(5 * time.Second).
		Build()
	rl := NewAtomicRateLimiter("test", cfg)

	ctx, cancel := context.WithCancel(context.Background())
	rl.AcquirePermission(ctx, 0) // consume the only permit

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	ok := rl.AcquirePermission(ctx, 5*time.Second)
	elapsed := time.Since(start)

	if ok {
		t.Fatal("AcquirePermission() = true after cancellation, want false")
	}
	if elapsed > time.Second {
		t.Fatalf("cancellation took too long to take effect: %v", elapsed)
	}
}

func TestAtomicMetricsNeverNegative(t *testing.T) {
	cfg, _ := NewConfigBuilder().WithLimitForPeriod(1).WithLimitRefreshPeriod(time.Second).Build()
	rl := NewAtomicRateLimiter("test", cfg)
	ctx := context.Background()

	rl.AcquirePermission(ctx, 0)
	rl.AcquirePermission(ctx, 0) // denied; timeout 0 means no reservation is committed

	if m := rl.Metrics(); m.AvailablePermissions < 0 {
		t.Fatalf("AvailablePermissions = %d, want >= 0", m.AvailablePermissions)
	}
}

func TestChangeLimitForPeriodTakesEffect(t *testing.T) {
	cfg, _ := NewConfigBuilder().WithLimitForPeriod(1).WithLimitRefreshPeriod(time.Second).Build()
	rl := NewAtomicRateLimiter("test", cfg)
	rl.ChangeLimitForPeriod(5)
	if rl.Config().LimitForPeriod != 5 {
		t.Fatalf("LimitForPeriod = %d, want 5", rl.Config().LimitForPeriod)
	}
}
