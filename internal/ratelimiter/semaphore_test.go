package ratelimiter

import (
	"context"
	"testing"
	"time"
)

func TestSemaphoreGrantsLimitThenBlocks(t *testing.T) {
	cfg, _ := NewConfigBuilder().
		WithLimitForPeriod(2).
		WithLimitRefreshPeriod(100 * time.Millisecond).
		Build()
	rl := NewSemaphoreRateLimiter("test", cfg)
	defer rl.Close()

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

	time.Sleep(150 * time.Millisecond)
	if !rl.AcquirePermission(ctx, 0) {
		t.Fatal("acquire after refresh tick = false, want true")
	}
}

func TestSemaphoreAcquireBlocksUpToTimeout(t *testing.T) {
	cfg, _ := NewConfigBuilder().
		WithLimitForPeriod(1).
		WithLimitRefreshPeriod(time.Second).
		Build()
	rl := NewSemaphoreRateLimiter("test", cfg)
	defer rl.Close()

	ctx := context.Background()
	rl.AcquirePermission(ctx, 0)

	start := time.Now()
	ok := rl.AcquirePermission(ctx, 50*time.Millisecond)
	elapsed := time.Since(start)

	if ok {
		t.Fatal("acquire should have timed out")
	}
	if elapsed < 40*time.Millisecond {
		t.Fatalf("returned too early: %v", elapsed)
	}
}

func TestSemaphoreRefreshNeverExceedsLimit(t *testing.T) {
	cfg, _ := NewConfigBuilder().
		WithLimitForPeriod(3).
		WithLimitRefreshPeriod(20 * time.Millisecond).
		Build()
	rl := NewSemaphoreRateLimiter("test", cfg)
	defer rl.Close()

	time.Sleep(100 * time.Millisecond)
	if m := rl.Metrics(); m.AvailablePermits > 3 {
		t.Fatalf("AvailablePermits = %d, want <= 3", m.AvailablePermits)
	}
}

func TestSemaphoreContextCancellation(t *testing.T) {
	cfg, _ := NewConfigBuilder().
		WithLimitForPeriod(1).
		WithLimitRefreshPeriod(5 * time.Second).
		Build()
	rl := NewSemaphoreRateLimiter("test", cfg)
	defer rl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	rl.AcquirePermission(context.Background(), 0)

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	ok := rl.AcquirePermission(ctx, 5*time.Second)
	if ok {
		t.Fatal("acquire should have been cancelled")
	}
	if time.Since(start) > time.Second {
		t.Fatal("cancellation took too long")
	}
}
