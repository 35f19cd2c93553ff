package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiterDefaults(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 1 {
		t.Errorf("expected burst 1 for invalid input, got %d", l2.defaultBurst)
	}
}

func TestLimiterWait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "http://example.com/doc.txt"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := limiter.Wait(ctx, "http://other.example/doc.txt"); err != nil {
		t.Errorf("wait for second host failed: %v", err)
	}
}

func TestLimiterPerHostBuckets(t *testing.T) {
	limiter := NewLimiter(1, 1)

	if !limiter.Allow("http://example.com/a") {
		t.Errorf("first request should pass")
	}
	if limiter.Allow("http://example.com/b") {
		t.Errorf("second request to same host should be throttled")
	}
	if !limiter.Allow("http://other.example/a") {
		t.Errorf("different host should have its own bucket")
	}
}

func TestLimiterSetHostRate(t *testing.T) {
	limiter := NewLimiter(100, 10)
	limiter.SetHostRate("slow.example", 0.1, 1)

	if !limiter.Allow("http://slow.example/doc") {
		t.Errorf("first request should consume the burst token")
	}
	if limiter.Allow("http://slow.example/doc") {
		t.Errorf("second request should be throttled")
	}
	if !limiter.Allow("http://fast.example/doc") {
		t.Errorf("other host should keep the default rate")
	}
}

func TestLimiterWaitWithDelay(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	start := time.Now()
	if err := limiter.WaitWithDelay(ctx, "http://example.com", 50*time.Millisecond); err != nil {
		t.Fatalf("WaitWithDelay failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("expected at least 50ms delay, got %v", elapsed)
	}
}

func TestLimiterWaitWithDelayCancelled(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.WaitWithDelay(ctx, "http://example.com", time.Second); err == nil {
		t.Errorf("expected error for cancelled context")
	}
}

func TestHostOf(t *testing.T) {
	host, err := hostOf("http://example.com/doc.txt")
	if err != nil {
		t.Fatalf("hostOf failed: %v", err)
	}
	if host != "example.com" {
		t.Errorf("expected example.com, got %s", host)
	}

	if _, err := hostOf("::invalid"); err == nil {
		t.Errorf("expected error for invalid URL")
	}
}
