package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestInMemoryLimiter_Allow(t *testing.T) {
	l := NewInMemoryLimiter()
	ctx := context.Background()

	allowed, remaining, _, err := l.Allow(ctx, "client1", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("first request should be allowed")
	}
	if remaining != 2 {
		t.Errorf("remaining = %d, want 2", remaining)
	}

	l.Allow(ctx, "client1", 3)
	l.Allow(ctx, "client1", 3)

	allowed, remaining, _, _ = l.Allow(ctx, "client1", 3)
	if allowed {
		t.Error("request over the limit should be denied")
	}
	if remaining != 0 {
		t.Errorf("remaining = %d, want 0", remaining)
	}
}

func TestInMemoryLimiter_ClientsIsolated(t *testing.T) {
	l := NewInMemoryLimiter()
	ctx := context.Background()

	l.Allow(ctx, "client1", 1)

	if allowed, _, _, _ := l.Allow(ctx, "client1", 1); allowed {
		t.Error("client1 should be limited")
	}
	if allowed, _, _, _ := l.Allow(ctx, "client2", 1); !allowed {
		t.Error("client2 must not inherit client1's window")
	}
}

func TestInMemoryLimiter_WindowRollover(t *testing.T) {
	l := NewInMemoryLimiter()
	current := time.Now()
	l.now = func() time.Time { return current }
	ctx := context.Background()

	l.Allow(ctx, "client1", 1)
	if allowed, _, _, _ := l.Allow(ctx, "client1", 1); allowed {
		t.Fatal("should be limited inside the window")
	}

	current = current.Add(61 * time.Second)
	if allowed, _, _, _ := l.Allow(ctx, "client1", 1); !allowed {
		t.Error("window should reset after a minute")
	}
}

func TestInMemoryLimiter_ResetTime(t *testing.T) {
	l := NewInMemoryLimiter()

	_, _, resetAt, err := l.Allow(context.Background(), "client1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	diff := resetAt.Sub(time.Now().Add(time.Minute))
	if diff < -time.Second || diff > time.Second {
		t.Errorf("resetAt should be ~1 minute out, diff %v", diff)
	}
}

func TestInMemoryLimiter_ConcurrentAccess(t *testing.T) {
	l := NewInMemoryLimiter()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				l.Allow(ctx, "client1", 100)
			}
		}()
	}
	wg.Wait()

	if allowed, _, _, _ := l.Allow(ctx, "client1", 100); allowed {
		t.Error("200 concurrent requests should have exhausted a limit of 100")
	}
}
