package server

import (
	"net/http"
	"testing"
	"time"

	"autopull/internal/mapping"
)

func TestRateLimiter_SweepsIdleAddresses(t *testing.T) {
	clock := time.Now()
	rl := NewHookRateLimiter(10)
	rl.now = func() time.Time { return clock }
	rl.lastSweep = clock

	rl.GetLimiter("10.0.0.1")
	rl.GetLimiter("10.0.0.2")
	if rl.Len() != 2 {
		t.Fatalf("Expected 2 tracked addresses, got %d", rl.Len())
	}

	// 10.0.0.2 stays active, 10.0.0.1 goes idle.
	clock = clock.Add(LimiterIdleTTL - time.Second)
	rl.GetLimiter("10.0.0.2")

	clock = clock.Add(LimiterSweepInterval)
	rl.GetLimiter("10.0.0.3")

	if rl.Len() != 2 {
		t.Errorf("Expected idle address to be swept, tracking %d", rl.Len())
	}
	if _, ok := rl.limiters["10.0.0.1"]; ok {
		t.Error("Expected 10.0.0.1 to be removed")
	}
	if _, ok := rl.limiters["10.0.0.2"]; !ok {
		t.Error("Expected active 10.0.0.2 to be kept")
	}
}

func TestRateLimiter_NoSweepBeforeInterval(t *testing.T) {
	clock := time.Now()
	rl := NewHookRateLimiter(10)
	rl.now = func() time.Time { return clock }
	rl.lastSweep = clock

	rl.GetLimiter("10.0.0.1")
	rl.limiters["10.0.0.1"].lastSeen = clock.Add(-2 * LimiterIdleTTL)

	clock = clock.Add(LimiterSweepInterval / 2)
	rl.GetLimiter("10.0.0.2")

	if rl.Len() != 2 {
		t.Errorf("Expected no sweep before the interval, tracking %d", rl.Len())
	}
}

func TestRouter_SharesRateLimiterAcrossRouters(t *testing.T) {
	server := setupTestServer(t, serverConfig{
		entries: []mapping.Entry{{Key: "site", Target: t.TempDir()}},
		opts:    Options{RateLimit: 1},
	})

	first := server.Router()
	second := server.Router()

	rr := server.serve(first, "POST", "/autopull/site")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", rr.Code)
	}

	rr = server.serve(second, "POST", "/autopull/site")
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("Expected a second router to see the same limit, got %d", rr.Code)
	}
}

func TestRouter_NoLimiterWhenDisabled(t *testing.T) {
	server := setupTestServer(t, serverConfig{
		entries: []mapping.Entry{{Key: "site", Target: t.TempDir()}},
	})
	if server.limiter != nil {
		t.Error("Expected no rate limiter when RateLimit is zero")
	}
}
