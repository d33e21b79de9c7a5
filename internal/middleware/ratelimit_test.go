package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestInMemoryRateLimitStoreAllow(t *testing.T) {
	tests := []struct {
		name        string
		limit       int
		wantAllowed []bool
	}{
		{"allows requests under limit", 5, []bool{true, true, true}},
		{"blocks requests at limit", 5, []bool{true, true, true, true, true, false}},
		{"single request limit", 1, []bool{true, false, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewInMemoryRateLimitStore()
			config := RateLimitConfig{RequestsPerWindow: tt.limit, WindowDuration: time.Minute}
			ctx := context.Background()

			for i, want := range tt.wantAllowed {
				if allowed, _ := store.Allow(ctx, "caller-1", config); allowed != want {
					t.Errorf("request %d: got allowed=%v, want %v", i+1, allowed, want)
				}
			}
		})
	}
}

func TestInMemoryRateLimitStoreRetryAfter(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 10 * time.Second}
	ctx := context.Background()

	allowed, retryAfter := store.Allow(ctx, "caller-1", config)
	if !allowed {
		t.Error("first request should be allowed")
	}
	if retryAfter != 0 {
		t.Errorf("first request retryAfter should be 0, got %d", retryAfter)
	}

	allowed, retryAfter = store.Allow(ctx, "caller-1", config)
	if allowed {
		t.Error("second request should be blocked")
	}
	if retryAfter <= 0 || retryAfter > 10 {
		t.Errorf("retryAfter should be between 1 and 10, got %d", retryAfter)
	}
}

func TestInMemoryRateLimitStoreKeysAreIndependent(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}
	ctx := context.Background()

	allowed1, _ := store.Allow(ctx, "user:alice", config)
	allowed2, _ := store.Allow(ctx, "user:bob", config)
	if !allowed1 || !allowed2 {
		t.Error("each key should get its own budget")
	}

	blocked1, _ := store.Allow(ctx, "user:alice", config)
	blocked2, _ := store.Allow(ctx, "user:bob", config)
	if blocked1 || blocked2 {
		t.Error("both keys should now be exhausted")
	}
}

func TestInMemoryRateLimitStoreWindowExpiry(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 50 * time.Millisecond}
	ctx := context.Background()

	if allowed, _ := store.Allow(ctx, "caller-1", config); !allowed {
		t.Error("first request should be allowed")
	}
	if allowed, _ := store.Allow(ctx, "caller-1", config); allowed {
		t.Error("second request should be blocked")
	}

	time.Sleep(60 * time.Millisecond)

	if allowed, _ := store.Allow(ctx, "caller-1", config); !allowed {
		t.Error("request after window expiry should be allowed")
	}
}

func TestInMemoryRateLimitStoreConcurrency(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Minute}
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var allowedCount int

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := store.Allow(ctx, "shared-key", config); allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowedCount != 100 {
		t.Errorf("expected exactly 100 allowed requests, got %d", allowedCount)
	}
}

func TestInMemoryRateLimitStoreCleanup(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 50 * time.Millisecond}
	ctx := context.Background()

	_, _ = store.Allow(ctx, "user:alice", config)
	_, _ = store.Allow(ctx, "user:bob", config)

	allowed1, _ := store.Allow(ctx, "user:alice", config)
	allowed2, _ := store.Allow(ctx, "user:bob", config)
	if allowed1 || allowed2 {
		t.Error("requests should be blocked before cleanup")
	}

	time.Sleep(60 * time.Millisecond)
	store.Cleanup()

	allowed1, _ = store.Allow(ctx, "user:alice", config)
	allowed2, _ = store.Allow(ctx, "user:bob", config)
	if !allowed1 || !allowed2 {
		t.Errorf("expected fresh budgets after cleanup, got alice=%v bob=%v", allowed1, allowed2)
	}
}

func TestIPKeyFunc(t *testing.T) {
	keyFunc := IPKeyFunc()

	tests := []struct {
		name          string
		remoteAddr    string
		xForwardedFor string
		xRealIP       string
		wantKey       string
	}{
		{name: "uses RemoteAddr", remoteAddr: "192.168.1.1:12345", wantKey: "192.168.1.1"},
		{name: "uses RemoteAddr without port", remoteAddr: "192.168.1.1", wantKey: "192.168.1.1"},
		{name: "prefers X-Forwarded-For", remoteAddr: "10.0.0.1:12345", xForwardedFor: "203.0.113.50", wantKey: "203.0.113.50"},
		{name: "uses first hop of X-Forwarded-For chain", remoteAddr: "10.0.0.1:12345", xForwardedFor: "203.0.113.50, 198.51.100.1, 10.0.0.1", wantKey: "203.0.113.50"},
		{name: "prefers X-Real-IP over RemoteAddr", remoteAddr: "10.0.0.1:12345", xRealIP: "203.0.113.50", wantKey: "203.0.113.50"},
		{name: "prefers X-Forwarded-For over X-Real-IP", remoteAddr: "10.0.0.1:12345", xForwardedFor: "203.0.113.50", xRealIP: "198.51.100.1", wantKey: "203.0.113.50"},
		{name: "strips IPv6 port", remoteAddr: "[::1]:12345", wantKey: "::1"},
		{name: "strips IPv6 port full address", remoteAddr: "[2001:db8::1]:8080", wantKey: "2001:db8::1"},
		{name: "trims whitespace in chain", remoteAddr: "10.0.0.1:12345", xForwardedFor: "  203.0.113.50  ,  198.51.100.1  ", wantKey: "203.0.113.50"},
		{name: "trims whitespace in single value", remoteAddr: "10.0.0.1:12345", xForwardedFor: "  203.0.113.50  ", wantKey: "203.0.113.50"},
		{name: "trims whitespace in X-Real-IP", remoteAddr: "10.0.0.1:12345", xRealIP: "  203.0.113.50  ", wantKey: "203.0.113.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/claims", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xForwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.xForwardedFor)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}

			if got := keyFunc(req); got != tt.wantKey {
				t.Errorf("IPKeyFunc() = %q, want %q", got, tt.wantKey)
			}
		})
	}
}

func TestUserKeyFunc(t *testing.T) {
	keyFunc := UserKeyFunc()

	t.Run("falls back to IP without user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/claims", nil)
		req.RemoteAddr = "192.168.1.1:12345"

		if got := keyFunc(req); got != "ip:192.168.1.1" {
			t.Errorf("UserKeyFunc() = %q, want %q", got, "ip:192.168.1.1")
		}
	})

	t.Run("keys on authenticated user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/claims", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req = req.WithContext(SetUserID(req.Context(), "@astrid"))

		if got := keyFunc(req); got != "user:@astrid" {
			t.Errorf("UserKeyFunc() = %q, want %q", got, "user:@astrid")
		}
	})
}

func rateLimitedHandler(store RateLimitStore, config RateLimitConfig) http.Handler {
	return RateLimiter(store, config, IPKeyFunc())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func doLimitedRequest(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/claims", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterAllowsNormalTraffic(t *testing.T) {
	handler := rateLimitedHandler(NewInMemoryRateLimitStore(),
		RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Minute})

	for i := 0; i < 50; i++ {
		if rec := doLimitedRequest(handler, "192.168.1.1:12345"); rec.Code != http.StatusOK {
			t.Errorf("request %d: got status %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}
}

func TestRateLimiterBlocksBurst(t *testing.T) {
	handler := rateLimitedHandler(NewInMemoryRateLimitStore(),
		RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute})

	var allowed, blocked int
	for i := 0; i < 20; i++ {
		switch rec := doLimitedRequest(handler, "192.168.1.1:12345"); rec.Code {
		case http.StatusOK:
			allowed++
		case http.StatusTooManyRequests:
			blocked++
		default:
			t.Fatalf("request %d: unexpected status %d", i+1, rec.Code)
		}
	}

	if allowed != 10 {
		t.Errorf("expected 10 allowed requests, got %d", allowed)
	}
	if blocked != 10 {
		t.Errorf("expected 10 blocked requests, got %d", blocked)
	}
}

func TestRateLimiterSetsRetryHeaders(t *testing.T) {
	handler := rateLimitedHandler(NewInMemoryRateLimitStore(),
		RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 30 * time.Second})

	if rec := doLimitedRequest(handler, "192.168.1.1:12345"); rec.Code != http.StatusOK {
		t.Fatalf("first request: got status %d, want %d", rec.Code, http.StatusOK)
	}

	rec := doLimitedRequest(handler, "192.168.1.1:12345")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got status %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil {
		t.Fatalf("Retry-After header should be an integer: %v", err)
	}
	if retryAfter <= 0 || retryAfter > 30 {
		t.Errorf("Retry-After should be between 1 and 30, got %d", retryAfter)
	}

	resetTime, err := strconv.ParseInt(rec.Header().Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		t.Fatalf("X-RateLimit-Reset should be a Unix timestamp: %v", err)
	}
	now := time.Now().Unix()
	if resetTime <= now || resetTime > now+30 {
		t.Errorf("X-RateLimit-Reset should be within 30s of now, got %d (now %d)", resetTime, now)
	}
}

func TestRateLimiterClientsAreIndependent(t *testing.T) {
	handler := rateLimitedHandler(NewInMemoryRateLimitStore(),
		RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute})

	for i := 0; i < 5; i++ {
		if rec := doLimitedRequest(handler, "192.168.1.1:12345"); rec.Code != http.StatusOK {
			t.Errorf("client1 request %d should be allowed", i+1)
		}
	}
	if rec := doLimitedRequest(handler, "192.168.1.1:12345"); rec.Code != http.StatusTooManyRequests {
		t.Error("client1 should be blocked")
	}

	for i := 0; i < 5; i++ {
		if rec := doLimitedRequest(handler, "192.168.1.2:12345"); rec.Code != http.StatusOK {
			t.Errorf("client2 request %d should be allowed", i+1)
		}
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	handler := rateLimitedHandler(NewInMemoryRateLimitStore(),
		RateLimitConfig{RequestsPerWindow: 2, WindowDuration: 50 * time.Millisecond})

	if rec := doLimitedRequest(handler, "192.168.1.1:12345"); rec.Code != http.StatusOK {
		t.Error("first request should be allowed")
	}
	if rec := doLimitedRequest(handler, "192.168.1.1:12345"); rec.Code != http.StatusOK {
		t.Error("second request should be allowed")
	}
	if rec := doLimitedRequest(handler, "192.168.1.1:12345"); rec.Code != http.StatusTooManyRequests {
		t.Error("third request should be blocked")
	}

	time.Sleep(60 * time.Millisecond)

	if rec := doLimitedRequest(handler, "192.168.1.1:12345"); rec.Code != http.StatusOK {
		t.Error("request after window reset should be allowed")
	}
}

func TestDefaultLimits(t *testing.T) {
	tests := []struct {
		name   string
		config RateLimitConfig
		want   int
	}{
		{"global", DefaultGlobalLimit(), 100},
		{"auth", DefaultAuthLimit(), 10},
		{"search", DefaultSearchLimit(), 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.config.RequestsPerWindow != tt.want {
				t.Errorf("RequestsPerWindow = %d, want %d", tt.config.RequestsPerWindow, tt.want)
			}
			if tt.config.WindowDuration != time.Minute {
				t.Errorf("WindowDuration = %v, want %v", tt.config.WindowDuration, time.Minute)
			}
			if err := tt.config.Validate(); err != nil {
				t.Errorf("default config should validate: %v", err)
			}
		})
	}
}

func TestRateLimitConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		config    RateLimitConfig
		wantError bool
	}{
		{"valid config", RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Minute}, false},
		{"zero requests", RateLimitConfig{RequestsPerWindow: 0, WindowDuration: time.Minute}, true},
		{"negative requests", RateLimitConfig{RequestsPerWindow: -1, WindowDuration: time.Minute}, true},
		{"zero window", RateLimitConfig{RequestsPerWindow: 100, WindowDuration: 0}, true},
		{"negative window", RateLimitConfig{RequestsPerWindow: 100, WindowDuration: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("expected no validation error, got %v", err)
			}
		})
	}
}
