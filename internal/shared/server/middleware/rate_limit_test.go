package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

func newLimitedRouter(limiter *RateLimiter) *gin.Engine {
	r := gin.New()
	r.POST("/analyze", RateLimit(limiter), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	return r
}

func TestRateLimitOnlyGuardsWrappedRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
	limiter := NewRateLimiter(RateLimitRule{Rate: 1, Burst: 2}, clock)
	r := newLimitedRouter(limiter)

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/analyze", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("request %d expected 200, got %d", i+1, resp.Code)
		}
	}

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/analyze", nil))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("request 3 expected 429, got %d", resp.Code)
	}

	for i := 0; i < 5; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("health request %d expected 200, got %d", i+1, resp.Code)
		}
	}

	clock.Advance(time.Second)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/analyze", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("after refill expected 200, got %d", resp.Code)
	}
}

func TestRateLimit429IncludesRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
	limiter := NewRateLimiter(RateLimitRule{Rate: 0.5, Burst: 1}, clock)
	r := newLimitedRouter(limiter)

	resp1 := httptest.NewRecorder()
	r.ServeHTTP(resp1, httptest.NewRequest(http.MethodPost, "/analyze", nil))
	if resp1.Code != http.StatusOK {
		t.Fatalf("expected first request 200, got %d", resp1.Code)
	}

	resp2 := httptest.NewRecorder()
	r.ServeHTTP(resp2, httptest.NewRequest(http.MethodPost, "/analyze", nil))
	if resp2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp2.Code)
	}
	if got := resp2.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After 2, got %q", got)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp2.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["success"] != false || payload["code"] != "RATE_LIMITED" {
		t.Fatalf("unexpected body: %v", payload)
	}
}

func TestRateLimitDisabledRuleAllowsEverything(t *testing.T) {
	limiter := NewRateLimiter(RateLimitRule{}, nil)
	for i := 0; i < 100; i++ {
		if ok, _ := limiter.Allow("client"); !ok {
			t.Fatalf("disabled limiter refused request %d", i+1)
		}
	}
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
	limiter := NewRateLimiter(RateLimitRule{Rate: 1, Burst: 2}, clock)

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		if ok, _ := limiter.Allow(ip); !ok {
			t.Fatalf("first request from %s refused", ip)
		}
	}
	if got := limiter.size(); got != 3 {
		t.Fatalf("expected 3 tracked clients, got %d", got)
	}

	clock.Advance(30 * time.Second)
	limiter.Allow("10.0.0.1")
	if got := limiter.size(); got != 3 {
		t.Fatalf("expected no eviction before the idle window, got %d clients", got)
	}

	clock.Advance(45 * time.Second)
	limiter.Allow("10.0.0.4")
	if got := limiter.size(); got != 2 {
		t.Fatalf("expected idle clients evicted, got %d clients", got)
	}
}

func TestRateLimiterEvictionKeepsActiveBucket(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
	limiter := NewRateLimiter(RateLimitRule{Rate: 0.01, Burst: 1}, clock)

	if ok, _ := limiter.Allow("client"); !ok {
		t.Fatal("first request refused")
	}
	clock.Advance(90 * time.Second)
	if ok, _ := limiter.Allow("client"); ok {
		t.Fatal("bucket reset before it could refill")
	}
}
