package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestKeyByClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	if key := KeyByClientIP()(c); key != "ip:203.0.113.9" {
		t.Fatalf("expected ip-based key; got %q", key)
	}
}

func TestNewRateLimiter_Defaults_AndBucketReuse(t *testing.T) {
	rl := NewRateLimiter(2.0, 0, KeyByClientIP(), WithIdleTTL(-time.Second))
	if rl.burst != 1 {
		t.Fatalf("burst coercion failed, got %d", rl.burst)
	}
	if rl.idleTTL != defaultIdleTTL {
		t.Fatalf("non-positive TTL must keep the default, got %v", rl.idleTTL)
	}

	now := time.Now()
	lim := rl.limiterFor("k1", now)
	if got := rl.limiterFor("k1", now); got != lim {
		t.Fatalf("expected same limiter instance to be reused")
	}
	if rl.size() != 1 {
		t.Fatalf("size = %d, want 1", rl.size())
	}
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	start := time.Now()
	rl := NewRateLimiter(1, 1, KeyByClientIP(), WithIdleTTL(time.Minute))
	rl.lastSweep = start

	rl.limiterFor("old", start)
	rl.limiterFor("recent", start.Add(50*time.Second))

	// Not yet time to sweep: everything stays.
	rl.limiterFor("10.0.0.9", start.Add(55*time.Second))
	if rl.size() != 3 {
		t.Fatalf("size before sweep = %d, want 3", rl.size())
	}

	// Past the sweep interval: "old" (idle 61s) goes, the others stay.
	rl.limiterFor("new", start.Add(61*time.Second))
	rl.mu.Lock()
	_, hasOld := rl.buckets["old"]
	_, hasRecent := rl.buckets["recent"]
	_, hasNew := rl.buckets["new"]
	rl.mu.Unlock()
	if hasOld || !hasRecent || !hasNew {
		t.Fatalf("sweep result: old=%v recent=%v new=%v", hasOld, hasRecent, hasNew)
	}
}

func TestIsRateBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if IsRateBypass(c) {
		t.Fatalf("expected IsRateBypass=false by default")
	}
	c.Set(ctxKeyRateBypass, "yes")
	if IsRateBypass(c) {
		t.Fatalf("expected IsRateBypass=false when non-bool stored")
	}
	c.Set(ctxKeyRateBypass, true)
	if !IsRateBypass(c) {
		t.Fatalf("expected IsRateBypass=true when set")
	}
}

func limitedRouter(rl *RateLimiter, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Header(requestIDHeader, "rid-1"); c.Next() })
	r.Use(pre...)
	r.Use(rl.Handler())
	r.POST("/api/v1/templates/render/", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/health/", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func hit(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRateLimiter_Handler_DeniesWithEnvelopeAndRetryAfter(t *testing.T) {
	// 1 token per 3s, burst 1: the first render passes, the second waits ~3s.
	rl := NewRateLimiter(1.0/3, 1, KeyByClientIP())
	r := limitedRouter(rl)
	before := testutil.ToFloat64(defaultHTTPMetrics.rejected.WithLabelValues(reasonRateLimited))

	if w := hit(r, http.MethodPost, "/api/v1/templates/render/"); w.Code != http.StatusOK {
		t.Fatalf("first request should be allowed, got %d", w.Code)
	}
	w := hit(r, http.MethodPost, "/api/v1/templates/render/")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be rate-limited, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "3" {
		t.Fatalf("expected Retry-After=3, got %q", got)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["error"] != "too_many_requests" || body["message"] != "rate limit exceeded" || body["request_id"] != "rid-1" {
		t.Fatalf("unexpected JSON body: %v", body)
	}
	if got := testutil.ToFloat64(defaultHTTPMetrics.rejected.WithLabelValues(reasonRateLimited)); got != before+1 {
		t.Fatalf("rejected counter = %v, want %v", got, before+1)
	}

	// The denied request did not consume a token: the refill horizon is unchanged.
	if w := hit(r, http.MethodPost, "/api/v1/templates/render/"); w.Header().Get("Retry-After") != "3" {
		t.Fatalf("denied request must not push the horizon, got %q", w.Header().Get("Retry-After"))
	}
}

func TestRateLimiter_ZeroRate(t *testing.T) {
	rl := NewRateLimiter(0, 1, KeyByClientIP())
	r := limitedRouter(rl)
	if w := hit(r, http.MethodPost, "/api/v1/templates/render/"); w.Code != http.StatusOK {
		t.Fatalf("burst token should be served, got %d", w.Code)
	}
	w := hit(r, http.MethodPost, "/api/v1/templates/render/")
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected 429 with Retry-After=1, got %d %q", w.Code, w.Header().Get("Retry-After"))
	}
}

func TestRateLimiter_Handler_BypassAndSkipPaths(t *testing.T) {
	rl := NewRateLimiter(0, 1, KeyByClientIP(), WithSkipPaths("/health/"))

	// Replays flagged upstream never consume tokens.
	replay := limitedRouter(rl, func(c *gin.Context) { c.Set(ctxKeyRateBypass, true); c.Next() })
	for i := 0; i < 3; i++ {
		if w := hit(replay, http.MethodPost, "/api/v1/templates/render/"); w.Code != http.StatusOK {
			t.Fatalf("replay %d limited: %d", i, w.Code)
		}
	}

	// Skip paths are exempt; the single token is still available afterwards.
	r := limitedRouter(rl)
	for i := 0; i < 3; i++ {
		if w := hit(r, http.MethodGet, "/health/"); w.Code != http.StatusOK {
			t.Fatalf("health check %d limited: %d", i, w.Code)
		}
	}
	if w := hit(r, http.MethodPost, "/api/v1/templates/render/"); w.Code != http.StatusOK {
		t.Fatalf("token should be untouched, got %d", w.Code)
	}
	if rl.size() != 1 {
		t.Fatalf("skipped and bypassed requests must not create buckets, size=%d", rl.size())
	}
}
