package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-uptask/app/middleware"
	"github.com/vibast-solutions/ms-go-uptask/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

func newLimitedServer(t *testing.T, cfg config.RateLimitConfig) (*echo.Echo, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := echo.New()
	limiter := middleware.NewRateLimiter(rdb, cfg, "test")
	e.POST("/api/auth/login", okHandler, limiter.Limit)
	return e, mr
}

func post(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_BlocksAfterCapacity(t *testing.T) {
	e, _ := newLimitedServer(t, config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
	})

	for i := 0; i < 2; i++ {
		if rec := post(e, "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	rec := post(e, "10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	if rec = post(e, "10.0.0.2"); rec.Code != http.StatusOK {
		t.Fatalf("other clients must have their own bucket, got %d", rec.Code)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	e, _ := newLimitedServer(t, config.RateLimitConfig{Enabled: false, Capacity: 1})

	for i := 0; i < 3; i++ {
		if rec := post(e, "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
}

func TestRateLimiter_FailsOpenWithoutRedis(t *testing.T) {
	e, mr := newLimitedServer(t, config.RateLimitConfig{
		Enabled:        true,
		Capacity:       1,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            time.Minute,
	})
	mr.Close()

	for i := 0; i < 2; i++ {
		if rec := post(e, "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
}
