package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRateLimiter(t *testing.T, maxReqs int, window time.Duration, key KeyFunc) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client, "test", maxReqs, window, key), mr
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func headerKey(r *http.Request) string {
	return r.Header.Get("X-User")
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	rl, _ := setupRateLimiter(t, 5, time.Minute, nil)
	handler := rl.Middleware(okHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("POST", "/api/v1/retention/run", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl, _ := setupRateLimiter(t, 1, time.Hour, headerKey)
	handler := rl.Middleware(okHandler())

	req := httptest.NewRequest("POST", "/api/v1/retention/run", nil)
	req.Header.Set("X-User", "u1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest("POST", "/api/v1/retention/run", nil)
	req.Header.Set("X-User", "u1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "3600" {
		t.Fatalf("expected Retry-After: 3600, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl, _ := setupRateLimiter(t, 1, time.Hour, headerKey)
	handler := rl.Middleware(okHandler())

	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("X-User", "u1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest("POST", "/", nil)
	req.Header.Set("X-User", "u2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a different caller, got %d", rec.Code)
	}
}

func TestRateLimiter_EmptyKeySkipsLimit(t *testing.T) {
	rl, mr := setupRateLimiter(t, 1, time.Hour, headerKey)
	handler := rl.Middleware(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("expected no keys written, got %v", mr.Keys())
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl, _ := setupRateLimiter(t, 1, time.Hour, headerKey)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	handler := rl.Middleware(okHandler())

	send := func() int {
		req := httptest.NewRequest("POST", "/", nil)
		req.Header.Set("X-User", "u1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send(); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	now = now.Add(30 * time.Minute)
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 inside window, got %d", code)
	}
	now = now.Add(2 * time.Hour)
	if code := send(); code != http.StatusOK {
		t.Fatalf("expected 200 after window, got %d", code)
	}
}

func TestRateLimiter_FailsOpenOnRedisError(t *testing.T) {
	rl, mr := setupRateLimiter(t, 1, time.Minute, nil)
	mr.Close() // kill Redis
	handler := rl.Middleware(okHandler())

	req := httptest.NewRequest("POST", "/", nil)
	req.RemoteAddr = "3.3.3.3:1"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on Redis failure (fail-open), got %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	if got := ClientIP(req); got != "1.2.3.4" {
		t.Fatalf("expected 1.2.3.4, got %q", got)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "5.6.7.8:999"
	if got := ClientIP(req); got != "5.6.7.8" {
		t.Fatalf("expected 5.6.7.8, got %q", got)
	}
}

func TestRateLimiter_RejectedAttemptsDoNotExtendLockout(t *testing.T) {
	rl, _ := setupRateLimiter(t, 1, time.Hour, headerKey)
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := t0
	rl.now = func() time.Time { return now }
	handler := rl.Middleware(okHandler())

	send := func(at time.Duration) *httptest.ResponseRecorder {
		now = t0.Add(at)
		req := httptest.NewRequest("POST", "/api/v1/retention/run", nil)
		req.Header.Set("X-User", "u1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(0); rec.Code != http.StatusOK {
		t.Fatalf("t0: expected 200, got %d", rec.Code)
	}

	rec := send(30 * time.Minute)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("t0+30m: expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "1800" {
		t.Fatalf("t0+30m: expected Retry-After 1800, got %q", got)
	}

	for _, at := range []time.Duration{45 * time.Minute, 59 * time.Minute} {
		if rec := send(at); rec.Code != http.StatusTooManyRequests {
			t.Fatalf("t0+%v: expected 429, got %d", at, rec.Code)
		}
	}

	if rec := send(61 * time.Minute); rec.Code != http.StatusOK {
		t.Fatalf("t0+61m: expected 200 one window after the only admitted run, got %d", rec.Code)
	}
}

func TestRateLimiter_AllowReportsRetryAfter(t *testing.T) {
	rl, mr := setupRateLimiter(t, 2, 10*time.Minute, nil)
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := t0
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	for _, at := range []time.Duration{0, 4 * time.Minute} {
		now = t0.Add(at)
		ok, _, err := rl.Allow(ctx, "k")
		if err != nil || !ok {
			t.Fatalf("t0+%v: expected admitted, got ok=%v err=%v", at, ok, err)
		}
	}

	now = t0.Add(6 * time.Minute)
	ok, retry, err := rl.Allow(ctx, "k")
	if err != nil || ok {
		t.Fatalf("expected rejection, got ok=%v err=%v", ok, err)
	}
	if retry != 4*time.Minute {
		t.Fatalf("expected retry after 4m, got %v", retry)
	}

	members, err := mr.ZMembers("k")
	if err != nil {
		t.Fatalf("reading window: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("rejected hit must not be recorded, window has %d entries", len(members))
	}
}

func TestRetrySeconds(t *testing.T) {
	cases := map[time.Duration]int{
		0:                       1,
		300 * time.Millisecond:  1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
		time.Hour:               3600,
	}
	for in, want := range cases {
		if got := retrySeconds(in); got != want {
			t.Errorf("retrySeconds(%v) = %d, want %d", in, got, want)
		}
	}
}
