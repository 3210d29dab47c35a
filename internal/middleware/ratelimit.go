package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aiox-platform/governor/internal/metrics"
)

// KeyFunc extracts the caller identity a limit is tracked against.
// An empty key skips limiting for that request.
type KeyFunc func(r *http.Request) string

// RateLimiter provides sliding-window rate limiting backed by Redis sorted sets.
type RateLimiter struct {
	client  redis.Cmdable
	prefix  string
	maxReqs int
	window  time.Duration
	key     KeyFunc
	now     func() time.Time
}

// NewRateLimiter creates a rate limiter that allows maxReqs per window for
// each key. A nil key function limits per client IP.
func NewRateLimiter(client redis.Cmdable, prefix string, maxReqs int, window time.Duration, key KeyFunc) *RateLimiter {
	if key == nil {
		key = ClientIP
	}
	return &RateLimiter{
		client:  client,
		prefix:  prefix,
		maxReqs: maxReqs,
		window:  window,
		key:     key,
		now:     time.Now,
	}
}

// Middleware returns an HTTP middleware that enforces the rate limit.
// On Redis errors it fails open (allows the request through).
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := rl.key(r)
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		key := "ratelimit:" + rl.prefix + ":" + id

		allowed, retryAfter, err := rl.Allow(r.Context(), key)
		if err != nil {
			slog.Warn("rate limiter: redis error, failing open", "error", err, "key", key)
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			metrics.RateLimitRejectionsTotal.WithLabelValues(rl.prefix).Inc()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(retryAfter)))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// slidingWindow trims expired hits and records a new one only while the key
// is under the limit. Rejected attempts leave the window untouched. Returns
// {1, 0} when admitted, otherwise {0, ms until the oldest hit expires}.
var slidingWindow = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) < limit then
	redis.call('ZADD', key, now, ARGV[4])
	redis.call('PEXPIRE', key, window)
	return {1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local wait = window
if oldest[2] then
	wait = tonumber(oldest[2]) + window - now
end
return {0, wait}
`)

// Allow admits a hit against key if it is within the limit. When it is not,
// retryAfter is the time until the oldest counted hit leaves the window.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error) {
	now := rl.now()
	res, err := slidingWindow.Run(ctx, rl.client, []string{key},
		now.UnixMilli(), rl.window.Milliseconds(), rl.maxReqs, strconv.FormatInt(now.UnixNano(), 10),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("evaluating rate limit: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("evaluating rate limit: unexpected reply %v", res)
	}
	return res[0] == 1, time.Duration(res[1]) * time.Millisecond, nil
}

func retrySeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// ClientIP returns the originating client address.
func ClientIP(r *http.Request) string {
	// Check X-Forwarded-For first (trusted reverse proxy)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
