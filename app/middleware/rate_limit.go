package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-uptask/config"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// tokenBucketScript refills the bucket stored at KEYS[1] and takes one token
// from it. It returns {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
	tokens = capacity
	last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
	local elapsed = math.max(0, now_ms - last_refill)
	local intervals = math.floor(elapsed / interval_ms)
	if intervals > 0 then
		tokens = math.min(capacity, tokens + (intervals * refill_tokens))
		last_refill = last_refill + (intervals * interval_ms)
	end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

// RateLimiter throttles the public auth endpoints per client IP and route
// with a token bucket kept in Redis.
type RateLimiter struct {
	rdb    redis.UniversalClient
	cfg    config.RateLimitConfig
	prefix string
	now    func() time.Time
}

func NewRateLimiter(rdb redis.UniversalClient, cfg config.RateLimitConfig, prefix string) *RateLimiter {
	return &RateLimiter{rdb: rdb, cfg: cfg, prefix: prefix, now: time.Now}
}

func (l *RateLimiter) Limit(next echo.HandlerFunc) echo.HandlerFunc {
	if !l.cfg.Enabled || l.rdb == nil {
		return next
	}

	return func(c echo.Context) error {
		key := l.key(c)
		args := []interface{}{
			l.now().UnixMilli(),
			l.cfg.Capacity,
			l.cfg.RefillTokens,
			l.cfg.RefillInterval.Milliseconds(),
			int64(math.Max(1, l.cfg.TTL.Seconds())),
		}

		values, err := tokenBucketScript.Run(c.Request().Context(), l.rdb, []string{key}, args...).Int64Slice()
		if err != nil || len(values) != 3 {
			// Fail open when Redis is unreachable.
			logrus.WithError(err).WithField("key", key).Warn("Rate limiter unavailable")
			return next(c)
		}

		allowed, remaining, retryMs := values[0] == 1, values[1], values[2]

		header := c.Response().Header()
		header.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Capacity))
		header.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if !allowed {
			retryAfter := int(math.Ceil(float64(retryMs) / 1000))
			header.Set("Retry-After", strconv.Itoa(retryAfter))
			logrus.WithFields(logrus.Fields{
				"key":         key,
				"retry_after": retryAfter,
			}).Info("Rate limit exceeded")
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "too many requests, try again later",
			})
		}

		return next(c)
	}
}

func (l *RateLimiter) key(c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	route := fmt.Sprintf("%s %s", c.Request().Method, c.Path())
	return strings.Join([]string{l.prefix, "rl", "ip", ip, "route", route}, ":")
}
