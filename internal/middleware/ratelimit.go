package middleware

import (
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/smart-seat-booking/internal/config"
)

// bucketScript refills the bucket in KEYS[1] for the whole intervals elapsed
// since its stamp, then tries to spend the request's cost.  It returns
// {allowed, tokens left, milliseconds until the cost is affordable}.
//
// ARGV: now_ms, capacity, refill_tokens, interval_ms, ttl_seconds, cost.
var bucketScript = redis.NewScript(`
local now, capacity, refill = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3])
local every, ttl, cost = tonumber(ARGV[4]), tonumber(ARGV[5]), tonumber(ARGV[6])

local b = redis.call('HMGET', KEYS[1], 'tokens', 'stamp')
local tokens, stamp = tonumber(b[1]), tonumber(b[2])
if tokens == nil or stamp == nil then
    tokens, stamp = capacity, now
end

local ticks = math.floor(math.max(0, now - stamp) / every)
if ticks > 0 then
    tokens = math.min(capacity, tokens + ticks * refill)
    stamp = stamp + ticks * every
end

local allowed, wait = 0, 0
if tokens >= cost then
    allowed = 1
    tokens = tokens - cost
else
    wait = math.ceil((cost - tokens) / refill) * every - (now - stamp)
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'stamp', stamp)
redis.call('EXPIRE', KEYS[1], ttl)
return {allowed, tokens, wait}
`)

// limiterNow is the limiter's clock.
var limiterNow = time.Now

type bucketReply struct {
    allowed   bool
    remaining int64
    wait      time.Duration
}

func parseBucketReply(v interface{}) (bucketReply, bool) {
    arr, ok := v.([]interface{})
    if !ok || len(arr) != 3 {
        return bucketReply{}, false
    }
    nums := make([]int64, 3)
    for i, x := range arr {
        n, ok := x.(int64)
        if !ok {
            return bucketReply{}, false
        }
        nums[i] = n
    }
    return bucketReply{allowed: nums[0] == 1, remaining: nums[1], wait: time.Duration(nums[2]) * time.Millisecond}, true
}

// NewTokenBucket returns a middleware that rate limits requests with a token
// bucket kept in Redis, charging each request the cost of its route.  The
// bucket update runs as one Lua script so several server instances share the
// same state.  Redis errors let the request through.  Without Redis, or when
// disabled, the middleware is a no-op.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return passThrough
    }
    ttl := int64(cfg.TTL / time.Second)
    if ttl < 1 {
        ttl = 1
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)
            cost := cfg.Cost(c.Request().Method + " " + c.Path())

            raw, err := bucketScript.Run(c.Request().Context(), rdb, []string{key},
                limiterNow().UnixMilli(), cfg.Capacity, cfg.RefillTokens,
                cfg.RefillInterval.Milliseconds(), ttl, cost).Result()
            if err != nil {
                c.Logger().Warnf("[ratelimit] key=%s: %v", key, err)
                return next(c)
            }
            reply, ok := parseBucketReply(raw)
            if !ok {
                c.Logger().Warnf("[ratelimit] key=%s: unexpected reply %#v", key, raw)
                return next(c)
            }

            hdr := c.Response().Header()
            hdr.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            hdr.Set("X-RateLimit-Remaining", strconv.FormatInt(reply.remaining, 10))
            if cfg.Debug {
                hdr.Set("X-RateLimit-Key", key)
            }
            if reply.allowed {
                return next(c)
            }

            secs := int((reply.wait + time.Second - 1) / time.Second)
            if secs < 1 {
                secs = 1
            }
            hdr.Set("Retry-After", strconv.Itoa(secs))
            if cfg.Debug {
                c.Logger().Infof("[ratelimit] block key=%s cost=%d wait=%s", key, cost, reply.wait)
            }
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "error":       "rate limit exceeded",
                "retry_after": secs,
            })
        }
    }
}

// buildRateKey joins the key parts the strategy names.  Unknown strategies
// fall back to ip_session_route.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    strategy := strings.ToLower(cfg.KeyStrategy)
    switch strategy {
    case "ip", "session", "route", "ip_session", "ip_route", "session_route", "ip_session_route":
    default:
        strategy = "ip_session_route"
    }

    parts := []string{cfg.Prefix}
    for _, part := range strings.Split(strategy, "_") {
        switch part {
        case "ip":
            ip := c.RealIP()
            if ip == "" {
                ip = "unknown"
            }
            parts = append(parts, "ip", ip)
        case "session":
            parts = append(parts, "session", sessionOrAnon(c))
        case "route":
            parts = append(parts, "route", c.Request().Method+" "+c.Path())
        }
    }
    return strings.Join(parts, ":")
}
