package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// RateLimitConfig configures the token bucket guarding the booking API.
// Each bucket holds Capacity tokens and regains RefillTokens every
// RefillInterval.  A request spends the cost of its route, so starting
// sessions and allocating seats drain a bucket faster than reading the chart.
// KeyStrategy picks the key parts: ip, session, route or an underscore-joined
// combination such as ip_session.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string
    Prefix         string
    // Costs maps "METHOD /path" to the tokens one request spends.
    Costs map[string]int
    Debug bool
}

// DefaultRouteCosts is used when RATE_LIMIT_COSTS is unset.
const DefaultRouteCosts = "POST /v1/sessions=5,POST /v1/chart/allocate=2"

// Cost returns the tokens a request on route spends; unlisted routes cost 1.
func (c RateLimitConfig) Cost(route string) int {
    if n, ok := c.Costs[route]; ok {
        return n
    }
    return 1
}

// LoadRateLimitConfig builds the limiter settings from RATE_LIMIT_* variables.
// The default strategy shares one bucket per client and session across every
// route, which is what makes the per-route costs meaningful.
func LoadRateLimitConfig() RateLimitConfig {
    cfg := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 30),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_session"),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    if cfg.Capacity < 1 {
        cfg.Capacity = 1
    }
    if cfg.RefillTokens < 1 {
        cfg.RefillTokens = 1
    }
    if cfg.RefillInterval <= 0 {
        cfg.RefillInterval = time.Second
    }
    // An idle bucket must live long enough to refill completely.
    full := time.Duration((cfg.Capacity+cfg.RefillTokens-1)/cfg.RefillTokens) * cfg.RefillInterval
    if cfg.TTL < full {
        cfg.TTL = full
    }
    cfg.Costs = parseCosts(envStr("RATE_LIMIT_COSTS", DefaultRouteCosts), cfg.Capacity)
    return cfg
}

// parseCosts reads "METHOD /path=n" pairs separated by commas.  Malformed
// pairs are skipped and costs are clamped to 1..capacity so every route can
// eventually pass.
func parseCosts(s string, capacity int) map[string]int {
    costs := map[string]int{}
    for _, pair := range strings.Split(s, ",") {
        eq := strings.LastIndex(pair, "=")
        if eq <= 0 {
            continue
        }
        fields := strings.Fields(pair[:eq])
        n, err := strconv.Atoi(strings.TrimSpace(pair[eq+1:]))
        if len(fields) != 2 || err != nil {
            continue
        }
        if n < 1 {
            n = 1
        }
        if n > capacity {
            n = capacity
        }
        costs[strings.ToUpper(fields[0])+" "+fields[1]] = n
    }
    return costs
}

func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    switch strings.ToLower(os.Getenv(k)) {
    case "1", "true", "yes", "on":
        return true
    case "0", "false", "no", "off":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
        return n
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
        return dur
    }
    return d
}
