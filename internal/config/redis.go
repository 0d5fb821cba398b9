package config

// Redis backs the distributed rate limiter and the chart response cache.
// When the server cannot be reached at startup NewRedisClient returns nil
// and both features switch themselves off.

import (
    "context"
    "crypto/tls"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisConfig describes how to reach Redis.
type RedisConfig struct {
    Enabled     bool
    Addr        string
    Password    string
    DB          int
    TLS         bool
    DialTimeout time.Duration
}

// LoadRedisConfig reads the Redis settings:
//   REDIS_ENABLED – "false" skips Redis entirely (default true)
//   REDIS_ADDR – host:port (default localhost:6379)
//   REDIS_HOST and REDIS_PORT – take precedence over REDIS_ADDR when both set
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_TLS – enable TLS when "true" or "1"
//   REDIS_DIAL_TIMEOUT – startup ping timeout (default 2s)
func LoadRedisConfig() RedisConfig {
    addr := envStr("REDIS_ADDR", "localhost:6379")
    if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
        addr = host + ":" + port
    }
    return RedisConfig{
        Enabled:     envBool("REDIS_ENABLED", true),
        Addr:        addr,
        Password:    envStr("REDIS_PASSWORD", ""),
        DB:          envInt("REDIS_DB", 0),
        TLS:         envBool("REDIS_TLS", false),
        DialTimeout: envDur("REDIS_DIAL_TIMEOUT", 2*time.Second),
    }
}

// NewRedisClient connects and pings Redis.  It returns nil when Redis is
// disabled or unreachable.
func NewRedisClient(cfg RedisConfig) *redis.Client {
    if !cfg.Enabled {
        return nil
    }
    var tlsConf *tls.Config
    if cfg.TLS {
        tlsConf = &tls.Config{InsecureSkipVerify: true}
    }
    client := redis.NewClient(&redis.Options{
        Addr:      cfg.Addr,
        Password:  cfg.Password,
        DB:        cfg.DB,
        TLSConfig: tlsConf,
    })
    ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil
    }
    return client
}
