package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SESSION_TTL_MIN", "15")
	t.Setenv("DB_HOST", "")
	t.Setenv("RABBITMQ_URL", "amqp://u:p@broker:5672/")

	cfg := Load()
	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15, cfg.SessionTTLMin)
	assert.Equal(t, 720, cfg.TokenTTLMin)
	assert.False(t, cfg.DatabaseEnabled())
	assert.Equal(t, "3306", cfg.DBPort)
	assert.Equal(t, "amqp://u:p@broker:5672/", cfg.RabbitURL)
	assert.False(t, cfg.EventsEnabled)
}

func TestLoad_DotEnv(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "test.env")
	content := "APP_ENV=dotenv\nAPP_PORT=9090\nJWT_SECRET=abc\nSESSION_TTL_MIN=5\nDB_HOST=mysql\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENV_FILE", envPath)
	for _, key := range []string{"APP_ENV", "APP_PORT", "JWT_SECRET", "SESSION_TTL_MIN", "DB_HOST"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()
	assert.Equal(t, "dotenv", cfg.Env)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5, cfg.SessionTTLMin)
	assert.True(t, cfg.DatabaseEnabled())
}

func TestLoadRateLimitConfig(t *testing.T) {
	defaultCosts := map[string]int{"POST /v1/sessions": 5, "POST /v1/chart/allocate": 2}

	testCases := []struct {
		description string
		env         map[string]string
		expect      RateLimitConfig
	}{
		{
			description: "defaults",
			env:         map[string]string{},
			expect: RateLimitConfig{
				Enabled: true, Capacity: 30, RefillTokens: 1, RefillInterval: time.Second,
				TTL: 10 * time.Minute, KeyStrategy: "ip_session", Prefix: "rl", Costs: defaultCosts,
			},
		},
		{
			description: "ttl is stretched to a full refill",
			env: map[string]string{
				"RATE_LIMIT_CAPACITY":        "10",
				"RATE_LIMIT_REFILL_TOKENS":   "3",
				"RATE_LIMIT_REFILL_INTERVAL": "1m",
				"RATE_LIMIT_TTL":             "1s",
			},
			expect: RateLimitConfig{
				Enabled: true, Capacity: 10, RefillTokens: 3, RefillInterval: time.Minute,
				TTL: 4 * time.Minute, KeyStrategy: "ip_session", Prefix: "rl", Costs: defaultCosts,
			},
		},
		{
			description: "invalid values are clamped",
			env: map[string]string{
				"RATE_LIMIT_ENABLED":       "off",
				"RATE_LIMIT_CAPACITY":      "0",
				"RATE_LIMIT_REFILL_TOKENS": "-3",
				"RATE_LIMIT_KEY_STRATEGY":  "session",
				"RATE_LIMIT_COSTS":         "post /v1/chart/allocate=9, GET /v1/chart=0,broken,=3",
			},
			expect: RateLimitConfig{
				Enabled: false, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second,
				TTL: 10 * time.Minute, KeyStrategy: "session", Prefix: "rl",
				Costs: map[string]int{"POST /v1/chart/allocate": 1, "GET /v1/chart": 1},
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			for k, v := range testCase.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, testCase.expect, LoadRateLimitConfig())
		})
	}
}

func TestRateLimitConfig_Cost(t *testing.T) {
	cfg := RateLimitConfig{Costs: map[string]int{"POST /v1/sessions": 5}}
	assert.Equal(t, 5, cfg.Cost("POST /v1/sessions"))
	assert.Equal(t, 1, cfg.Cost("GET /v1/chart"))
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head ,")
	t.Setenv("CACHE_TTL", "bogus")

	cfg := LoadCacheConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Methods)
	assert.Equal(t, time.Second, cfg.TTL)
	assert.Equal(t, "chart", cfg.Prefix)
	assert.Equal(t, 65536, cfg.MaxBodyBytes)
}

func TestLoadRedisConfig(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	assert.Equal(t, "cache:6380", LoadRedisConfig().Addr)

	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("REDIS_TLS", "1")
	t.Setenv("REDIS_DB", "2")
	cfg := LoadRedisConfig()
	assert.Equal(t, "redis:6379", cfg.Addr)
	assert.True(t, cfg.TLS)
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, 2*time.Second, cfg.DialTimeout)
}

func TestNewRedisClient_Disabled(t *testing.T) {
	assert.Nil(t, NewRedisClient(RedisConfig{Enabled: false}))
}
