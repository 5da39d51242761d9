package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig drives the Redis token bucket in front of the booking
// routes.  Only mutating reservation requests consume tokens.
type RateLimitConfig struct {
	Enabled        bool          // RATE_LIMIT_ENABLED
	Capacity       int           // RATE_LIMIT_CAPACITY (RATE_LIMIT_BURST wins when set)
	RefillTokens   int           // RATE_LIMIT_REFILL_TOKENS
	RefillInterval time.Duration // RATE_LIMIT_REFILL_INTERVAL
	TTL            time.Duration // RATE_LIMIT_TTL, idle bucket lifetime
	KeyStrategy    string        // RATE_LIMIT_KEY_STRATEGY
	Prefix         string        // RATE_LIMIT_PREFIX
	Debug          bool          // RATE_LIMIT_DEBUG, exposes X-RateLimit-Key
}

// keyStrategies are the values buildRateKey understands.
var keyStrategies = map[string]bool{
	"ip": true, "user": true, "ip_user": true, "user_route": true, "ip_user_route": true,
}

// LoadRateLimitConfig reads RATE_LIMIT_*.  Malformed values fall back to
// the defaults rather than failing startup; the limiter is optional.
func LoadRateLimitConfig() RateLimitConfig {
	c := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 20),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", 3*time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    strings.ToLower(envStr("RATE_LIMIT_KEY_STRATEGY", "user_route")),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl:reservations"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if burst := envInt("RATE_LIMIT_BURST", 0); burst > 0 {
		c.Capacity = burst
	}
	return c.normalized()
}

// normalized clamps values that would make the bucket unusable.
func (c RateLimitConfig) normalized() RateLimitConfig {
	c.Capacity = max(c.Capacity, 1)
	c.RefillTokens = max(c.RefillTokens, 1)
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	// a bucket must outlive a few refills or it resets to full
	c.TTL = max(c.TTL, 5*c.RefillInterval)
	if !keyStrategies[c.KeyStrategy] {
		c.KeyStrategy = "user_route"
	}
	return c
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}
