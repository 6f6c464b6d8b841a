package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig configures one token-bucket profile. The API and the
// provider webhooks use separate profiles so a burst of gateway retries
// cannot starve user traffic and vice versa.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads the API profile from RATE_LIMIT_* variables.
func LoadRateLimitConfig() RateLimitConfig {
	return loadRateLimit("RATE_LIMIT", RateLimitConfig{
		Enabled:        true,
		Capacity:       60,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_user_route",
		Prefix:         "rl",
	})
}

// LoadWebhookRateLimitConfig reads the webhook profile from
// WEBHOOK_RATE_LIMIT_* variables. Webhooks are keyed per source IP and route.
func LoadWebhookRateLimitConfig() RateLimitConfig {
	return loadRateLimit("WEBHOOK_RATE_LIMIT", RateLimitConfig{
		Enabled:        true,
		Capacity:       300,
		RefillTokens:   10,
		RefillInterval: time.Second,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "rl:webhook",
	})
}

func loadRateLimit(env string, def RateLimitConfig) RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:        envBool(env+"_ENABLED", def.Enabled),
		Capacity:       envInt(env+"_CAPACITY", def.Capacity),
		RefillTokens:   envInt(env+"_REFILL_TOKENS", def.RefillTokens),
		RefillInterval: envDur(env+"_REFILL_INTERVAL", def.RefillInterval),
		TTL:            envDur(env+"_TTL", def.TTL),
		KeyStrategy:    envStr(env+"_KEY_STRATEGY", def.KeyStrategy),
		Prefix:         envStr(env+"_PREFIX", def.Prefix),
		Debug:          envBool(env+"_DEBUG", false),
	}
	if b := envInt(env+"_BURST", -1); b > 0 {
		cfg.Capacity = b
	}
	if every := envDur(env+"_REFILL_EVERY", 0); every > 0 {
		cfg.RefillTokens = 1
		cfg.RefillInterval = every
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
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
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
