package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// WebhookGuard remembers processed webhook deliveries in Redis. It is a
// fast path only: correctness comes from the conditional updates, so a nil
// client or a Redis error simply means "not seen".
type WebhookGuard struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewWebhookGuard(rdb *redis.Client, prefix string, ttl time.Duration) *WebhookGuard {
	if prefix == "" {
		prefix = "webhook"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &WebhookGuard{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Seen reports whether key was marked before.
func (g *WebhookGuard) Seen(ctx context.Context, key string) bool {
	if g == nil || g.rdb == nil {
		return false
	}
	n, err := g.rdb.Exists(ctx, g.prefix+":"+key).Result()
	return err == nil && n > 0
}

// Mark records key as processed.
func (g *WebhookGuard) Mark(ctx context.Context, key string) {
	if g == nil || g.rdb == nil {
		return
	}
	_ = g.rdb.SetNX(ctx, g.prefix+":"+key, time.Now().UTC().Unix(), g.ttl).Err()
}
