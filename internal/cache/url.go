// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	urlKeyPrefix = "signedurl:"

	// urlSafetyMargin is subtracted from the signature lifetime so a
	// cached URL always has this long left to live when it is served.
	urlSafetyMargin = 5 * time.Minute
)

// URLCache memoizes presigned object URLs in Valkey. Errors are logged
// and reported as misses; the cache never fails a request.
type URLCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewURLCache creates a cache for URLs signed with the given lifetime.
// Entries expire urlSafetyMargin before the signature does. A lifetime
// at or below the margin disables caching.
func NewURLCache(client *redis.Client, signedTTL time.Duration) *URLCache {
	return &URLCache{client: client, ttl: signedTTL - urlSafetyMargin}
}

func (c *URLCache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Get returns the cached URL for an object key.
func (c *URLCache) Get(ctx context.Context, key string) (string, bool) {
	if !c.enabled() {
		return "", false
	}
	val, err := c.client.Get(ctx, urlKeyPrefix+key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		slog.Warn("url cache get error", "key", key, "error", err)
		return "", false
	}
	return val, true
}

// Set stores a freshly signed URL for an object key.
func (c *URLCache) Set(ctx context.Context, key, url string) {
	if !c.enabled() {
		return
	}
	if err := c.client.Set(ctx, urlKeyPrefix+key, url, c.ttl).Err(); err != nil {
		slog.Warn("url cache set error", "key", key, "error", err)
	}
}
