// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateKeyPrefix = "ratelimit:"

// RateLimiter caps requests per caller in fixed windows counted in
// Valkey, so every replica shares the same budget. Signed-in callers
// are keyed by user id, everyone else by client IP.
type RateLimiter struct {
	client *redis.Client
	scope  string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit requests per window for each caller.
// scope namespaces the counters so separate route groups keep
// separate budgets.
func NewRateLimiter(client *redis.Client, scope string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		scope:  scope,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// allow increments the caller's counter for the current window and
// reports whether it is still within the limit, plus the time left in
// the window.
func (rl *RateLimiter) allow(ctx context.Context, caller string) (bool, time.Duration, error) {
	now := rl.now()
	slot := now.UnixNano() / int64(rl.window)
	key := fmt.Sprintf("%s%s:%s:%d", rateKeyPrefix, rl.scope, caller, slot)
	remaining := time.Duration((slot+1)*int64(rl.window) - now.UnixNano())

	var incr *redis.IntCmd
	_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rl.window)
		return nil
	})
	if err != nil {
		return true, 0, fmt.Errorf("rate limit incr: %w", err)
	}
	return incr.Val() <= int64(rl.limit), remaining, nil
}

// Middleware returns an HTTP middleware enforcing the limit. When Valkey
// is unreachable requests are let through and the failure is logged.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := "ip:" + clientIP(r)
		if sess := SessionFromCtx(r.Context()); sess != nil {
			caller = "user:" + sess.UserID.String()
		}

		ok, retry, err := rl.allow(r.Context(), caller)
		if err != nil {
			slog.Warn("rate limiter unavailable", "error", err)
		}
		if !ok {
			secs := int(retry.Seconds())
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeError(w, http.StatusTooManyRequests, "Too many requests. Please slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client's IP address, checking X-Forwarded-For
// and X-Real-IP headers for proxied requests.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Leftmost entry is the original client.
		if idx := strings.IndexByte(xff, ','); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
