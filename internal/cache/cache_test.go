// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestConnectValkey(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := ConnectValkey(mr.Host(), mr.Port(), "")
	if err != nil {
		t.Fatalf("ConnectValkey: %v", err)
	}
	client.Close()
}

func TestConnectValkeyUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port := mr.Host(), mr.Port()
	mr.Close()

	if _, err := ConnectValkey(host, port, ""); err == nil {
		t.Fatal("expected error for unreachable server")
	}
}

func TestURLCacheRoundTrip(t *testing.T) {
	mr, client := testClient(t)
	c := NewURLCache(client, time.Hour)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "u1/a.png"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set(ctx, "u1/a.png", "https://s3.example.com/signed")
	got, ok := c.Get(ctx, "u1/a.png")
	if !ok || got != "https://s3.example.com/signed" {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	if ttl := mr.TTL(urlKeyPrefix + "u1/a.png"); ttl != time.Hour-urlSafetyMargin {
		t.Errorf("TTL = %s, want %s", ttl, time.Hour-urlSafetyMargin)
	}

	mr.FastForward(time.Hour - urlSafetyMargin)
	if _, ok := c.Get(ctx, "u1/a.png"); ok {
		t.Error("entry should expire before the signature does")
	}
}

func TestURLCacheDisabled(t *testing.T) {
	_, client := testClient(t)
	ctx := context.Background()

	tests := []struct {
		name string
		c    *URLCache
	}{
		{"nil cache", nil},
		{"nil client", NewURLCache(nil, time.Hour)},
		{"ttl below margin", NewURLCache(client, time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.c.Set(ctx, "k", "v")
			if _, ok := tt.c.Get(ctx, "k"); ok {
				t.Error("disabled cache should always miss")
			}
		})
	}
}

func TestURLCacheServerDown(t *testing.T) {
	mr, client := testClient(t)
	c := NewURLCache(client, time.Hour)
	mr.Close()

	c.Set(context.Background(), "k", "v")
	if _, ok := c.Get(context.Background(), "k"); ok {
		t.Error("expected miss when Valkey is unreachable")
	}
}
