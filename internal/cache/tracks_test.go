package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestTrackCache(t *testing.T, ttl time.Duration) (*TrackCache, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return NewTrackCache(client, ttl), server
}

func TestTrackCacheRoundTrip(t *testing.T) {
	cache, server := newTestTrackCache(t, time.Hour)
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "Believer Imagine Dragons"); ok {
		t.Fatal("expected miss on empty cache")
	}

	cache.Set(ctx, "Believer  Imagine Dragons", "https://open.spotify.com/track/1")

	url, ok := cache.Get(ctx, "believer imagine dragons")
	if !ok {
		t.Fatal("expected hit after set")
	}
	if url != "https://open.spotify.com/track/1" {
		t.Fatalf("unexpected url %q", url)
	}

	if !server.Exists("track:believer imagine dragons") {
		t.Fatal("expected normalized key in redis")
	}
}

func TestTrackCacheExpires(t *testing.T) {
	cache, server := newTestTrackCache(t, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, "Imagine", "https://open.spotify.com/track/2")
	server.FastForward(2 * time.Minute)

	if _, ok := cache.Get(ctx, "Imagine"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestTrackCacheIgnoresEmptyValues(t *testing.T) {
	cache, server := newTestTrackCache(t, 0)
	ctx := context.Background()

	cache.Set(ctx, "Imagine", "")
	cache.Set(ctx, "  ", "https://open.spotify.com/track/3")

	if keys := server.Keys(); len(keys) != 0 {
		t.Fatalf("expected no keys, got %v", keys)
	}
	if server.TTL("track:imagine") != 0 {
		t.Fatal("expected no ttl for missing key")
	}
}

func TestTrackCacheNilSafe(t *testing.T) {
	var cache *TrackCache
	ctx := context.Background()

	cache.Set(ctx, "Imagine", "https://open.spotify.com/track/4")
	if _, ok := cache.Get(ctx, "Imagine"); ok {
		t.Fatal("nil cache should always miss")
	}

	empty := NewTrackCache(nil, 0)
	empty.Set(ctx, "Imagine", "https://open.spotify.com/track/4")
	if _, ok := empty.Get(ctx, "Imagine"); ok {
		t.Fatal("cache without client should always miss")
	}
}
