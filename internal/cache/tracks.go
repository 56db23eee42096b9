package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTrackTTL = 24 * time.Hour

// TrackCache stores music search results keyed by the normalized query.
// A nil *TrackCache, or one without a client, caches nothing.
type TrackCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTrackCache(client *redis.Client, ttl time.Duration) *TrackCache {
	if ttl <= 0 {
		ttl = defaultTrackTTL
	}
	return &TrackCache{client: client, ttl: ttl}
}

// NewRedisClient connects to a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (c *TrackCache) Get(ctx context.Context, query string) (string, bool) {
	if c == nil || c.client == nil || strings.TrimSpace(query) == "" {
		return "", false
	}
	value, err := c.client.Get(ctx, c.key(query)).Result()
	if err != nil || value == "" {
		return "", false
	}
	return value, true
}

func (c *TrackCache) Set(ctx context.Context, query, trackURL string) {
	if c == nil || c.client == nil || strings.TrimSpace(query) == "" || trackURL == "" {
		return
	}
	c.client.Set(ctx, c.key(query), trackURL, c.ttl)
}

func (c *TrackCache) key(query string) string {
	return "track:" + strings.ToLower(strings.Join(strings.Fields(query), " "))
}
