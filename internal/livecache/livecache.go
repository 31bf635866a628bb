// Package livecache mirrors the latest live measurements and capture to
// Redis so other screens and services can read them without the websocket.
package livecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a live entry stays readable without refresh.
const DefaultTTL = 10 * time.Second

// ErrMiss is returned when the key has expired or was never written.
var ErrMiss = errors.New("livecache: miss")

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	// Station namespaces the keys when several stations share one Redis.
	Station string
}

// Cache stores the latest pipeline state per station.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	station string
}

// New connects to Redis and checks the connection.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newCache(client, cfg), nil
}

func newCache(client *redis.Client, cfg Config) *Cache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	station := cfg.Station
	if station == "" {
		station = "default"
	}
	return &Cache{client: client, ttl: ttl, station: station}
}

// LiveKey holds the most recent frame result.
func (c *Cache) LiveKey() string {
	return fmt.Sprintf("bodyfit:%s:live", c.station)
}

// CaptureKey holds the most recent capture. It does not expire.
func (c *Cache) CaptureKey() string {
	return fmt.Sprintf("bodyfit:%s:last_capture", c.station)
}

// SetLive stores v as JSON under the live key with the configured TTL.
func (c *Cache) SetLive(ctx context.Context, v any) error {
	return c.set(ctx, c.LiveKey(), v, c.ttl)
}

// Live decodes the live entry into dst.
func (c *Cache) Live(ctx context.Context, dst any) error {
	return c.get(ctx, c.LiveKey(), dst)
}

// SetLastCapture stores v as JSON under the capture key.
func (c *Cache) SetLastCapture(ctx context.Context, v any) error {
	return c.set(ctx, c.CaptureKey(), v, 0)
}

// LastCapture decodes the last capture into dst.
func (c *Cache) LastCapture(ctx context.Context, dst any) error {
	return c.get(ctx, c.CaptureKey(), dst)
}

// Clear removes the live entry, e.g. when the camera stops.
func (c *Cache) Clear(ctx context.Context) error {
	return c.client.Del(ctx, c.LiveKey()).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *Cache) get(ctx context.Context, key string, dst any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
