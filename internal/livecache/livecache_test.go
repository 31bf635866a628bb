package livecache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestKeysAndDefaults(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	tests := []struct {
		cfg         Config
		wantLive    string
		wantCapture string
		wantTTL     time.Duration
	}{
		{Config{}, "bodyfit:default:live", "bodyfit:default:last_capture", DefaultTTL},
		{Config{Station: "room-2", TTL: time.Second}, "bodyfit:room-2:live", "bodyfit:room-2:last_capture", time.Second},
	}

	for _, tt := range tests {
		c := newCache(client, tt.cfg)
		if c.LiveKey() != tt.wantLive {
			t.Errorf("LiveKey() = %q, want %q", c.LiveKey(), tt.wantLive)
		}
		if c.CaptureKey() != tt.wantCapture {
			t.Errorf("CaptureKey() = %q, want %q", c.CaptureKey(), tt.wantCapture)
		}
		if c.ttl != tt.wantTTL {
			t.Errorf("ttl = %v, want %v", c.ttl, tt.wantTTL)
		}
	}
}

func TestNew_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if _, err := New(ctx, Config{Addr: "127.0.0.1:1"}); err == nil {
		t.Error("expected ping error for unreachable redis")
	}
}

// TestCache_Redis runs against a real server named by BODYFIT_TEST_REDIS.
func TestCache_Redis(t *testing.T) {
	addr := os.Getenv("BODYFIT_TEST_REDIS")
	if testing.Short() || addr == "" {
		t.Skip("set BODYFIT_TEST_REDIS to run against redis")
	}

	ctx := context.Background()
	c, err := New(ctx, Config{Addr: addr, Station: "test-" + time.Now().Format("150405.000"), TTL: time.Second})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	var got map[string]float64
	if err := c.Live(ctx, &got); !errors.Is(err, ErrMiss) {
		t.Fatalf("Live() on empty cache = %v, want ErrMiss", err)
	}

	if err := c.SetLive(ctx, map[string]float64{"chest": 96.5}); err != nil {
		t.Fatalf("SetLive() error = %v", err)
	}
	if err := c.Live(ctx, &got); err != nil || got["chest"] != 96.5 {
		t.Fatalf("Live() = %v, %v", got, err)
	}

	if err := c.SetLastCapture(ctx, map[string]string{"id": "c-1"}); err != nil {
		t.Fatalf("SetLastCapture() error = %v", err)
	}
	var last map[string]string
	if err := c.LastCapture(ctx, &last); err != nil || last["id"] != "c-1" {
		t.Errorf("LastCapture() = %v, %v", last, err)
	}

	c.Clear(ctx)
	if err := c.Live(ctx, &got); !errors.Is(err, ErrMiss) {
		t.Errorf("Live() after Clear = %v, want ErrMiss", err)
	}
	c.client.Del(ctx, c.CaptureKey())
}
