package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
)

var _ fiber.Storage = (*RedisCache)(nil)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache("redis://"+mr.Addr(), "limiter:")
	if err != nil {
		t.Fatalf("NewRedisCache() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestStorageRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)

	if got, err := c.Get("missing"); err != nil || got != nil {
		t.Fatalf("Get(missing) = (%v, %v), want (nil, nil)", got, err)
	}

	if err := c.Set("ip", []byte("3"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !mr.Exists("limiter:ip") {
		t.Fatal("key was not prefixed")
	}
	got, err := c.Get("ip")
	if err != nil || string(got) != "3" {
		t.Fatalf("Get() = (%q, %v)", got, err)
	}

	mr.FastForward(2 * time.Minute)
	if got, _ := c.Get("ip"); got != nil {
		t.Fatalf("expired key still returned %q", got)
	}
}

func TestReset(t *testing.T) {
	c, mr := newTestCache(t)
	_ = c.Set("a", []byte("1"), 0)
	_ = c.Set("b", []byte("1"), 0)
	_ = mr.Set("other", "keep")

	if err := c.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if mr.Exists("limiter:a") || mr.Exists("limiter:b") {
		t.Fatal("prefixed keys survived Reset")
	}
	if !mr.Exists("other") {
		t.Fatal("Reset removed a key outside the prefix")
	}
}

func TestNewRedisCacheBadURL(t *testing.T) {
	if _, err := NewRedisCache("not a url", ""); err == nil {
		t.Fatal("NewRedisCache() accepted an invalid URL")
	}
}
