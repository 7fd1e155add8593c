package auth0

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedisKVClient struct {
	lastGetKey string
	lastSetKey string
	lastSetVal interface{}
	lastSetTTL time.Duration

	getVal string
	getErr error
	setErr error
}

func (m *mockRedisKVClient) Get(ctx context.Context, key string) *redis.StringCmd {
	m.lastGetKey = key
	cmd := redis.NewStringCmd(ctx)
	if m.getErr != nil {
		cmd.SetErr(m.getErr)
		return cmd
	}
	cmd.SetVal(m.getVal)
	return cmd
}

func (m *mockRedisKVClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.lastSetKey = key
	m.lastSetVal = value
	m.lastSetTTL = expiration
	cmd := redis.NewStatusCmd(ctx)
	if m.setErr != nil {
		cmd.SetErr(m.setErr)
		return cmd
	}
	cmd.SetVal("OK")
	return cmd
}

func TestCacheKey_HidesSecret(t *testing.T) {
	key := CacheKey("clientId", "clientSecret", "audience")
	if len(key) != 64 {
		t.Fatalf("expected hex blake2b-256 digest, got %q", key)
	}
	if key == CacheKey("clientId", "otherSecret", "audience") {
		t.Fatalf("expected key to depend on secret")
	}
	if key != CacheKey("clientId", "clientSecret", "audience") {
		t.Fatalf("expected deterministic key")
	}
}

func TestMemoryTokenCache_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := newMemoryTokenCache(func() time.Time { return now })
	ctx := context.Background()

	if _, ok, _ := cache.Get(ctx, "k"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	if err := cache.Set(ctx, "k", "tok", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if tok, ok, _ := cache.Get(ctx, "k"); !ok || tok != "tok" {
		t.Fatalf("expected hit, got %q %v", tok, ok)
	}

	now = now.Add(time.Minute)
	if _, ok, _ := cache.Get(ctx, "k"); ok {
		t.Fatalf("expected entry expired at ttl")
	}
}

func TestMemoryTokenCache_IgnoresNonPositiveTTL(t *testing.T) {
	cache := NewMemoryTokenCache()
	ctx := context.Background()
	if err := cache.Set(ctx, "k", "tok", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "k"); ok {
		t.Fatalf("expected no entry for zero ttl")
	}
}

func TestRedisTokenCache_Basics(t *testing.T) {
	mock := &mockRedisKVClient{getVal: "tok"}
	cache := &redisTokenCache{client: mock, prefix: "auth0:m2m:"}
	ctx := context.Background()

	if err := cache.Set(ctx, "k1", "tok", time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	if mock.lastSetKey != "auth0:m2m:k1" || mock.lastSetVal != "tok" || mock.lastSetTTL != time.Hour {
		t.Fatalf("unexpected set: %q %v %v", mock.lastSetKey, mock.lastSetVal, mock.lastSetTTL)
	}

	tok, ok, err := cache.Get(ctx, "k1")
	if err != nil || !ok || tok != "tok" {
		t.Fatalf("expected hit, got %q %v %v", tok, ok, err)
	}
	if mock.lastGetKey != "auth0:m2m:k1" {
		t.Fatalf("unexpected get key %q", mock.lastGetKey)
	}
}

func TestRedisTokenCache_MissAndErrors(t *testing.T) {
	ctx := context.Background()

	miss := &redisTokenCache{client: &mockRedisKVClient{getErr: redis.Nil}, prefix: "auth0:m2m:"}
	if _, ok, err := miss.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("expected clean miss, got %v %v", ok, err)
	}

	broken := &redisTokenCache{client: &mockRedisKVClient{
		getErr: errors.New("redis down"),
		setErr: errors.New("redis down"),
	}, prefix: "auth0:m2m:"}
	if _, _, err := broken.Get(ctx, "k"); err == nil {
		t.Fatalf("expected get error")
	}
	if err := broken.Set(ctx, "k", "tok", time.Hour); err == nil {
		t.Fatalf("expected set error")
	}
	if err := broken.Set(ctx, "", "tok", time.Hour); err != nil {
		t.Fatalf("empty key set should be no-op, got %v", err)
	}
}

func TestRedisTokenCache_ReadFailureFallsBackToExchange(t *testing.T) {
	tenant := &fakeTenant{}
	cache := &redisTokenCache{client: &mockRedisKVClient{getErr: errors.New("redis down")}, prefix: "auth0:m2m:"}
	c := newTestClient(t, tenant, cache)

	token, err := c.GetAccessToken(context.Background())
	if err != nil || token != "m2m-token" {
		t.Fatalf("expected exchange despite cache failure, got %q %v", token, err)
	}
}
