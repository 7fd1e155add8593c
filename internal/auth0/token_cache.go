package auth0

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// TokenCache guarda access tokens M2M con expiracion.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, token string, ttl time.Duration) error
}

// CacheKey deriva la clave de cache a partir de las credenciales sin exponer el secreto.
func CacheKey(clientID, clientSecret, audience string) string {
	sum := blake2b.Sum256([]byte(clientID + "-" + clientSecret + "-" + audience))
	return hex.EncodeToString(sum[:])
}

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

type memoryTokenCache struct {
	mu    sync.Mutex
	items map[string]memoryEntry
	now   func() time.Time
}

// NewMemoryTokenCache crea una cache en memoria, usada cuando no hay Redis.
func NewMemoryTokenCache() TokenCache {
	return newMemoryTokenCache(time.Now)
}

func newMemoryTokenCache(now func() time.Time) *memoryTokenCache {
	return &memoryTokenCache{
		items: make(map[string]memoryEntry),
		now:   now,
	}
}

func (c *memoryTokenCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.items[key]
	if !ok {
		return "", false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.items, key)
		return "", false, nil
	}
	return entry.token, true, nil
}

func (c *memoryTokenCache) Set(_ context.Context, key, token string, ttl time.Duration) error {
	if strings.TrimSpace(key) == "" || ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = memoryEntry{token: token, expiresAt: c.now().Add(ttl)}
	return nil
}

type redisKVClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type redisTokenCache struct {
	client redisKVClient
	prefix string
}

// NewRedisTokenCache crea una cache respaldada por Redis.
func NewRedisTokenCache(client *redis.Client) TokenCache {
	if client == nil {
		return nil
	}
	return &redisTokenCache{
		client: client,
		prefix: "auth0:m2m:",
	}
}

func (c *redisTokenCache) Get(ctx context.Context, key string) (string, bool, error) {
	if strings.TrimSpace(key) == "" {
		return "", false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *redisTokenCache) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	if strings.TrimSpace(key) == "" || ttl <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return c.client.Set(ctx, c.prefix+key, token, ttl).Err()
}
