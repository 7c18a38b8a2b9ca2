package geolocation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"apgrhost/internal/domain"
	"apgrhost/pkg/redis"
)

// Cache stores resolved lookups per IP
type Cache interface {
	Get(ctx context.Context, ip string) (*domain.IPInfo, bool)
	Set(ctx context.Context, ip string, info *domain.IPInfo)
}

type memoryEntry struct {
	info      domain.IPInfo
	expiresAt time.Time
}

// DefaultMemoryCacheSize bounds the in-process cache when no limit is given
const DefaultMemoryCacheSize = 10000

// MemoryCache is a process-local TTL cache holding at most maxEntries IPs.
// A full cache first drops expired entries, then the one closest to expiry.
type MemoryCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]memoryEntry
	now        func() time.Time
}

// NewMemoryCache creates an in-process cache whose entries live for ttl
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return NewMemoryCacheWithLimit(ttl, DefaultMemoryCacheSize)
}

// NewMemoryCacheWithLimit creates a cache holding at most maxEntries lookups
func NewMemoryCacheWithLimit(ttl time.Duration, maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryCacheSize
	}
	return &MemoryCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]memoryEntry),
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, ip string) (*domain.IPInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[ip]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, ip)
		return nil, false
	}
	info := entry.info
	return &info, true
}

func (c *MemoryCache) Set(ctx context.Context, ip string, info *domain.IPInfo) {
	if info == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[ip]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[ip] = memoryEntry{info: *info, expiresAt: now.Add(c.ttl)}
}

// Len returns the number of cached entries, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) evictLocked(now time.Time) {
	var oldestIP string
	var oldest time.Time
	for ip, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, ip)
			continue
		}
		if oldestIP == "" || entry.expiresAt.Before(oldest) {
			oldestIP, oldest = ip, entry.expiresAt
		}
	}
	if len(c.entries) >= c.maxEntries && oldestIP != "" {
		delete(c.entries, oldestIP)
	}
}

// RedisCache shares lookups across instances through redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache on the given client
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = redis.TTLGeoLookup
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, ip string) (*domain.IPInfo, bool) {
	raw, err := c.client.Get(ctx, c.client.KeyBuilder.KeyGeoLookup(ip))
	if err != nil {
		return nil, false
	}
	info := &domain.IPInfo{}
	if err := json.Unmarshal([]byte(raw), info); err != nil {
		return nil, false
	}
	return info, true
}

// Set is best-effort; the client logs failures
func (c *RedisCache) Set(ctx context.Context, ip string, info *domain.IPInfo) {
	if info == nil {
		return
	}
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.client.KeyBuilder.KeyGeoLookup(ip), string(data), c.ttl)
}
