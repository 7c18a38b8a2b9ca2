package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"apgrhost/pkg/errors"
	"apgrhost/pkg/logger"
	"apgrhost/pkg/redis"
	"apgrhost/pkg/utils"

	"golang.org/x/time/rate"
)

// Limiter decides whether one more request from key is allowed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter is a fixed hourly window shared by every instance using the same Redis
type RedisLimiter struct {
	client *redis.Client
	limit  int64
}

// NewRedisLimiter creates a limiter allowing limit requests per key per hour
func NewRedisLimiter(client *redis.Client, limit int) *RedisLimiter {
	return &RedisLimiter{client: client, limit: int64(limit)}
}

// Allow counts the request and reports whether the key is still within its window
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := l.client.IncrWithExpire(ctx, l.client.KeyBuilder.KeyRateLimit(key), redis.TTLRateLimit)
	if err != nil {
		return true, err
	}
	return n <= l.limit, nil
}

// Local limiter housekeeping. An entry idle for a full window has refilled
// its bucket, so dropping it loses nothing.
const (
	localCleanupInterval = 5 * time.Minute
	localEntryTTL        = time.Hour
)

type localEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// LocalLimiter is an in-process token bucket per key. Idle keys are evicted
// by a background loop that Close stops.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*localEntry
	every    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time

	stopCleanup chan struct{}
	cleanupDone chan struct{}
	closeOnce   sync.Once
}

// NewLocalLimiter creates a limiter refilling limit tokens per hour per key
func NewLocalLimiter(limit int) *LocalLimiter {
	return newLocalLimiter(limit, localCleanupInterval, localEntryTTL)
}

func newLocalLimiter(limit int, interval, ttl time.Duration) *LocalLimiter {
	if limit < 1 {
		limit = 1
	}
	l := &LocalLimiter{
		limiters:    make(map[string]*localEntry),
		every:       rate.Every(time.Hour / time.Duration(limit)),
		burst:       limit,
		ttl:         ttl,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}

	go l.cleanupLoop(interval)

	return l
}

// Allow consumes a token for key
func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[key]
	if !ok {
		entry = &localEntry{limiter: rate.NewLimiter(l.every, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastAccess = l.now()

	return entry.limiter.AllowN(entry.lastAccess, 1), nil
}

// Len returns the number of tracked keys
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// Close stops the eviction loop. It is safe to call more than once.
func (l *LocalLimiter) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopCleanup)
		<-l.cleanupDone
	})
	return nil
}

func (l *LocalLimiter) cleanupLoop(interval time.Duration) {
	defer close(l.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCleanup:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

// cleanup removes keys not seen within the entry TTL
func (l *LocalLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.ttl)
	for key, entry := range l.limiters {
		if entry.lastAccess.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
}

// RateLimit creates a middleware keyed by the connection peer address. Forwarded
// headers are not read here; they only reach RemoteAddr when the router trusts
// them. Limiter failures let the request through.
func RateLimit(limiter Limiter, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := utils.PeerIP(r)
			if key == "" {
				key = "unknown"
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.WithError(err).Warn("Rate limiter unavailable")
			}
			if !allowed {
				writeErrorResponse(w, r, errors.NewRateLimitError("Too many requests"), log)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
