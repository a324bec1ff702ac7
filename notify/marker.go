package notify

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Marker is the durable idempotency marker at the consumption boundary.
type Marker interface {
	// Mark records key and reports whether this caller was the first.
	Mark(ctx context.Context, key string) (bool, error)
	// Release forgets key so a failed delivery can be retried.
	Release(ctx context.Context, key string) error
}

// RedisMarker stores markers with SETNX and a TTL.
type RedisMarker struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisMarker(rdb *redis.Client, ttl time.Duration) *RedisMarker {
	return &RedisMarker{rdb: rdb, ttl: ttl, prefix: "outpass:notified:"}
}

func (m *RedisMarker) Mark(ctx context.Context, key string) (bool, error) {
	return m.rdb.SetNX(ctx, m.prefix+key, time.Now().UTC().Format(time.RFC3339), m.ttl).Result()
}

func (m *RedisMarker) Release(ctx context.Context, key string) error {
	return m.rdb.Del(ctx, m.prefix+key).Err()
}

// MemoryMarker is the in-process fallback for tests and single-node dev.
type MemoryMarker struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryMarker keeps keys for ttl; zero ttl keeps them forever.
func NewMemoryMarker(ttl time.Duration) *MemoryMarker {
	return &MemoryMarker{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryMarker) Mark(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if at, ok := m.seen[key]; ok && (m.ttl == 0 || now.Sub(at) < m.ttl) {
		return false, nil
	}
	m.seen[key] = now
	return true, nil
}

func (m *MemoryMarker) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, key)
	return nil
}
