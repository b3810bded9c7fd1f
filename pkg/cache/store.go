package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// responseStore backs the Tier 0 response cache. Payloads are opaque JSON
// so the in-process and Redis backends behave identically.
type responseStore interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration)
	Clear(ctx context.Context)
	Len() int
}

type memoryEntry struct {
	payload []byte
	expires time.Time
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]memoryEntry)}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expires) {
		delete(s.entries, key)
		return nil, false
	}
	return entry.payload, true
}

func (s *memoryStore) Put(_ context.Context, key string, payload []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{payload: payload, expires: time.Now().Add(ttl)}
}

func (s *memoryStore) Clear(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]memoryEntry)
}

func (s *memoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	n := 0
	for _, entry := range s.entries {
		if now.Before(entry.expires) {
			n++
		}
	}
	return n
}

// redisStore serves the response cache from Redis so cached answers survive
// restarts and are shared across instances. Redis errors degrade to a miss.
type redisStore struct {
	client *redis.Client
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return payload, true
}

func (s *redisStore) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	_ = s.client.Set(ctx, key, payload, ttl).Err()
}

func (s *redisStore) Clear(ctx context.Context) {
	iter := s.client.Scan(ctx, 0, responseKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		_ = s.client.Del(ctx, iter.Val()).Err()
	}
}

func (s *redisStore) Len() int {
	keys, err := s.client.Keys(context.Background(), responseKeyPrefix+"*").Result()
	if err != nil {
		return 0
	}
	return len(keys)
}
