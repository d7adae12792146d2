package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"movie-discovery-recommender/internal/metrics"
	"movie-discovery-recommender/internal/models"
)

// SessionCache holds unsaved recommendation sessions until they are saved
// or expire.
type SessionCache interface {
	Put(ctx context.Context, s models.Session) error
	// Get returns models.ErrNotFound for unknown, expired or foreign sessions.
	Get(ctx context.Context, userID, id string) (models.Session, error)
	Drop(ctx context.Context, userID, id string) error
}

func sessionKey(userID, id string) string {
	return fmt.Sprintf("session:%s:%s", userID, id)
}

// RedisSessionCache shares sessions between instances.
type RedisSessionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSessionCache(rdb *redis.Client, ttl time.Duration) *RedisSessionCache {
	return &RedisSessionCache{rdb: rdb, ttl: ttl}
}

func (c *RedisSessionCache) Put(ctx context.Context, s models.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := c.rdb.Set(ctx, sessionKey(s.UserID, s.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (c *RedisSessionCache) Get(ctx context.Context, userID, id string) (models.Session, error) {
	data, err := c.rdb.Get(ctx, sessionKey(userID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheMisses.WithLabelValues("session").Inc()
		return models.Session{}, models.ErrNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("load session: %w", err)
	}
	metrics.CacheHits.WithLabelValues("session").Inc()

	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return models.Session{}, fmt.Errorf("decode session: %w", err)
	}
	s.UserID = userID
	return s, nil
}

func (c *RedisSessionCache) Drop(ctx context.Context, userID, id string) error {
	if err := c.rdb.Del(ctx, sessionKey(userID, id)).Err(); err != nil {
		return fmt.Errorf("drop session: %w", err)
	}
	return nil
}

// MemorySessionCache keeps sessions in process. Used when Redis is off.
type MemorySessionCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]memorySession
}

type memorySession struct {
	session models.Session
	expires time.Time
}

func NewMemorySessionCache(ttl time.Duration) *MemorySessionCache {
	return &MemorySessionCache{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]memorySession),
	}
}

func (c *MemorySessionCache) Put(_ context.Context, s models.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, item := range c.items {
		if now.After(item.expires) {
			delete(c.items, k)
		}
	}

	s.Criteria = s.Criteria.Clone()
	s.Movies = models.CloneMovies(s.Movies)
	c.items[sessionKey(s.UserID, s.ID)] = memorySession{session: s, expires: now.Add(c.ttl)}
	return nil
}

func (c *MemorySessionCache) Get(_ context.Context, userID, id string) (models.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[sessionKey(userID, id)]
	if !ok || c.now().After(item.expires) {
		return models.Session{}, models.ErrNotFound
	}
	s := item.session
	s.Criteria = s.Criteria.Clone()
	s.Movies = models.CloneMovies(s.Movies)
	return s, nil
}

func (c *MemorySessionCache) Drop(_ context.Context, userID, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, sessionKey(userID, id))
	return nil
}
