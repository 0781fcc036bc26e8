package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"datachat-backend/internal/chat"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisFileCache shares active-file references across replicas. Entries
// expire; the session row remains authoritative.
type RedisFileCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ FileCache = (*RedisFileCache)(nil)

const defaultTTL = 24 * time.Hour

func NewRedisFileCache(redisURL string) (*RedisFileCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisFileCache{client: client, ttl: defaultTTL}, nil
}

func activeFileKey(sessionID uuid.UUID) string {
	return "active-file:" + sessionID.String()
}

func (c *RedisFileCache) SetActiveFile(ctx context.Context, sessionID uuid.UUID, ref chat.FileRef) error {
	data, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("marshalling file reference: %w", err)
	}
	if err := c.client.Set(ctx, activeFileKey(sessionID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("caching file reference: %w", err)
	}
	return nil
}

func (c *RedisFileCache) GetActiveFile(ctx context.Context, sessionID uuid.UUID) (chat.FileRef, bool, error) {
	data, err := c.client.Get(ctx, activeFileKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return chat.FileRef{}, false, nil
	}
	if err != nil {
		return chat.FileRef{}, false, fmt.Errorf("reading cached file reference: %w", err)
	}

	var ref chat.FileRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return chat.FileRef{}, false, fmt.Errorf("decoding cached file reference: %w", err)
	}
	return ref, true, nil
}

func (c *RedisFileCache) ClearActiveFile(ctx context.Context, sessionID uuid.UUID) error {
	if err := c.client.Del(ctx, activeFileKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("clearing cached file reference: %w", err)
	}
	return nil
}

func (c *RedisFileCache) Close() error {
	return c.client.Close()
}
