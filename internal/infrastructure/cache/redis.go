package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/taskmaster/gtd/internal/domain/entities"
)

const scanBatch = 100

// RedisCache keeps subtask listings in Redis as JSON strings with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, parentID int64, userID uuid.UUID) ([]entities.TaskView, bool, error) {
	raw, err := c.client.Get(ctx, subtasksKey(parentID, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get subtasks: %w", err)
	}

	var rows []entities.TaskView
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, false, fmt.Errorf("decode cached subtasks: %w", err)
	}
	return rows, true, nil
}

func (c *RedisCache) Set(ctx context.Context, parentID int64, userID uuid.UUID, rows []entities.TaskView) error {
	raw, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode subtasks: %w", err)
	}
	if err := c.client.Set(ctx, subtasksKey(parentID, userID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set subtasks: %w", err)
	}
	return nil
}

// Invalidate drops the listings of every viewer of the parent.
func (c *RedisCache) Invalidate(ctx context.Context, parentID int64) error {
	var keys []string
	iter := c.client.Scan(ctx, 0, subtasksPattern(parentID), scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan subtasks: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete subtasks: %w", err)
	}
	return nil
}
