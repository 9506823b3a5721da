package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskmaster/gtd/internal/infrastructure/config"
	"github.com/taskmaster/gtd/internal/ports"
)

func subtasksKey(parentID int64, userID fmt.Stringer) string {
	return fmt.Sprintf("subtasks:%d:%s", parentID, userID)
}

func subtasksPattern(parentID int64) string {
	return fmt.Sprintf("subtasks:%d:*", parentID)
}

// New builds the subtask cache selected by configuration. For the redis
// driver the connection is verified before returning.
func New(ctx context.Context, cacheCfg config.CacheConfig, redisCfg config.RedisConfig) (ports.SubtaskCache, func() error, error) {
	switch cacheCfg.Driver {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:         redisCfg.GetAddr(),
			Password:     redisCfg.Password,
			DB:           redisCfg.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			MinIdleConns: 3,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", redisCfg.GetAddr(), err)
		}

		return NewRedisCache(client, cacheCfg.SubtasksTTL), client.Close, nil
	case "memory", "":
		mc := NewMemoryCache(cacheCfg.SubtasksTTL)
		return mc, mc.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache driver %q", cacheCfg.Driver)
	}
}
