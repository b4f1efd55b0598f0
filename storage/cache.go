package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"boardsync/domain"
)

type backend interface {
	GetTask(ctx context.Context, id string) (domain.Task, error)
	PutTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context) ([]domain.Task, error)
	TaskTitleExists(ctx context.Context, title, excludeID string) (bool, error)
	GetUser(ctx context.Context, id string) (domain.UserRef, error)
	ListUsers(ctx context.Context) ([]domain.UserRef, error)
	AppendActivity(ctx context.Context, a domain.Activity) error
	ListActivities(ctx context.Context, limit int) ([]domain.Activity, error)
}

// Cache wraps a Storage instance with Redis-backed caching for the two
// read paths every connecting client hits: the task listing and the
// activity window. Every commit evicts, so readers never see state older
// than the last accepted mutation for longer than one round trip.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and
// TTL. A nil client or zero TTL disables caching while keeping the same
// interface.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return c.base.GetTask(ctx, id)
}

func (c *Cache) PutTask(ctx context.Context, t domain.Task) error {
	if err := c.base.PutTask(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, tasksCacheKey)
	return nil
}

func (c *Cache) DeleteTask(ctx context.Context, id string) error {
	if err := c.base.DeleteTask(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, tasksCacheKey)
	return nil
}

func (c *Cache) ListTasks(ctx context.Context) ([]domain.Task, error) {
	if c.redis != nil {
		if data, err := c.redis.Get(ctx, tasksCacheKey).Bytes(); err == nil {
			var tasks []domain.Task
			if err := json.Unmarshal(data, &tasks); err == nil {
				return tasks, nil
			}
			_ = c.redis.Del(ctx, tasksCacheKey).Err()
		}
	}
	tasks, err := c.base.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, tasksCacheKey, tasks)
	return tasks, nil
}

func (c *Cache) TaskTitleExists(ctx context.Context, title, excludeID string) (bool, error) {
	return c.base.TaskTitleExists(ctx, title, excludeID)
}

func (c *Cache) GetUser(ctx context.Context, id string) (domain.UserRef, error) {
	return c.base.GetUser(ctx, id)
}

func (c *Cache) ListUsers(ctx context.Context) ([]domain.UserRef, error) {
	return c.base.ListUsers(ctx)
}

func (c *Cache) AppendActivity(ctx context.Context, a domain.Activity) error {
	if err := c.base.AppendActivity(ctx, a); err != nil {
		return err
	}
	c.evict(ctx, activitiesCacheKeyAll)
	return nil
}

func (c *Cache) ListActivities(ctx context.Context, limit int) ([]domain.Activity, error) {
	key := activitiesCacheKey(limit)
	if c.redis != nil {
		if data, err := c.redis.Get(ctx, key).Bytes(); err == nil {
			var acts []domain.Activity
			if err := json.Unmarshal(data, &acts); err == nil {
				return acts, nil
			}
			_ = c.redis.Del(ctx, key).Err()
		}
	}
	acts, err := c.base.ListActivities(ctx, limit)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, acts)
	return acts, nil
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, pattern string) {
	if c.redis == nil {
		return
	}
	keys, err := c.redis.Keys(ctx, pattern).Result()
	if err != nil || len(keys) == 0 {
		return
	}
	_, _ = c.redis.Del(ctx, keys...).Result()
}

const (
	tasksCacheKey         = "board:tasks"
	activitiesCacheKeyAll = "board:activities:*"
)

func activitiesCacheKey(limit int) string {
	return fmt.Sprintf("board:activities:%d", limit)
}
