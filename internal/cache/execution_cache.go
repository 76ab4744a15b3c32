package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fieldcheck/internal/model"

	"github.com/redis/go-redis/v9"
)

// ExecutionCache keeps hot execution state in Redis in front of MongoDB
type ExecutionCache interface {
	Set(ctx context.Context, e *model.Execution) error
	Get(ctx context.Context, id string) (*model.Execution, error)
	Delete(ctx context.Context, id string) error
}

type executionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewExecutionCache creates a new execution cache
func NewExecutionCache(client *redis.Client, ttl time.Duration) ExecutionCache {
	return &executionCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *executionCache) key(id string) string {
	return fmt.Sprintf("execution:%s", id)
}

func (c *executionCache) Set(ctx context.Context, e *model.Execution) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(e.ID), data, c.ttl).Err()
}

func (c *executionCache) Get(ctx context.Context, id string) (*model.Execution, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var e model.Execution
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Answers == nil {
		e.Answers = make(map[string]model.Answer)
	}
	return &e, nil
}

func (c *executionCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.key(id)).Err()
}
