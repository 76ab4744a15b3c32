package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fieldcheck/internal/model"

	"github.com/redis/go-redis/v9"
)

// TemplateCache handles Redis operations for published template snapshots.
// Published versions never change, so entries only expire.
type TemplateCache interface {
	Set(ctx context.Context, t *model.Template) error
	Get(ctx context.Context, id, version string) (*model.Template, error)
	SetLatest(ctx context.Context, id, version string) error
	GetLatest(ctx context.Context, id string) (string, error)
}

type templateCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTemplateCache creates a new template cache
func NewTemplateCache(client *redis.Client, ttl time.Duration) TemplateCache {
	return &templateCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *templateCache) key(id, version string) string {
	return fmt.Sprintf("template:%s:v:%s", id, version)
}

func (c *templateCache) latestKey(id string) string {
	return fmt.Sprintf("template:%s:latest", id)
}

func (c *templateCache) Set(ctx context.Context, t *model.Template) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(t.ID, t.Version), data, c.ttl).Err()
}

func (c *templateCache) Get(ctx context.Context, id, version string) (*model.Template, error) {
	data, err := c.client.Get(ctx, c.key(id, version)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var t model.Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *templateCache) SetLatest(ctx context.Context, id, version string) error {
	return c.client.Set(ctx, c.latestKey(id), version, c.ttl).Err()
}

func (c *templateCache) GetLatest(ctx context.Context, id string) (string, error) {
	v, err := c.client.Get(ctx, c.latestKey(id)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}
