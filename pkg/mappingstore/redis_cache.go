package mappingstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Ramsey-B/vine/pkg/models"
	"github.com/Ramsey-B/vine/pkg/redis"
)

// RedisCache is a Cache shared by every matcher instance.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, keyPrefix: "vine:mapping:", ttl: ttl}
}

func (c *RedisCache) key(k models.MappingKey) string {
	return c.keyPrefix + k.String()
}

func (c *RedisCache) Get(ctx context.Context, key models.MappingKey) (*models.SkuMapping, bool, error) {
	raw, ok, err := c.client.Get(ctx, c.key(key))
	if err != nil || !ok {
		return nil, false, err
	}
	var m models.SkuMapping
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		// an undecodable entry is treated as a miss and overwritten on the next read
		return nil, false, nil
	}
	return &m, true, nil
}

func (c *RedisCache) Set(ctx context.Context, m models.SkuMapping) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(m.MappingKey), string(raw), c.ttl)
}

func (c *RedisCache) Delete(ctx context.Context, key models.MappingKey) error {
	return c.client.Del(ctx, c.key(key))
}
