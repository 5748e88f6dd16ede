package submissions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mitesh006/Code-duel-backend/internal/types"
)

const cachePrefix = "evaluator-problem-"

// Problem metadata rarely changes, so lookups are shared across workers through redis
type MetadataCache struct {
	client *redis.Client
	ttl    time.Duration
}

// A zero `ttl` keeps entries forever
func NewMetadataCache(client *redis.Client, ttl time.Duration) *MetadataCache {
	return &MetadataCache{client: client, ttl: ttl}
}

// Returns nil, nil on a miss
func (c *MetadataCache) Get(ctx context.Context, slug string) (*types.ProblemMetadata, error) {
	raw, err := c.client.Get(ctx, cachePrefix+slug).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var meta types.ProblemMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (c *MetadataCache) Set(ctx context.Context, slug string, meta *types.ProblemMetadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, cachePrefix+slug, raw, c.ttl).Err()
}
