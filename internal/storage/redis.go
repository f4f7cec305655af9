/**
 * Redis result cache for the extraction worker.
 *
 * Finished results are cached with a TTL so the API can serve status polls
 * without hitting PostgreSQL. The cache is best-effort: a miss falls back to
 * the database.
 */

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lipiscan/extract-worker/internal/processor"
)

// ResultCache caches finished extraction results in Redis.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResultCache connects to Redis and verifies the connection.
func NewResultCache(redisURL string, ttl time.Duration) (*ResultCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &ResultCache{client: client, ttl: ttl}, nil
}

func resultKey(jobID string) string {
	return "extract:result:" + jobID
}

// CacheResult stores the result under the job's key with the configured TTL.
func (c *ResultCache) CacheResult(ctx context.Context, jobID string, result *processor.DocumentResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := c.client.Set(ctx, resultKey(jobID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache result for job %s: %w", jobID, err)
	}
	return nil
}

// FetchResult returns the cached result, or (nil, nil) on a cache miss.
func (c *ResultCache) FetchResult(ctx context.Context, jobID string) (*processor.DocumentResult, error) {
	data, err := c.client.Get(ctx, resultKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cached result: %w", err)
	}

	var result processor.DocumentResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}
	return &result, nil
}

// Close releases the Redis connection.
func (c *ResultCache) Close() error {
	return c.client.Close()
}
