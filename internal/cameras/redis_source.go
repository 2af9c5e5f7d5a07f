package cameras

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DefaultRedisKey holds the classification results document
const DefaultRedisKey = "saferoute:classification_results"

// RedisSource reads the classification results document from a Redis key.
// The companion "<key>:updated_at" key carries the RFC 3339 time the
// document was written.
type RedisSource struct {
	rdb *redis.Client
	key string
	now func() time.Time
}

// NewRedisSource creates a new RedisSource from a redis:// URL
func NewRedisSource(url, key string) (*RedisSource, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisSourceWithClient(redis.NewClient(opt), key), nil
}

// NewRedisSourceWithClient creates a new RedisSource using an existing client
func NewRedisSourceWithClient(rdb *redis.Client, key string) *RedisSource {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSource{rdb: rdb, key: key, now: time.Now}
}

func (r *RedisSource) Name() string {
	return "redis:" + r.key
}

// Load fetches and parses the document
func (r *RedisSource) Load(ctx context.Context) (*Snapshot, error) {
	values, err := r.rdb.MGet(ctx, r.key, r.updatedKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.key, err)
	}

	data, ok := values[0].(string)
	if !ok {
		return nil, fmt.Errorf("key %s is empty", r.key)
	}

	results, err := ParseResults([]byte(data))
	if err != nil {
		return nil, err
	}

	loadedAt := r.now().UTC()
	updatedAt := loadedAt
	if s, ok := values[1].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			updatedAt = t.UTC()
		}
	}

	return results.Snapshot(updatedAt, loadedAt), nil
}

// Publish writes a results document so every server reading this key picks
// it up on its next refresh
func (r *RedisSource) Publish(ctx context.Context, data []byte, updatedAt time.Time) error {
	if _, err := ParseResults(data); err != nil {
		return err
	}

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key, data, 0)
		pipe.Set(ctx, r.updatedKey(), updatedAt.UTC().Format(time.RFC3339Nano), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", r.key, err)
	}
	return nil
}

// Ping checks connectivity
func (r *RedisSource) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close releases the client
func (r *RedisSource) Close() error {
	return r.rdb.Close()
}

func (r *RedisSource) updatedKey() string {
	return r.key + ":updated_at"
}
