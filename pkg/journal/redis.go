package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	rds "github.com/redis/go-redis/v9"

	"github.com/oceanbase/mindshard-go/pkg/core"
)

// DefaultRedisKey is the list key used when RedisConfig.Key is empty.
const DefaultRedisKey = "mindshard:journal"

// RedisConfig contains configuration for the Redis journal.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Key is the Redis list holding the entries.
	Key string
}

// Redis keeps the journal in a Redis list, one JSON document per element.
type Redis struct {
	client *rds.Client
	key    string
}

// NewRedis connects to Redis and verifies the connection with PING.
func NewRedis(cfg *RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, core.Errorf("NewRedisJournal", core.ErrInvalidConfig, "redis address is required")
	}

	client := rds.NewClient(&rds.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, &core.MemoryError{Op: "NewRedisJournal", Err: fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)}
	}
	return NewRedisWithClient(client, cfg.Key), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *rds.Client, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key}
}

func unavailable(op string, err error) error {
	return &core.MemoryError{Op: op, Err: fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)}
}

// Append implements Journal.
func (r *Redis) Append(ctx context.Context, entry *core.Entry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := r.client.RPush(ctx, r.key, b).Err(); err != nil {
		return unavailable("JournalAppend", err)
	}
	return nil
}

// Recent implements Journal.
func (r *Redis) Recent(ctx context.Context, limit int) ([]*core.Entry, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}

	vals, err := r.client.LRange(ctx, r.key, start, -1).Result()
	if err != nil {
		if errors.Is(err, rds.Nil) {
			return []*core.Entry{}, nil
		}
		return nil, unavailable("JournalRead", err)
	}

	entries := make([]*core.Entry, 0, len(vals))
	for _, v := range vals {
		var e core.Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("decode journal entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, nil
}

// Delete implements Journal by removing the stored element of id.
func (r *Redis) Delete(ctx context.Context, id string) (bool, error) {
	vals, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return false, unavailable("JournalDelete", err)
	}

	for _, v := range vals {
		var e core.Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil || e.ID != id {
			continue
		}
		n, err := r.client.LRem(ctx, r.key, 1, v).Result()
		if err != nil {
			return false, unavailable("JournalDelete", err)
		}
		return n > 0, nil
	}
	return false, nil
}

// Clear implements Journal.
func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return unavailable("JournalClear", err)
	}
	return nil
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
