package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/i474232898/forecast-digest/internal/forecast"
)

// RedisMarkerStore keeps markers in Redis so several hosts can share one state.
// Save runs its read-compare-write inside WATCH/MULTI.
type RedisMarkerStore struct {
	client *redis.Client
	prefix string
}

// NewRedisMarkerStore creates a store using keys "<prefix>:marker:<source>".
func NewRedisMarkerStore(client *redis.Client, prefix string) *RedisMarkerStore {
	if prefix == "" {
		prefix = "forecast-digest"
	}
	return &RedisMarkerStore{client: client, prefix: prefix}
}

// Connect parses url and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisMarkerStore) key(source forecast.SourceID) string {
	return s.prefix + ":marker:" + string(source)
}

func (s *RedisMarkerStore) Load(ctx context.Context, source forecast.SourceID) (string, error) {
	v, err := s.client.Get(ctx, s.key(source)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (s *RedisMarkerStore) Save(ctx context.Context, source forecast.SourceID, marker string) error {
	key := s.key(source)

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != "" && marker < current {
			return fmt.Errorf("%w: %s < %s", forecast.ErrMarkerRegression, marker, current)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, marker, 0)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("marker for %s changed concurrently: %w", source, err)
	}
	return err
}

func (s *RedisMarkerStore) Reset(ctx context.Context, source forecast.SourceID) error {
	return s.client.Del(ctx, s.key(source)).Err()
}
