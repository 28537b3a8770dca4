package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists each session as a Redis list of JSON turns.
type RedisStore struct {
	client *redis.Client
	opts   storeOptions
}

type RedisConfig struct {
	URL          string        `envconfig:"URL" split_words:"true"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" split_words:"true" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" split_words:"true" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" split_words:"true" default:"3s"`
	PoolSize     int           `envconfig:"POOL_SIZE" split_words:"true" default:"10"`
}

func NewRedisStore(ctx context.Context, cfg RedisConfig, opts ...StoreOption) (*RedisStore, error) {
	rawURL := strings.TrimSpace(cfg.URL)
	if rawURL == "" {
		return nil, errors.New("redis url is required")
	}

	redisOpts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if cfg.DialTimeout > 0 {
		redisOpts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		redisOpts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		redisOpts.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.PoolSize > 0 {
		redisOpts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisStoreFromClient(client, opts...), nil
}

// NewRedisStoreFromClient wraps an existing client, e.g. one pointed at miniredis.
func NewRedisStoreFromClient(client *redis.Client, opts ...StoreOption) *RedisStore {
	o := defaultStoreOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &RedisStore{client: client, opts: o}
}

func (s *RedisStore) Load(ctx context.Context, key Key) (*Session, error) {
	logKey, err := s.opts.logKey(key)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.LRange(ctx, logKey, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load session log: %w", err)
	}

	turns, err := decodeTurns(raw)
	if err != nil {
		return nil, err
	}
	return Reduce(key, turns), nil
}

func (s *RedisStore) Append(ctx context.Context, key Key, turn Turn) error {
	logKey, err := s.opts.logKey(key)
	if err != nil {
		return err
	}
	payload, err := encodeTurn(turn)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, logKey, payload)
	if s.opts.ttl > 0 {
		pipe.Expire(ctx, logKey, s.opts.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append session turn: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
