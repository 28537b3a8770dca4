package state

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	BackendMemory  = "memory"
	BackendRedis   = "redis"
	BackendUpstash = "upstash"
)

// Config selects the session backend. It is loaded with the SESSION prefix.
type Config struct {
	Backend   string             `envconfig:"BACKEND" split_words:"true" default:"memory"`
	KeyPrefix string             `envconfig:"KEY_PREFIX" split_words:"true" default:"chative:session:"`
	TTL       time.Duration      `envconfig:"TTL" split_words:"true" default:"0s"`
	Redis     RedisConfig        `envconfig:"REDIS" split_words:"true"`
	Upstash   UpstashRedisConfig `envconfig:"UPSTASH" split_words:"true"`
}

// Open builds the configured store. The returned closer is a no-op for
// backends without connections.
func Open(ctx context.Context, cfg Config) (Store, func() error, error) {
	opts := []StoreOption{WithKeyPrefix(cfg.KeyPrefix), WithTTL(cfg.TTL)}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendMemory:
		return NewMemoryStore(), noopClose, nil
	case BackendRedis:
		s, err := NewRedisStore(ctx, cfg.Redis, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case BackendUpstash:
		s, err := NewUpstashRedisStore(cfg.Upstash, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, noopClose, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

func noopClose() error { return nil }
