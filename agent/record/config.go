package record

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

const BackendMemory = "memory"

// Config is loaded with the RECORDS prefix.
type Config struct {
	Backend string `envconfig:"BACKEND" split_words:"true" default:"memory"`
	DSN     string `envconfig:"DSN" split_words:"true"`
	Fixture string `envconfig:"FIXTURE" split_words:"true"`
	Migrate bool   `envconfig:"MIGRATE" split_words:"true" default:"true"`
	Seed    bool   `envconfig:"SEED" split_words:"true" default:"false"`
}

func (c Config) customers() ([]Customer, error) {
	if strings.TrimSpace(c.Fixture) == "" {
		return DemoCustomers()
	}
	return LoadFile(c.Fixture)
}

// Open builds the configured record store and returns its closer.
func Open(ctx context.Context, cfg Config) (Store, func() error, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case "", BackendMemory:
		customers, err := cfg.customers()
		if err != nil {
			return nil, nil, err
		}
		log.Info().Int("customers", len(customers)).Msg("record store: memory")
		return NewMemoryStore(customers), func() error { return nil }, nil
	case DriverPostgres, DriverMySQL:
		store, err := OpenBun(ctx, backend, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Migrate {
			if err := store.Migrate(ctx); err != nil {
				_ = store.Close()
				return nil, nil, err
			}
		}
		if cfg.Seed {
			customers, err := cfg.customers()
			if err != nil {
				_ = store.Close()
				return nil, nil, err
			}
			if err := store.Seed(ctx, customers); err != nil {
				_ = store.Close()
				return nil, nil, err
			}
		}
		log.Info().Str("driver", backend).Bool("seeded", cfg.Seed).Msg("record store: sql")
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown records backend %q", cfg.Backend)
	}
}
