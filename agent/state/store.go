package state

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultStoreKeyPrefix = "chative:session:"
	maxResponseSizeBytes  = 4 << 20
)

// Store is the persistence contract used by the orchestrator. Load of an
// unknown key returns an empty session, never an error.
type Store interface {
	Load(ctx context.Context, key Key) (*Session, error)
	Append(ctx context.Context, key Key, turn Turn) error
}

// StoreOption customizes the remote stores.
type StoreOption func(*storeOptions)

type storeOptions struct {
	keyPrefix  string
	ttl        time.Duration
	httpClient *http.Client
}

func defaultStoreOptions() storeOptions {
	return storeOptions{keyPrefix: defaultStoreKeyPrefix}
}

func WithKeyPrefix(prefix string) StoreOption {
	return func(o *storeOptions) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			o.keyPrefix = trimmed
		}
	}
}

// WithTTL sets an expiry on session logs. Zero, the default, keeps logs forever.
func WithTTL(ttl time.Duration) StoreOption {
	return func(o *storeOptions) {
		o.ttl = ttl
	}
}

// WithHTTPClient overrides the client used by the Upstash REST store.
func WithHTTPClient(client *http.Client) StoreOption {
	return func(o *storeOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

func (o storeOptions) logKey(key Key) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	return o.keyPrefix + key.Namespace + ":" + key.ID, nil
}

func encodeTurn(turn Turn) (string, error) {
	if err := turn.Validate(); err != nil {
		return "", err
	}
	payload, err := json.Marshal(turn)
	if err != nil {
		return "", fmt.Errorf("marshal turn: %w", err)
	}
	return string(payload), nil
}

func decodeTurns(raw []string) ([]Turn, error) {
	turns := make([]Turn, 0, len(raw))
	for i, r := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			return nil, fmt.Errorf("unmarshal turn %d: %w", i, err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// MemoryStore keeps logs in process. It backs tests and single-node demos.
type MemoryStore struct {
	mu   sync.RWMutex
	logs map[Key][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: make(map[Key][]string)}
}

func (m *MemoryStore) Load(_ context.Context, key Key) (*Session, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	raw := append([]string(nil), m.logs[key]...)
	m.mu.RUnlock()

	turns, err := decodeTurns(raw)
	if err != nil {
		return nil, err
	}
	return Reduce(key, turns), nil
}

func (m *MemoryStore) Append(_ context.Context, key Key, turn Turn) error {
	if err := key.Validate(); err != nil {
		return err
	}
	payload, err := encodeTurn(turn)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.logs[key] = append(m.logs[key], payload)
	m.mu.Unlock()
	return nil
}

// Turns returns the raw log for key.
func (m *MemoryStore) Turns(key Key) ([]Turn, error) {
	m.mu.RLock()
	raw := append([]string(nil), m.logs[key]...)
	m.mu.RUnlock()
	return decodeTurns(raw)
}
