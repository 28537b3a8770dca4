package state

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
)

func setupMiniredis(t *testing.T, opts ...StoreOption) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, opts...)

	t.Cleanup(func() {
		_ = store.Close()
	})
	return mr, store
}

func TestRedisStoreAppendAndLoad(t *testing.T) {
	t.Parallel()

	mr, store := setupMiniredis(t, WithKeyPrefix("test:"))
	ctx := context.Background()
	key := CustomerKey("CUST0001")
	now := time.Now().UTC()

	turn := testTurn("CUST0001", "bakiyem ne kadar", "bakiyeniz 1.000 TL", contractx.DecisionAccount, false, now)
	if err := store.Append(ctx, key, turn); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	items, err := mr.List("test:banking:cust:CUST0001")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one log entry, got %d", len(items))
	}

	s, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Turns != 1 || s.Next != contractx.DecisionAccount {
		t.Fatalf("unexpected session: %+v", s)
	}
	if s.Messages[1].Author != contractx.AuthorFormatter {
		t.Fatalf("author = %q, want formatter", s.Messages[1].Author)
	}
}

func TestRedisStoreLoadMissingIsEmpty(t *testing.T) {
	t.Parallel()

	_, store := setupMiniredis(t)
	s, err := store.Load(context.Background(), CustomerKey("CUST0404"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !s.IsNew() {
		t.Fatalf("expected new session, got %+v", s)
	}
}

func TestRedisStoreTerminatedTurnStartsFreshSession(t *testing.T) {
	t.Parallel()

	mr, store := setupMiniredis(t)
	ctx := context.Background()
	key := CustomerKey("CUST0003")
	now := time.Now().UTC()

	turns := []Turn{
		testTurn("CUST0003", "kart borcum", "borcunuz 200 TL", contractx.DecisionCard, false, now),
		testTurn("CUST0003", "teşekkürler", "iyi günler", contractx.DecisionFinish, true, now),
	}
	for _, turn := range turns {
		if err := store.Append(ctx, key, turn); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	s, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !s.IsNew() || s.Generation != 1 {
		t.Fatalf("expected fresh session, got %+v", s)
	}

	items, err := mr.List(defaultStoreKeyPrefix + "banking:cust:CUST0003")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("terminated log should keep both turns, got %d", len(items))
	}
}

func TestRedisStoreTTL(t *testing.T) {
	t.Parallel()

	mr, store := setupMiniredis(t, WithTTL(time.Hour))
	ctx := context.Background()
	key := CustomerKey("CUST0004")

	turn := testTurn("CUST0004", "hesaplarım", "iki hesabınız var", contractx.DecisionAccount, false, time.Now())
	if err := store.Append(ctx, key, turn); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	mr.FastForward(2 * time.Hour)

	s, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !s.IsNew() {
		t.Fatalf("expected expired log to load as new, got %+v", s)
	}
}

func TestRedisStoreRejectsInvalidTurn(t *testing.T) {
	t.Parallel()

	_, store := setupMiniredis(t)
	err := store.Append(context.Background(), CustomerKey("CUST0001"), Turn{ID: "x"})
	if err == nil {
		t.Fatal("expected invalid turn error")
	}
}
