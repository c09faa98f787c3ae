package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/adapter/memory"
	"github.com/YelzhanWeb/catering/internal/domain"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type fakeClient struct {
	mu      sync.Mutex
	data    map[string]string
	counts  map[string]int64
	expires map[string]time.Duration
	gets    int
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: map[string]string{}, counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (c *fakeClient) Get(ctx context.Context, key string) *goredis.StringCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (c *fakeClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = string(value.([]byte))
	c.expires[key] = expiration
	return goredis.NewStatusResult("OK", nil)
}

func (c *fakeClient) Del(ctx context.Context, keys ...string) *goredis.IntCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := c.data[k]; ok {
			delete(c.data, k)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

func (c *fakeClient) Incr(ctx context.Context, key string) *goredis.IntCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	return goredis.NewIntResult(c.counts[key], nil)
}

func (c *fakeClient) Expire(ctx context.Context, key string, expiration time.Duration) *goredis.BoolCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expires[key] = expiration
	return goredis.NewBoolResult(true, nil)
}

// countingRepo counts List calls that reach the primary store.
type countingRepo struct {
	*memory.Store
	lists int
}

func (r *countingRepo) List(ctx context.Context, category *domain.MenuCategory, onlyAvailable bool) ([]*domain.MenuItem, error) {
	r.lists++
	return r.Store.Menu().List(ctx, category, onlyAvailable)
}

func (r *countingRepo) Create(ctx context.Context, item *domain.MenuItem) error {
	return r.Store.Menu().Create(ctx, item)
}

func (r *countingRepo) Update(ctx context.Context, item *domain.MenuItem) error {
	return r.Store.Menu().Update(ctx, item)
}

func (r *countingRepo) FindByID(ctx context.Context, id string) (*domain.MenuItem, error) {
	return r.Store.Menu().FindByID(ctx, id)
}

func TestCachedMenuRepository(t *testing.T) {
	ctx := context.Background()
	primary := &countingRepo{Store: memory.NewStore()}
	client := newFakeClient()
	repo := NewCachedMenuRepository(primary, client, 5*time.Minute, logger.NewNop())

	lunch := domain.MenuLunch
	if err := repo.Create(ctx, &domain.MenuItem{Name: "Soup", Category: lunch, Price: decimal.RequireFromString("6.25"), Available: true}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		items, err := repo.List(ctx, &lunch, true)
		if err != nil {
			t.Fatal(err)
		}
		if len(items) != 1 || items[0].Name != "Soup" || !items[0].Price.Equal(decimal.RequireFromString("6.25")) {
			t.Fatalf("unexpected listing %+v", items)
		}
	}
	if primary.lists != 1 {
		t.Errorf("primary listed %d times, want 1", primary.lists)
	}
	if ttl := client.expires["menu:list:lunch:true"]; ttl != 5*time.Minute {
		t.Errorf("ttl = %s", ttl)
	}

	if err := repo.Create(ctx, &domain.MenuItem{Name: "Salad", Category: lunch, Price: decimal.RequireFromString("7.00"), Available: true}); err != nil {
		t.Fatal(err)
	}
	items, err := repo.List(ctx, &lunch, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || primary.lists != 2 {
		t.Errorf("write did not invalidate: %d items, %d primary lists", len(items), primary.lists)
	}
}

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	limiter := NewRateLimiter(client, 2, time.Minute)

	for i, want := range []bool{true, true, false} {
		ok, err := limiter.Allow(ctx, "10.0.0.1")
		if err != nil {
			t.Fatal(err)
		}
		if ok != want {
			t.Errorf("request %d allowed = %t, want %t", i+1, ok, want)
		}
	}
	if ok, _ := limiter.Allow(ctx, "10.0.0.2"); !ok {
		t.Error("keys must be counted separately")
	}
	if client.expires["rate_limit:10.0.0.1"] != time.Minute {
		t.Error("window not set on first request")
	}

	if ok, _ := NewRateLimiter(client, 0, time.Minute).Allow(ctx, "x"); !ok {
		t.Error("zero limit disables limiting")
	}
}
