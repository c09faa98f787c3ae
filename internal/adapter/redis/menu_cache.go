package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/YelzhanWeb/catering/internal/interfaces"
)

const menuKeyPrefix = "menu:"

var menuCategories = []string{"all", string(domain.MenuBreakfast), string(domain.MenuLunch), string(domain.MenuSnacks)}

// CachedMenuRepository reads menu listings through redis. Writes go to the
// primary repository and drop every cached listing.
type CachedMenuRepository struct {
	primary interfaces.MenuRepository
	client  Client
	ttl     time.Duration
	logger  logger.Logger
}

func NewCachedMenuRepository(primary interfaces.MenuRepository, client Client, ttl time.Duration, logger logger.Logger) *CachedMenuRepository {
	return &CachedMenuRepository{
		primary: primary,
		client:  client,
		ttl:     ttl,
		logger:  logger,
	}
}

func listKey(category *domain.MenuCategory, onlyAvailable bool) string {
	c := "all"
	if category != nil {
		c = string(*category)
	}
	return fmt.Sprintf("%slist:%s:%t", menuKeyPrefix, c, onlyAvailable)
}

func (r *CachedMenuRepository) List(ctx context.Context, category *domain.MenuCategory, onlyAvailable bool) ([]*domain.MenuItem, error) {
	key := listKey(category, onlyAvailable)

	cached, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		var items []*domain.MenuItem
		if err := json.Unmarshal(cached, &items); err == nil {
			return items, nil
		}
	}

	items, err := r.primary.List(ctx, category, onlyAvailable)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(items)
	if err != nil {
		return items, nil
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.logger.Warn("menu_cache_write_failed", "Failed to cache menu listing", "", map[string]interface{}{"key": key, "error": err.Error()})
	}
	return items, nil
}

func (r *CachedMenuRepository) FindByID(ctx context.Context, id string) (*domain.MenuItem, error) {
	return r.primary.FindByID(ctx, id)
}

func (r *CachedMenuRepository) Create(ctx context.Context, item *domain.MenuItem) error {
	if err := r.primary.Create(ctx, item); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *CachedMenuRepository) Update(ctx context.Context, item *domain.MenuItem) error {
	if err := r.primary.Update(ctx, item); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *CachedMenuRepository) invalidate(ctx context.Context) {
	keys := make([]string, 0, len(menuCategories)*2)
	for _, c := range menuCategories {
		keys = append(keys,
			fmt.Sprintf("%slist:%s:true", menuKeyPrefix, c),
			fmt.Sprintf("%slist:%s:false", menuKeyPrefix, c),
		)
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		// stale listings live until the ttl runs out
		r.logger.Warn("menu_cache_invalidate_failed", "Failed to drop cached menu listings", "", map[string]interface{}{"error": err.Error()})
	}
}
