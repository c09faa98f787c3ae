package menu

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/YelzhanWeb/catering/internal/interfaces"

	"github.com/shopspring/decimal"
)

type Service struct {
	repo   interfaces.MenuRepository
	logger logger.Logger
	now    func() time.Time
}

func NewService(repo interfaces.MenuRepository, logger logger.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

func (s *Service) Create(ctx context.Context, item *domain.MenuItem) (*domain.MenuItem, error) {
	item.Name = strings.TrimSpace(item.Name)
	if err := item.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	item.ID = ""
	item.CreatedAt = now
	item.UpdatedAt = now
	if err := s.repo.Create(ctx, item); err != nil {
		s.logger.Error("menu_item_create_failed", "Failed to create menu item", "", nil, err)
		return nil, fmt.Errorf("failed to create menu item: %w", err)
	}

	s.logger.Info("menu_item_created", "Menu item created", "", map[string]interface{}{
		"menu_item_id": item.ID,
		"category":     item.Category,
	})
	return item, nil
}

func (s *Service) Update(ctx context.Context, item *domain.MenuItem) (*domain.MenuItem, error) {
	existing, err := s.repo.FindByID(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu item %s: %w", item.ID, err)
	}

	item.Name = strings.TrimSpace(item.Name)
	if err := item.Validate(); err != nil {
		return nil, err
	}
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update menu item %s: %w", item.ID, err)
	}
	s.logger.Info("menu_item_updated", "Menu item updated", "", map[string]interface{}{"menu_item_id": item.ID})
	return item, nil
}

func (s *Service) SetAvailability(ctx context.Context, id string, available bool) (*domain.MenuItem, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu item %s: %w", id, err)
	}
	if item.Available == available {
		return item, nil
	}

	item.Available = available
	item.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update menu item %s: %w", id, err)
	}
	s.logger.Info("menu_item_availability_changed", "Menu item availability changed", "", map[string]interface{}{
		"menu_item_id": id,
		"available":    available,
	})
	return item, nil
}

func (s *Service) List(ctx context.Context, category *domain.MenuCategory, onlyAvailable bool) ([]*domain.MenuItem, error) {
	items, err := s.repo.List(ctx, category, onlyAvailable)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu items: %w", err)
	}
	return items, nil
}

// LunchPrices is the price table the order calculator uses for lunch selections.
func (s *Service) LunchPrices(ctx context.Context) (map[string]decimal.Decimal, error) {
	lunch := domain.MenuLunch
	items, err := s.repo.List(ctx, &lunch, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list lunch items: %w", err)
	}
	return domain.LunchPriceTable(items), nil
}
