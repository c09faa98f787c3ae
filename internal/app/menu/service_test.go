package menu

import (
	"context"
	"errors"
	"testing"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/adapter/memory"
	"github.com/YelzhanWeb/catering/internal/domain"

	"github.com/shopspring/decimal"
)

func TestMenuCRUD(t *testing.T) {
	svc := NewService(memory.NewStore().Menu(), logger.NewNop())
	ctx := context.Background()

	wrap, err := svc.Create(ctx, &domain.MenuItem{Name: "  Veggie wrap ", Category: domain.MenuLunch, Price: decimal.RequireFromString("10.50"), Available: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if wrap.ID == "" || wrap.Name != "Veggie wrap" || wrap.CreatedAt.IsZero() {
		t.Errorf("unexpected item %+v", wrap)
	}
	if _, err := svc.Create(ctx, &domain.MenuItem{Name: "Muffin", Category: domain.MenuBreakfast, Price: decimal.RequireFromString("3.25"), Available: true}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	wrap.Price = decimal.RequireFromString("11.00")
	if _, err := svc.Update(ctx, wrap); err != nil {
		t.Fatalf("Update: %v", err)
	}

	prices, err := svc.LunchPrices(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(prices) != 1 || !prices[wrap.ID].Equal(decimal.RequireFromString("11.00")) {
		t.Errorf("unexpected lunch prices %v", prices)
	}

	if _, err := svc.SetAvailability(ctx, wrap.ID, false); err != nil {
		t.Fatal(err)
	}
	all, _ := svc.List(ctx, nil, false)
	available, _ := svc.List(ctx, nil, true)
	if len(all) != 2 || len(available) != 1 {
		t.Errorf("list all=%d available=%d", len(all), len(available))
	}
}

func TestMenuValidation(t *testing.T) {
	svc := NewService(memory.NewStore().Menu(), logger.NewNop())
	ctx := context.Background()

	_, err := svc.Create(ctx, &domain.MenuItem{Name: "Soup", Category: domain.MenuLunch, Price: decimal.RequireFromString("-1")})
	if !errors.Is(err, domain.ErrInvalidSelection) {
		t.Errorf("expected InvalidSelection, got %v", err)
	}

	_, err = svc.Update(ctx, &domain.MenuItem{ID: "missing", Name: "Soup", Category: domain.MenuLunch, Price: decimal.NewFromInt(4)})
	if !errors.Is(err, domain.ErrMenuItemNotFound) {
		t.Errorf("expected ErrMenuItemNotFound, got %v", err)
	}
}
