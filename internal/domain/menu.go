package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type MenuCategory string

const (
	MenuBreakfast MenuCategory = "breakfast"
	MenuLunch     MenuCategory = "lunch"
	MenuSnacks    MenuCategory = "snacks"
)

// MenuItem is a dish managed from the admin back-office
type MenuItem struct {
	ID          string
	Name        string
	Category    MenuCategory
	Description string
	Price       decimal.Decimal
	DietaryTags []string
	Available   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate applies business validation rules
func (m *MenuItem) Validate() error {
	name := strings.TrimSpace(m.Name)
	if len(name) < 1 || len(name) > 100 {
		return newError(KindInvalidSelection, "name", "menu item name must be 1-100 characters")
	}
	switch m.Category {
	case MenuBreakfast, MenuLunch, MenuSnacks:
	default:
		return newError(KindInvalidSelection, "category", "menu item category must be one of: breakfast, lunch, snacks")
	}
	if m.Price.IsNegative() || m.Price.GreaterThan(decimal.NewFromInt(999)) {
		return newError(KindInvalidSelection, "price", "menu item price must be 0-999")
	}
	if !m.Price.Equal(Round2(m.Price)) {
		return newError(KindInvalidSelection, "price", "menu item price must have at most 2 decimal places")
	}
	return nil
}

// LunchPriceTable builds the lunch price lookup used by the calculator from available lunch items.
func LunchPriceTable(items []*MenuItem) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(items))
	for _, item := range items {
		if item.Category == MenuLunch && item.Available {
			prices[item.ID] = item.Price
		}
	}
	return prices
}
