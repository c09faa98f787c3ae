package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PackageKind is the family of a priced package.
type PackageKind string

const (
	PackageBreakfast PackageKind = "breakfast"
	PackageSnacks    PackageKind = "snacks"
)

// Breakfast tiers
const (
	BreakfastContinental = "continental"
	BreakfastHot         = "hot"
	BreakfastPremium     = "premium"
)

// Snack tiers
const (
	SnacksBasic   = "basic"
	SnacksPremium = "premium"
	SnacksCustom  = "custom"
)

// Catalog is the single price table for package options. Per-head prices.
type Catalog struct {
	prices map[PackageKind]map[string]decimal.Decimal
}

// DefaultCatalog returns the standard package price table.
func DefaultCatalog() *Catalog {
	return &Catalog{
		prices: map[PackageKind]map[string]decimal.Decimal{
			PackageBreakfast: {
				BreakfastContinental: decimal.RequireFromString("12.99"),
				BreakfastHot:         decimal.RequireFromString("18.99"),
				BreakfastPremium:     decimal.RequireFromString("24.99"),
			},
			PackageSnacks: {
				SnacksBasic:   decimal.RequireFromString("6.99"),
				SnacksPremium: decimal.RequireFromString("12.99"),
				SnacksCustom:  decimal.RequireFromString("15.99"),
			},
		},
	}
}

// PriceOf returns the per-head price of a tier.
func (c *Catalog) PriceOf(kind PackageKind, tier string) (decimal.Decimal, error) {
	tiers, ok := c.prices[kind]
	if !ok {
		return decimal.Zero, newError(KindInvalidSelection, string(kind), "unknown package kind")
	}
	price, ok := tiers[tier]
	if !ok {
		return decimal.Zero, newError(KindInvalidSelection, string(kind)+".package_type", "unknown tier %q", tier)
	}
	return price, nil
}

// Tiers lists the tiers known for a kind.
func (c *Catalog) Tiers(kind PackageKind) []string {
	var out []string
	for tier := range c.prices[kind] {
		out = append(out, tier)
	}
	sort.Strings(out)
	return out
}
