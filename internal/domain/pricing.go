package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderPricing is the money breakdown of an order.
type OrderPricing struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Tax            decimal.Decimal `json:"tax"`
	DeliveryFee    decimal.Decimal `json:"delivery_fee"`
	Total          decimal.Decimal `json:"total"`
}

// Check verifies the breakdown reconciles and nothing is negative.
func (p OrderPricing) Check() error {
	for name, v := range map[string]decimal.Decimal{
		"subtotal":        p.Subtotal,
		"discount_amount": p.DiscountAmount,
		"tax":             p.Tax,
		"delivery_fee":    p.DeliveryFee,
		"total":           p.Total,
	} {
		if v.IsNegative() {
			return newError(KindPricingInvariantViolated, name, "%s is negative (%s)", name, v.StringFixed(2))
		}
	}
	want := Round2(p.Subtotal.Sub(p.DiscountAmount).Add(p.Tax).Add(p.DeliveryFee))
	if !want.Equal(p.Total) {
		return newError(KindPricingInvariantViolated, "total", "total %s does not reconcile with components (%s)",
			p.Total.StringFixed(2), want.StringFixed(2))
	}
	return nil
}

// Calculator prices drafts. It is immutable after construction and safe for concurrent use.
type Calculator struct {
	Catalog     *Catalog
	TaxRate     decimal.Decimal
	DeliveryFee decimal.Decimal
	// LunchPrices maps menu item id to price. Nil means lunch is not priced
	// at order level and contributes zero.
	LunchPrices map[string]decimal.Decimal
}

// NewCalculator builds a calculator over the default catalog.
func NewCalculator(taxRate, deliveryFee decimal.Decimal) *Calculator {
	return &Calculator{
		Catalog:     DefaultCatalog(),
		TaxRate:     taxRate,
		DeliveryFee: Round2(deliveryFee),
	}
}

// WithLunchPrices returns a copy of the calculator that prices lunch from prices.
func (c *Calculator) WithLunchPrices(prices map[string]decimal.Decimal) *Calculator {
	cp := *c
	cp.LunchPrices = prices
	return &cp
}

// Rules exposes the values the promotion evaluator needs.
func (c *Calculator) Rules() PromotionRules {
	return PromotionRules{DeliveryFee: c.DeliveryFee}
}

// Subtotal sums breakfast, snacks and lunch without any discount.
func (c *Calculator) Subtotal(draft *OrderDraft) (decimal.Decimal, error) {
	subtotal := decimal.Zero

	if draft.Breakfast != nil {
		price, err := c.Catalog.PriceOf(PackageBreakfast, draft.Breakfast.PackageType)
		if err != nil {
			return decimal.Zero, err
		}
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(draft.Breakfast.HeadCount))))
	}

	if draft.Snacks != nil {
		price, err := c.Catalog.PriceOf(PackageSnacks, draft.Snacks.PackageType)
		if err != nil {
			return decimal.Zero, err
		}
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(draft.EventDetails.HeadCount))))
	}

	if c.LunchPrices != nil {
		for i, sel := range draft.LunchSelections {
			price, ok := c.LunchPrices[sel.MenuItemID]
			if !ok {
				return decimal.Zero, newError(KindInvalidSelection, fmt.Sprintf("lunch_selections[%d].menu_item_id", i),
					"menu item %q is not available", sel.MenuItemID)
			}
			subtotal = subtotal.Add(price)
		}
	}

	return subtotal, nil
}

// Price computes the full breakdown for draft with an optional accepted promotion.
func (c *Calculator) Price(draft *OrderDraft, promo *PromotionResult) (OrderPricing, error) {
	subtotal, err := c.Subtotal(draft)
	if err != nil {
		return OrderPricing{}, err
	}
	subtotal = Round2(subtotal)

	discount := decimal.Zero
	fee := c.DeliveryFee
	if promo != nil {
		if promo.FreeDelivery {
			// promo.DiscountAmount only records the waived fee for the usage row; it is not taken off the subtotal
			fee = decimal.Zero
		} else {
			discount = minDecimal(promo.DiscountAmount, subtotal)
		}
	}

	taxable := subtotal.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	tax := Round2(taxable.Mul(c.TaxRate))

	total := Round2(subtotal.Sub(discount).Add(tax).Add(fee))
	if total.IsNegative() {
		return OrderPricing{}, newError(KindPricingInvariantViolated, "total", "computed total %s is negative", total.StringFixed(2))
	}

	pricing := OrderPricing{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		Tax:            tax,
		DeliveryFee:    fee,
		Total:          total,
	}
	if err := pricing.Check(); err != nil {
		return OrderPricing{}, err
	}
	return pricing, nil
}
