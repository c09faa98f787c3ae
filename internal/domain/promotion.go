package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PromotionType string

const (
	PromotionPercentage   PromotionType = "percentage"
	PromotionFixedAmount  PromotionType = "fixed_amount"
	PromotionFreeDelivery PromotionType = "free_delivery"
	PromotionFreeItem     PromotionType = "free_item"
)

type PromotionStatus string

const (
	PromotionActive    PromotionStatus = "active"
	PromotionScheduled PromotionStatus = "scheduled"
	PromotionExpired   PromotionStatus = "expired"
	PromotionDisabled  PromotionStatus = "disabled"
)

// Promotion is a discount code as stored by the back-office.
type Promotion struct {
	ID                    string           `json:"id"`
	Code                  string           `json:"code"`
	Description           string           `json:"description,omitempty"`
	Type                  PromotionType    `json:"type"`
	Value                 decimal.Decimal  `json:"value"`
	MinimumOrderAmount    *decimal.Decimal `json:"minimum_order_amount,omitempty"`
	MaximumDiscount       *decimal.Decimal `json:"maximum_discount,omitempty"`
	UsageLimit            *int             `json:"usage_limit,omitempty"`
	UsageCount            int              `json:"usage_count"`
	PerUserLimit          *int             `json:"per_user_limit,omitempty"`
	ValidFrom             time.Time        `json:"valid_from"`
	ValidUntil            time.Time        `json:"valid_until"`
	Status                PromotionStatus  `json:"status"`
	FirstTimeCustomerOnly bool             `json:"first_time_customer_only"`
}

// PromotionUsage records one redemption, unique per order.
type PromotionUsage struct {
	ID             string
	PromotionID    string
	CustomerID     string
	OrderID        string
	DiscountAmount decimal.Decimal
	UsedAt         time.Time
}

// PromotionHistory is the caller's snapshot of the customer's past activity.
type PromotionHistory struct {
	CustomerID string
	// CustomerUsages counts prior redemptions of this promotion by the customer.
	CustomerUsages int
	// PriorOrders counts the customer's non-cancelled orders.
	PriorOrders int
}

// PromotionResult is an accepted promotion and the discount it grants.
type PromotionResult struct {
	Promotion      *Promotion
	DiscountAmount decimal.Decimal
	// FreeDelivery waives the delivery fee instead of discounting the subtotal.
	FreeDelivery bool
	// FreeItem promotions grant an item out of band and carry no monetary discount.
	FreeItem bool
}

// PromotionRules holds the configured values the evaluator depends on.
type PromotionRules struct {
	DeliveryFee decimal.Decimal
}

// EvaluatePromotion validates promo against the order subtotal and the customer history.
// Checks run in a fixed order and stop at the first failure.
func EvaluatePromotion(promo *Promotion, subtotal decimal.Decimal, history PromotionHistory, rules PromotionRules, now time.Time) (*PromotionResult, error) {
	if promo == nil || promo.Status != PromotionActive {
		return nil, newError(KindPromotionInvalid, "promotion_code", "promotion code is not valid")
	}

	if now.Before(promo.ValidFrom) || now.After(promo.ValidUntil) {
		return nil, newError(KindPromotionExpired, "promotion_code", "promotion %s is valid from %s until %s",
			promo.Code, promo.ValidFrom.Format(time.DateOnly), promo.ValidUntil.Format(time.DateOnly))
	}

	if promo.UsageLimit != nil && promo.UsageCount >= *promo.UsageLimit {
		return nil, newError(KindPromotionExhausted, "promotion_code", "promotion %s reached its usage limit of %d", promo.Code, *promo.UsageLimit)
	}

	if promo.MinimumOrderAmount != nil && subtotal.LessThan(*promo.MinimumOrderAmount) {
		return nil, newError(KindPromotionMinimumNotMet, "order_subtotal", "minimum order amount is %s", promo.MinimumOrderAmount.StringFixed(2))
	}

	if history.CustomerID != "" && promo.PerUserLimit != nil && history.CustomerUsages >= *promo.PerUserLimit {
		return nil, newError(KindPromotionAlreadyUsed, "promotion_code", "promotion %s can be used %d time(s) per customer", promo.Code, *promo.PerUserLimit)
	}

	if promo.FirstTimeCustomerOnly && history.PriorOrders > 0 {
		return nil, newError(KindPromotionRestricted, "promotion_code", "promotion %s is for first-time customers only", promo.Code)
	}

	result := &PromotionResult{Promotion: promo}

	var raw decimal.Decimal
	switch promo.Type {
	case PromotionPercentage:
		raw = subtotal.Mul(promo.Value).Div(hundred)
	case PromotionFixedAmount:
		raw = promo.Value
	case PromotionFreeDelivery:
		raw = rules.DeliveryFee
		result.FreeDelivery = true
	case PromotionFreeItem:
		raw = decimal.Zero
		result.FreeItem = true
	default:
		return nil, newError(KindPromotionInvalid, "promotion_code", "unsupported promotion type %q", promo.Type)
	}

	if raw.IsNegative() {
		raw = decimal.Zero
	}

	bounds := []decimal.Decimal{subtotal}
	if promo.MaximumDiscount != nil {
		bounds = append(bounds, *promo.MaximumDiscount)
	}
	discount := minDecimal(raw, bounds...)
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	result.DiscountAmount = Round2(discount)
	return result, nil
}
