package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesStats summarises orders created in [From, To).
type SalesStats struct {
	From              time.Time        `json:"from"`
	To                time.Time        `json:"to"`
	OrderCount        int              `json:"order_count"`
	CancelledCount    int              `json:"cancelled_count"`
	GrossRevenue      decimal.Decimal  `json:"gross_revenue"`
	DiscountTotal     decimal.Decimal  `json:"discount_total"`
	TaxTotal          decimal.Decimal  `json:"tax_total"`
	AverageOrderValue decimal.Decimal  `json:"average_order_value"`
	ByStatus          map[Status]int   `json:"by_status"`
	TopMenuItems      []MenuItemVolume `json:"top_menu_items"`
}

type MenuItemVolume struct {
	MenuItemID   string `json:"menu_item_id"`
	MenuItemName string `json:"menu_item_name"`
	Count        int    `json:"count"`
}

// PaidStatuses are the statuses whose totals count as revenue.
var PaidStatuses = []Status{
	StatusConfirmed, StatusPreparing, StatusReadyForDelivery, StatusOutForDelivery, StatusDelivered,
}

// Finalize fills derived fields.
func (s *SalesStats) Finalize() {
	s.CancelledCount = s.ByStatus[StatusCancelled]
	paid := 0
	for _, st := range PaidStatuses {
		paid += s.ByStatus[st]
	}
	if paid == 0 {
		s.AverageOrderValue = decimal.Zero
		return
	}
	s.AverageOrderValue = Round2(s.GrossRevenue.Div(decimal.NewFromInt(int64(paid))))
}
