package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDraftValidate(t *testing.T) {
	catalog := DefaultCatalog()

	tests := []struct {
		name   string
		mutate func(d *OrderDraft)
		field  string
	}{
		{"valid", func(d *OrderDraft) {}, ""},
		{"zero head count", func(d *OrderDraft) { d.EventDetails.HeadCount = 0 }, "event_details.head_count"},
		{"missing event name", func(d *OrderDraft) { d.EventDetails.Name = " " }, "event_details.name"},
		{"unknown breakfast", func(d *OrderDraft) { d.Breakfast.PackageType = "brunch" }, "breakfast.package_type"},
		{"breakfast head count", func(d *OrderDraft) { d.Breakfast.HeadCount = 0 }, "breakfast.head_count"},
		{"unknown snacks", func(d *OrderDraft) { d.Snacks.PackageType = "deluxe" }, "snacks.package_type"},
		{"duplicate attendee", func(d *OrderDraft) {
			d.LunchSelections = []LunchSelection{
				{AttendeeID: "a1", MenuItemID: "m1"},
				{AttendeeID: "a1", MenuItemID: "m2"},
			}
		}, "lunch_selections[1].attendee_id"},
		{"missing menu item", func(d *OrderDraft) {
			d.LunchSelections = []LunchSelection{{AttendeeID: "a1"}}
		}, "lunch_selections[0].menu_item_id"},
		{"missing address", func(d *OrderDraft) { d.Delivery.Street = "" }, "delivery"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testDraft()
			tt.mutate(d)
			err := d.Validate(catalog)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			var derr *Error
			if !errors.As(err, &derr) || derr.Kind != KindInvalidSelection {
				t.Fatalf("expected InvalidSelection, got %v", err)
			}
			if derr.Field != tt.field {
				t.Errorf("field = %q, want %q", derr.Field, tt.field)
			}
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	code := "  save10 "
	d := &OrderDraft{PromotionCode: &code}
	if got := d.NormalizedPromotionCode(); got != "SAVE10" {
		t.Errorf("got %q", got)
	}
	if got := (&OrderDraft{}).NormalizedPromotionCode(); got != "" {
		t.Errorf("got %q for nil code", got)
	}
}

func TestMenuItemValidateAndLunchTable(t *testing.T) {
	items := []*MenuItem{
		{ID: "l1", Name: "Wrap", Category: MenuLunch, Price: dec("11.50"), Available: true},
		{ID: "l2", Name: "Bowl", Category: MenuLunch, Price: dec("12.00"), Available: false},
		{ID: "b1", Name: "Bagel", Category: MenuBreakfast, Price: dec("3.00"), Available: true},
	}
	for _, it := range items {
		if err := it.Validate(); err != nil {
			t.Errorf("Validate(%s): %v", it.ID, err)
		}
	}

	table := LunchPriceTable(items)
	if len(table) != 1 || !table["l1"].Equal(dec("11.50")) {
		t.Errorf("unexpected table %v", table)
	}

	bad := &MenuItem{Name: "Soup", Category: MenuLunch, Price: decimal.RequireFromString("4.999")}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for sub-cent price")
	}
	bad = &MenuItem{Name: "Soup", Category: "dinner", Price: dec("4")}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown category")
	}
}
