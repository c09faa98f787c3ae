package domain

import (
	"fmt"
	"strings"
	"time"
)

// EventDetails describes the catered event.
type EventDetails struct {
	Name            string    `json:"name"`
	Date            time.Time `json:"date"`
	Time            string    `json:"time"`
	HeadCount       int       `json:"head_count"`
	Contact         Contact   `json:"contact"`
	SpecialRequests *string   `json:"special_requests,omitempty"`
}

// Contact identifies the ordering customer.
type Contact struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Company    string `json:"company,omitempty"`
}

type BreakfastSelection struct {
	PackageType string `json:"package_type"`
	HeadCount   int    `json:"head_count"`
}

type SnackSelection struct {
	PackageType string `json:"package_type"`
}

// LunchSelection is one attendee's lunch choice.
type LunchSelection struct {
	AttendeeID   string `json:"attendee_id"`
	MenuItemID   string `json:"menu_item_id"`
	MenuItemName string `json:"menu_item_name"`
	DietaryNotes string `json:"dietary_notes,omitempty"`
}

type DeliveryInfo struct {
	Street        string    `json:"street"`
	City          string    `json:"city"`
	State         string    `json:"state"`
	PostalCode    string    `json:"postal_code"`
	Instructions  *string   `json:"instructions,omitempty"`
	PreferredTime time.Time `json:"preferred_time"`
}

// Selections is the priced content of an order, frozen on the order at submission.
type Selections struct {
	EventDetails    EventDetails        `json:"event_details"`
	Breakfast       *BreakfastSelection `json:"breakfast,omitempty"`
	LunchSelections []LunchSelection    `json:"lunch_selections"`
	Snacks          *SnackSelection     `json:"snacks,omitempty"`
	Delivery        DeliveryInfo        `json:"delivery"`
}

// OrderDraft is the caller-assembled input of an order.
type OrderDraft struct {
	Selections
	PromotionCode *string `json:"promotion_code,omitempty"`
}

// Validate checks the shape of the draft against the catalog.
func (d *OrderDraft) Validate(catalog *Catalog) error {
	ev := d.EventDetails
	if strings.TrimSpace(ev.Name) == "" {
		return newError(KindInvalidSelection, "event_details.name", "event name is required")
	}
	if ev.HeadCount < 1 {
		return newError(KindInvalidSelection, "event_details.head_count", "head count must be at least 1")
	}
	if strings.TrimSpace(ev.Contact.Name) == "" && strings.TrimSpace(ev.Contact.Email) == "" {
		return newError(KindInvalidSelection, "event_details.contact", "contact name or email is required")
	}

	if d.Breakfast != nil {
		if _, err := catalog.PriceOf(PackageBreakfast, d.Breakfast.PackageType); err != nil {
			return err
		}
		if d.Breakfast.HeadCount < 1 {
			return newError(KindInvalidSelection, "breakfast.head_count", "head count must be at least 1")
		}
	}

	if d.Snacks != nil {
		if _, err := catalog.PriceOf(PackageSnacks, d.Snacks.PackageType); err != nil {
			return err
		}
	}

	seen := make(map[string]struct{}, len(d.LunchSelections))
	for i, sel := range d.LunchSelections {
		field := fmt.Sprintf("lunch_selections[%d]", i)
		if sel.AttendeeID == "" {
			return newError(KindInvalidSelection, field+".attendee_id", "attendee id is required")
		}
		if _, dup := seen[sel.AttendeeID]; dup {
			return newError(KindInvalidSelection, field+".attendee_id", "attendee %q already has a lunch selection", sel.AttendeeID)
		}
		seen[sel.AttendeeID] = struct{}{}
		if sel.MenuItemID == "" {
			return newError(KindInvalidSelection, field+".menu_item_id", "menu item is required")
		}
	}

	if strings.TrimSpace(d.Delivery.Street) == "" || strings.TrimSpace(d.Delivery.City) == "" {
		return newError(KindInvalidSelection, "delivery", "delivery street and city are required")
	}

	return nil
}

// NormalizedPromotionCode returns the trimmed upper-cased code, or "" if none.
func (d *OrderDraft) NormalizedPromotionCode() string {
	if d.PromotionCode == nil {
		return ""
	}
	return NormalizeCode(*d.PromotionCode)
}

// NormalizeCode is the case-insensitive form used to look up promotion codes.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
