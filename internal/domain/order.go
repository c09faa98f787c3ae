package domain

import (
	"time"

	"github.com/google/uuid"
)

// Payment references the processor's payment intent.
type Payment struct {
	Method            string     `json:"method,omitempty"`
	ExternalPaymentID string     `json:"external_payment_id"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
}

// Order represents a submitted catering order
type Order struct {
	ID               string
	Number           string
	Status           Status
	Selections       Selections
	PromotionCode    *string
	PromotionID      *string
	Pricing          OrderPricing
	Payment          *Payment
	DeliveryTracking *DeliveryTracking
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewOrder creates a draft order from a priced draft
func NewOrder(draft *OrderDraft, pricing OrderPricing, promo *PromotionResult, now time.Time) (*Order, error) {
	if err := pricing.Check(); err != nil {
		return nil, err
	}

	order := &Order{
		ID:         uuid.NewString(),
		Status:     StatusDraft,
		Selections: draft.Selections,
		Pricing:    pricing,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	order.Selections.LunchSelections = append([]LunchSelection(nil), draft.LunchSelections...)

	if promo != nil && promo.Promotion != nil {
		code := promo.Promotion.Code
		id := promo.Promotion.ID
		order.PromotionCode = &code
		order.PromotionID = &id
	}

	return order, nil
}

// CustomerID is the contact identity the order was placed for.
func (o *Order) CustomerID() string {
	return o.Selections.EventDetails.Contact.CustomerID
}

// Apply runs event through the state machine and, when accepted, moves the order.
// A rejected event leaves the order untouched.
func (o *Order) Apply(event Event, now time.Time) (Status, error) {
	next, err := Transition(o.Status, event)
	if err != nil {
		return o.Status, err
	}
	o.Status = next
	o.UpdatedAt = now
	return next, nil
}

// AttachPayment records the processor reference carried by a payment event.
func (o *Order) AttachPayment(externalID, method string, event Event, now time.Time) {
	if o.Payment == nil {
		o.Payment = &Payment{}
	}
	if externalID != "" {
		o.Payment.ExternalPaymentID = externalID
	}
	if method != "" {
		o.Payment.Method = method
	}
	if event == EventPaymentSucceeded {
		paid := now
		o.Payment.PaidAt = &paid
	}
}

// RecordDelivery folds a provider update into the tracking data.
func (o *Order) RecordDelivery(externalID, rawStatus string, driver *Driver, now time.Time) DeliveryUpdate {
	if o.DeliveryTracking == nil {
		o.DeliveryTracking = &DeliveryTracking{ExternalDeliveryID: externalID}
	}
	update := o.DeliveryTracking.Record(rawStatus, driver, now)
	if !update.Duplicate {
		o.UpdatedAt = now
	}
	return update
}
