package domain

import (
	"strings"
	"time"
)

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryAssigned  DeliveryStatus = "assigned"
	DeliveryPickedUp  DeliveryStatus = "picked_up"
	DeliveryInTransit DeliveryStatus = "in_transit"
	DeliveryArriving  DeliveryStatus = "arriving"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// providerStatuses maps normalized provider vocabulary onto DeliveryStatus.
// "cancelled" is kept apart because it maps to failed but is worth telling apart in history.
var providerStatuses = map[string]DeliveryStatus{
	"pending":            DeliveryPending,
	"created":            DeliveryPending,
	"queued":             DeliveryPending,
	"scheduled":          DeliveryPending,
	"assigned":           DeliveryAssigned,
	"driver_assigned":    DeliveryAssigned,
	"courier_assigned":   DeliveryAssigned,
	"accepted":           DeliveryAssigned,
	"en_route_to_pickup": DeliveryAssigned,
	"at_pickup":          DeliveryAssigned,
	"picked_up":          DeliveryPickedUp,
	"pickup_complete":    DeliveryPickedUp,
	"collected":          DeliveryPickedUp,
	"in_transit":         DeliveryInTransit,
	"en_route":           DeliveryInTransit,
	"on_the_way":         DeliveryInTransit,
	"dropoff":            DeliveryInTransit,
	"arriving":           DeliveryArriving,
	"near_dropoff":       DeliveryArriving,
	"at_dropoff":         DeliveryArriving,
	"delivered":          DeliveryDelivered,
	"completed":          DeliveryDelivered,
	"dropoff_complete":   DeliveryDelivered,
	"failed":             DeliveryFailed,
	"delivery_failed":    DeliveryFailed,
	"returned":           DeliveryFailed,
	"cancelled":          DeliveryFailed,
	"canceled":           DeliveryFailed,
}

func normalizeProviderStatus(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return s
}

// MapDeliveryStatus maps a provider status string. Unknown strings map to pending; ok is false for them.
func MapDeliveryStatus(raw string) (status DeliveryStatus, ok bool) {
	status, ok = providerStatuses[normalizeProviderStatus(raw)]
	if !ok {
		return DeliveryPending, false
	}
	return status, true
}

// DeliveryEventFor returns the lifecycle event raised by a delivery status, if any.
func DeliveryEventFor(status DeliveryStatus) (Event, bool) {
	switch status {
	case DeliveryPickedUp:
		return EventDeliveryPickedUp, true
	case DeliveryDelivered:
		return EventDeliveryDelivered, true
	case DeliveryFailed:
		return EventDeliveryFailed, true
	}
	return "", false
}

type Driver struct {
	Name  string   `json:"name"`
	Phone string   `json:"phone"`
	Lat   *float64 `json:"lat,omitempty"`
	Lon   *float64 `json:"lon,omitempty"`
}

// DeliveryStatusEntry is one provider update as received.
type DeliveryStatusEntry struct {
	Status     DeliveryStatus `json:"status"`
	RawStatus  string         `json:"raw_status"`
	Unmapped   bool           `json:"unmapped,omitempty"`
	Driver     *Driver        `json:"driver,omitempty"`
	ReceivedAt time.Time      `json:"received_at"`
}

// DeliveryTracking is the dispatch provider's view of an order.
type DeliveryTracking struct {
	ExternalDeliveryID string                `json:"external_delivery_id"`
	Status             DeliveryStatus        `json:"status"`
	Driver             *Driver               `json:"driver,omitempty"`
	History            []DeliveryStatusEntry `json:"history"`
}

// DeliveryUpdate is the outcome of folding one provider update into tracking.
type DeliveryUpdate struct {
	Entry    DeliveryStatusEntry
	Event    Event
	HasEvent bool
	// Duplicate marks a resent update that left the tracking untouched.
	Duplicate bool
}

// Record maps raw and appends it to the history. The returned update carries
// the lifecycle event to raise, if any. An update repeating the last entry's
// raw status and driver is not recorded again.
func (t *DeliveryTracking) Record(raw string, driver *Driver, now time.Time) DeliveryUpdate {
	if n := len(t.History); n > 0 {
		last := t.History[n-1]
		if last.RawStatus == raw && sameDriver(last.Driver, driver) {
			return DeliveryUpdate{Entry: last, Duplicate: true}
		}
	}

	status, ok := MapDeliveryStatus(raw)
	entry := DeliveryStatusEntry{
		Status:     status,
		RawStatus:  raw,
		Unmapped:   !ok,
		Driver:     driver,
		ReceivedAt: now,
	}
	t.History = append(t.History, entry)
	// an unrecognised update does not move a known status back to pending
	if ok || t.Status == "" {
		t.Status = status
	}
	if driver != nil {
		t.Driver = driver
	}

	event, has := DeliveryEventFor(status)
	return DeliveryUpdate{Entry: entry, Event: event, HasEvent: has}
}

func sameDriver(a, b *Driver) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Name == b.Name && a.Phone == b.Phone && sameCoord(a.Lat, b.Lat) && sameCoord(a.Lon, b.Lon)
}

func sameCoord(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
