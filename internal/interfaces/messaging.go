package interfaces

import (
	"context"
	"time"

	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/shopspring/decimal"
)

// RabbitMQ messages
type OrderCreatedMessage struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	CustomerID  string          `json:"customer_id"`
	EventDate   time.Time       `json:"event_date"`
	HeadCount   int             `json:"head_count"`
	Total       decimal.Decimal `json:"total"`
	Status      domain.Status   `json:"status"`
}

type StatusUpdateMessage struct {
	OrderID     string        `json:"order_id"`
	OrderNumber string        `json:"order_number"`
	OldStatus   domain.Status `json:"old_status"`
	NewStatus   domain.Status `json:"new_status"`
	Event       domain.Event  `json:"event"`
	ChangedBy   string        `json:"changed_by"`
	Alert       bool          `json:"alert,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Inbound events relayed by the payment and dispatch integrations through the broker.
type PaymentEventMessage struct {
	OrderID           string `json:"order_id"`
	Outcome           string `json:"outcome"`
	ExternalPaymentID string `json:"external_payment_id"`
	AmountMinor       *int64 `json:"amount_minor,omitempty"`
	Method            string `json:"method,omitempty"`
}

type DeliveryEventMessage struct {
	ExternalOrderID string         `json:"external_order_id"`
	RawStatus       string         `json:"raw_status"`
	Driver          *domain.Driver `json:"driver,omitempty"`
}

// Messaging interfaces (Adapter/RabbitMQ)
type MessagePublisher interface {
	PublishOrderCreated(ctx context.Context, msg OrderCreatedMessage) error
	PublishStatusUpdate(ctx context.Context, msg StatusUpdateMessage) error
}

// EventRelay hands a verified inbound event to the broker instead of applying it inline.
type EventRelay interface {
	PublishEvent(ctx context.Context, routingKey string, body []byte) error
}

type MessageConsumer interface {
	ConsumeEvents(ctx context.Context, handler EventMessageHandler) error
	ConsumeNotifications(ctx context.Context, handler NotificationHandler) error
}

type (
	// EventMessageHandler receives the routing key so it can tell payment and delivery events apart.
	EventMessageHandler func(ctx context.Context, routingKey string, body []byte) error
	NotificationHandler func(ctx context.Context, body []byte) error
)

// CRMSync mirrors customers and orders into the sales pipeline. Best effort:
// implementations must not block the caller on the external system.
type CRMSync interface {
	SyncOrder(ctx context.Context, order *domain.Order)
	SyncStatus(ctx context.Context, order *domain.Order, event domain.Event)
}
