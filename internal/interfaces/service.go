package interfaces

import (
	"context"
	"time"

	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/shopspring/decimal"
)

// Service commands
type QuoteCommand struct {
	Draft domain.OrderDraft
}

type CreateOrderCommand struct {
	Draft     domain.OrderDraft
	RequestID string
}

type Quote struct {
	Pricing   domain.OrderPricing
	Promotion *domain.PromotionResult
}

type ValidatePromotionRequest struct {
	Code          string
	OrderSubtotal decimal.Decimal
	CustomerID    string
}

type ValidatePromotionResponse struct {
	IsValid        bool              `json:"is_valid"`
	Promotion      *domain.Promotion `json:"promotion,omitempty"`
	DiscountAmount *decimal.Decimal  `json:"discount_amount,omitempty"`
	FreeDelivery   bool              `json:"free_delivery,omitempty"`
	FreeItem       bool              `json:"free_item,omitempty"`
	ErrorKind      string            `json:"error_kind,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
}

type PaymentEventCommand struct {
	OrderID           string
	Outcome           string
	ExternalPaymentID string
	AmountMinor       *int64
	Method            string
	RequestID         string
}

type DeliveryWebhookCommand struct {
	ExternalOrderID string
	RawStatus       string
	Driver          *domain.Driver
	RequestID       string
}

// TransitionResult describes what an event did to an order.
type TransitionResult struct {
	Order     *domain.Order
	OldStatus domain.Status
	NewStatus domain.Status
	// Ignored is set when the event was acknowledged without applying,
	// such as an unknown order or an illegal transition from a redelivery.
	Ignored bool
	Reason  string
}

type AdminAction string

const (
	AdminActionPreparing AdminAction = "preparing"
	AdminActionReady     AdminAction = "ready"
	AdminActionCancel    AdminAction = "cancel"
)

// Service interfaces (Business Logic)
type OrderService interface {
	Quote(ctx context.Context, cmd QuoteCommand) (*Quote, error)
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

type PromotionService interface {
	Validate(ctx context.Context, req ValidatePromotionRequest) (*domain.PromotionResult, error)
	Check(ctx context.Context, req ValidatePromotionRequest) ValidatePromotionResponse
	RecordUsage(ctx context.Context, promotionID, customerID, orderID string, discount decimal.Decimal) error
}

type LifecycleService interface {
	Apply(ctx context.Context, orderID string, event domain.Event, actor, requestID string) (*TransitionResult, error)
	HandlePaymentEvent(ctx context.Context, cmd PaymentEventCommand) (*TransitionResult, error)
	HandleDeliveryWebhook(ctx context.Context, cmd DeliveryWebhookCommand) (*TransitionResult, error)
	AdminAction(ctx context.Context, orderID string, action AdminAction, actor, requestID string) (*TransitionResult, error)
}

type TrackingService interface {
	GetOrderStatus(ctx context.Context, orderID string) (*TrackingOrderResponse, error)
	GetOrderHistory(ctx context.Context, orderID string) (*TrackingHistoryResponse, error)
}

type MenuService interface {
	Create(ctx context.Context, item *domain.MenuItem) (*domain.MenuItem, error)
	Update(ctx context.Context, item *domain.MenuItem) (*domain.MenuItem, error)
	SetAvailability(ctx context.Context, id string, available bool) (*domain.MenuItem, error)
	List(ctx context.Context, category *domain.MenuCategory, onlyAvailable bool) ([]*domain.MenuItem, error)
	LunchPrices(ctx context.Context) (map[string]decimal.Decimal, error)
}

type StatsService interface {
	SalesStats(ctx context.Context, from, to time.Time) (*domain.SalesStats, error)
}

// Tracking responses
type TrackingOrderResponse struct {
	OrderID        string
	OrderNumber    string
	CurrentStatus  domain.Status
	DeliveryStatus *domain.DeliveryStatus
	Driver         *domain.Driver
	UpdatedAt      time.Time
}

type TrackingHistoryResponse struct {
	Statuses []*domain.StatusLog
	Delivery []domain.DeliveryStatusEntry
}
