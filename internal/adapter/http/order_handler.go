package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/YelzhanWeb/catering/internal/interfaces"

	"github.com/shopspring/decimal"
)

type OrderHandler struct {
	service interfaces.OrderService
	logger  logger.Logger
}

func NewOrderHandler(service interfaces.OrderService, logger logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger,
	}
}

type PromotionSummary struct {
	Code           string          `json:"code"`
	Type           string          `json:"type"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FreeDelivery   bool            `json:"free_delivery,omitempty"`
	FreeItem       bool            `json:"free_item,omitempty"`
}

type QuoteResponse struct {
	Pricing   domain.OrderPricing `json:"pricing"`
	Promotion *PromotionSummary   `json:"promotion,omitempty"`
}

type OrderResponse struct {
	ID               string                   `json:"id"`
	OrderNumber      string                   `json:"order_number"`
	Status           domain.Status            `json:"status"`
	Selections       domain.Selections        `json:"selections"`
	PromotionCode    *string                  `json:"promotion_code,omitempty"`
	Pricing          domain.OrderPricing      `json:"pricing"`
	Payment          *domain.Payment          `json:"payment,omitempty"`
	DeliveryTracking *domain.DeliveryTracking `json:"delivery_tracking,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

func newOrderResponse(o *domain.Order) OrderResponse {
	return OrderResponse{
		ID:               o.ID,
		OrderNumber:      o.Number,
		Status:           o.Status,
		Selections:       o.Selections,
		PromotionCode:    o.PromotionCode,
		Pricing:          o.Pricing,
		Payment:          o.Payment,
		DeliveryTracking: o.DeliveryTracking,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

// decodeDraft reads an order draft and fills the customer from the caller identity.
func (h *OrderHandler) decodeDraft(w http.ResponseWriter, r *http.Request) (domain.OrderDraft, bool) {
	var draft domain.OrderDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest, nil)
		return draft, false
	}
	if draft.EventDetails.Contact.CustomerID == "" {
		draft.EventDetails.Contact.CustomerID = IdentityFrom(r.Context()).UserID
	}
	return draft, true
}

func (h *OrderHandler) Quote(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	quote, err := h.service.Quote(r.Context(), interfaces.QuoteCommand{Draft: draft})
	if err != nil {
		h.logger.Debug("quote_rejected", "Quote rejected", RequestIDFrom(r.Context()), map[string]interface{}{"reason": err.Error()})
		respondDomainError(w, err)
		return
	}

	resp := QuoteResponse{Pricing: quote.Pricing}
	if p := quote.Promotion; p != nil && p.Promotion != nil {
		resp.Promotion = &PromotionSummary{
			Code:           p.Promotion.Code,
			Type:           string(p.Promotion.Type),
			DiscountAmount: p.DiscountAmount,
			FreeDelivery:   p.FreeDelivery,
			FreeItem:       p.FreeItem,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	requestID := RequestIDFrom(r.Context())
	order, err := h.service.CreateOrder(r.Context(), interfaces.CreateOrderCommand{Draft: draft, RequestID: requestID})
	if err != nil {
		h.logger.Error("order_creation_failed", "Failed to create order", requestID, nil, err)
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, newOrderResponse(order))
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	id := IdentityFrom(r.Context())
	if !id.IsAdmin && order.CustomerID() != "" && order.CustomerID() != id.UserID {
		respondError(w, "Order not found", http.StatusNotFound, nil)
		return
	}

	respondJSON(w, http.StatusOK, newOrderResponse(order))
}
