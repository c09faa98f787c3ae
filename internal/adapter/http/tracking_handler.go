package http

import (
	"net/http"
	"time"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/YelzhanWeb/catering/internal/interfaces"
)

type TrackingHandler struct {
	service interfaces.TrackingService
	logger  logger.Logger
}

func NewTrackingHandler(service interfaces.TrackingService, logger logger.Logger) *TrackingHandler {
	return &TrackingHandler{
		service: service,
		logger:  logger,
	}
}

type OrderStatusResponse struct {
	OrderID        string                 `json:"order_id"`
	OrderNumber    string                 `json:"order_number"`
	CurrentStatus  domain.Status          `json:"current_status"`
	DeliveryStatus *domain.DeliveryStatus `json:"delivery_status,omitempty"`
	Driver         *domain.Driver         `json:"driver,omitempty"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

type StatusHistoryEntry struct {
	Status    domain.Status `json:"status"`
	Event     domain.Event  `json:"event"`
	ChangedBy string        `json:"changed_by"`
	Timestamp time.Time     `json:"timestamp"`
	Notes     *string       `json:"notes,omitempty"`
}

type OrderHistoryResponse struct {
	Statuses []StatusHistoryEntry         `json:"statuses"`
	Delivery []domain.DeliveryStatusEntry `json:"delivery"`
}

func (h *TrackingHandler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GetOrderStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, OrderStatusResponse{
		OrderID:        result.OrderID,
		OrderNumber:    result.OrderNumber,
		CurrentStatus:  result.CurrentStatus,
		DeliveryStatus: result.DeliveryStatus,
		Driver:         result.Driver,
		UpdatedAt:      result.UpdatedAt,
	})
}

func (h *TrackingHandler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.GetOrderHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := OrderHistoryResponse{
		Statuses: make([]StatusHistoryEntry, len(history.Statuses)),
		Delivery: history.Delivery,
	}
	for i, log := range history.Statuses {
		resp.Statuses[i] = StatusHistoryEntry{
			Status:    log.Status,
			Event:     log.Event,
			ChangedBy: log.ChangedBy,
			Timestamp: log.ChangedAt,
			Notes:     log.Notes,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}
