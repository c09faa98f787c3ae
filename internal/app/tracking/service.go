package tracking

import (
	"context"
	"fmt"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/YelzhanWeb/catering/internal/interfaces"
)

type Service struct {
	orderRepo interfaces.OrderRepository
	logger    logger.Logger
}

func NewService(orderRepo interfaces.OrderRepository, logger logger.Logger) *Service {
	return &Service{
		orderRepo: orderRepo,
		logger:    logger,
	}
}

func (s *Service) GetOrderStatus(ctx context.Context, orderID string) (*interfaces.TrackingOrderResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", orderID, err)
	}

	resp := &interfaces.TrackingOrderResponse{
		OrderID:       order.ID,
		OrderNumber:   order.Number,
		CurrentStatus: order.Status,
		UpdatedAt:     order.UpdatedAt,
	}

	if t := order.DeliveryTracking; t != nil {
		status := t.Status
		resp.DeliveryStatus = &status
		resp.Driver = t.Driver
	}

	return resp, nil
}

// GetOrderHistory returns the status log and the raw delivery updates side by side.
func (s *Service) GetOrderHistory(ctx context.Context, orderID string) (*interfaces.TrackingHistoryResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", orderID, err)
	}

	statuses, err := s.orderRepo.GetStatusHistory(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}

	resp := &interfaces.TrackingHistoryResponse{Statuses: statuses, Delivery: []domain.DeliveryStatusEntry{}}
	if order.DeliveryTracking != nil {
		resp.Delivery = order.DeliveryTracking.History
	}
	return resp, nil
}
