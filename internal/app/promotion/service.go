package promotion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/YelzhanWeb/catering/internal/interfaces"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Service struct {
	promos interfaces.PromotionRepository
	orders interfaces.OrderRepository
	rules  domain.PromotionRules
	logger logger.Logger
	now    func() time.Time
}

func NewService(promos interfaces.PromotionRepository, orders interfaces.OrderRepository, rules domain.PromotionRules, logger logger.Logger) *Service {
	return &Service{
		promos: promos,
		orders: orders,
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}
}

// Validate looks the code up, snapshots the customer's history and evaluates the promotion.
func (s *Service) Validate(ctx context.Context, req interfaces.ValidatePromotionRequest) (*domain.PromotionResult, error) {
	code := domain.NormalizeCode(req.Code)
	if code == "" {
		return domain.EvaluatePromotion(nil, req.OrderSubtotal, domain.PromotionHistory{}, s.rules, s.now())
	}

	promo, err := s.promos.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrPromotionNotFound) {
			return domain.EvaluatePromotion(nil, req.OrderSubtotal, domain.PromotionHistory{}, s.rules, s.now())
		}
		return nil, fmt.Errorf("failed to load promotion: %w", err)
	}

	history := domain.PromotionHistory{CustomerID: req.CustomerID}
	if req.CustomerID != "" {
		if promo.PerUserLimit != nil {
			history.CustomerUsages, err = s.promos.CountUsagesByCustomer(ctx, promo.ID, req.CustomerID)
			if err != nil {
				return nil, fmt.Errorf("failed to count promotion usages: %w", err)
			}
		}
		if promo.FirstTimeCustomerOnly {
			history.PriorOrders, err = s.orders.CountActiveOrdersByCustomer(ctx, req.CustomerID)
			if err != nil {
				return nil, fmt.Errorf("failed to count customer orders: %w", err)
			}
		}
	}

	result, err := domain.EvaluatePromotion(promo, req.OrderSubtotal, history, s.rules, s.now())
	if err != nil {
		s.logger.Debug("promotion_rejected", "Promotion code rejected", "", map[string]interface{}{
			"code":        code,
			"customer_id": req.CustomerID,
			"reason":      err.Error(),
		})
		return nil, err
	}
	return result, nil
}

// Check is Validate shaped for the public validation endpoint.
func (s *Service) Check(ctx context.Context, req interfaces.ValidatePromotionRequest) interfaces.ValidatePromotionResponse {
	result, err := s.Validate(ctx, req)
	if err != nil {
		resp := interfaces.ValidatePromotionResponse{IsValid: false, ErrorMessage: err.Error()}
		var derr *domain.Error
		if errors.As(err, &derr) {
			resp.ErrorKind = string(derr.Kind)
			if derr.Message != "" {
				resp.ErrorMessage = derr.Message
			}
		} else {
			s.logger.Error("promotion_validation_failed", "Promotion validation failed", "", nil, err)
			resp.ErrorMessage = "promotion could not be validated, try again later"
		}
		return resp
	}

	discount := result.DiscountAmount
	return interfaces.ValidatePromotionResponse{
		IsValid:        true,
		Promotion:      result.Promotion,
		DiscountAmount: &discount,
		FreeDelivery:   result.FreeDelivery,
		FreeItem:       result.FreeItem,
	}
}

// RecordUsage stores the redemption for orderID. Calling it again for the same order is a no-op.
// A promotion error means the limits were used up after the order was validated.
func (s *Service) RecordUsage(ctx context.Context, promotionID, customerID, orderID string, discount decimal.Decimal) error {
	inserted, err := s.promos.RecordUsage(ctx, domain.PromotionUsage{
		ID:             uuid.NewString(),
		PromotionID:    promotionID,
		CustomerID:     customerID,
		OrderID:        orderID,
		DiscountAmount: discount,
		UsedAt:         s.now(),
	})
	if domain.IsPromotionError(err) {
		s.logger.Warn("promotion_usage_rejected", "Promotion has no redemptions left for this order", "", map[string]interface{}{
			"promotion_id": promotionID,
			"order_id":     orderID,
			"reason":       err.Error(),
		})
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to record promotion usage: %w", err)
	}

	action := "promotion_usage_recorded"
	if !inserted {
		action = "promotion_usage_duplicate"
	}
	s.logger.Debug(action, "Promotion usage processed", "", map[string]interface{}{
		"promotion_id": promotionID,
		"order_id":     orderID,
	})
	return nil
}
